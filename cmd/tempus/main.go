package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tempus/config"
	"tempus/misc"
	"tempus/state"
)

// setup loads configuration and opens logging once arguments are parsed.
func setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.NArg() == 0 {
		return ctx, nil
	}
	env := state.EnvFromContext(ctx)
	source := cmd.String("config")

	cfg, err := config.LoadConfiguration(source)
	if err != nil {
		return ctx, fmt.Errorf("configuration %q: %w", source, err)
	}
	env.Cfg = cfg

	if cmd.Bool("debug") {
		if err := openReport(env, source); err != nil {
			return ctx, err
		}
	}
	if env.Log, err = cfg.Logging.Prepare(env.Rpt); err != nil {
		return ctx, fmt.Errorf("logging: %w", err)
	}
	env.RedirectStdLog()

	env.Log.Debug("Tempus starting",
		zap.Strings("args", os.Args),
		zap.String("version", misc.GetVersion()),
		zap.String("commit", misc.GetGitHash()),
		zap.String("go", runtime.Version()))
	switch {
	case env.Rpt != nil:
		env.Log.Info("Collecting debug report", zap.String("archive", env.Rpt.Name()))
	case source == "":
		env.Log.Info("No configuration file given, running on defaults")
	}
	return ctx, nil
}

// openReport starts the debug archive and stores the effective configuration
// in it, secrets masked.
func openReport(env *state.LocalEnv, source string) (err error) {
	if env.Rpt, err = env.Cfg.Reporting.Prepare(); err != nil {
		return fmt.Errorf("debug report: %w", err)
	}
	if source == "" {
		return nil
	}
	if data, err := config.Dump(env.Cfg); err == nil {
		env.Rpt.StoreData("config/"+filepath.Base(source), data)
	}
	return nil
}

// teardown closes the application, then logging, then the debug report.
// Anything failing after the log is gone goes to stderr through main.
func teardown(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	err := env.Close()
	if err != nil {
		err = fmt.Errorf("closing application: %w", err)
	}
	if env.Log != nil {
		env.Log.Debug("Tempus done", zap.Duration("uptime", env.Uptime()), zap.Strings("args", cmd.Args().Slice()))
	}
	env.RestoreStdLog()

	if env.Rpt != nil {
		if er := env.Rpt.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("closing debug report: %w", er))
		}
	}
	return multierr.Append(err, dropEmptyPanicLog(env.Cfg))
}

func dropEmptyPanicLog(cfg *config.Config) error {
	if cfg == nil || cfg.Logging.FileLogger.Destination == "" {
		return nil
	}
	debug.SetCrashOutput(nil, debug.CrashOptions{})
	name := cfg.Logging.PanicLogName()
	fi, err := os.Stat(name)
	if err != nil || fi.Size() > 0 {
		return nil
	}
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("removing empty panic log %q: %w", name, err)
	}
	return nil
}

// exitReport remembers whether the failure of a command already went to the
// log. Commands return plain errors rather than cli.Exit.
type exitReport struct {
	logged bool
}

// logError runs before teardown, while logging is still open.
func (r *exitReport) logError(ctx context.Context, _ *cli.Command, err error) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Error("Tempus failed", zap.Error(err))
		r.logged = true
	}
}

func (r *exitReport) code(err error) int {
	if err == nil {
		return 0
	}
	if !r.logged {
		fmt.Fprintf(os.Stderr, "tempus: %v\n", err)
	}
	var coder cli.ExitCoder
	if errors.As(err, &coder) {
		return coder.ExitCode()
	}
	return 1
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	return err
}

func unknownCommand(ctx context.Context, _ *cli.Command, name string) {
	if log := state.EnvFromContext(ctx).Log; log != nil {
		log.Warn("No such command", zap.String("command", name))
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report := &exitReport{}
	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "multimodal route planning engine",
		Version:         fmt.Sprintf("%s (%s) : %s", misc.GetVersion(), runtime.Version(), misc.GetGitHash()),
		HideHelpCommand: true,
		Before:          setup,
		After:           teardown,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  report.logError,
		CommandNotFound: unknownCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "read settings from YAML `FILE`, built in defaults otherwise"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "log verbosely and pack logs with configuration into a report archive"},
		},
		Commands: []*cli.Command{
			serveCommand(),
			routeCommand(),
			checkCommand(),
			snapshotCommand(),
			docindexCommand(),
			configCommand(),
		},
	}
	return report.code(app.Run(ctx, os.Args))
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "dumpconfig",
		Usage: "Writes configuration as YAML",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "default", Usage: "write built in defaults instead of the merged settings"},
		},
		OnUsageError: usageErrorHandler,
		Action:       writeConfiguration,
		ArgsUsage:    "[FILE]",
		CustomHelpTemplate: fmt.Sprintf(`%s
FILE:
    where to write, standard output when omitted

Merged settings are the built in defaults overlaid by --config. Database
passwords come out masked.
`, cli.CommandHelpTemplate),
	}
}

func writeConfiguration(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)
	if extra := cmd.Args().Tail(); len(extra) > 0 {
		env.Log.Warn("Only one destination is used", zap.Strings("ignored", extra))
	}

	var data []byte
	if cmd.Bool("default") {
		data, err = config.Prepare()
	} else {
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("rendering configuration: %w", err)
	}

	name := cmd.Args().First()
	if name == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(name, data, 0o644); err != nil {
		return fmt.Errorf("writing configuration: %w", err)
	}
	env.Log.Info("Configuration written", zap.String("file", name), zap.Bool("default", cmd.Bool("default")))
	return nil
}
