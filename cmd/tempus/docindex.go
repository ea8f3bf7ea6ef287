package main

import (
	"context"
	"fmt"
	"os"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tempus/docindex"
	"tempus/state"
	"tempus/utils/debug"
)

func docindexCommand() *cli.Command {
	return &cli.Command{
		Name:         "docindex",
		Usage:        "Inspects documentation search index fragments",
		OnUsageError: usageErrorHandler,
		Commands: []*cli.Command{
			{
				Name:         "check",
				Usage:        "Validates every fragment found under SOURCE",
				OnUsageError: usageErrorHandler,
				Action:       checkIndex,
				ArgsUsage:    "SOURCE",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "strict", Usage: "fragments which are not in canonical layout are errors"},
				},
			},
			{
				Name:         "show",
				Usage:        "Prints entries whose key starts with PREFIX",
				OnUsageError: usageErrorHandler,
				Action:       showIndex,
				ArgsUsage:    "SOURCE [PREFIX]",
			},
		},
		CustomHelpTemplate: fmt.Sprintf(`%s
SOURCE:
    a fragment file, a directory of generated documentation or a zip archive of it
`, cli.CommandHelpTemplate),
	}
}

func loadFragments(cmd *cli.Command) ([]docindex.Fragment, error) {
	src := cmd.Args().Get(0)
	if src == "" {
		return nil, fmt.Errorf("no source specified")
	}
	frags, err := docindex.Load(src)
	if err != nil {
		return nil, fmt.Errorf("unable to load index: %w", err)
	}
	if len(frags) == 0 {
		return nil, fmt.Errorf("no index fragments found in '%s'", src)
	}
	return frags, nil
}

func checkIndex(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	frags, err := loadFragments(cmd)
	if err != nil {
		return err
	}
	var failed int
	for _, f := range frags {
		verr := docindex.Validate(f.Index)
		if canonical, cerr := docindex.Canonical(f.Raw); cerr == nil && !canonical {
			if cmd.Bool("strict") {
				verr = multierr.Append(verr, fmt.Errorf("not in canonical layout: %w", docindex.ErrInvalid))
			} else {
				env.Log.Warn("Fragment is not in canonical layout", zap.String("file", f.Name))
			}
		}
		if verr == nil {
			env.Log.Debug("Fragment is valid", zap.String("file", f.Name), zap.Int("entries", len(f.Index.Entries)))
			continue
		}
		failed++
		for _, e := range multierr.Errors(verr) {
			env.Log.Error("Invalid fragment", zap.String("file", f.Name), zap.Error(e))
		}
	}
	env.Log.Info("Index checked", zap.Int("fragments", len(frags)), zap.Int("invalid", failed))
	if failed > 0 {
		return fmt.Errorf("%d of %d fragments are invalid: %w", failed, len(frags), docindex.ErrInvalid)
	}
	return nil
}

func showIndex(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	frags, err := loadFragments(cmd)
	if err != nil {
		return err
	}
	prefix := cmd.Args().Get(1)

	tw := debug.NewTreeWriter()
	for _, f := range frags {
		entries := f.Index.Entries
		if prefix != "" {
			entries = f.Index.Lookup(prefix)
		}
		if len(entries) == 0 {
			continue
		}
		tw.Line(0, "%s", f.Name)
		for _, e := range entries {
			tw.Line(1, "%s", e.Key)
			tw.Field(2, "label", e.Label)
			for _, l := range e.Links {
				tw.Line(2, "%s", l.URL)
				tw.Field(3, "context", l.Context)
			}
		}
	}
	env.Rpt.StoreData("docindex/show.txt", []byte(tw.String()))
	_, err = os.Stdout.WriteString(tw.String())
	return err
}
