package main

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"tempus/app"
	"tempus/state"
	"tempus/wps"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:         "serve",
		Usage:        "Serves WPS requests over HTTP",
		OnUsageError: usageErrorHandler,
		Action:       serve,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Aliases: []string{"l"}, Usage: "override listen `ADDRESS` from configuration"},
			&cli.BoolFlag{Name: "build", Aliases: []string{"b"}, Usage: "build graph from configured database before serving"},
		},
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)
	cfg := env.Cfg.Server
	if addr := cmd.String("listen"); addr != "" {
		cfg.Listen = addr
	}

	gin.SetMode(gin.ReleaseMode)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var a *app.App
	services := wps.NewRegistry()
	srv, err := wps.NewServer(wps.Options{
		Listen:         cfg.Listen,
		ScriptURL:      cfg.ScriptURL,
		ReadTimeout:    cfg.ReadTimeout,
		MaxRequestSize: cfg.MaxRequestSize,
		State:          func() string { return a.State().String() },
	}, services, reg, env.Log)
	if err != nil {
		return err
	}

	// a snapshot is cheap to load, a database build is done on request only
	build := cmd.Bool("build") || env.Cfg.Graph.Snapshot != ""
	if a, err = env.OpenApp(ctx, build, srv.Metrics().ObservePhase); err != nil {
		return fmt.Errorf("unable to prepare application: %w", err)
	}
	db := env.Cfg.Database
	if err := wps.NewServices(a, db.Driver, db.Schema, env.Log).Register(services); err != nil {
		return fmt.Errorf("unable to register services: %w", err)
	}

	env.Log.Info("Serving", zap.String("state", a.State().String()), zap.Strings("plugins", a.Plugins()))
	return srv.ListenAndServe(ctx)
}
