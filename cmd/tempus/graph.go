package main

import (
	"context"
	"fmt"
	"path/filepath"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"tempus/multimodal"
	"tempus/snapshot"
	"tempus/state"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:         "check",
		Usage:        "Builds the graph and checks its consistency",
		OnUsageError: usageErrorHandler,
		Action:       checkGraph,
	}
}

func snapshotCommand() *cli.Command {
	return &cli.Command{
		Name:         "snapshot",
		Usage:        "Saves or inspects graph snapshots",
		OnUsageError: usageErrorHandler,
		Commands: []*cli.Command{
			{
				Name:         "dump",
				Usage:        "Builds the graph from the database and saves it",
				OnUsageError: usageErrorHandler,
				Action:       dumpSnapshot,
				ArgsUsage:    "DESTINATION",
			},
			{
				Name:         "load",
				Usage:        "Loads a snapshot and reports what it holds",
				OnUsageError: usageErrorHandler,
				Action:       loadSnapshot,
				ArgsUsage:    "SOURCE",
			},
		},
	}
}

func logGraph(log *zap.Logger, g *multimodal.Graph) {
	log.Info("Graph",
		zap.Int("road vertices", g.Road().NumVertices()),
		zap.Int("road edges", g.Road().NumEdges()),
		zap.Int("vertices", g.NumVertices()),
		zap.Int("edges", g.NumEdges()),
		zap.Int64s("networks", g.NetworkIDs()),
		zap.Int("pois", len(g.POIIDs())))
}

func checkGraph(ctx context.Context, _ *cli.Command) error {
	env := state.EnvFromContext(ctx)

	a, err := env.OpenApp(ctx, true, nil)
	if err != nil {
		return fmt.Errorf("unable to prepare application: %w", err)
	}
	g, err := a.Graph()
	if err != nil {
		return err
	}
	logGraph(env.Log, g)
	if err := g.CheckConsistency(); err != nil {
		return fmt.Errorf("graph is not consistent: %w", err)
	}
	env.Log.Info("Graph is consistent")
	return nil
}

func dumpSnapshot(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	dst := cmd.Args().Get(0)
	if dst == "" {
		return fmt.Errorf("no destination specified")
	}
	// always rebuild from the database
	env.Cfg.Graph.Snapshot = ""
	a, err := env.OpenApp(ctx, true, nil)
	if err != nil {
		return fmt.Errorf("unable to prepare application: %w", err)
	}
	g, err := a.Graph()
	if err != nil {
		return err
	}
	logGraph(env.Log, g)
	if err := snapshot.Dump(ctx, dst, g, env.Log); err != nil {
		return fmt.Errorf("unable to save snapshot: %w", err)
	}
	env.Log.Info("Snapshot saved", zap.String("file", dst))
	return nil
}

func loadSnapshot(ctx context.Context, cmd *cli.Command) error {
	env := state.EnvFromContext(ctx)

	src := cmd.Args().Get(0)
	if src == "" {
		return fmt.Errorf("no source specified")
	}
	g, err := snapshot.Load(ctx, src, env.Log)
	if err != nil {
		return err
	}
	logGraph(env.Log, g)
	if err := g.CheckConsistency(); err != nil {
		return fmt.Errorf("snapshot is not consistent: %w", err)
	}
	if err := env.Rpt.StoreCopy("snapshot/"+filepath.Base(src), src); err != nil {
		env.Log.Warn("Unable to store snapshot in report", zap.Error(err))
	}
	return nil
}
