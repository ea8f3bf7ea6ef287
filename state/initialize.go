package state

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tempus/app"
	"tempus/plugin"
	"tempus/plugins"
)

// OpenApp creates the application with configured plugins loaded. With
// build set the graph is built, from the snapshot when one is configured,
// from the database otherwise. The application is closed along with the
// environment.
func (e *LocalEnv) OpenApp(ctx context.Context, build bool, observer plugin.Observer) (*app.App, error) {
	registry := plugin.NewRegistry(e.Log)
	if err := plugins.Register(registry); err != nil {
		return nil, err
	}
	a := app.New(registry, e.Log)
	a.Timetable = e.Cfg.Graph.Timetable
	a.Observer = observer
	if e.Cfg.Graph.Progress {
		a.Progress = e.progress()
	}

	if err := e.loadPlugins(ctx, a); err != nil {
		return nil, multierr.Append(err, a.Close())
	}
	if build {
		if err := e.buildGraph(ctx, a); err != nil {
			return nil, multierr.Append(err, a.Close())
		}
	}
	e.App = a
	return a, nil
}

func (e *LocalEnv) loadPlugins(ctx context.Context, a *app.App) error {
	for _, name := range e.Cfg.Plugins.Load {
		p, err := a.LoadPlugin(ctx, name)
		if err != nil {
			return fmt.Errorf("unable to load plugin: %w", err)
		}
		if err := p.Options().Configure(e.Cfg.Plugins.Options[name]); err != nil {
			return fmt.Errorf("plugin %s: %w", name, err)
		}
	}
	for name := range e.Cfg.Plugins.Options {
		if _, ok := a.Registry().Get(name); !ok {
			e.Log.Warn("Options given for a plugin which is not loaded", zap.String("plugin", name))
		}
	}
	return nil
}

func (e *LocalEnv) buildGraph(ctx context.Context, a *app.App) error {
	if path := e.Cfg.Graph.Snapshot; path != "" {
		e.Log.Info("Loading graph snapshot", zap.String("path", path))
		return a.LoadSnapshot(ctx, path)
	}
	db := e.Cfg.Database
	if err := a.Connect(ctx, db.Driver, db.DSN.Value(), db.Schema); err != nil {
		return err
	}
	if err := a.PreBuildGraph(ctx); err != nil {
		return err
	}
	return a.BuildGraph(ctx)
}

// progress logs every tenth of an import.
func (e *LocalEnv) progress() func(float64, bool) {
	next := 0.1
	return func(fraction float64, finished bool) {
		if finished {
			e.Log.Info("Graph import finished")
			next = 0.1
			return
		}
		if fraction >= next {
			e.Log.Info("Graph import", zap.Int("percent", int(fraction*100)))
			for next <= fraction {
				next += 0.1
			}
		}
	}
}

// Close releases the application, if any.
func (e *LocalEnv) Close() error {
	if e.App == nil {
		return nil
	}
	err := e.App.Close()
	e.App = nil
	return err
}
