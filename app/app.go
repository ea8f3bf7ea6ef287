// Package app holds the state shared by every front end: database
// connection, graph and loaded plugins.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"tempus/db"
	"tempus/importer"
	"tempus/multimodal"
	"tempus/plugin"
	"tempus/snapshot"
)

var ErrBadState = errors.New("bad application state")

type State int

const (
	StateInit State = iota
	StateConnected
	StateGraphPreBuilt
	StateGraphBuilt
)

var stateNames = [...]string{"init", "connected", "graph_pre_built", "graph_built"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

type App struct {
	mu       sync.RWMutex
	log      *zap.Logger
	state    State
	conn     *db.Connection
	schema   string
	graph    *multimodal.Graph
	registry *plugin.Registry
	sessions map[string]*plugin.Session

	// Timetable makes BuildGraph load schedules as well.
	Timetable bool
	// Observer, when set, receives duration of every plugin phase.
	Observer plugin.Observer
	// Progress, when set, receives graph import progression.
	Progress importer.ProgressFunc
}

func New(registry *plugin.Registry, log *zap.Logger) *App {
	return &App{
		log:      log.Named("app"),
		registry: registry,
		sessions: make(map[string]*plugin.Session),
	}
}

func (a *App) State() State {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.state
}

func (a *App) require(states ...State) error {
	for _, s := range states {
		if a.state == s {
			return nil
		}
	}
	return fmt.Errorf("operation not allowed in state %s: %w", a.state, ErrBadState)
}

// Connect opens the database, an existing connection is closed and the
// graph dropped.
func (a *App) Connect(ctx context.Context, driver, dsn, schema string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	conn, err := db.Connect(ctx, driver, dsn, a.log)
	if err != nil {
		return err
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.log.Warn("Unable to close previous connection", zap.Error(err))
		}
	}
	a.conn, a.schema, a.graph = conn, schema, nil
	a.state = StateConnected
	a.log.Info("Connected", zap.String("driver", driver), zap.String("schema", schema))
	return nil
}

// DB returns the current connection.
func (a *App) DB() (*db.Connection, string, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.conn == nil {
		return nil, "", fmt.Errorf("no database: %w", ErrBadState)
	}
	return a.conn, a.schema, nil
}

func (a *App) PreBuildGraph(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.require(StateConnected, StateGraphPreBuilt, StateGraphBuilt); err != nil {
		return err
	}
	for _, name := range a.registry.Loaded() {
		if err := a.sessions[name].PreBuild(ctx); err != nil {
			return fmt.Errorf("plugin %s: %w", name, err)
		}
	}
	a.state = StateGraphPreBuilt
	return nil
}

// BuildGraph imports the graph from the database and hands it to every
// loaded plugin.
func (a *App) BuildGraph(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.require(StateGraphPreBuilt); err != nil {
		return err
	}
	g, err := importer.Import(ctx, a.conn, importer.Options{
		Schema:    a.schema,
		Timetable: a.Timetable,
		Progress:  a.Progress,
	}, a.log)
	if err != nil {
		return err
	}
	return a.setGraph(ctx, g)
}

// LoadSnapshot replaces the graph with one saved by snapshot.Dump, no
// database is needed.
func (a *App) LoadSnapshot(ctx context.Context, path string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	g, err := snapshot.Load(ctx, path, a.log)
	if err != nil {
		return err
	}
	return a.setGraph(ctx, g)
}

// setGraph hands g to every plugin through its session, so requests
// running on the previous graph finish first.
func (a *App) setGraph(ctx context.Context, g *multimodal.Graph) error {
	a.graph = g
	a.state = StateGraphBuilt
	for _, name := range a.registry.Loaded() {
		if err := a.sessions[name].Attach(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) Graph() (*multimodal.Graph, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.state != StateGraphBuilt {
		return nil, fmt.Errorf("graph is not built: %w", ErrBadState)
	}
	return a.graph, nil
}

// LoadPlugin loads a registered plugin. When the graph is already built the
// plugin goes through its build phases immediately.
func (a *App) LoadPlugin(ctx context.Context, name string) (plugin.Plugin, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	p, err := a.registry.Load(name)
	if err != nil {
		return nil, err
	}
	if _, ok := a.sessions[name]; ok {
		return p, nil
	}
	session := plugin.NewSession(p, a.Observer)
	if a.state >= StateGraphPreBuilt {
		if err := session.PreBuild(ctx); err != nil {
			return nil, multierr.Append(fmt.Errorf("plugin %s: pre_build: %w", name, err), a.registry.Unload(name))
		}
	}
	if a.state == StateGraphBuilt {
		if err := session.Attach(ctx, a.graph); err != nil {
			return nil, multierr.Append(err, a.registry.Unload(name))
		}
	}
	a.sessions[name] = session
	return p, nil
}

func (a *App) UnloadPlugin(name string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.registry.Unload(name); err != nil {
		return err
	}
	delete(a.sessions, name)
	return nil
}

// Session returns the session of a loaded plugin.
func (a *App) Session(name string) (*plugin.Session, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	s, ok := a.sessions[name]
	if !ok {
		return nil, fmt.Errorf("plugin %q is not loaded: %w", name, plugin.ErrNotFound)
	}
	return s, nil
}

// Plugins lists loaded plugins.
func (a *App) Plugins() []string {
	return a.registry.Loaded()
}

func (a *App) Registry() *plugin.Registry {
	return a.registry
}

// Close unloads plugins and closes the database.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	for _, name := range a.registry.Loaded() {
		err = multierr.Append(err, a.registry.Unload(name))
	}
	a.sessions = make(map[string]*plugin.Session)
	if a.conn != nil {
		err = multierr.Append(err, a.conn.Close())
		a.conn = nil
	}
	a.graph = nil
	a.state = StateInit
	return err
}
