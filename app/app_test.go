package app_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"tempus/app"
	"tempus/db"
	"tempus/importer"
	"tempus/internal/fixture"
	"tempus/multimodal"
	"tempus/plugin"
	"tempus/plugins"
	"tempus/routing"
	"tempus/snapshot"
)

func newApp(t *testing.T) (*app.App, *zap.Logger) {
	t.Helper()

	log := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	r := plugin.NewRegistry(log)
	if err := plugins.Register(r); err != nil {
		t.Fatal(err)
	}
	a := app.New(r, log)
	t.Cleanup(func() { a.Close() })
	return a, log
}

// connect opens an in-memory database filled with the fixture network.
func connect(t *testing.T, a *app.App) {
	t.Helper()

	ctx := context.Background()
	if err := a.Connect(ctx, db.DriverSQLite, ":memory:", ""); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	c, _, err := a.DB()
	if err != nil {
		t.Fatal(err)
	}
	for _, q := range append(importer.Schema(""), fixture.Statements("")...) {
		if _, err := c.ExecStatement(ctx, q); err != nil {
			t.Fatalf("ExecStatement(%q) error = %v", q, err)
		}
	}
}

func TestStateOrder(t *testing.T) {
	a, _ := newApp(t)
	ctx := context.Background()

	if a.State() != app.StateInit {
		t.Errorf("State() = %s, want init", a.State())
	}
	if err := a.PreBuildGraph(ctx); !errors.Is(err, app.ErrBadState) {
		t.Errorf("PreBuildGraph() before Connect error = %v, want ErrBadState", err)
	}
	if _, err := a.Graph(); !errors.Is(err, app.ErrBadState) {
		t.Errorf("Graph() error = %v, want ErrBadState", err)
	}
	if _, _, err := a.DB(); !errors.Is(err, app.ErrBadState) {
		t.Errorf("DB() error = %v, want ErrBadState", err)
	}

	connect(t, a)
	if err := a.BuildGraph(ctx); !errors.Is(err, app.ErrBadState) {
		t.Errorf("BuildGraph() before PreBuildGraph error = %v, want ErrBadState", err)
	}
	if err := a.PreBuildGraph(ctx); err != nil {
		t.Fatalf("PreBuildGraph() error = %v", err)
	}
	if a.State() != app.StateGraphPreBuilt {
		t.Errorf("State() = %s, want graph_pre_built", a.State())
	}
	if err := a.BuildGraph(ctx); err != nil {
		t.Fatalf("BuildGraph() error = %v", err)
	}
	if a.State() != app.StateGraphBuilt {
		t.Errorf("State() = %s, want graph_built", a.State())
	}
	g, err := a.Graph()
	if err != nil {
		t.Fatal(err)
	}
	if g.Road().NumVertices() != fixture.MustGraph().Road().NumVertices() {
		t.Errorf("road vertices = %d", g.Road().NumVertices())
	}

	if err := a.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if a.State() != app.StateInit {
		t.Errorf("State() after Close = %s, want init", a.State())
	}
}

func TestPluginLifecycle(t *testing.T) {
	a, _ := newApp(t)
	ctx := context.Background()

	var phases []string
	a.Observer = func(_, phase string, _ float64) {
		phases = append(phases, phase)
	}

	// loaded before the graph, built along with it
	if _, err := a.LoadPlugin(ctx, plugins.RoadName); err != nil {
		t.Fatalf("LoadPlugin() error = %v", err)
	}
	connect(t, a)
	if err := a.PreBuildGraph(ctx); err != nil {
		t.Fatal(err)
	}
	if err := a.BuildGraph(ctx); err != nil {
		t.Fatal(err)
	}
	// loaded after the graph, built immediately
	if _, err := a.LoadPlugin(ctx, plugins.DummyName); err != nil {
		t.Fatalf("LoadPlugin() error = %v", err)
	}
	if _, err := a.LoadPlugin(ctx, "unknown"); !errors.Is(err, plugin.ErrNotFound) {
		t.Errorf("LoadPlugin(unknown) error = %v, want ErrNotFound", err)
	}
	if got := a.Plugins(); len(got) != 2 {
		t.Errorf("Plugins() = %v", got)
	}

	g, _ := a.Graph()
	from, _ := g.Road().VertexFromID(1)
	to, _ := g.Road().VertexFromID(4)
	r, err := routing.NewRequest(routing.Step{Location: from}, routing.Step{Location: to})
	if err != nil {
		t.Fatal(err)
	}
	s, err := a.Session(plugins.RoadName)
	if err != nil {
		t.Fatalf("Session() error = %v", err)
	}
	res, err := s.Run(ctx, r)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(res) != 1 || len(res[0].Steps) != 2 {
		t.Errorf("result = %+v", res)
	}
	if len(phases) == 0 {
		t.Error("observer was not called")
	}

	if err := a.UnloadPlugin(plugins.RoadName); err != nil {
		t.Errorf("UnloadPlugin() error = %v", err)
	}
	if _, err := a.Session(plugins.RoadName); !errors.Is(err, plugin.ErrNotFound) {
		t.Errorf("Session() after unload error = %v, want ErrNotFound", err)
	}
}

func TestLoadSnapshot(t *testing.T) {
	a, log := newApp(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "graph.sqlite")
	if err := snapshot.Dump(ctx, path, fixture.MustGraph(), log); err != nil {
		t.Fatal(err)
	}
	if _, err := a.LoadPlugin(ctx, plugins.DummyName); err != nil {
		t.Fatal(err)
	}
	if err := a.LoadSnapshot(ctx, path); err != nil {
		t.Fatalf("LoadSnapshot() error = %v", err)
	}
	if a.State() != app.StateGraphBuilt {
		t.Errorf("State() = %s, want graph_built", a.State())
	}
	if _, err := a.Graph(); err != nil {
		t.Errorf("Graph() error = %v", err)
	}
}

func readRequest(from, to int64) plugin.RequestReader {
	return func(g *multimodal.Graph) (*routing.Request, error) {
		u, err := g.Road().VertexFromID(from)
		if err != nil {
			return nil, err
		}
		v, err := g.Road().VertexFromID(to)
		if err != nil {
			return nil, err
		}
		return routing.NewRequest(routing.Step{Location: u}, routing.Step{Location: v})
	}
}

func TestReloadDropsPendingRequest(t *testing.T) {
	a, log := newApp(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "graph.sqlite")
	if err := snapshot.Dump(ctx, path, fixture.MustGraph(), log); err != nil {
		t.Fatal(err)
	}
	if _, err := a.LoadPlugin(ctx, plugins.RoadName); err != nil {
		t.Fatal(err)
	}
	if err := a.LoadSnapshot(ctx, path); err != nil {
		t.Fatal(err)
	}
	s, err := a.Session(plugins.RoadName)
	if err != nil {
		t.Fatal(err)
	}
	before := s.Graph()
	if g, _ := a.Graph(); g != before {
		t.Fatal("session graph differs from application graph")
	}

	if _, err := s.PreProcessFrom(ctx, readRequest(1, 4)); err != nil {
		t.Fatalf("PreProcessFrom() error = %v", err)
	}
	if err := a.LoadSnapshot(ctx, path); err != nil {
		t.Fatal(err)
	}
	if s.Graph() == before {
		t.Error("session still holds the previous graph")
	}
	if err := s.Process(ctx); !errors.Is(err, plugin.ErrBadState) {
		t.Errorf("Process() after reload error = %v, want ErrBadState", err)
	}
}

func TestReloadWhileRouting(t *testing.T) {
	a, log := newApp(t)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "graph.sqlite")
	if err := snapshot.Dump(ctx, path, fixture.MustGraph(), log); err != nil {
		t.Fatal(err)
	}
	if _, err := a.LoadPlugin(ctx, plugins.RoadName); err != nil {
		t.Fatal(err)
	}
	if err := a.LoadSnapshot(ctx, path); err != nil {
		t.Fatal(err)
	}
	s, err := a.Session(plugins.RoadName)
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 5 {
			if err := a.LoadSnapshot(ctx, path); err != nil {
				errs <- err
				return
			}
		}
	}()
	for i := range 20 {
		_, res, err := s.RunFrom(ctx, readRequest(1, 4))
		if err != nil {
			t.Errorf("RunFrom() #%d error = %v", i, err)
			break
		}
		if len(res) != 1 {
			t.Errorf("RunFrom() #%d = %d roadmaps, want 1", i, len(res))
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("LoadSnapshot() error = %v", err)
	}
}
