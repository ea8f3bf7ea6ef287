package state

import (
	"context"
	"log"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"tempus/app"
	"tempus/config"
	"tempus/internal/fixture"
	"tempus/plugins"
	"tempus/snapshot"
)

func testLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
}

func TestContextWithEnv(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))
	if env.start.IsZero() {
		t.Error("start time not set")
	}
	time.Sleep(5 * time.Millisecond)
	if env.Uptime() < 5*time.Millisecond {
		t.Errorf("Uptime() = %v", env.Uptime())
	}

	defer func() {
		if recover() == nil {
			t.Error("EnvFromContext() without env did not panic")
		}
	}()
	EnvFromContext(context.Background())
}

func TestRedirectStdLog(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	env := &LocalEnv{Log: zap.New(core)}

	env.RedirectStdLog()
	log.Print("from the standard logger")
	env.RestoreStdLog()
	log.Print("not captured")

	if n := logs.FilterMessage("from the standard logger").Len(); n != 1 {
		t.Errorf("captured %d entries, want 1", n)
	}
	if logs.Len() != 1 {
		t.Errorf("captured %d entries in total, want 1", logs.Len())
	}

	// no logger, nothing to do
	empty := &LocalEnv{}
	empty.RedirectStdLog()
	empty.RestoreStdLog()
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Plugins.Load = []string{plugins.RoadName, plugins.DummyName}
	cfg.Plugins.Options = map[string]map[string]string{plugins.RoadName: {"astar": "true"}}
	return cfg
}

func TestOpenApp(t *testing.T) {
	ctx := context.Background()
	env := &LocalEnv{Log: testLogger(t), Cfg: testConfig(t)}
	t.Cleanup(func() { env.Close() })

	path := filepath.Join(t.TempDir(), "graph.sqlite")
	if err := snapshot.Dump(ctx, path, fixture.MustGraph(), env.Log); err != nil {
		t.Fatal(err)
	}
	env.Cfg.Graph.Snapshot = path

	a, err := env.OpenApp(ctx, true, nil)
	if err != nil {
		t.Fatalf("OpenApp() error = %v", err)
	}
	if a.State() != app.StateGraphBuilt {
		t.Errorf("State() = %s, want graph_built", a.State())
	}
	if got := a.Plugins(); len(got) != 2 {
		t.Errorf("Plugins() = %v", got)
	}
	p, _ := a.Registry().Get(plugins.RoadName)
	p.Options().Reset()
	if v, _ := p.Options().Bool("astar"); !v {
		t.Error("configured option lost after Reset()")
	}

	if err := env.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if env.App != nil {
		t.Error("App kept after Close()")
	}
}

func TestOpenAppErrors(t *testing.T) {
	ctx := context.Background()

	env := &LocalEnv{Log: testLogger(t), Cfg: testConfig(t)}
	env.Cfg.Plugins.Load = []string{"unknown"}
	if _, err := env.OpenApp(ctx, false, nil); err == nil {
		t.Error("OpenApp() with an unknown plugin succeeded")
	}

	env = &LocalEnv{Log: testLogger(t), Cfg: testConfig(t)}
	env.Cfg.Plugins.Options[plugins.RoadName] = map[string]string{"astar": "maybe"}
	if _, err := env.OpenApp(ctx, false, nil); err == nil {
		t.Error("OpenApp() with a malformed option succeeded")
	}

	env = &LocalEnv{Log: testLogger(t), Cfg: testConfig(t)}
	env.Cfg.Graph.Snapshot = filepath.Join(t.TempDir(), "absent.sqlite")
	if _, err := env.OpenApp(ctx, true, nil); err == nil {
		t.Error("OpenApp() with an absent snapshot succeeded")
	}
	if env.App != nil {
		t.Error("App set after a failure")
	}
}
