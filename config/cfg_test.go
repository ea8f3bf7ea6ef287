package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("unable to write config file: %v", err)
	}
	return path
}

func TestLoadConfigurationDefaults(t *testing.T) {
	t.Setenv("TEMPUS_DSN", "graph.sqlite")

	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Version = %d, want 1", cfg.Version)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN.Value() != "graph.sqlite" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if diff := cmp.Diff([]string{"sample_road", "sample_pt", "sample_multi"}, cfg.Plugins.Load); diff != "" {
		t.Errorf("plugins mismatch (-want +got):\n%s", diff)
	}
	if !cfg.Graph.Timetable {
		t.Error("timetable is off by default")
	}
}

func TestLoadConfigurationFile(t *testing.T) {
	path := writeConfig(t, `version: 1
database:
  driver: postgres
  dsn: postgres://tempus@localhost/tempus
  schema: tempus
server:
  listen: 0.0.0.0:9000
  read_timeout: 5s
plugins:
  load: [sample_road]
  options:
    sample_road:
      astar: "true"
graph:
  snapshot: graph.sqlite
logging:
  console:
    level: debug
`)
	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.Schema != "tempus" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Server.Listen != "0.0.0.0:9000" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	want := map[string]map[string]string{"sample_road": {"astar": "true"}}
	if diff := cmp.Diff(want, cfg.Plugins.Options); diff != "" {
		t.Errorf("options mismatch (-want +got):\n%s", diff)
	}
	if cfg.Graph.Snapshot != "graph.sqlite" {
		t.Errorf("Snapshot = %q", cfg.Graph.Snapshot)
	}
	// untouched sections keep defaults
	if cfg.Server.MaxRequestSize != 4<<20 {
		t.Errorf("MaxRequestSize = %d", cfg.Server.MaxRequestSize)
	}
}

func TestLoadConfigurationErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown field", "version: 1\nunknown_field: value\n"},
		{"bad version", "version: 2\n"},
		{"bad driver", "version: 1\ndatabase:\n  driver: mysql\n"},
		{"bad listen address", "version: 1\nserver:\n  listen: nowhere\n"},
		{"bad log level", "version: 1\nlogging:\n  console:\n    level: loud\n"},
		{"malformed", "version: 1\ndatabase:\n  driver: sqlite\n  invalid indent\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfiguration(writeConfig(t, tt.content)); err == nil {
				t.Error("LoadConfiguration() succeeded")
			}
		})
	}

	if _, err := LoadConfiguration(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadConfiguration(absent) succeeded")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if _, err := unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("default configuration is not valid: %v", err)
	}
}

func TestDumpHidesSecrets(t *testing.T) {
	path := writeConfig(t, "version: 1\ndatabase:\n  driver: postgres\n  dsn: postgres://tempus:password@db/tempus\n")
	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatal(err)
	}
	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if strings.Contains(string(data), "password") {
		t.Errorf("Dump() leaks the connection string:\n%s", data)
	}

	// what is dumped loads back
	again, err := unmarshalConfig(data, &Config{}, true)
	if err != nil {
		t.Fatalf("dumped configuration is not valid: %v", err)
	}
	if again.Database.Driver != "postgres" || again.Server.Listen != cfg.Server.Listen {
		t.Errorf("dumped configuration = %+v", again)
	}
}
