package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	DatabaseConfig struct {
		Driver string       `yaml:"driver" validate:"required,oneof=postgres sqlite"`
		DSN    SecretString `yaml:"dsn"`
		Schema string       `yaml:"schema"`
	}

	ServerConfig struct {
		Listen string `yaml:"listen" validate:"required,hostname_port"`
		// advertised in capabilities, derived from requests when empty
		ScriptURL      string        `yaml:"script_url,omitempty" validate:"omitempty,url"`
		ReadTimeout    time.Duration `yaml:"read_timeout" validate:"gte=0"`
		MaxRequestSize int64         `yaml:"max_request_size" validate:"gte=0"`
	}

	PluginsConfig struct {
		Load []string `yaml:"load" validate:"dive,required"`
		// option values by plugin name, parsed according to option types
		Options map[string]map[string]string `yaml:"options,omitempty"`
	}

	GraphConfig struct {
		// when set the graph is loaded from this file instead of the database
		Snapshot  string `yaml:"snapshot,omitempty" validate:"omitempty,filepath"`
		Timetable bool   `yaml:"timetable"`
		Progress  bool   `yaml:"progress"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Database  DatabaseConfig `yaml:"database"`
		Server    ServerConfig   `yaml:"server"`
		Plugins   PluginsConfig  `yaml:"plugins"`
		Graph     GraphConfig    `yaml:"graph"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// only fields defined above are accepted
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration expands the embedded template to get defaults, then
// superimposes values from the file at path when given and validates the
// result.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, true)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare returns the expanded default configuration.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

// Dump marshals cfg, secrets are masked.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
