package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oarkflow/bcl"
	"github.com/oarkflow/errors"
	"github.com/oarkflow/json"
	"github.com/oarkflow/log"
	"gopkg.in/yaml.v3"

	"github.com/oarkflow/spl"
)

type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

type RuntimeConfig struct {
	LogExecution   bool `json:"log_execution" yaml:"log_execution"`
	TraceCalls     bool `json:"trace_calls" yaml:"trace_calls"`
	FreezeBuiltins bool `json:"freeze_builtins" yaml:"freeze_builtins"`
}

type ServerConfig struct {
	Address        string `json:"address" yaml:"address"`
	Version        string `json:"version" yaml:"version"`
	CacheSize      int64  `json:"cache_size" yaml:"cache_size"`
	MaxSourceBytes int    `json:"max_source_bytes" yaml:"max_source_bytes"`
	JournalFile    string `json:"journal_file" yaml:"journal_file"`
}

type REPLConfig struct {
	HistoryFile string `json:"history_file" yaml:"history_file"`
	Prompt      string `json:"prompt" yaml:"prompt"`
}

type Config struct {
	Log     LogConfig     `json:"log" yaml:"log"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
	Server  ServerConfig  `json:"server" yaml:"server"`
	REPL    REPLConfig    `json:"repl" yaml:"repl"`
}

var levels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true, "fatal": true,
}

func Default() *Config {
	history := ".spl_history"
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, ".spl_history")
	}
	return &Config{
		Log:     LogConfig{Level: "warn", Format: "console"},
		Runtime: RuntimeConfig{},
		Server: ServerConfig{
			Address:        ":8080",
			Version:        "1.0.0",
			CacheSize:      1000,
			MaxSourceBytes: 64 << 10,
		},
		REPL: REPLConfig{HistoryFile: history, Prompt: ">> "},
	}
}

type decodeFunc func(data []byte, v any) error

func decodeJSON(data []byte, v any) error { return json.Unmarshal(data, v) }

func decodeBCL(data []byte, v any) error {
	_, err := bcl.Unmarshal(data, v)
	return err
}

// Load reads a config file chosen by extension. Files without a known
// extension go through format detection.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return decode(data, yaml.Unmarshal)
	case ".json":
		return decode(data, decodeJSON)
	case ".bcl":
		return decode(data, decodeBCL)
	}
	cfg, _, err := Parse(data)
	return cfg, err
}

// LoadFromString decodes content in the named format: json, yaml or bcl.
func LoadFromString(content, format string) (*Config, error) {
	switch strings.ToLower(format) {
	case "yaml", "yml":
		return decode([]byte(content), yaml.Unmarshal)
	case "json":
		return decode([]byte(content), decodeJSON)
	case "bcl":
		return decode([]byte(content), decodeBCL)
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}
}

// Parse detects the format of data, trying JSON, YAML and BCL in turn, and
// reports which one matched.
func Parse(data []byte) (*Config, string, error) {
	trimmed := []byte(strings.TrimSpace(string(data)))
	for _, candidate := range []struct {
		name   string
		decode decodeFunc
	}{
		{"json", decodeJSON},
		{"yaml", yaml.Unmarshal},
		{"bcl", decodeBCL},
	} {
		if cfg, err := decode(trimmed, candidate.decode); err == nil {
			return cfg, candidate.name, nil
		}
	}
	return nil, "", errors.New("unable to detect config format, please provide valid JSON, YAML, or BCL")
}

func decode(data []byte, fn decodeFunc) (*Config, error) {
	cfg := Default()
	if err := fn([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	if !levels[strings.ToLower(c.Log.Level)] {
		return fmt.Errorf("log.level %q is not one of trace, debug, info, warn, error, fatal", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("log.format %q must be console or json", c.Log.Format)
	}
	if c.Server.CacheSize < 0 {
		return errors.New("server.cache_size must not be negative")
	}
	if c.Server.MaxSourceBytes <= 0 {
		return errors.New("server.max_source_bytes must be positive")
	}
	return nil
}

// Apply installs the runtime section as the process-wide interpreter
// defaults and freezes the builtin registry when requested.
func (c *Config) Apply() {
	spl.SetRuntimeConfig(spl.RuntimeConfig{
		LogExecution: c.Runtime.LogExecution,
		TraceCalls:   c.Runtime.TraceCalls,
	})
	if c.Runtime.FreezeBuiltins {
		spl.FreezeFunctionRegistry()
	}
}

// NewLogger builds a logger writing to w in the configured format.
func NewLogger(cfg LogConfig, w io.Writer) *log.Logger {
	logger := &log.Logger{Level: log.ParseLevel(strings.ToLower(cfg.Level))}
	if strings.EqualFold(cfg.Format, "json") {
		logger.Writer = &log.IOWriter{Writer: w}
	} else {
		logger.Writer = &log.ConsoleWriter{Writer: w}
	}
	return logger
}
