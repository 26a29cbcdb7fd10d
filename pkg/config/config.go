// Package config provides hierarchical configuration management.
// Priority: defaults < system < user < project < env < flags
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all BuildFlow configuration.
type Config struct {
	Version int `yaml:"version"`

	Engine    EngineConfig    `yaml:"engine"`
	Build     BuildConfig     `yaml:"build"`
	Watch     WatchConfig     `yaml:"watch"`
	Hooks     HooksConfig     `yaml:"hooks"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// HooksConfig declares shell commands run around each build.
type HooksConfig struct {
	PreBuild  []string `yaml:"pre_build"`
	PostBuild []string `yaml:"post_build"`
}

// EngineConfig selects the builder binary.
type EngineConfig struct {
	Binary   string `yaml:"binary"`   // docker | podman
	Platform string `yaml:"platform"` // e.g., "linux/amd64"
}

// BuildConfig controls default build behavior.
type BuildConfig struct {
	Dockerfile string `yaml:"dockerfile"`
	Pull       bool   `yaml:"pull"`
	Verbose    bool   `yaml:"verbose"`
}

// WatchConfig controls watch mode.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// UnmarshalYAML accepts the debounce as a duration string ("500ms",
// "2s") or as integer nanoseconds.
func (w *WatchConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Debounce yamlDuration `yaml:"debounce"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	w.Debounce = time.Duration(raw.Debounce)
	return nil
}

// MarshalYAML renders the debounce as a duration string so saved
// configs stay readable and reloadable.
func (w WatchConfig) MarshalYAML() (interface{}, error) {
	return struct {
		Debounce string `yaml:"debounce"`
	}{w.Debounce.String()}, nil
}

type yamlDuration time.Duration

func (d *yamlDuration) UnmarshalYAML(value *yaml.Node) error {
	var n int64
	if err := value.Decode(&n); err == nil {
		*d = yamlDuration(n)
		return nil
	}
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = yamlDuration(parsed)
	return nil
}

// LogConfig controls diagnostic logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Pretty bool   `yaml:"pretty"` // console writer instead of JSON
}

// TelemetryConfig for optional trace export.
type TelemetryConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Version: 1,
		Engine: EngineConfig{
			Binary:   "docker",
			Platform: "linux/amd64",
		},
		Build: BuildConfig{
			Dockerfile: "Dockerfile",
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
		Telemetry: TelemetryConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
		},
	}
}

// Manager handles configuration loading and merging.
type Manager struct {
	mu     sync.RWMutex
	config *Config
	paths  []string // Paths that were loaded
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config: Default(),
	}
}

// Load loads configuration from all sources in priority order.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Start with defaults
	m.config = Default()

	// Load from paths in order (later overrides earlier)
	for _, path := range m.getConfigPaths() {
		if err := m.loadFile(path); err != nil {
			// Ignore missing files, but surface errors for existing files
			if !os.IsNotExist(err) {
				return err
			}
		} else {
			m.paths = append(m.paths, path)
		}
	}

	// Override with environment variables
	m.loadEnv()

	return nil
}

// getConfigPaths returns config file paths in priority order.
func (m *Manager) getConfigPaths() []string {
	var paths []string

	// System config
	if runtime.GOOS != "windows" {
		paths = append(paths, "/etc/buildflow/config.yaml")
	}

	// User config
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".buildflow", "config.yaml"))
	}

	// Project config (current directory)
	if cwd, err := os.Getwd(); err == nil {
		paths = append(paths, filepath.Join(cwd, ".buildflow.yaml"))
	}

	return paths
}

// loadFile loads a single config file and merges it.
func (m *Manager) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var partial Config
	if err := yaml.Unmarshal(data, &partial); err != nil {
		return err
	}

	m.merge(&partial)
	return nil
}

// merge merges non-zero values from src into config.
func (m *Manager) merge(src *Config) {
	if src.Engine.Binary != "" {
		m.config.Engine.Binary = src.Engine.Binary
	}
	if src.Engine.Platform != "" {
		m.config.Engine.Platform = src.Engine.Platform
	}

	if src.Build.Dockerfile != "" {
		m.config.Build.Dockerfile = src.Build.Dockerfile
	}
	if src.Build.Pull {
		m.config.Build.Pull = true
	}
	if src.Build.Verbose {
		m.config.Build.Verbose = true
	}

	if src.Watch.Debounce != 0 {
		m.config.Watch.Debounce = src.Watch.Debounce
	}

	if len(src.Hooks.PreBuild) > 0 {
		m.config.Hooks.PreBuild = src.Hooks.PreBuild
	}
	if len(src.Hooks.PostBuild) > 0 {
		m.config.Hooks.PostBuild = src.Hooks.PostBuild
	}

	if src.Log.Level != "" {
		m.config.Log.Level = src.Log.Level
	}

	if src.Telemetry.Enabled {
		m.config.Telemetry.Enabled = true
	}
	if src.Telemetry.Endpoint != "" {
		m.config.Telemetry.Endpoint = src.Telemetry.Endpoint
	}
}

// loadEnv loads configuration from environment variables.
func (m *Manager) loadEnv() {
	if v := os.Getenv("BUILDFLOW_ENGINE"); v != "" {
		m.config.Engine.Binary = v
	}
	if v := os.Getenv("BUILDFLOW_PLATFORM"); v != "" {
		m.config.Engine.Platform = v
	}
	if v := os.Getenv("BUILDFLOW_LOG_LEVEL"); v != "" {
		m.config.Log.Level = v
	}
	if v := os.Getenv("BUILDFLOW_OTLP_ENDPOINT"); v != "" {
		m.config.Telemetry.Endpoint = v
		m.config.Telemetry.Enabled = true
	}
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// GetPaths returns the paths that were loaded.
func (m *Manager) GetPaths() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.paths
}

// Save writes the current config to the user config file.
func (m *Manager) Save() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	configDir := filepath.Join(home, ".buildflow")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(configDir, "config.yaml"), data, 0644)
}

// Dump renders the effective configuration as YAML.
func (m *Manager) Dump() (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, err := yaml.Marshal(m.config)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Global instance
var (
	globalManager *Manager
	globalOnce    sync.Once
)

// Global returns the global configuration manager.
func Global() *Manager {
	globalOnce.Do(func() {
		globalManager = NewManager()
		globalManager.Load()
	})
	return globalManager
}
