package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// Manager holds the application configuration and provides thread-safe access to it.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	listeners []func(*Config)
}

// NewManager creates a new ConfigManager.
func NewManager(config *Config) *Manager {
	return &Manager{config: config}
}

// Get returns the current configuration. Callers must treat it as read-only;
// changes go through Update.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnChange registers fn to be called with the new config after every Update.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Update updates the configuration.
func (m *Manager) Update(config *Config) {
	m.mu.Lock()
	oldConfig := m.config
	m.config = config
	listeners := append([]func(*Config){}, m.listeners...)
	m.mu.Unlock()

	// Log configuration changes
	if oldConfig != nil {
		slog.Debug("Configuration updated",
			"priority_changed", !slices.Equal(oldConfig.Lyrics.Priority, config.Lyrics.Priority),
			"race_deadline_changed", oldConfig.Lyrics.RaceDeadline != config.Lyrics.RaceDeadline,
			"cache_ttl_changed", oldConfig.Cache.TTL != config.Cache.TTL,
			"http_changed", oldConfig.HTTP != config.HTTP,
			"telegram_enabled_changed", oldConfig.Telegram.Enabled != config.Telegram.Enabled,
		)
	}
	for _, fn := range listeners {
		fn(config)
	}
}

// Save writes the current configuration to the specified file path.
func (m *Manager) Save(path string) error {
	cfg := m.Get()

	file, err := os.Create(path)
	if err != nil {
		slog.Error("failed to create config file", "path", path, "error", err)
		return err
	}
	defer file.Close()

	encoder := yaml.NewEncoder(file)
	encoder.SetIndent(2)
	if err := encoder.Encode(cfg); err != nil {
		slog.Error("failed to encode config", "path", path, "error", err)
		return err
	}

	slog.Info("Configuration saved successfully", "path", path)
	return nil
}

// redactedCfg gets a redacted copy of the Config
func (m *Manager) redactedCfg() Config {
	var cfgCpy = *m.Get()
	if cfgCpy.Telegram.Token != "" {
		cfgCpy.Telegram.Token = "<redacted>"
	}
	if cfgCpy.Database.Password != "" {
		cfgCpy.Database.Password = "<redacted>"
	}
	if cfgCpy.Database.AuthToken != "" {
		cfgCpy.Database.AuthToken = "<redacted>"
	}
	if cfgCpy.NowPlaying.MPD.Password != "" {
		cfgCpy.NowPlaying.MPD.Password = "<redacted>"
	}
	return cfgCpy
}

// GetJSON returns the current configuration as a JSON string.
func (m *Manager) GetJSON() string {
	jsonBytes, err := json.Marshal(m.redactedCfg())
	if err != nil {
		slog.Error("failed to marshal config to JSON", "error", err)
		return err.Error()
	}
	return string(jsonBytes)
}

func (m *Manager) GetYAML() string {
	yamlBytes, err := yaml.Marshal(m.redactedCfg())
	if err != nil {
		slog.Error("failed to marshal config to YAML", "error", err)
		return err.Error()
	}
	return string(yamlBytes)
}
