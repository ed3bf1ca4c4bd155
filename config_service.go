package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"deckforge/config"
)

// ConfigService handles loading and saving the on-disk configuration.
type ConfigService struct {
	storageDir string
	logger     func(string)
	callbacks  []func(config.Config)
	mu         sync.RWMutex
}

// NewConfigService creates a ConfigService writing through logger.
func NewConfigService(logger func(string)) *ConfigService {
	return &ConfigService{
		logger:    logger,
		callbacks: make([]func(config.Config), 0),
	}
}

// GetStorageDir returns the storage directory (~/DeckForge).
func (cs *ConfigService) GetStorageDir() (string, error) {
	cs.mu.RLock()
	sd := cs.storageDir
	cs.mu.RUnlock()

	if sd != "" {
		return sd, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", WrapError("config", "GetStorageDir", err)
	}
	return filepath.Join(home, "DeckForge"), nil
}

// SetStorageDir overrides the storage directory, mainly for tests.
func (cs *ConfigService) SetStorageDir(dir string) {
	cs.mu.Lock()
	cs.storageDir = dir
	cs.mu.Unlock()
}

// GetConfigPath returns the config file path.
func (cs *ConfigService) GetConfigPath() (string, error) {
	dir, err := cs.GetStorageDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// GetConfig loads the configuration from disk. A missing file yields the
// defaults rather than an error.
func (cs *ConfigService) GetConfig() (config.Config, error) {
	path, err := cs.GetConfigPath()
	if err != nil {
		return config.Config{}, err
	}

	dir := filepath.Dir(path)
	defaultCfg := config.Config{
		Gamma: config.GammaConfig{
			PollIntervalSec: 5,
			PollTimeoutSec:  300,
		},
		TemplateDir:    filepath.Join(dir, "templates"),
		OutputDir:      filepath.Join(dir, "output"),
		DataCacheDir:   filepath.Join(dir, "cache"),
		LocalCache:     true,
		MaxConcurrency: 3,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return defaultCfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config.Config{}, WrapError("config", "GetConfig", err)
	}

	var cfg config.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return config.Config{}, WrapError("config", "GetConfig", err)
	}

	// Apply defaults for empty fields
	if cfg.TemplateDir == "" {
		cfg.TemplateDir = defaultCfg.TemplateDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultCfg.OutputDir
	}
	if cfg.DataCacheDir == "" {
		cfg.DataCacheDir = defaultCfg.DataCacheDir
	}
	cfg.Validate()

	return cfg, nil
}

// SaveConfig validates cfg, writes it to disk and fires the registered
// change callbacks.
func (cs *ConfigService) SaveConfig(cfg config.Config) error {
	if cfg.DataCacheDir != "" {
		info, err := os.Stat(cfg.DataCacheDir)
		if err != nil {
			if os.IsNotExist(err) {
				return WrapError("config", "SaveConfig", fmt.Errorf("data cache directory does not exist: %s", cfg.DataCacheDir))
			}
			return WrapError("config", "SaveConfig", err)
		}
		if !info.IsDir() {
			return WrapError("config", "SaveConfig", fmt.Errorf("data cache path is not a directory: %s", cfg.DataCacheDir))
		}
	}

	dir, err := cs.GetStorageDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return WrapError("config", "SaveConfig", fmt.Errorf("failed to create storage dir: %w", err))
	}

	cfg.Validate()

	path := filepath.Join(dir, "config.json")
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return WrapError("config", "SaveConfig", fmt.Errorf("failed to marshal config: %w", err))
	}

	// 0600: the file carries the API key
	if err := os.WriteFile(path, data, 0600); err != nil {
		return WrapError("config", "SaveConfig", fmt.Errorf("failed to write config file: %w", err))
	}

	cs.log("Configuration saved to disk")
	cs.NotifyConfigChanged(cfg)

	return nil
}

// OnConfigChanged registers a callback fired after each save.
func (cs *ConfigService) OnConfigChanged(callback func(config.Config)) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.callbacks = append(cs.callbacks, callback)
}

// NotifyConfigChanged runs every registered callback with cfg.
func (cs *ConfigService) NotifyConfigChanged(cfg config.Config) {
	cs.mu.RLock()
	cbs := make([]func(config.Config), len(cs.callbacks))
	copy(cbs, cs.callbacks)
	cs.mu.RUnlock()

	for _, cb := range cbs {
		cb(cfg)
	}
}

func (cs *ConfigService) log(msg string) {
	if cs.logger != nil {
		cs.logger(msg)
	}
}
