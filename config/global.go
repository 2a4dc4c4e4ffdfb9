package config

import (
	"os"
	"sync"

	"go.uber.org/zap"
)

// ConfigPathEnv names the file Global loads from.
const ConfigPathEnv = "LLMGATE_CONFIG"

var (
	globalOnce sync.Once
	globalCfg  *Config
	globalErr  error
)

// Global returns the process-wide configuration, loading it on first use from
// the file named by LLMGATE_CONFIG plus the environment. Concurrent first
// callers share one load; the result is read-only afterwards.
func Global() (*Config, error) {
	globalOnce.Do(func() {
		loader := NewLoader().WithValidator((*Config).Validate)
		if path := os.Getenv(ConfigPathEnv); path != "" {
			loader = loader.WithConfigPath(path)
		}
		globalCfg, globalErr = loader.Load()
		if globalErr != nil {
			zap.L().Warn("failed to load global config", zap.Error(globalErr))
		}
	})
	return globalCfg, globalErr
}

// resetGlobal is used by tests.
func resetGlobal() {
	globalOnce = sync.Once{}
	globalCfg = nil
	globalErr = nil
}
