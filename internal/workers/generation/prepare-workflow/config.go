// internal/workers/generation/prepare-workflow/config.go
package prepareworkflow

import "time"

type Config struct {
	RegistryPath string
	CacheTTL     time.Duration
	Timeout      time.Duration
}

func LoadConfig() *Config {
	return &Config{
		RegistryPath: "configs/workflow-registry.json",
		CacheTTL:     5 * time.Minute,
		Timeout:      10 * time.Second,
	}
}
