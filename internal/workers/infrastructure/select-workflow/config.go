// internal/workers/infrastructure/select-workflow/config.go
package selectworkflow

import "time"

// Config maps "service:mode" keys to workflow ids. "service:default" is
// consulted when the mode has no rule, DefaultWorkflow when the service has none.
type Config struct {
	SelectionRules  map[string]string `mapstructure:"selection_rules"`
	DefaultWorkflow string            `mapstructure:"default_workflow"`
	Timeout         time.Duration
}

func LoadConfig() *Config {
	return &Config{
		SelectionRules: map[string]string{},
		Timeout:        5 * time.Second,
	}
}
