// internal/workers/generation/record-run-state/config.go
package recordrunstate

import "time"

type Config struct {
	// MaxLogLines keeps only the newest lines after appending; 0 keeps all.
	MaxLogLines int
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxLogLines: 500,
		Timeout:     10 * time.Second,
	}
}
