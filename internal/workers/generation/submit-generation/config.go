// internal/workers/generation/submit-generation/config.go
package submitgeneration

import "time"

type Config struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	Timeout        time.Duration
}

func LoadConfig() *Config {
	return &Config{
		RequestTimeout: 30 * time.Second,
		MaxRetries:     3,
		RetryDelay:     500 * time.Millisecond,
		Timeout:        2 * time.Minute,
	}
}
