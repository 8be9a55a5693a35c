package answerquestion

import (
	"fmt"
	"time"

	"wikimind/internal/common/config"
)

type Config struct {
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// MaxContextChars only sets the truncation flag echoed back in the output; the engine
	// applies its own window.
	MaxContextChars int `mapstructure:"max_context_chars"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxJobsActive: 5,
		Timeout:       120 * time.Second,

		MaxContextChars: 4000,
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.MaxContextChars <= 0 {
		return fmt.Errorf("max_context_chars must be positive")
	}
	return nil
}

func createConfigFromAppConfig(appConfig *config.Config, custom *Config) *Config {
	if custom != nil {
		return custom
	}
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}
	wc := config.GetWorkerConfig(appConfig, TaskType)
	cfg.MaxJobsActive = wc.MaxJobsActive
	cfg.Timeout = config.GetDuration(wc.Timeout)
	cfg.MaxContextChars = appConfig.Inference.MaxContextChars
	return cfg
}
