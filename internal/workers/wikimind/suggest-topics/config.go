package suggesttopics

import (
	"fmt"
	"time"

	"wikimind/internal/common/config"
)

type Config struct {
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	// DefaultLanguage applies when the job carries no languageCode.
	DefaultLanguage string `mapstructure:"default_language"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxJobsActive: 5,
		Timeout:       5 * time.Second,

		DefaultLanguage: "en",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
	}
	if c.DefaultLanguage == "" {
		return fmt.Errorf("default_language is required")
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
	if len(appConfig.Languages) > 0 {
		cfg.DefaultLanguage = appConfig.Languages[0].RetrievalCode
	}
	return cfg
}
