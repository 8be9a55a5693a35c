package synthesizespeech

import (
	"fmt"
	"time"

	"wikimind/internal/common/config"
)

type Config struct {
	MaxJobsActive int           `mapstructure:"max_jobs_active"`
	Timeout       time.Duration `mapstructure:"timeout"`
	AudioPrefix   string        `mapstructure:"audio_prefix"`
}

func DefaultConfig() *Config {
	return &Config{
		MaxJobsActive: 5,
		Timeout:       30 * time.Second,
		AudioPrefix:   "answers/",
	}
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.MaxJobsActive <= 0 {
		return fmt.Errorf("max_jobs_active must be positive")
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
	if appConfig.Storage.AudioPrefix != "" {
		cfg.AudioPrefix = appConfig.Storage.AudioPrefix
	}
	return cfg
}
