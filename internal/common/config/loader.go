// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// MaxContextCharsLimit bounds inference.max_context_chars.
const MaxContextCharsLimit = 100000

// Load reads configs/config.yaml, merges config.<APP_ENVIRONMENT>.yaml over it and applies
// environment overrides.
func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("WIKIMIND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig()

	return build(v)
}

// LoadFromFile reads a single config file without environment-specific merging.
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return build(v)
}

func build(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	overrideEmptyConfig(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{".env", "../.env", "../../.env", "../../../.env"}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

func overrideEmptyConfig(cfg *Config) {
	setFromEnv(&cfg.Camunda.BrokerAddress, "ZEEBE_ADDRESS")
	setFromEnv(&cfg.Database.Redis.Address, "REDIS_ADDRESS")
	setFromEnv(&cfg.Database.Redis.Password, "REDIS_PASSWORD")
	setFromEnv(&cfg.Database.Elasticsearch.URL, "ELASTICSEARCH_URL")
	setFromEnv(&cfg.Voice.OpenAI.APIKey, "OPENAI_API_KEY")
	setFromEnv(&cfg.Inference.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setFromEnv(&cfg.Inference.HuggingFace.APIToken, "HF_API_TOKEN")
	setFromEnv(&cfg.Storage.AudioBucket, "WIKIMIND_AUDIO_BUCKET")

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = cfg.Voice.Synthesis.Region
	}
}

func setFromEnv(target *string, key string) {
	if *target != "" {
		return
	}
	if val := os.Getenv(key); val != "" {
		*target = val
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "wikimind"
	}

	if cfg.Camunda.MaxJobsActive == 0 {
		cfg.Camunda.MaxJobsActive = 10
	}
	if cfg.Camunda.Timeout == 0 {
		cfg.Camunda.Timeout = 30000
	}
	if cfg.Camunda.RequestTimeout == 0 {
		cfg.Camunda.RequestTimeout = 30000
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	// Knowledge source
	if cfg.Knowledge.BaseURL == "" {
		cfg.Knowledge.BaseURL = "https://%s.wikipedia.org/w/api.php"
	}
	if cfg.Knowledge.UserAgent == "" {
		cfg.Knowledge.UserAgent = "wikimind/1.0 (https://github.com/wikimind/wikimind)"
	}
	if cfg.Knowledge.Timeout == 0 {
		cfg.Knowledge.Timeout = 10000
	}
	if cfg.Knowledge.MaxCandidates == 0 {
		cfg.Knowledge.MaxCandidates = 10
	}
	if cfg.Knowledge.CacheTTL == 0 {
		cfg.Knowledge.CacheTTL = 3600
	}
	if cfg.Knowledge.CacheKeyPrefix == "" {
		cfg.Knowledge.CacheKeyPrefix = "wikimind:ctx"
	}

	// Suggestions
	if cfg.Suggestions.Backend == "" {
		cfg.Suggestions.Backend = "wikipedia"
	}
	if cfg.Suggestions.Index == "" {
		cfg.Suggestions.Index = "wikimind-titles"
	}
	if cfg.Suggestions.MaxResults == 0 || cfg.Suggestions.MaxResults > 5 {
		cfg.Suggestions.MaxResults = 5
	}
	if cfg.Suggestions.Timeout == 0 {
		cfg.Suggestions.Timeout = 5000
	}

	// Inference
	if cfg.Inference.Backend == "" {
		cfg.Inference.Backend = "extractive"
	}
	if cfg.Inference.MaxContextChars == 0 {
		cfg.Inference.MaxContextChars = 4000
	}
	if cfg.Inference.LoadTimeout == 0 {
		cfg.Inference.LoadTimeout = 120000
	}
	if cfg.Inference.HuggingFace.Endpoint == "" {
		cfg.Inference.HuggingFace.Endpoint = "https://api-inference.huggingface.co/models/deepset/roberta-base-squad2"
	}
	if cfg.Inference.HuggingFace.Timeout == 0 {
		cfg.Inference.HuggingFace.Timeout = 30000
	}
	if cfg.Inference.Anthropic.Model == "" {
		cfg.Inference.Anthropic.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.Inference.Anthropic.MaxTokens == 0 {
		cfg.Inference.Anthropic.MaxTokens = 512
	}
	if cfg.Inference.Anthropic.Timeout == 0 {
		cfg.Inference.Anthropic.Timeout = 60000
	}

	// Voice
	if cfg.Voice.Recognition.Backend == "" {
		cfg.Voice.Recognition.Backend = "openai"
	}
	if cfg.Voice.Recognition.Model == "" {
		cfg.Voice.Recognition.Model = "whisper-1"
	}
	if cfg.Voice.Synthesis.Backend == "" {
		cfg.Voice.Synthesis.Backend = "openai"
	}
	if cfg.Voice.Synthesis.Model == "" {
		cfg.Voice.Synthesis.Model = "tts-1"
	}
	if cfg.Voice.Synthesis.Voice == "" {
		cfg.Voice.Synthesis.Voice = "alloy"
	}
	if cfg.Voice.Synthesis.Region == "" {
		cfg.Voice.Synthesis.Region = "us-east-1"
	}
	if cfg.Voice.Capture.SampleRate == 0 {
		cfg.Voice.Capture.SampleRate = 16000
	}
	if cfg.Voice.Capture.MaxDuration == 0 {
		cfg.Voice.Capture.MaxDuration = 15000
	}
	if cfg.Voice.OpenAI.Timeout == 0 {
		cfg.Voice.OpenAI.Timeout = 30000
	}
	if cfg.Voice.OpenAI.MaxRetries == 0 {
		cfg.Voice.OpenAI.MaxRetries = 2
	}

	if len(cfg.Languages) == 0 {
		cfg.Languages = DefaultLanguages()
	}

	if cfg.Storage.AudioPrefix == "" {
		cfg.Storage.AudioPrefix = "answers/"
	}

	if cfg.Database.Elasticsearch.URL == "" && len(cfg.Database.Elasticsearch.Addresses) > 0 {
		cfg.Database.Elasticsearch.URL = cfg.Database.Elasticsearch.Addresses[0]
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	for key, worker := range cfg.Workers {
		if worker.MaxJobsActive == 0 {
			worker.MaxJobsActive = cfg.Camunda.MaxJobsActive
		}
		if worker.Timeout == 0 {
			worker.Timeout = cfg.Camunda.Timeout
		}
		if worker.MaxRetries == 0 {
			worker.MaxRetries = 3
		}
		cfg.Workers[key] = worker
	}
}

// DefaultLanguages is the language table used when the config file does not declare one.
func DefaultLanguages() []LanguageConfig {
	return []LanguageConfig{
		{DisplayName: "English", RetrievalCode: "en", SpeechCode: "en-US", PollyVoice: "Joanna"},
		{DisplayName: "Hindi", RetrievalCode: "hi", SpeechCode: "hi-IN", PollyVoice: "Aditi"},
		{DisplayName: "Spanish", RetrievalCode: "es", SpeechCode: "es-ES", PollyVoice: "Lucia"},
		{DisplayName: "French", RetrievalCode: "fr", SpeechCode: "fr-FR", PollyVoice: "Celine"},
		{DisplayName: "German", RetrievalCode: "de", SpeechCode: "de-DE", PollyVoice: "Marlene"},
		{DisplayName: "Japanese", RetrievalCode: "ja", SpeechCode: "ja-JP", PollyVoice: "Mizuki"},
		{DisplayName: "Bengali", RetrievalCode: "bn", SpeechCode: "bn-IN"},
		{DisplayName: "Tamil", RetrievalCode: "ta", SpeechCode: "ta-IN"},
	}
}

func validateConfig(cfg *Config) error {
	if !strings.Contains(cfg.Knowledge.BaseURL, "%s") {
		return fmt.Errorf("knowledge.base_url must contain a %%s placeholder for the language code")
	}

	if cfg.Inference.MaxContextChars < 1 || cfg.Inference.MaxContextChars > MaxContextCharsLimit {
		return fmt.Errorf("inference.max_context_chars must be between 1 and %d, got %d",
			MaxContextCharsLimit, cfg.Inference.MaxContextChars)
	}

	switch cfg.Inference.Backend {
	case "extractive":
	case "huggingface":
		if cfg.Inference.HuggingFace.Endpoint == "" {
			return fmt.Errorf("inference.huggingface.endpoint is required")
		}
	case "anthropic":
		if cfg.Inference.Anthropic.APIKey == "" {
			return fmt.Errorf("inference.anthropic.api_key is required for the anthropic backend")
		}
	default:
		return fmt.Errorf("unknown inference.backend %q", cfg.Inference.Backend)
	}

	switch cfg.Suggestions.Backend {
	case "wikipedia":
	case "elasticsearch":
		if cfg.Database.Elasticsearch.GetURL() == "" {
			return fmt.Errorf("database.elasticsearch.addresses or url is required for elasticsearch suggestions")
		}
	default:
		return fmt.Errorf("unknown suggestions.backend %q", cfg.Suggestions.Backend)
	}

	switch cfg.Voice.Synthesis.Backend {
	case "openai", "polly":
	default:
		return fmt.Errorf("unknown voice.synthesis.backend %q", cfg.Voice.Synthesis.Backend)
	}
	if cfg.Voice.Recognition.Backend != "openai" {
		return fmt.Errorf("unknown voice.recognition.backend %q", cfg.Voice.Recognition.Backend)
	}

	if cfg.Knowledge.CacheEnabled && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when knowledge.cache_enabled is set")
	}

	seen := make(map[string]bool, len(cfg.Languages))
	for i, lang := range cfg.Languages {
		if lang.RetrievalCode == "" {
			return fmt.Errorf("languages[%d].retrieval_code is required", i)
		}
		if seen[lang.RetrievalCode] {
			return fmt.Errorf("languages[%d]: duplicate retrieval_code %q", i, lang.RetrievalCode)
		}
		seen[lang.RetrievalCode] = true
	}

	return nil
}

func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

func GetWorkerConfig(cfg *Config, workerName string) WorkerConfig {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker
	}

	// unlisted workers run with the broker-wide defaults
	wc := WorkerConfig{
		Enabled:       true,
		MaxJobsActive: cfg.Camunda.MaxJobsActive,
		Timeout:       cfg.Camunda.Timeout,
		MaxRetries:    3,
	}
	if wc.MaxJobsActive <= 0 {
		wc.MaxJobsActive = 5
	}
	if wc.Timeout <= 0 {
		wc.Timeout = 30000
	}
	return wc
}

func IsWorkerEnabled(cfg *Config, workerName string) bool {
	if worker, exists := cfg.Workers[workerName]; exists {
		return worker.Enabled
	}
	return true
}
