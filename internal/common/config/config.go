// internal/common/config/config.go
package config

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig               `mapstructure:"app"`
	Camunda     CamundaConfig           `mapstructure:"camunda"`
	Server      ServerConfig            `mapstructure:"server"`
	Knowledge   KnowledgeConfig         `mapstructure:"knowledge"`
	Suggestions SuggestionsConfig       `mapstructure:"suggestions"`
	Inference   InferenceConfig         `mapstructure:"inference"`
	Voice       VoiceConfig             `mapstructure:"voice"`
	Languages   []LanguageConfig        `mapstructure:"languages"`
	Database    DatabaseConfig          `mapstructure:"database"`
	Storage     StorageConfig           `mapstructure:"storage"`
	Workers     map[string]WorkerConfig `mapstructure:"workers"`
	Logging     LoggingConfig           `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type CamundaConfig struct {
	BrokerAddress  string `mapstructure:"broker_address"`
	MaxJobsActive  int    `mapstructure:"max_jobs_active"`
	Timeout        int    `mapstructure:"timeout"`         // milliseconds
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type DatabaseConfig struct {
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
	URL       string   `mapstructure:"url"`
}

// GetURL returns the URL field or the first address.
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// WorkerConfig holds the core settings applicable to every worker.
type WorkerConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	MaxJobsActive int  `mapstructure:"max_jobs_active"`
	Timeout       int  `mapstructure:"timeout"` // milliseconds
	MaxRetries    int  `mapstructure:"max_retries"`
}

// --- Domain Configuration Sections ---

// KnowledgeConfig configures topic resolution against the MediaWiki API.
type KnowledgeConfig struct {
	// BaseURL is a format string taking the retrieval language code.
	BaseURL          string `mapstructure:"base_url"`
	UserAgent        string `mapstructure:"user_agent"`
	Timeout          int    `mapstructure:"timeout"` // milliseconds
	MaxCandidates    int    `mapstructure:"max_candidates"`
	CacheEnabled     bool   `mapstructure:"cache_enabled"`
	CacheTTL         int    `mapstructure:"cache_ttl"` // seconds
	CacheKeyPrefix   string `mapstructure:"cache_key_prefix"`
	ExtractSentences int    `mapstructure:"extract_sentences"` // 0 keeps the whole intro
}

// SuggestionsConfig selects and configures the suggestion backend.
type SuggestionsConfig struct {
	Backend    string `mapstructure:"backend"` // wikipedia | elasticsearch
	Index      string `mapstructure:"index"`
	MaxResults int    `mapstructure:"max_results"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

// InferenceConfig configures the lazily loaded question-answering model.
type InferenceConfig struct {
	Backend         string            `mapstructure:"backend"` // extractive | huggingface | anthropic
	MaxContextChars int               `mapstructure:"max_context_chars"`
	LoadTimeout     int               `mapstructure:"load_timeout"` // milliseconds
	WarmOnStart     bool              `mapstructure:"warm_on_start"`
	VocabularyPath  string            `mapstructure:"vocabulary_path"`
	HuggingFace     HuggingFaceConfig `mapstructure:"huggingface"`
	Anthropic       AnthropicConfig   `mapstructure:"anthropic"`
}

type HuggingFaceConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	APIToken string `mapstructure:"api_token"`
	Timeout  int    `mapstructure:"timeout"` // milliseconds
}

type AnthropicConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	MaxTokens int    `mapstructure:"max_tokens"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
}

// VoiceConfig configures speech recognition, synthesis and microphone capture.
type VoiceConfig struct {
	Recognition RecognitionConfig `mapstructure:"recognition"`
	Synthesis   SynthesisConfig   `mapstructure:"synthesis"`
	Capture     CaptureConfig     `mapstructure:"capture"`
	OpenAI      OpenAIConfig      `mapstructure:"openai"`
}

type RecognitionConfig struct {
	Backend string `mapstructure:"backend"` // openai
	Model   string `mapstructure:"model"`
}

type SynthesisConfig struct {
	Backend string `mapstructure:"backend"` // openai | polly
	Model   string `mapstructure:"model"`
	Voice   string `mapstructure:"voice"`
	Region  string `mapstructure:"region"`
}

type CaptureConfig struct {
	SampleRate  int `mapstructure:"sample_rate"`
	MaxDuration int `mapstructure:"max_duration"` // milliseconds
}

type OpenAIConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
	MaxRetries int    `mapstructure:"max_retries"`
}

// LanguageConfig is one row of the language table.
type LanguageConfig struct {
	DisplayName   string `mapstructure:"display_name"`
	RetrievalCode string `mapstructure:"retrieval_code"`
	SpeechCode    string `mapstructure:"speech_code"`
	PollyVoice    string `mapstructure:"polly_voice"`
}

// StorageConfig configures where synthesized audio is published.
type StorageConfig struct {
	AudioBucket string `mapstructure:"audio_bucket"`
	AudioPrefix string `mapstructure:"audio_prefix"`
	Region      string `mapstructure:"region"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json | console
}
