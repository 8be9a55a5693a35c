// Package bootstrap assembles an answering session and its collaborators from configuration.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"wikimind/internal/common/aws"
	"wikimind/internal/common/config"
	"wikimind/internal/common/database"
	"wikimind/internal/common/logger"
	"wikimind/internal/inference"
	"wikimind/internal/knowledge"
	"wikimind/internal/language"
	"wikimind/internal/session"
	"wikimind/internal/suggest"
	"wikimind/internal/voice"
)

type Options struct {
	Config   *config.Config
	Logger   logger.Logger
	Observer inference.Observer
	// Capturer records from a local microphone. Without one, spoken questions can only be
	// transcribed from recorded audio.
	Capturer voice.Capturer
	// OnVoiceTransition observes voice input state changes.
	OnVoiceTransition func(from, to voice.InputState)
}

// App owns everything Build created. Optional parts are nil when not configured.
type App struct {
	Config    *config.Config
	Languages *language.Registry
	Engine    *inference.Engine
	Session   *session.Session
	VoiceIn   *voice.InputChannel
	VoiceOut  *voice.OutputChannel

	Redis         *database.RedisClient
	Elasticsearch *database.ElasticsearchClient
	AudioStore    *aws.S3Client

	logger logger.Logger
}

func Build(ctx context.Context, opts Options) (*App, error) {
	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	}

	app := &App{
		Config:    cfg,
		Languages: language.NewRegistry(cfg.Languages),
		logger:    log,
	}

	engine, err := inference.NewEngineFromConfig(cfg.Inference, log, opts.Observer)
	if err != nil {
		return nil, fmt.Errorf("inference engine: %w", err)
	}
	app.Engine = engine

	source := app.knowledgeSource(log)

	suggestions, err := app.suggestionService(log)
	if err != nil {
		app.Close()
		return nil, err
	}

	if err := app.voiceChannels(ctx, opts, log); err != nil {
		app.Close()
		return nil, err
	}

	if cfg.Storage.AudioBucket != "" {
		store, err := aws.NewS3Client(ctx, cfg.Storage.Region, cfg.Storage.AudioBucket)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("audio storage: %w", err)
		}
		app.AudioStore = store
	}

	deps := session.Dependencies{
		Knowledge:       source,
		Suggestions:     suggestions,
		Engine:          engine,
		Languages:       app.Languages,
		Logger:          log,
		MaxContextChars: cfg.Inference.MaxContextChars,
	}
	if app.VoiceIn != nil {
		deps.VoiceIn = app.VoiceIn
	}
	if app.VoiceOut != nil {
		deps.VoiceOut = app.VoiceOut
	}
	app.Session = session.New(deps)

	log.Info("Answering session ready", map[string]interface{}{
		"inferenceBackend":  cfg.Inference.Backend,
		"suggestionBackend": cfg.Suggestions.Backend,
		"cache":             app.Redis != nil,
		"voiceInput":        app.VoiceIn != nil,
		"voiceOutput":       app.VoiceOut != nil,
		"audioBucket":       cfg.Storage.AudioBucket,
		"languages":         app.Languages.Codes(),
	})
	return app, nil
}

func (a *App) knowledgeSource(log logger.Logger) knowledge.Source {
	kc := a.Config.Knowledge
	var source knowledge.Source = knowledge.NewWikipedia(knowledge.WikipediaConfig{
		BaseURL:          kc.BaseURL,
		UserAgent:        kc.UserAgent,
		Timeout:          config.GetDuration(kc.Timeout),
		MaxCandidates:    kc.MaxCandidates,
		ExtractSentences: kc.ExtractSentences,
	}, log)

	if !kc.CacheEnabled {
		return source
	}

	rdb, err := database.NewRedis(a.Config.Database.Redis)
	if err != nil {
		log.Warn("Context cache disabled", map[string]interface{}{"error": err.Error()})
		return source
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx); err != nil {
		// CachedSource falls through to the source while redis is down.
		log.Warn("Redis not reachable, context cache will retry per request", map[string]interface{}{
			"address": a.Config.Database.Redis.Address,
			"error":   err.Error(),
		})
	}

	a.Redis = rdb
	ttl := time.Duration(kc.CacheTTL) * time.Second
	return knowledge.NewCachedSource(source, rdb, ttl, kc.CacheKeyPrefix, log)
}

func (a *App) suggestionService(log logger.Logger) (suggest.Service, error) {
	sc := a.Config.Suggestions
	switch sc.Backend {
	case "elasticsearch":
		es, err := database.NewElasticsearch(a.Config.Database.Elasticsearch)
		if err != nil {
			return nil, fmt.Errorf("suggestions: %w", err)
		}
		a.Elasticsearch = es
		return suggest.NewElasticsearch(es, sc.Index, sc.MaxResults, log), nil
	default:
		return suggest.NewWikipedia(a.Config.Knowledge.BaseURL, a.Config.Knowledge.UserAgent,
			config.GetDuration(sc.Timeout), sc.MaxResults, log), nil
	}
}

// voiceChannels wires recognition and synthesis. A backend that needs an OpenAI key is left
// out when none is configured so typed questions keep working.
func (a *App) voiceChannels(ctx context.Context, opts Options, log logger.Logger) error {
	vc := a.Config.Voice
	hasOpenAI := vc.OpenAI.APIKey != ""

	if hasOpenAI {
		recognizer, err := voice.NewRecognizer(vc)
		if err != nil {
			return fmt.Errorf("voice recognition: %w", err)
		}
		a.VoiceIn = voice.NewInputChannel(opts.Capturer, recognizer, a.Languages, voice.InputOptions{
			SampleRate:   vc.Capture.SampleRate,
			MaxDuration:  config.GetDuration(vc.Capture.MaxDuration),
			Logger:       log,
			OnTransition: opts.OnVoiceTransition,
		})
	} else {
		log.Warn("Voice input disabled: no OpenAI API key", nil)
	}

	if vc.Synthesis.Backend == "polly" || hasOpenAI {
		synthesizer, err := voice.NewSynthesizer(ctx, vc)
		if err != nil {
			return fmt.Errorf("voice synthesis: %w", err)
		}
		a.VoiceOut = voice.NewOutputChannel(synthesizer, a.Languages, log)
	} else {
		log.Warn("Voice output disabled: no OpenAI API key", nil)
	}
	return nil
}

// Warm loads the inference model before the first question arrives.
func (a *App) Warm(ctx context.Context) error {
	start := time.Now()
	if _, err := a.Engine.GetOrInit(ctx); err != nil {
		return err
	}
	a.logger.Info("Inference model warmed", map[string]interface{}{
		"backend":  a.Engine.Backend(),
		"duration": time.Since(start).String(),
	})
	return nil
}

func (a *App) Close() {
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.logger.Warn("Failed to close redis", map[string]interface{}{"error": err.Error()})
		}
	}
}
