// Package session composes topic retrieval, question answering, suggestions and the voice
// side-channel into one request/response cycle per user interaction.
package session

import (
	"context"
	"strings"
	"sync"

	apperrors "wikimind/internal/common/errors"
	"wikimind/internal/common/metrics"
	"wikimind/internal/inference"
	"wikimind/internal/knowledge"
	"wikimind/internal/models"
	"wikimind/internal/suggest"
)

type Engine interface {
	GetOrInit(ctx context.Context) (*inference.Handle, error)
}

type Languages interface {
	Lookup(code string) (models.LanguageProfile, bool)
}

type VoiceInput interface {
	Capture(ctx context.Context, languageCode string) (string, error)
}

type VoiceOutput interface {
	Synthesize(ctx context.Context, text, languageCode string) ([]byte, error)
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Dependencies are the session's collaborators. VoiceIn and VoiceOut may be nil when the voice
// side-channel is not wired.
type Dependencies struct {
	Knowledge       knowledge.Source
	Suggestions     suggest.Service
	Engine          Engine
	Languages       Languages
	VoiceIn         VoiceInput
	VoiceOut        VoiceOutput
	Logger          Logger
	MaxContextChars int
}

// Session holds the most recently resolved context. All other state lives in the collaborators.
type Session struct {
	deps Dependencies

	mu      sync.RWMutex
	current *models.RetrievedContext
}

func New(deps Dependencies) *Session {
	return &Session{deps: deps}
}

// Current returns the context of the last successful ResolveTopic, or nil.
func (s *Session) Current() *models.RetrievedContext {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// ResolveTopic fetches the text for title and makes it the current context. Failures carry one
// of AMBIGUOUS, NOT_FOUND, NETWORK_TIMEOUT or UNKNOWN and leave the current context unchanged.
func (s *Session) ResolveTopic(ctx context.Context, title, languageCode string) (*models.RetrievedContext, error) {
	topic := models.Topic{Title: title, LanguageCode: languageCode}.Normalized()

	rc, err := s.resolve(ctx, topic)
	metrics.TopicResolutions.WithLabelValues(strings.ToLower(topic.LanguageCode), metrics.Outcome(err)).Inc()
	if err != nil {
		s.deps.Logger.Warn("topic resolution failed", map[string]interface{}{
			"title":    topic.Title,
			"language": topic.LanguageCode,
			"code":     string(apperrors.CodeOf(err)),
			"error":    err.Error(),
		})
		return nil, err
	}

	s.mu.Lock()
	s.current = rc
	s.mu.Unlock()

	s.deps.Logger.Info("topic resolved", map[string]interface{}{
		"title":     rc.Topic.Title,
		"language":  rc.Topic.LanguageCode,
		"truncated": rc.Truncated,
	})
	return rc, nil
}

func (s *Session) resolve(ctx context.Context, topic models.Topic) (*models.RetrievedContext, error) {
	if topic.Title == "" {
		return nil, apperrors.NewNotFoundError(topic.Title, topic.LanguageCode)
	}
	profile, ok := s.deps.Languages.Lookup(topic.LanguageCode)
	if !ok {
		return nil, apperrors.NewUnknownError("unsupported retrieval language: "+topic.LanguageCode, nil)
	}

	// the context keeps the topic as given; the source is queried with the table's code
	text, err := s.deps.Knowledge.Resolve(ctx, topic.Title, profile.RetrievalCode)
	if err != nil {
		return nil, classified(err, "knowledge source failed")
	}
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewNotFoundError(topic.Title, profile.RetrievalCode)
	}
	return models.NewRetrievedContext(topic, text, s.deps.MaxContextChars), nil
}

// Answer runs the inference engine over rc. A blank question or an empty context yields the
// empty answer without touching the engine.
func (s *Session) Answer(ctx context.Context, question string, rc *models.RetrievedContext) (*models.Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" || rc.IsEmpty() {
		metrics.Answers.WithLabelValues(metrics.OutcomeEmpty).Inc()
		return models.EmptyAnswer(rc), nil
	}

	answer, err := s.infer(ctx, question, rc)
	if err != nil {
		metrics.Answers.WithLabelValues(metrics.Outcome(err)).Inc()
		s.deps.Logger.Error("answering failed", map[string]interface{}{
			"title": rc.Topic.Title,
			"code":  string(apperrors.CodeOf(err)),
			"error": err.Error(),
		})
		return nil, err
	}

	metrics.Answers.WithLabelValues(metrics.OutcomeOK).Inc()
	if answer.Text != "" {
		metrics.AnswerConfidence.Observe(answer.Confidence)
	}
	return answer, nil
}

func (s *Session) infer(ctx context.Context, question string, rc *models.RetrievedContext) (*models.Answer, error) {
	handle, err := s.deps.Engine.GetOrInit(ctx)
	if err != nil {
		return nil, classified(err, "inference engine unavailable")
	}

	pred, err := handle.Infer(ctx, question, rc.Text)
	if err != nil {
		return nil, classified(err, "inference failed")
	}

	return &models.Answer{
		Text:       pred.Answer,
		Confidence: pred.Score,
		Start:      pred.Start,
		End:        pred.End,
		Source:     rc,
	}, nil
}

// AskCurrent answers question against the current context.
func (s *Session) AskCurrent(ctx context.Context, question string) (*models.Answer, error) {
	return s.Answer(ctx, question, s.Current())
}

// Suggest returns at most five topic names completing partial. Blank input yields an empty
// slice without calling the provider.
func (s *Session) Suggest(ctx context.Context, partial, languageCode string) ([]string, error) {
	partial = strings.TrimSpace(partial)
	if partial == "" {
		return []string{}, nil
	}
	profile, ok := s.deps.Languages.Lookup(languageCode)
	if !ok {
		return nil, apperrors.NewUnknownError("unsupported retrieval language: "+languageCode, nil)
	}

	titles, err := s.deps.Suggestions.Suggest(ctx, partial, profile.RetrievalCode)
	if err != nil {
		err = classified(err, "suggestion provider failed")
		metrics.Suggestions.WithLabelValues(metrics.Outcome(err)).Inc()
		return nil, err
	}
	metrics.Suggestions.WithLabelValues(metrics.OutcomeOK).Inc()

	if titles == nil {
		titles = []string{}
	}
	if len(titles) > suggest.MaxResults {
		titles = titles[:suggest.MaxResults]
	}
	return titles, nil
}

// ListenForQuestion captures one spoken question in the speech language of languageCode.
func (s *Session) ListenForQuestion(ctx context.Context, languageCode string) (string, error) {
	if s.deps.VoiceIn == nil {
		return "", apperrors.NewServiceError("voice input", errVoiceDisabled)
	}
	text, err := s.deps.VoiceIn.Capture(ctx, languageCode)
	metrics.VoiceOperations.WithLabelValues("in", voiceOutcome(err)).Inc()
	return text, err
}

// AskByVoice captures a question in rc's language and answers it against rc.
func (s *Session) AskByVoice(ctx context.Context, rc *models.RetrievedContext) (string, *models.Answer, error) {
	if rc == nil {
		return "", nil, apperrors.NewInvalidInputError("no topic has been resolved")
	}
	question, err := s.ListenForQuestion(ctx, rc.Topic.LanguageCode)
	if err != nil {
		return "", nil, err
	}
	answer, err := s.Answer(ctx, question, rc)
	return question, answer, err
}

// Speak renders text as mp3 in the speech language of languageCode.
func (s *Session) Speak(ctx context.Context, text, languageCode string) ([]byte, error) {
	if s.deps.VoiceOut == nil {
		return nil, apperrors.NewSynthesisError("voice output is not configured", nil)
	}
	audio, err := s.deps.VoiceOut.Synthesize(ctx, text, languageCode)
	metrics.VoiceOperations.WithLabelValues("out", voiceOutcome(err)).Inc()
	return audio, err
}

// classified keeps StandardErrors as they are and wraps anything else as UNKNOWN.
func classified(err error, detail string) error {
	if _, ok := apperrors.AsStandard(err); ok {
		return err
	}
	return apperrors.NewUnknownError(detail, err)
}
