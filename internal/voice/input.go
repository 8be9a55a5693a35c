package voice

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	apperrors "wikimind/internal/common/errors"
	"wikimind/internal/models"
)

// InputState is a step of the push-to-talk state machine.
type InputState int

const (
	Idle InputState = iota
	Listening
	Recognizing
	Succeeded
	Failed
)

func (s InputState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Listening:
		return "listening"
	case Recognizing:
		return "recognizing"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// ErrCaptureCancelled is returned when the caller abandons a capture. It is neither an
// UNINTELLIGIBLE nor a SERVICE_ERROR failure.
var ErrCaptureCancelled = errors.New("voice capture cancelled")

var (
	errStopped     = errors.New("capture stopped")
	errMaxDuration = errors.New("capture reached its maximum duration")
)

type InputOptions struct {
	SampleRate  int
	MaxDuration time.Duration
	// MinDuration is the shortest clip sent for recognition.
	MinDuration time.Duration
	// SilenceThreshold is the RMS level below which a clip counts as silence.
	SilenceThreshold float64
	Logger           Logger
	// OnTransition, when set, sees every state change including the transient terminal ones.
	OnTransition func(from, to InputState)
}

// InputChannel drives Idle → Listening → Recognizing → Succeeded|Failed → Idle.
// One utterance is in flight at a time.
type InputChannel struct {
	capturer   Capturer
	recognizer Recognizer
	languages  Languages
	opts       InputOptions

	mu     sync.Mutex
	state  InputState
	cancel context.CancelCauseFunc
	stop   context.CancelCauseFunc
}

func NewInputChannel(capturer Capturer, recognizer Recognizer, languages Languages, opts InputOptions) *InputChannel {
	if opts.SampleRate <= 0 {
		opts.SampleRate = 16000
	}
	if opts.MaxDuration <= 0 {
		opts.MaxDuration = 15 * time.Second
	}
	if opts.MinDuration <= 0 {
		opts.MinDuration = 300 * time.Millisecond
	}
	if opts.SilenceThreshold <= 0 {
		opts.SilenceThreshold = 0.01
	}
	return &InputChannel{
		capturer:   capturer,
		recognizer: recognizer,
		languages:  languages,
		opts:       opts,
	}
}

func (c *InputChannel) State() InputState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Capture records one utterance from the microphone and transcribes it in the speech language
// of languageCode. It blocks until Stop, the maximum duration, or cancellation.
func (c *InputChannel) Capture(ctx context.Context, languageCode string) (string, error) {
	profile, err := c.speechProfile(languageCode)
	if err != nil {
		return "", err
	}
	if c.capturer == nil {
		return "", apperrors.NewServiceError("microphone", errors.New("no capture device configured"))
	}

	opCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	listenCtx, stop := context.WithCancelCause(opCtx)
	defer stop(nil)
	if err := c.begin(Listening, cancel, stop); err != nil {
		return "", err
	}

	timed, stopTimer := context.WithTimeoutCause(listenCtx, c.opts.MaxDuration, errMaxDuration)
	samples, capErr := c.capturer.Capture(timed)
	stopTimer()

	if errors.Is(context.Cause(opCtx), ErrCaptureCancelled) || ctx.Err() != nil {
		c.log().Info("voice capture cancelled", map[string]interface{}{"language": languageCode})
		c.reset()
		return "", ErrCaptureCancelled
	}
	// a capturer may report the end of listening as a context error; anything else is the
	// device failing, and partial samples are discarded
	if capErr != nil && !errors.Is(capErr, context.Canceled) && !errors.Is(capErr, context.DeadlineExceeded) {
		c.to(Recognizing)
		return "", c.fail(apperrors.NewServiceError("microphone", capErr))
	}

	if err := c.checkSignal(samples, c.opts.SampleRate); err != nil {
		c.to(Recognizing)
		return "", c.fail(err)
	}

	capture := models.VoiceCapture{
		RawAudio:     EncodeWAV(samples, c.opts.SampleRate),
		LanguageCode: profile.RetrievalCode,
		Format:       models.AudioFormatWAV,
		SampleRate:   c.opts.SampleRate,
	}
	c.to(Recognizing)
	return c.recognize(opCtx, capture, profile)
}

// Transcribe recognizes an utterance that was captured elsewhere.
func (c *InputChannel) Transcribe(ctx context.Context, capture models.VoiceCapture) (string, error) {
	profile, err := c.speechProfile(capture.LanguageCode)
	if err != nil {
		return "", err
	}

	opCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	if err := c.begin(Recognizing, cancel, nil); err != nil {
		return "", err
	}

	if len(capture.RawAudio) == 0 {
		return "", c.fail(apperrors.NewUnintelligibleError("no audio"))
	}
	if capture.Format == "" || capture.Format == models.AudioFormatWAV {
		samples, rate, err := DecodeWAV(capture.RawAudio)
		if err != nil {
			return "", c.fail(apperrors.NewUnintelligibleError(err.Error()))
		}
		if err := c.checkSignal(samples, rate); err != nil {
			return "", c.fail(err)
		}
		capture.Format = models.AudioFormatWAV
		capture.SampleRate = rate
	}
	return c.recognize(opCtx, capture, profile)
}

// Stop ends listening early and moves on to recognition. It reports whether a capture was stopped.
func (c *InputChannel) Stop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Listening || c.stop == nil {
		return false
	}
	c.stop(errStopped)
	return true
}

// Cancel abandons the current utterance and returns the channel to Idle.
func (c *InputChannel) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if (c.state != Listening && c.state != Recognizing) || c.cancel == nil {
		return false
	}
	c.cancel(ErrCaptureCancelled)
	return true
}

func (c *InputChannel) recognize(ctx context.Context, capture models.VoiceCapture, profile models.LanguageProfile) (string, error) {
	start := time.Now()
	text, err := c.recognizer.Transcribe(ctx, capture, profile.SpeechCode)

	if errors.Is(context.Cause(ctx), ErrCaptureCancelled) {
		c.reset()
		return "", ErrCaptureCancelled
	}
	if err != nil {
		if _, ok := apperrors.AsStandard(err); !ok {
			err = apperrors.NewServiceError("recognizer", err)
		}
		return "", c.fail(err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", c.fail(apperrors.NewUnintelligibleError("empty transcript"))
	}

	c.to(Succeeded)
	c.to(Idle)
	c.log().Info("question recognized", map[string]interface{}{
		"language": capture.LanguageCode,
		"chars":    len(text),
		"duration": time.Since(start).String(),
	})
	return text, nil
}

func (c *InputChannel) speechProfile(languageCode string) (models.LanguageProfile, error) {
	profile, ok := c.languages.Lookup(languageCode)
	if !ok || !profile.SupportsSpeech() {
		return models.LanguageProfile{}, apperrors.NewUnsupportedLanguageError(languageCode)
	}
	return profile, nil
}

func (c *InputChannel) checkSignal(samples []float32, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = c.opts.SampleRate
	}
	minSamples := int(c.opts.MinDuration.Seconds() * float64(sampleRate))
	if len(samples) < minSamples {
		return apperrors.NewUnintelligibleError("audio too short")
	}
	if rms(samples) < c.opts.SilenceThreshold {
		return apperrors.NewUnintelligibleError("audio is silent")
	}
	return nil
}

// begin claims the channel for one utterance.
func (c *InputChannel) begin(to InputState, cancel, stop context.CancelCauseFunc) error {
	c.mu.Lock()
	if c.state != Idle {
		state := c.state
		c.mu.Unlock()
		return apperrors.NewServiceError("voice input", errors.New("channel is busy: "+state.String()))
	}
	from := c.state
	c.state = to
	c.cancel = cancel
	c.stop = stop
	c.mu.Unlock()

	c.notify(from, to)
	return nil
}

func (c *InputChannel) to(next InputState) {
	c.mu.Lock()
	from := c.state
	c.state = next
	if next == Idle {
		c.cancel = nil
		c.stop = nil
	}
	c.mu.Unlock()

	c.notify(from, next)
}

func (c *InputChannel) fail(err error) error {
	c.log().Warn("voice input failed", map[string]interface{}{
		"code":  string(apperrors.CodeOf(err)),
		"error": err.Error(),
	})
	c.to(Failed)
	c.to(Idle)
	return err
}

func (c *InputChannel) reset() {
	c.to(Idle)
}

func (c *InputChannel) notify(from, to InputState) {
	if c.opts.OnTransition != nil && from != to {
		c.opts.OnTransition(from, to)
	}
}

func (c *InputChannel) log() Logger {
	if c.opts.Logger == nil {
		return nopLogger{}
	}
	return c.opts.Logger
}

type nopLogger struct{}

func (nopLogger) Info(string, map[string]interface{})  {}
func (nopLogger) Warn(string, map[string]interface{})  {}
func (nopLogger) Error(string, map[string]interface{}) {}
