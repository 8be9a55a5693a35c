// Package voice holds the speech side-channel: push-to-talk recognition of questions and
// synthesis of answers, with language selection driven by the language table.
package voice

import (
	"context"

	"wikimind/internal/models"
)

// Recognizer turns a captured utterance into text. speechCode is a BCP-47 style tag such as
// "en-US". Implementations return UNINTELLIGIBLE or SERVICE_ERROR failures.
type Recognizer interface {
	Transcribe(ctx context.Context, capture models.VoiceCapture, speechCode string) (string, error)
}

// Synthesizer renders text to mp3 audio for a language profile.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, profile models.LanguageProfile) ([]byte, error)
}

// Capturer records mono float32 samples until ctx is done and returns what it heard.
// An error means the device itself failed.
type Capturer interface {
	Capture(ctx context.Context) ([]float32, error)
}

// Languages resolves retrieval codes to profiles. *language.Registry satisfies it.
type Languages interface {
	Lookup(code string) (models.LanguageProfile, bool)
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}
