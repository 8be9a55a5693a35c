package voice

import (
	"context"

	apperrors "wikimind/internal/common/errors"
	"wikimind/internal/models"
)

// PollyAPI is the slice of the Polly client used for synthesis.
type PollyAPI interface {
	SynthesizeMP3(ctx context.Context, text, voiceID, languageCode string) ([]byte, error)
}

// PollySynthesizer speaks with the Polly voice named in the language profile.
type PollySynthesizer struct {
	client PollyAPI
}

func NewPollySynthesizer(client PollyAPI) *PollySynthesizer {
	return &PollySynthesizer{client: client}
}

func (p *PollySynthesizer) Synthesize(ctx context.Context, text string, profile models.LanguageProfile) ([]byte, error) {
	if profile.PollyVoice == "" {
		return nil, apperrors.NewUnsupportedLanguageError(profile.RetrievalCode)
	}

	audio, err := p.client.SynthesizeMP3(ctx, text, profile.PollyVoice, profile.SpeechCode)
	if err != nil {
		return nil, apperrors.NewSynthesisError("polly", err)
	}
	return audio, nil
}
