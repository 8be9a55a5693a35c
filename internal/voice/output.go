package voice

import (
	"context"
	"strings"

	apperrors "wikimind/internal/common/errors"
)

// OutputChannel speaks answers. It is stateless and safe for concurrent use.
type OutputChannel struct {
	synthesizer Synthesizer
	languages   Languages
	logger      Logger
}

func NewOutputChannel(synthesizer Synthesizer, languages Languages, log Logger) *OutputChannel {
	if log == nil {
		log = nopLogger{}
	}
	return &OutputChannel{synthesizer: synthesizer, languages: languages, logger: log}
}

// Synthesize returns mp3 audio of text spoken in the speech language of languageCode.
func (o *OutputChannel) Synthesize(ctx context.Context, text, languageCode string) ([]byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewSynthesisError("text is empty", nil)
	}

	profile, ok := o.languages.Lookup(languageCode)
	if !ok || !profile.SupportsSpeech() {
		return nil, apperrors.NewUnsupportedLanguageError(languageCode)
	}
	if o.synthesizer == nil {
		return nil, apperrors.NewSynthesisError("no synthesizer configured", nil)
	}

	audio, err := o.synthesizer.Synthesize(ctx, text, profile)
	if err != nil {
		if _, ok := apperrors.AsStandard(err); !ok {
			err = apperrors.NewSynthesisError("synthesizer failed", err)
		}
		o.logger.Warn("speech synthesis failed", map[string]interface{}{
			"language": languageCode,
			"code":     string(apperrors.CodeOf(err)),
			"error":    err.Error(),
		})
		return nil, err
	}
	if len(audio) == 0 {
		return nil, apperrors.NewSynthesisError("synthesizer returned no audio", nil)
	}

	o.logger.Info("answer synthesized", map[string]interface{}{
		"language": languageCode,
		"bytes":    len(audio),
	})
	return audio, nil
}
