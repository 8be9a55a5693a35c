package session

import (
	"errors"

	"wikimind/internal/common/metrics"
	"wikimind/internal/voice"
)

var errVoiceDisabled = errors.New("voice input is not configured")

func voiceOutcome(err error) string {
	if errors.Is(err, voice.ErrCaptureCancelled) {
		return "cancelled"
	}
	return metrics.Outcome(err)
}
