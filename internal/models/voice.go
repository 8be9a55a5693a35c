package models

// AudioFormat names the container of a captured or synthesized clip.
type AudioFormat string

const (
	AudioFormatWAV AudioFormat = "wav"
	AudioFormatMP3 AudioFormat = "mp3"
)

// VoiceCapture is a recorded utterance. It only lives for the duration of one recognition call.
type VoiceCapture struct {
	RawAudio     []byte      `json:"-"`
	LanguageCode string      `json:"languageCode"`
	Format       AudioFormat `json:"format"`
	SampleRate   int         `json:"sampleRate"`
}

// ContentType returns the MIME type for the capture's format.
func (f AudioFormat) ContentType() string {
	switch f {
	case AudioFormatMP3:
		return "audio/mpeg"
	default:
		return "audio/wav"
	}
}
