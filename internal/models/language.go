package models

// LanguageProfile ties one language's retrieval, recognition and synthesis identifiers together.
// An empty SpeechCode means speech is not offered for the language.
type LanguageProfile struct {
	DisplayName   string `json:"displayName"`
	RetrievalCode string `json:"retrievalCode"`
	SpeechCode    string `json:"speechCode,omitempty"`
	PollyVoice    string `json:"pollyVoice,omitempty"`
}

func (p LanguageProfile) SupportsSpeech() bool {
	return p.SpeechCode != ""
}
