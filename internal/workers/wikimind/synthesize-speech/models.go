package synthesizespeech

type Input struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

// Output carries either AudioURI, when an audio store is configured, or the clip inline as
// base64.
type Output struct {
	AudioURI    string `json:"audioUri,omitempty"`
	AudioBase64 string `json:"audioBase64,omitempty"`
	ContentType string `json:"contentType"`
	Bytes       int    `json:"bytes"`
}
