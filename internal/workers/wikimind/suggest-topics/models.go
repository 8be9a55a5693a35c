package suggesttopics

type Input struct {
	Partial      string `json:"partial"`
	LanguageCode string `json:"languageCode,omitempty"`
}

type Output struct {
	Suggestions []string `json:"suggestions"`
}
