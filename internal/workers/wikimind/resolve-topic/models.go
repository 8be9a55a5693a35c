package resolvetopic

type Input struct {
	Topic        string `json:"topic"`
	LanguageCode string `json:"languageCode"`
}

type Output struct {
	TopicTitle       string `json:"topicTitle"`
	LanguageCode     string `json:"languageCode"`
	ContextText      string `json:"contextText"`
	ContextTruncated bool   `json:"contextTruncated"`
}
