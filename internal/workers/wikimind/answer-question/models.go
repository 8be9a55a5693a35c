package answerquestion

type Input struct {
	Question     string `json:"question"`
	ContextText  string `json:"contextText"`
	TopicTitle   string `json:"topicTitle,omitempty"`
	LanguageCode string `json:"languageCode,omitempty"`
}

// Output is written back as process variables. Answered is false for the designed empty answer.
type Output struct {
	Answer      string  `json:"answer"`
	Confidence  float64 `json:"confidence"`
	AnswerStart int     `json:"answerStart"`
	AnswerEnd   int     `json:"answerEnd"`
	Answered    bool    `json:"answered"`
}
