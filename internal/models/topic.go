package models

import (
	"strings"
	"unicode/utf8"
)

// Topic is the user's request to resolve a subject in a given retrieval language.
type Topic struct {
	Title        string `json:"title"`
	LanguageCode string `json:"languageCode"`
}

// Normalized trims surrounding whitespace from the title.
func (t Topic) Normalized() Topic {
	return Topic{Title: strings.TrimSpace(t.Title), LanguageCode: strings.TrimSpace(t.LanguageCode)}
}

// RetrievedContext is the page text a topic resolved to. It is never mutated after creation;
// resolving another topic produces a new value.
type RetrievedContext struct {
	Topic     Topic  `json:"topic"`
	Text      string `json:"text"`
	Truncated bool   `json:"truncated"`
}

// NewRetrievedContext builds a context and flags it when text is longer than window runes.
func NewRetrievedContext(topic Topic, text string, window int) *RetrievedContext {
	return &RetrievedContext{
		Topic:     topic,
		Text:      text,
		Truncated: window > 0 && utf8.RuneCountInString(text) > window,
	}
}

// IsEmpty reports whether there is no usable text.
func (rc *RetrievedContext) IsEmpty() bool {
	return rc == nil || strings.TrimSpace(rc.Text) == ""
}

// Answer is the span the inference engine selected and its probability.
type Answer struct {
	Text       string            `json:"text"`
	Confidence float64           `json:"confidence"`
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Source     *RetrievedContext `json:"source,omitempty"`
}

// EmptyAnswer is the designed result for a blank question or a blank context.
func EmptyAnswer(source *RetrievedContext) *Answer {
	return &Answer{Text: "", Confidence: 0, Source: source}
}
