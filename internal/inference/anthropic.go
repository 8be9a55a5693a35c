package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	apperrors "wikimind/internal/common/errors"
)

const anthropicSystemPrompt = "You answer questions using only the passage you are given. " +
	"Reply with a single JSON object {\"answer\": string, \"confidence\": number} and nothing else. " +
	"The answer must be the shortest exact span copied from the passage that answers the question. " +
	"If the passage does not contain the answer, reply {\"answer\": \"\", \"confidence\": 0}."

// AnthropicLoader uses a Claude model as the reader. Loading verifies the key and model id.
type AnthropicLoader struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int64
	timeout    time.Duration
	maxRetries int
}

func NewAnthropicLoader(apiKey, baseURL, model string, maxTokens int, timeout time.Duration) *AnthropicLoader {
	return &AnthropicLoader{
		apiKey:     apiKey,
		baseURL:    baseURL,
		model:      model,
		maxTokens:  int64(maxTokens),
		timeout:    timeout,
		maxRetries: 2,
	}
}

func (l *AnthropicLoader) Name() string { return "anthropic" }

func (l *AnthropicLoader) Load(ctx context.Context) (Model, error) {
	if strings.TrimSpace(l.apiKey) == "" {
		return nil, errors.New("anthropic api key is empty")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(l.apiKey),
		option.WithMaxRetries(l.maxRetries),
	}
	if l.baseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(l.baseURL, "/")))
	}
	if l.timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(l.timeout))
	}
	client := anthropic.NewClient(opts...)

	if _, err := client.Models.Get(ctx, l.model, anthropic.ModelGetParams{}); err != nil {
		return nil, fmt.Errorf("verify model %s: %w", l.model, err)
	}

	return &anthropicModel{client: client, model: l.model, maxTokens: l.maxTokens}, nil
}

type anthropicModel struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

type anthropicReply struct {
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

func (m *anthropicModel) Predict(ctx context.Context, question, passage string) (Prediction, error) {
	msg, err := m.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(m.model),
		MaxTokens:   m.maxTokens,
		Temperature: anthropic.Float(0),
		System:      []anthropic.TextBlockParam{{Text: anthropicSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(question, passage))),
		},
	})
	if err != nil {
		return Prediction{}, classifyAnthropicError(err)
	}

	var text strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	reply, err := parseReply(text.String())
	if err != nil {
		return Prediction{}, apperrors.NewUnknownError("unreadable model reply", err)
	}

	answer := strings.TrimSpace(reply.Answer)
	if answer == "" {
		return Prediction{Start: -1, End: -1}, nil
	}
	if reply.Confidence < 0 || reply.Confidence > 1 {
		reply.Confidence = 0.5
	}

	start, end := locate(passage, answer)
	if start >= 0 {
		answer = passage[start:end]
	} else {
		// not an extract of the passage
		reply.Confidence /= 2
	}
	return Prediction{Answer: answer, Score: reply.Confidence, Start: start, End: end}, nil
}

func buildPrompt(question, passage string) string {
	var parts []string
	parts = append(parts, "Passage:")
	parts = append(parts, passage)
	parts = append(parts, fmt.Sprintf("\nQuestion: %s", question))
	parts = append(parts, "\nJSON:")
	return strings.Join(parts, "\n")
}

func parseReply(text string) (anthropicReply, error) {
	var reply anthropicReply
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return reply, fmt.Errorf("no JSON object in %q", text)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &reply); err != nil {
		return reply, err
	}
	return reply, nil
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 408 || apiErr.StatusCode == 429 || apiErr.StatusCode >= 500:
			return apperrors.NewNetworkTimeoutError("anthropic", err)
		default:
			return apperrors.NewUnknownError("anthropic request rejected", err)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewNetworkTimeoutError("anthropic", err)
	}
	return apperrors.NewUnknownError("anthropic request failed", err)
}
