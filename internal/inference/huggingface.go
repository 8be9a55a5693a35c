package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "wikimind/internal/common/errors"
	apphttp "wikimind/internal/common/http"
)

const maxWarmupWait = 10 * time.Second

// HuggingFaceLoader targets a hosted extractive question-answering model. Loading succeeds once
// the endpoint stops answering "model is loading".
type HuggingFaceLoader struct {
	endpoint string
	token    string
	client   *apphttp.Client
	logger   Logger
}

func NewHuggingFaceLoader(endpoint, token string, timeout time.Duration, logger Logger) *HuggingFaceLoader {
	return &HuggingFaceLoader{
		endpoint: endpoint,
		token:    token,
		client:   apphttp.NewClient(timeout),
		logger:   logger,
	}
}

func (l *HuggingFaceLoader) Name() string { return "huggingface" }

type hfRequest struct {
	Inputs hfInputs `json:"inputs"`
}

type hfInputs struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type hfAnswer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
}

type hfLoading struct {
	Error         string  `json:"error"`
	EstimatedTime float64 `json:"estimated_time"`
}

func (l *HuggingFaceLoader) Load(ctx context.Context) (Model, error) {
	m := &hfModel{loader: l}
	warmup := hfRequest{Inputs: hfInputs{Question: "What is this?", Context: "This is a warm-up request."}}

	for attempt := 1; ; attempt++ {
		var out hfAnswer
		err := l.client.PostJSON(ctx, l.endpoint, l.headers(), warmup, &out)
		if err == nil {
			return m, nil
		}

		switch status := apphttp.StatusCode(err); status {
		case http.StatusServiceUnavailable:
			wait := estimatedWait(err)
			if l.logger != nil {
				l.logger.Info("inference endpoint is warming up", map[string]interface{}{
					"attempt": attempt,
					"wait":    wait.String(),
				})
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, fmt.Errorf("endpoint not ready after %d attempts: %w", attempt, ctx.Err())
			}
		case http.StatusUnauthorized, http.StatusForbidden:
			return nil, fmt.Errorf("endpoint rejected credentials: %w", err)
		case http.StatusNotFound:
			return nil, fmt.Errorf("model not found at %s: %w", l.endpoint, err)
		default:
			return nil, fmt.Errorf("warm-up request failed: %w", err)
		}
	}
}

func (l *HuggingFaceLoader) headers() map[string]string {
	if l.token == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + l.token}
}

func estimatedWait(err error) time.Duration {
	wait := time.Second
	var se *apphttp.StatusError
	if errors.As(err, &se) {
		var body hfLoading
		if json.Unmarshal([]byte(se.Body), &body) == nil && body.EstimatedTime > 0 {
			wait = time.Duration(body.EstimatedTime * float64(time.Second))
		}
	}
	if wait > maxWarmupWait {
		wait = maxWarmupWait
	}
	return wait
}

type hfModel struct {
	loader *HuggingFaceLoader
}

func (m *hfModel) Predict(ctx context.Context, question, passage string) (Prediction, error) {
	var out hfAnswer
	req := hfRequest{Inputs: hfInputs{Question: question, Context: passage}}
	if err := m.loader.client.PostJSON(ctx, m.loader.endpoint, m.loader.headers(), req, &out); err != nil {
		if apphttp.IsTimeout(err) {
			return Prediction{}, apperrors.NewNetworkTimeoutError("inference endpoint", err)
		}
		return Prediction{}, apperrors.NewUnknownError("inference endpoint", err)
	}

	start, end := runeSpanToBytes(passage, out.Start, out.End)
	return Prediction{Answer: out.Answer, Score: out.Score, Start: start, End: end}, nil
}

// runeSpanToBytes converts character offsets, as reported by the endpoint, into byte offsets.
func runeSpanToBytes(s string, start, end int) (int, int) {
	if start < 0 || end < start {
		return -1, -1
	}
	bs, be := -1, -1
	n := 0
	for i := range s {
		if n == start {
			bs = i
		}
		if n == end {
			be = i
			break
		}
		n++
	}
	if be < 0 && n == end {
		be = len(s)
	}
	if bs < 0 && n == start {
		bs = len(s)
	}
	if bs < 0 || be < 0 {
		return -1, -1
	}
	return bs, be
}
