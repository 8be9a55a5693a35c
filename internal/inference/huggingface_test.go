package inference

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wikimind/internal/common/errors"
	apphttp "wikimind/internal/common/http"
)

func TestHuggingFace_WarmsUpThenPredicts(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))

		var req hfRequest
		json.NewDecoder(r.Body).Decode(&req)

		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"error":"Model deepset/roberta-base-squad2 is currently loading","estimated_time":0.01}`))
			return
		}
		if req.Inputs.Question == "What is this?" {
			w.Write([]byte(`{"answer":"warm-up","score":0.5,"start":10,"end":17}`))
			return
		}
		// character offsets: "é" is one character but two bytes
		w.Write([]byte(`{"answer":"physics","score":0.83,"start":8,"end":15}`))
	}))
	defer server.Close()

	loader := NewHuggingFaceLoader(server.URL, "hf_test", 5*time.Second, nil)
	model, err := loader.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	passage := "Théorie physics"
	pred, err := model.Predict(context.Background(), "Which field?", passage)
	require.NoError(t, err)
	assert.Equal(t, "physics", pred.Answer)
	assert.InDelta(t, 0.83, pred.Score, 1e-9)
	assert.Equal(t, "physics", passage[pred.Start:pred.End])
}

func TestHuggingFace_LoadFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"unauthorized", http.StatusUnauthorized},
		{"missing model", http.StatusNotFound},
		{"server error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(`{"error":"nope"}`))
			}))
			defer server.Close()

			_, err := NewHuggingFaceLoader(server.URL, "", time.Second, nil).Load(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestHuggingFace_WarmupRespectsDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"error":"loading","estimated_time":30}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewHuggingFaceLoader(server.URL, "", time.Second, nil).Load(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHuggingFace_PredictErrorIsClassified(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Write([]byte(`{"answer":"x","score":0.1,"start":0,"end":1}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	model, err := NewHuggingFaceLoader(server.URL, "", time.Second, nil).Load(context.Background())
	require.NoError(t, err)

	_, err = model.Predict(context.Background(), "q", "c")
	assert.Equal(t, apperrors.ErrCodeUnknown, apperrors.CodeOf(err))
}

func TestRuneSpanToBytes(t *testing.T) {
	s := "añb"
	start, end := runeSpanToBytes(s, 1, 3)
	assert.Equal(t, "ñb", s[start:end])

	start, end = runeSpanToBytes(s, 2, 9)
	assert.Equal(t, -1, start)
	assert.Equal(t, -1, end)
}

func TestEstimatedWait(t *testing.T) {
	assert.Equal(t, time.Second, estimatedWait(assert.AnError))
	assert.Equal(t, maxWarmupWait, estimatedWait(&apphttp.StatusError{StatusCode: 503, Body: `{"estimated_time":120}`}))
	assert.Equal(t, 1500*time.Millisecond, estimatedWait(&apphttp.StatusError{StatusCode: 503, Body: `{"estimated_time":1.5}`}))
}
