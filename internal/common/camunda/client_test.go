package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	apperrors "wikimind/internal/common/errors"
)

func TestIsRetryableZeebeError(t *testing.T) {
	tests := []struct {
		msg  string
		want bool
	}{
		{"rpc error: code = Unavailable desc = connection refused", true},
		{"context deadline exceeded", true},
		{"write: broken pipe", true},
		{"rpc error: code = NotFound desc = job not found", false},
		{"permission denied", false},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryableZeebeError(errors.New(tt.msg)))
		})
	}
}

func TestMapZeebeError(t *testing.T) {
	err := mapZeebeError(errors.New("connection refused"), "topology", 2)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceError))
	assert.Contains(t, err.Error(), "after 3 attempts")

	err = mapZeebeError(errors.New("invalid job key"), "complete", 0)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknown))
	assert.NotContains(t, err.Error(), "attempts")
}

func TestBackoffIsCapped(t *testing.T) {
	retry := &RetryConfig{MaxRetries: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	assert.Equal(t, time.Second, backoff(retry, 0))
	assert.Equal(t, 4*time.Second, backoff(retry, 2))
	assert.Equal(t, 5*time.Second, backoff(retry, 3))
	assert.Equal(t, 5*time.Second, backoff(retry, 40))
}

func TestWithRetryStopsOnPermanentError(t *testing.T) {
	c := &Client{config: &ClientConfig{RetryConfig: &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}}}

	calls := 0
	err := c.withRetry(context.Background(), "deploy", func(context.Context) error {
		calls++
		return errors.New("resource already exists")
	})

	assert.Equal(t, 1, calls)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeUnknown))
}

func TestWithRetryRecovers(t *testing.T) {
	c := &Client{config: &ClientConfig{RetryConfig: &RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}}}

	calls := 0
	err := c.withRetry(context.Background(), "topology", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("unavailable")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	c := &Client{config: &ClientConfig{RetryConfig: &RetryConfig{MaxRetries: 2, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}}}

	calls := 0
	err := c.withRetry(context.Background(), "topology", func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})

	assert.Equal(t, 3, calls)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeServiceError))
}
