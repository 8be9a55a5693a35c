package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	apperrors "wikimind/internal/common/errors"
	"wikimind/internal/common/metrics"
)

func TestObserveLoadCountsOutcomes(t *testing.T) {
	obs := New("wikimind-test")
	defer obs.Shutdown()

	ok := metrics.EngineLoads.WithLabelValues("extractive", metrics.OutcomeOK)
	failed := metrics.EngineLoads.WithLabelValues("extractive", string(apperrors.ErrCodeUnknown))
	beforeOK, beforeFailed := testutil.ToFloat64(ok), testutil.ToFloat64(failed)

	obs.ObserveLoad("extractive", 20*time.Millisecond, nil)
	obs.ObserveLoad("extractive", 5*time.Millisecond, errors.New("boom"))
	obs.ObserveInference("extractive", time.Millisecond)
	obs.RecordJobProcessed(context.Background(), "success")
	obs.RecordJobDuration(context.Background(), time.Second, "success")

	assert.Equal(t, beforeOK+1, testutil.ToFloat64(ok))
	assert.Equal(t, beforeFailed+1, testutil.ToFloat64(failed))
}

func TestZeroValueIsSafe(t *testing.T) {
	var obs Observability
	obs.ObserveInference("extractive", time.Millisecond)
	obs.RecordJobProcessed(context.Background(), "success")
	obs.Shutdown()
}
