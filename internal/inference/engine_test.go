package inference

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "wikimind/internal/common/errors"
	"wikimind/internal/common/logger"
)

// ==========================
// Test Doubles
// ==========================

type stubModel struct {
	pred Prediction
	err  error
	seen atomic.Value
}

func (m *stubModel) Predict(ctx context.Context, question, passage string) (Prediction, error) {
	m.seen.Store(passage)
	return m.pred, m.err
}

type countingLoader struct {
	calls   atomic.Int32
	gate    chan struct{}
	failFor int32
	model   Model
}

func (l *countingLoader) Name() string { return "stub" }

func (l *countingLoader) Load(ctx context.Context) (Model, error) {
	n := l.calls.Add(1)
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if n <= l.failFor {
		return nil, errors.New("weights unavailable")
	}
	return l.model, nil
}

type recordingObserver struct {
	mu         sync.Mutex
	loads      int
	loadErrs   int
	inferences int
}

func (o *recordingObserver) ObserveLoad(backend string, d time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loads++
	if err != nil {
		o.loadErrs++
	}
}

func (o *recordingObserver) ObserveInference(backend string, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inferences++
}

func newTestEngine(t *testing.T, loader Loader, maxChars int) *Engine {
	return NewEngine(loader, Options{
		MaxContextChars: maxChars,
		LoadTimeout:     5 * time.Second,
		Logger:          logger.NewTestLogger(t),
	})
}

// ==========================
// Lifecycle
// ==========================

func TestEngine_ConcurrentGetOrInitConstructsOnce(t *testing.T) {
	loader := &countingLoader{gate: make(chan struct{}), model: &stubModel{}}
	engine := newTestEngine(t, loader, 100)

	const callers = 32
	handles := make([]*Handle, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i], errs[i] = engine.GetOrInit(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool { return engine.State() == StateLoading }, time.Second, time.Millisecond)
	close(loader.gate)
	wg.Wait()

	assert.Equal(t, int32(1), loader.calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, handles[0], handles[i])
	}
	assert.Equal(t, StateReady, engine.State())
	assert.Equal(t, int64(1), engine.Loads())
}

func TestEngine_FailedLoadIsRetried(t *testing.T) {
	loader := &countingLoader{failFor: 1, model: &stubModel{}}
	engine := newTestEngine(t, loader, 100)

	_, err := engine.GetOrInit(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeModelLoadFailure, apperrors.CodeOf(err))
	assert.Equal(t, StateUninitialized, engine.State())

	h, err := engine.GetOrInit(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, StateReady, engine.State())
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestEngine_NilModelIsLoadFailure(t *testing.T) {
	engine := newTestEngine(t, &countingLoader{}, 100)

	_, err := engine.GetOrInit(context.Background())
	assert.Equal(t, apperrors.ErrCodeModelLoadFailure, apperrors.CodeOf(err))
}

func TestEngine_CallerCancellationDoesNotAbortLoad(t *testing.T) {
	loader := &countingLoader{gate: make(chan struct{}), model: &stubModel{}}
	engine := newTestEngine(t, loader, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := engine.GetOrInit(ctx)
		done <- err
	}()

	require.Eventually(t, func() bool { return engine.State() == StateLoading }, time.Second, time.Millisecond)
	cancel()
	err := <-done
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	close(loader.gate)
	require.Eventually(t, func() bool { return engine.State() == StateReady }, time.Second, time.Millisecond)

	_, err = engine.GetOrInit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestEngine_LoadTimeout(t *testing.T) {
	loader := &countingLoader{gate: make(chan struct{}), model: &stubModel{}}
	engine := NewEngine(loader, Options{MaxContextChars: 100, LoadTimeout: 20 * time.Millisecond})

	_, err := engine.GetOrInit(context.Background())
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeModelLoadFailure, apperrors.CodeOf(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestEngine_ObserverSeesLoadsAndInferences(t *testing.T) {
	obs := &recordingObserver{}
	loader := &countingLoader{failFor: 1, model: &stubModel{pred: Prediction{Answer: "x", Score: 0.5}}}
	engine := NewEngine(loader, Options{MaxContextChars: 100, Observer: obs})

	_, _ = engine.GetOrInit(context.Background())
	h, err := engine.GetOrInit(context.Background())
	require.NoError(t, err)
	_, err = h.Infer(context.Background(), "q", "x marks the spot")
	require.NoError(t, err)

	assert.Equal(t, 2, obs.loads)
	assert.Equal(t, 1, obs.loadErrs)
	assert.Equal(t, 1, obs.inferences)
}

// ==========================
// Handle
// ==========================

func TestHandle_TruncatesContext(t *testing.T) {
	model := &stubModel{pred: Prediction{Answer: "héllo", Score: 0.9, Start: -1, End: -1}}
	engine := newTestEngine(t, &countingLoader{model: model}, 5)

	h, err := engine.GetOrInit(context.Background())
	require.NoError(t, err)

	pred, err := h.Infer(context.Background(), "greeting?", "héllo wörld")
	require.NoError(t, err)

	assert.Equal(t, "héllo", model.seen.Load())
	assert.Equal(t, 0, pred.Start)
	assert.Equal(t, len("héllo"), pred.End)
}

func TestHandle_SanitizesScore(t *testing.T) {
	tests := []struct {
		name  string
		pred  Prediction
		score float64
	}{
		{"nan", Prediction{Answer: "a", Score: math.NaN()}, 0},
		{"negative", Prediction{Answer: "a", Score: -0.3}, 0},
		{"above one", Prediction{Answer: "a", Score: 1.7}, 1},
		{"empty answer", Prediction{Answer: "", Score: 0.8}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := newTestEngine(t, &countingLoader{model: &stubModel{pred: tt.pred}}, 100)
			h, err := engine.GetOrInit(context.Background())
			require.NoError(t, err)

			pred, err := h.Infer(context.Background(), "q", "a b c")
			require.NoError(t, err)
			assert.Equal(t, tt.score, pred.Score)
		})
	}
}

func TestHandle_ClassifiesModelErrors(t *testing.T) {
	engine := newTestEngine(t, &countingLoader{model: &stubModel{err: errors.New("tensor shape mismatch")}}, 100)
	h, err := engine.GetOrInit(context.Background())
	require.NoError(t, err)

	_, err = h.Infer(context.Background(), "q", "c")
	assert.Equal(t, apperrors.ErrCodeUnknown, apperrors.CodeOf(err))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abcdef", 3))
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "日本", Truncate("日本語", 2))
	assert.Equal(t, "abcdef", Truncate("abcdef", 0))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "loading", StateLoading.String())
	assert.Equal(t, "ready", StateReady.String())
}
