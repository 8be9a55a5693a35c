// Package inference owns the process-wide question-answering model: it is loaded lazily on first
// use, exactly once even under concurrent demand, and shared read-only afterwards.
package inference

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	apperrors "wikimind/internal/common/errors"
)

// State is the lifecycle position of the engine.
type State int32

const (
	StateUninitialized State = iota
	StateLoading
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	default:
		return "uninitialized"
	}
}

// Prediction is a single extracted answer. Start and End are byte offsets into the context the
// model saw, or -1 when the span could not be located.
type Prediction struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
}

// Model is a loaded question-answering resource. Implementations must be safe for concurrent use.
type Model interface {
	Predict(ctx context.Context, question, passage string) (Prediction, error)
}

// Loader constructs a Model. Load is expensive and is called at most once per successful init.
type Loader interface {
	Name() string
	Load(ctx context.Context) (Model, error)
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// Observer receives timing for loads and predictions.
type Observer interface {
	ObserveLoad(backend string, duration time.Duration, err error)
	ObserveInference(backend string, duration time.Duration)
}

type Options struct {
	MaxContextChars int
	LoadTimeout     time.Duration
	Logger          Logger
	Observer        Observer
}

// Engine hands out the shared Handle, constructing it on first demand.
type Engine struct {
	loader          Loader
	maxContextChars int
	loadTimeout     time.Duration
	logger          Logger
	observer        Observer

	group   singleflight.Group
	mu      sync.RWMutex
	handle  *Handle
	loading atomic.Bool
	loads   atomic.Int64
}

func NewEngine(loader Loader, opts Options) *Engine {
	if opts.LoadTimeout <= 0 {
		opts.LoadTimeout = 2 * time.Minute
	}
	return &Engine{
		loader:          loader,
		maxContextChars: opts.MaxContextChars,
		loadTimeout:     opts.LoadTimeout,
		logger:          opts.Logger,
		observer:        opts.Observer,
	}
}

// GetOrInit returns the ready handle, loading the model if needed. Concurrent callers share one
// load. A failed load leaves the engine uninitialized so a later call retries.
//
// The load itself is detached from ctx: a caller that gives up does not abort a load other
// callers may be waiting on.
func (e *Engine) GetOrInit(ctx context.Context) (*Handle, error) {
	if h := e.ready(); h != nil {
		return h, nil
	}

	ch := e.group.DoChan("model", func() (interface{}, error) {
		if h := e.ready(); h != nil {
			return h, nil
		}
		return e.load(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Handle), nil
	case <-ctx.Done():
		return nil, apperrors.NewUnknownError("gave up waiting for inference model", ctx.Err())
	}
}

func (e *Engine) load(ctx context.Context) (*Handle, error) {
	e.loading.Store(true)
	defer e.loading.Store(false)

	ctx, cancel := context.WithTimeout(ctx, e.loadTimeout)
	defer cancel()

	e.loads.Add(1)
	e.logInfo("loading inference model", map[string]interface{}{"backend": e.loader.Name()})

	start := time.Now()
	model, err := e.loader.Load(ctx)
	if e.observer != nil {
		e.observer.ObserveLoad(e.loader.Name(), time.Since(start), err)
	}
	if err == nil && model == nil {
		err = errNilModel
	}
	if err != nil {
		e.logError("inference model load failed", map[string]interface{}{
			"backend":  e.loader.Name(),
			"error":    err.Error(),
			"duration": time.Since(start).String(),
		})
		return nil, apperrors.NewModelLoadFailureError(e.loader.Name(), err)
	}

	h := &Handle{
		model:           model,
		backend:         e.loader.Name(),
		maxContextChars: e.maxContextChars,
		observer:        e.observer,
	}

	e.mu.Lock()
	e.handle = h
	e.mu.Unlock()

	e.logInfo("inference model ready", map[string]interface{}{
		"backend":  e.loader.Name(),
		"duration": time.Since(start).String(),
	})
	return h, nil
}

func (e *Engine) ready() *Handle {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.handle
}

// State reports where the engine is in its lifecycle.
func (e *Engine) State() State {
	if e.ready() != nil {
		return StateReady
	}
	if e.loading.Load() {
		return StateLoading
	}
	return StateUninitialized
}

// Loads counts load attempts, successful or not.
func (e *Engine) Loads() int64 {
	return e.loads.Load()
}

// Backend names the loader behind the engine.
func (e *Engine) Backend() string {
	return e.loader.Name()
}

func (e *Engine) logInfo(msg string, fields map[string]interface{}) {
	if e.logger != nil {
		e.logger.Info(msg, fields)
	}
}

func (e *Engine) logError(msg string, fields map[string]interface{}) {
	if e.logger != nil {
		e.logger.Error(msg, fields)
	}
}

// Handle is the loaded model. It is immutable and used without locks.
type Handle struct {
	model           Model
	backend         string
	maxContextChars int
	observer        Observer
}

// Infer runs the model over at most MaxContextChars runes of context. Identical inputs yield
// identical predictions. The score is always within [0,1].
func (h *Handle) Infer(ctx context.Context, question, passage string) (Prediction, error) {
	window := Truncate(passage, h.maxContextChars)

	start := time.Now()
	pred, err := h.model.Predict(ctx, question, window)
	if h.observer != nil {
		h.observer.ObserveInference(h.backend, time.Since(start))
	}
	if err != nil {
		if _, ok := apperrors.AsStandard(err); ok {
			return Prediction{}, err
		}
		return Prediction{}, apperrors.NewUnknownError("inference failed", err)
	}

	pred.Score = ClampScore(pred.Score)
	if pred.Answer == "" {
		pred.Score = 0
	}
	if pred.Start < 0 || pred.End > len(window) || pred.Start > pred.End || window[pred.Start:pred.End] != pred.Answer {
		pred.Start, pred.End = locate(window, pred.Answer)
	}
	return pred, nil
}

var errNilModel = errors.New("loader returned no model")

// locate finds answer in passage and returns its byte span, or -1,-1.
func locate(passage, answer string) (int, int) {
	if answer == "" {
		return -1, -1
	}
	if i := strings.Index(passage, answer); i >= 0 {
		return i, i + len(answer)
	}
	if i := strings.Index(strings.ToLower(passage), strings.ToLower(answer)); i >= 0 && len(strings.ToLower(passage)) == len(passage) {
		return i, i + len(answer)
	}
	return -1, -1
}

// Truncate keeps the first limit runes of s. A non-positive limit keeps everything.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

// ClampScore maps NaN to 0 and clamps to [0,1].
func ClampScore(score float64) float64 {
	switch {
	case math.IsNaN(score), score < 0:
		return 0
	case score > 1:
		return 1
	default:
		return score
	}
}
