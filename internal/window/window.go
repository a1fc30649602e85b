// Package window implements the adaptive sliding-window error estimator used
// to compare candidate models during a warning period.
//
// An Estimator tracks, per registered model index, the trailing window of
// classification outcomes and derives an error fraction. Window sizes grow
// when a model stabilizes and shrink (never below the configured minimum)
// when its error climbs above the seeded prior, so a nested change is reacted
// to quickly while a stable comparison gains precision over time.
package window

import (
	"errors"
	"sync"
)

// ResizePolicy selects how window sizes react to error movement.
type ResizePolicy int

const (
	// PolicyFixed keeps every window at its seeded size.
	PolicyFixed ResizePolicy = iota
	// PolicyErrorDriven grows on decreasing error and shrinks when the
	// current error exceeds the seeded prior.
	PolicyErrorDriven
	// PolicyThresholdGated applies the error-driven rule only when the
	// estimate's distance from the prior is confident enough; a
	// DecisionThreshold of -1 disables the gate.
	PolicyThresholdGated
)

// ErrUnknownIndex is returned for operations on an unregistered model index.
// In correct state-machine usage it indicates a local invariant violation.
var ErrUnknownIndex = errors.New("window: unknown model index")

// Config bounds and tunes an Estimator. Validation happens once at ensemble
// construction; an Estimator trusts its Config.
type Config struct {
	DefaultSize       int
	MinSize           int
	Increment         int
	Policy            ResizePolicy
	DecisionThreshold float64 // -1 disables gating for PolicyThresholdGated
	RememberSize      bool    // re-registering an index reuses its last size
}

type tracked struct {
	results []bool // true = incorrect, newest last
	size    int
	prior   float64
}

// Estimator tracks trailing error windows for a set of model indices.
// All methods are safe for concurrent use.
type Estimator struct {
	mu         sync.RWMutex
	cfg        Config
	models     map[int]*tracked
	remembered map[int]int
}

// New creates an empty estimator. MinSize and DefaultSize are clamped to at
// least 1 so a zero Config still behaves.
func New(cfg Config) *Estimator {
	if cfg.MinSize < 1 {
		cfg.MinSize = 1
	}
	if cfg.DefaultSize < cfg.MinSize {
		cfg.DefaultSize = cfg.MinSize
	}
	if cfg.Increment < 1 {
		cfg.Increment = 1
	}
	return &Estimator{
		cfg:        cfg,
		models:     make(map[int]*tracked),
		remembered: make(map[int]int),
	}
}

// AddModel registers a model index, seeding its estimate with priorError so a
// cold-started candidate is not unfairly compared against zero. seedSize <= 0
// selects the default size (or the remembered size when RememberSize is on).
// Re-registration of a live index is a no-op; callers must DeleteModel first.
func (e *Estimator) AddModel(index int, priorError float64, seedSize int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.models[index]; ok {
		return
	}

	size := seedSize
	if size <= 0 {
		size = e.cfg.DefaultSize
	}
	if e.cfg.RememberSize {
		if prev, ok := e.remembered[index]; ok {
			size = prev
		}
	}
	if size < e.cfg.MinSize {
		size = e.cfg.MinSize
	}

	e.models[index] = &tracked{
		results: make([]bool, 0, size),
		size:    size,
		prior:   clamp01(priorError),
	}
}

// RecordResult appends one observation for index.
func (e *Estimator) RecordResult(index int, wasCorrect bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.models[index]
	if !ok {
		return ErrUnknownIndex
	}
	t.results = append(t.results, !wasCorrect)
	if len(t.results) > t.size {
		t.results = t.results[len(t.results)-t.size:]
	}
	return nil
}

// ErrorFraction returns incorrect/total over the current window for index.
// Before any result is recorded the seeded prior is returned.
func (e *Estimator) ErrorFraction(index int) (float64, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	t, ok := e.models[index]
	if !ok {
		return 0, ErrUnknownIndex
	}
	return t.errorFraction(), nil
}

func (t *tracked) errorFraction() float64 {
	if len(t.results) == 0 {
		return t.prior
	}
	incorrect := 0
	for _, bad := range t.results {
		if bad {
			incorrect++
		}
	}
	return float64(incorrect) / float64(len(t.results))
}

// Resize applies the configured policy to every tracked window.
// observedErrorDelta is the movement of the caller's error estimate since the
// previous observation: negative means the model is stabilizing.
func (e *Estimator) Resize(observedErrorDelta float64) {
	if e.cfg.Policy == PolicyFixed {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, t := range e.models {
		e.resizeOne(t, observedErrorDelta)
	}
}

func (e *Estimator) resizeOne(t *tracked, delta float64) {
	err := t.errorFraction()

	if e.cfg.Policy == PolicyThresholdGated && e.cfg.DecisionThreshold >= 0 {
		// Confidence of the estimate: distance from the seeded prior
		// scaled by how full the window is.
		confidence := abs(err-t.prior) * float64(len(t.results)) / float64(t.size)
		if confidence < e.cfg.DecisionThreshold {
			return
		}
	}

	switch {
	case delta < 0:
		t.size += e.cfg.Increment
	case delta > 0 && err > t.prior:
		t.size -= e.cfg.Increment
		if t.size < e.cfg.MinSize {
			t.size = e.cfg.MinSize
		}
		if len(t.results) > t.size {
			t.results = t.results[len(t.results)-t.size:]
		}
	}
}

// ContainsIndex reports whether index is currently tracked.
func (e *Estimator) ContainsIndex(index int) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.models[index]
	return ok
}

// WindowSizeOf returns the current window size for index, or 0 when unknown.
func (e *Estimator) WindowSizeOf(index int) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if t, ok := e.models[index]; ok {
		return t.size
	}
	return 0
}

// DeleteModel stops tracking index. With RememberSize the final window size
// is kept and reused if the same index registers again.
func (e *Estimator) DeleteModel(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.models[index]; ok {
		if e.cfg.RememberSize {
			e.remembered[index] = t.size
		}
		delete(e.models, index)
	}
}

// AmountOfApplicableModels returns how many indices are tracked. Zero means
// no comparison is yet meaningful.
func (e *Estimator) AmountOfApplicableModels() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.models)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
