// Package concept implements the concept-memory subsystem: immutable-after-
// creation snapshots of retired models and the concurrent history store that
// archives them so a recurring distribution can reactivate an old model
// instead of retraining from scratch.
package concept

import (
	"sync"
	"time"

	"driftstream/internal/learner"
	"driftstream/internal/window"
)

// Concept is a snapshot of a model taken when a warning opened, archived when
// the drift was confirmed. Provenance fields are fixed at creation; the model
// itself is only ever mutated by live comparison training while a comparison
// window is attached.
type Concept struct {
	historyID      int64 // 0 while pending, assigned at commit
	sourceSlot     int
	createdAt      time.Time
	instancesSeen  int64
	errorAtWarning float64

	mu          sync.Mutex
	model       learner.Classifier
	cmp         *window.Estimator // lazily attached on first comparison
	lastTrained int64             // stream position of the last training update
}

// NewSnapshot captures a pending concept from a member's active model. The
// model must already be an independent copy owned by the snapshot.
func NewSnapshot(sourceSlot int, model learner.Classifier, instancesSeen int64, errorAtWarning float64) *Concept {
	return &Concept{
		sourceSlot:     sourceSlot,
		createdAt:      time.Now(),
		instancesSeen:  instancesSeen,
		errorAtWarning: errorAtWarning,
		model:          model,
	}
}

// HistoryID returns the archive id, or 0 for a pending snapshot.
func (c *Concept) HistoryID() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.historyID
}

// SourceSlot returns the member slot that produced this concept.
func (c *Concept) SourceSlot() int { return c.sourceSlot }

// CreatedAt returns when the warning that produced this snapshot opened.
func (c *Concept) CreatedAt() time.Time { return c.createdAt }

// InstancesSeen returns the stream position at snapshot time.
func (c *Concept) InstancesSeen() int64 { return c.instancesSeen }

// ErrorAtWarning returns the windowed error of the source model when the
// warning opened.
func (c *Concept) ErrorAtWarning() float64 { return c.errorAtWarning }

// RegisterComparer attaches the member at memberIndex to this concept's
// comparison window, creating the window on first use. The concept becomes
// applicable to that member from this point onward.
func (c *Concept) RegisterComparer(memberIndex int, priorError float64, seedSize int, cfg window.Config) {
	c.mu.Lock()
	if c.cmp == nil {
		c.cmp = window.New(cfg)
	}
	cmp := c.cmp
	c.mu.Unlock()
	cmp.AddModel(memberIndex, priorError, seedSize)
}

// DeregisterComparer detaches the member from the comparison window, used
// when its warning ends without promoting this concept.
func (c *Concept) DeregisterComparer(memberIndex int) {
	c.mu.Lock()
	cmp := c.cmp
	c.mu.Unlock()
	if cmp != nil {
		cmp.DeleteModel(memberIndex)
	}
}

// Applicable reports whether the member at memberIndex is registered in the
// comparison window. Concepts never compared remain inapplicable.
func (c *Concept) Applicable(memberIndex int) bool {
	c.mu.Lock()
	cmp := c.cmp
	c.mu.Unlock()
	return cmp != nil && cmp.ContainsIndex(memberIndex)
}

// ComparisonError returns this concept's windowed error as observed by the
// member at memberIndex.
func (c *Concept) ComparisonError(memberIndex int) (float64, error) {
	c.mu.Lock()
	cmp := c.cmp
	c.mu.Unlock()
	if cmp == nil {
		return 0, window.ErrUnknownIndex
	}
	return cmp.ErrorFraction(memberIndex)
}

// ObserveAndTrain scores one example for the member at memberIndex, records
// the outcome in the comparison window, and trains the archived model on the
// example so it competes live against the background model. instance is the
// stream position of the example; when several members compare this concept
// during overlapping warnings the model trains on each instance only once,
// while every caller still records its own outcome.
func (c *Concept) ObserveAndTrain(memberIndex int, instance int64, ex learner.Example) error {
	c.mu.Lock()
	cmp := c.cmp
	if cmp == nil || c.model == nil {
		c.mu.Unlock()
		return window.ErrUnknownIndex
	}
	scores := c.model.Predict(ex)
	correct := learner.PredictedLabel(scores) == ex.Label
	if instance > c.lastTrained {
		c.model.Train(ex)
		c.lastTrained = instance
	}
	c.mu.Unlock()

	before, err := cmp.ErrorFraction(memberIndex)
	if err != nil {
		return err
	}
	if err := cmp.RecordResult(memberIndex, correct); err != nil {
		return err
	}
	after, err := cmp.ErrorFraction(memberIndex)
	if err != nil {
		return err
	}
	cmp.Resize(after - before)
	return nil
}

// TakeModel returns the archived model for promotion to active use. The
// caller becomes the exclusive owner.
func (c *Concept) TakeModel() learner.Classifier {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.model
	c.model = nil
	return m
}
