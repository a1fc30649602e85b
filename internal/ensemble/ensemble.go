// Package ensemble implements the coordinator that fans each incoming
// example out to every member, optionally on a fixed worker pool, and
// combines member predictions into a weighted vote.
package ensemble

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"driftstream/internal/concept"
	"driftstream/internal/detector"
	"driftstream/internal/learner"
	"driftstream/internal/member"
	"driftstream/internal/topology"
	"driftstream/internal/window"
)

// Config tunes the coordinator. Validate reports the first invalid field;
// configuration errors are fatal at construction time only.
type Config struct {
	Size         int // number of members
	ClassCount   int
	WorkerPool   int  // <=1 trains in place, sequentially
	WeightedVote bool // scale votes by recent member accuracy
	Member       member.Config
}

// Validate checks the configuration once, before any member exists.
func (c Config) Validate() error {
	if c.Size < 1 {
		return fmt.Errorf("ensemble size must be at least 1, got %d", c.Size)
	}
	if c.ClassCount < 2 {
		return fmt.Errorf("class count must be at least 2, got %d", c.ClassCount)
	}
	if c.Member.Window.MinSize < 1 {
		return fmt.Errorf("window min size must be at least 1, got %d", c.Member.Window.MinSize)
	}
	if c.Member.Window.DefaultSize < c.Member.Window.MinSize {
		return fmt.Errorf("window default size %d below min size %d", c.Member.Window.DefaultSize, c.Member.Window.MinSize)
	}
	if c.Member.Window.Increment < 1 {
		return fmt.Errorf("window increment must be at least 1, got %d", c.Member.Window.Increment)
	}
	if p := c.Member.Window.Policy; p < window.PolicyFixed || p > window.PolicyThresholdGated {
		return fmt.Errorf("unknown resize policy %d", p)
	}
	if m := c.Member.DecisionMechanism; m < 0 || m > 2 {
		return fmt.Errorf("unknown drift decision mechanism %d", m)
	}
	if c.Member.WarningTimeout < 0 {
		return fmt.Errorf("warning timeout must not be negative, got %d", c.Member.WarningTimeout)
	}
	return nil
}

// Coordinator owns the member array and the shared concept history. Train
// blocks until every member has absorbed the example (a synchronous barrier
// per example; no pipelining across examples).
type Coordinator struct {
	cfg     Config
	members []*member.Member
	history *concept.History

	pool *pool

	mu        sync.Mutex
	instances int64
	recentOK  []bool // trailing prequential outcomes of the vote
	recentPos int
	recentN   int
}

const prequentialWindow = 500

// New builds the coordinator, its members, and the worker pool. modelTpl is
// copied and reset per member; warnTpl/driftTpl are detector templates.
func New(cfg Config, modelTpl learner.Classifier, warnTpl, driftTpl detector.Detector, grouper topology.Grouper, emit member.Emitter) (*Coordinator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("ensemble config: %w", err)
	}

	co := &Coordinator{
		cfg:      cfg,
		history:  concept.NewHistory(),
		recentOK: make([]bool, prequentialWindow),
	}

	for i := 0; i < cfg.Size; i++ {
		model := modelTpl.Copy()
		model.Reset()
		co.members = append(co.members, member.New(i, cfg.Member, model, warnTpl, driftTpl, co.history, grouper, emit))
	}

	if cfg.WorkerPool > 1 {
		co.pool = newPool(cfg.WorkerPool)
	}

	log.Info().
		Int("size", cfg.Size).
		Int("workers", cfg.WorkerPool).
		Bool("weighted_vote", cfg.WeightedVote).
		Bool("recurring", cfg.Member.UseRecurring).
		Msg("ensemble initialized")
	return co, nil
}

// Members exposes the member slots (read-only use).
func (co *Coordinator) Members() []*member.Member { return co.members }

// History exposes the shared concept store.
func (co *Coordinator) History() *concept.History { return co.history }

// Instances returns the number of examples trained so far.
func (co *Coordinator) Instances() int64 { return co.instances }

// Train records the vote outcome for the example, then dispatches it to
// every member and waits for all of them to finish.
func (co *Coordinator) Train(ex learner.Example) {
	co.trackVote(ex)
	co.instances++

	if co.pool == nil {
		for _, m := range co.members {
			m.ProcessExample(ex)
		}
		return
	}

	var wg sync.WaitGroup
	wg.Add(len(co.members))
	for _, m := range co.members {
		m := m
		ok := co.pool.submit(func() {
			defer wg.Done()
			m.ProcessExample(ex)
		})
		if !ok {
			// Pool already stopped; the example is dropped for this
			// member rather than deadlocking the barrier.
			wg.Done()
		}
	}
	wg.Wait()
}

// Predict combines per-member scores into one vote. Each member's score
// vector is normalized to sum to 1, then scaled by the member's recent
// accuracy unless weighting is disabled.
func (co *Coordinator) Predict(ex learner.Example) []float64 {
	votes := make([]float64, co.cfg.ClassCount)
	for _, m := range co.members {
		scores := m.Predict(ex)
		total := 0.0
		for _, s := range scores {
			total += s
		}
		if total <= 0 {
			continue
		}
		w := 1.0
		if co.cfg.WeightedVote {
			w = m.Weight()
		}
		for i, s := range scores {
			if i >= len(votes) {
				break
			}
			votes[i] += w * s / total
		}
	}
	return votes
}

// Accuracy returns the prequential accuracy of the ensemble vote over the
// trailing window, or 0 before any example was seen.
func (co *Coordinator) Accuracy() float64 {
	co.mu.Lock()
	defer co.mu.Unlock()
	if co.recentN == 0 {
		return 0
	}
	ok := 0
	for i := 0; i < co.recentN; i++ {
		if co.recentOK[i] {
			ok++
		}
	}
	return float64(ok) / float64(co.recentN)
}

func (co *Coordinator) trackVote(ex learner.Example) {
	votes := co.Predict(ex)
	correct := learner.PredictedLabel(votes) == ex.Label

	co.mu.Lock()
	co.recentOK[co.recentPos] = correct
	co.recentPos = (co.recentPos + 1) % len(co.recentOK)
	if co.recentN < len(co.recentOK) {
		co.recentN++
	}
	co.mu.Unlock()
}

// Close stops the worker pool, if any.
func (co *Coordinator) Close() {
	if co.pool != nil {
		co.pool.stop()
	}
}
