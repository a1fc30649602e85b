// Package member implements one ensemble slot: an active model, its warning
// and drift detectors, the optional background learner grown during a warning
// period, and the decision procedure that picks the next active model when a
// drift is confirmed.
package member

import (
	"time"

	"github.com/rs/zerolog/log"

	"driftstream/internal/concept"
	"driftstream/internal/detector"
	"driftstream/internal/learner"
	"driftstream/internal/topology"
	"driftstream/internal/window"
)

// State is the member lifecycle state.
type State int

const (
	StateStable State = iota
	StateWarning
)

// Config tunes one member. Validation happens at ensemble construction.
type Config struct {
	// UseBackground enables the warning detector and the background
	// learner grown during warning periods.
	UseBackground bool

	// UseDriftDetector enables the drift detector. Without it the member
	// never transitions.
	UseDriftDetector bool

	// UseRecurring enables comparison against archived concepts.
	UseRecurring bool

	// DecisionMechanism selects the recurrence decision procedure (0-2).
	DecisionMechanism int

	// WarningTimeout bounds a warning period in examples; past it the
	// warning is declared a false alarm. 0 disables the bound.
	WarningTimeout int

	// Window configures every estimator the member creates.
	Window window.Config

	// RecentSize is the number of recent feature vectors retained for
	// topology grouping.
	RecentSize int
}

// Member owns one ensemble slot. ProcessExample and the accessors are not
// safe for concurrent use on the same member; the coordinator guarantees one
// goroutine per member per example. Cross-member state (concept history,
// comparison windows) is internally synchronized.
type Member struct {
	id  int
	cfg Config

	active     learner.Classifier
	background *Member

	warnTpl  detector.Detector
	driftTpl detector.Detector
	warn     detector.Detector
	drift    detector.Detector

	win    *window.Estimator // own recent error, index = id
	cmpWin *window.Estimator // background comparison during a warning

	pending  *concept.Concept
	snapshot []*concept.Concept
	history  *concept.History
	grouper  topology.Grouper
	group    string

	recent [][]float64

	state        State
	sinceWarning int
	instances    int64
	errBefore    float64 // windowed error before the current example landed

	createdAt   time.Time
	warnings    int
	drifts      int
	falseAlarms int

	emit Emitter
}

// New creates a member for slot id. warnTpl and driftTpl are detector
// templates copied at creation and at every reset; either may be nil when the
// corresponding flag in cfg is off. history is the shared concept store and
// grouper the optional topology capability (nil for a flat history).
func New(id int, cfg Config, model learner.Classifier, warnTpl, driftTpl detector.Detector, history *concept.History, grouper topology.Grouper, emit Emitter) *Member {
	if cfg.RecentSize <= 0 {
		cfg.RecentSize = 32
	}
	m := &Member{
		id:        id,
		cfg:       cfg,
		active:    model,
		warnTpl:   warnTpl,
		driftTpl:  driftTpl,
		history:   history,
		grouper:   grouper,
		group:     concept.DefaultGroup,
		createdAt: time.Now(),
		emit:      emit,
	}
	if cfg.UseBackground && warnTpl != nil {
		m.warn = warnTpl.Copy()
	}
	if cfg.UseDriftDetector && driftTpl != nil {
		m.drift = driftTpl.Copy()
	}
	m.win = window.New(cfg.Window)
	m.win.AddModel(id, 0.5, 0)
	return m
}

// ID returns the stable slot index.
func (m *Member) ID() int { return m.id }

// State returns the current lifecycle state.
func (m *Member) State() State { return m.state }

// HasBackground reports whether a background learner is currently training.
func (m *Member) HasBackground() bool { return m.background != nil }

// Warnings returns the number of warnings opened so far.
func (m *Member) Warnings() int { return m.warnings }

// Drifts returns the number of confirmed drifts so far.
func (m *Member) Drifts() int { return m.drifts }

// FalseAlarms returns the number of retracted signals so far.
func (m *Member) FalseAlarms() int { return m.falseAlarms }

// Predict scores an example with the active model.
func (m *Member) Predict(ex learner.Example) []float64 {
	return m.active.Predict(ex)
}

// WindowedError returns the member's own recent error estimate.
func (m *Member) WindowedError() float64 {
	errFrac, err := m.win.ErrorFraction(m.id)
	if err != nil {
		return 0.5
	}
	return errFrac
}

// Weight returns the vote weight derived from recent accuracy.
func (m *Member) Weight() float64 {
	return 1 - m.WindowedError()
}

// ProcessExample runs the full per-example step: score, update estimators,
// train the active (and background) model, feed the detectors, and take at
// most one state transition. Returns whether the active model was correct
// before training (prequential outcome).
func (m *Member) ProcessExample(ex learner.Example) bool {
	m.instances++

	scores := m.active.Predict(ex)
	correct := learner.PredictedLabel(scores) == ex.Label

	m.recordOwn(correct)
	m.active.Train(ex)
	m.pushRecent(ex.Features)

	if m.state == StateWarning {
		m.trainComparisons(ex)
	}

	m.observeDetectors(correct)
	return correct
}

func (m *Member) recordOwn(correct bool) {
	before, _ := m.win.ErrorFraction(m.id)
	m.errBefore = before
	if err := m.win.RecordResult(m.id, correct); err != nil {
		return
	}
	after, _ := m.win.ErrorFraction(m.id)
	m.win.Resize(after - before)
}

func (m *Member) pushRecent(features []float64) {
	if m.grouper == nil {
		return
	}
	f := append([]float64(nil), features...)
	m.recent = append(m.recent, f)
	if len(m.recent) > m.cfg.RecentSize {
		m.recent = m.recent[1:]
	}
}

// trainComparisons feeds the current example to the background learner and
// every archived concept under comparison, on their own copies of the stream
// from the point the warning opened.
func (m *Member) trainComparisons(ex learner.Example) {
	if m.background != nil {
		bgCorrect := m.background.ProcessExample(ex)
		if m.cmpWin != nil {
			before, _ := m.cmpWin.ErrorFraction(m.id)
			if err := m.cmpWin.RecordResult(m.id, bgCorrect); err == nil {
				after, _ := m.cmpWin.ErrorFraction(m.id)
				m.cmpWin.Resize(after - before)
			}
		}
	}
	for _, c := range m.snapshot {
		if !c.Applicable(m.id) {
			continue
		}
		if err := c.ObserveAndTrain(m.id, m.instances, ex); err != nil {
			log.Debug().Err(err).Int("member", m.id).Int64("history_id", c.HistoryID()).Msg("comparison update skipped")
		}
	}
}

func (m *Member) observeDetectors(correct bool) {
	if m.drift != nil {
		m.drift.Observe(!correct)
		if m.drift.Changed() {
			m.confirmDrift()
			return
		}
	}

	switch m.state {
	case StateStable:
		if m.warn != nil {
			m.warn.Observe(!correct)
			if m.warn.Changed() {
				m.openWarning()
			}
		}
	case StateWarning:
		m.sinceWarning++
		if m.cfg.WarningTimeout > 0 && m.sinceWarning >= m.cfg.WarningTimeout {
			m.falseAlarmTimeout()
		}
	}
}

// openWarning snapshots the active model, grows a fresh background learner,
// and registers every eligible archived concept for live comparison.
func (m *Member) openWarning() {
	m.warnings++
	errNow := m.errBefore // error of the active model just before the trigger
	seed := m.win.WindowSizeOf(m.id)

	m.pending = concept.NewSnapshot(m.id, m.active.Copy(), m.instances, errNow)

	bg := m.active.Copy()
	bg.Reset()
	m.background = newBackground(m.id, m.cfg, bg, errNow)

	m.cmpWin = window.New(m.cfg.Window)
	m.cmpWin.AddModel(m.id, errNow, seed)

	m.group = concept.DefaultGroup
	if m.grouper != nil {
		if g, ok := m.grouper.ClosestGroup(m.recent); ok {
			m.group = g
		}
	}

	if m.cfg.UseRecurring && m.history != nil {
		m.snapshot = m.history.Snapshot(m.group)
		for _, c := range m.snapshot {
			c.RegisterComparer(m.id, errNow, seed, m.cfg.Window)
		}
	}

	m.warn.Reset()
	m.sinceWarning = 0
	m.state = StateWarning

	log.Info().
		Int("member", m.id).
		Int64("instances", m.instances).
		Float64("error", errNow).
		Int("candidates", len(m.snapshot)).
		Str("group", m.group).
		Msg("warning opened")
	m.emitEvent(EventWarningOpened, errNow, 0)
}

// newBackground builds the nested member that trains during a warning. It
// carries no detectors and no history access; it only learns and tracks its
// own error.
func newBackground(id int, cfg Config, model learner.Classifier, prior float64) *Member {
	bgCfg := cfg
	bgCfg.UseBackground = false
	bgCfg.UseDriftDetector = false
	bgCfg.UseRecurring = false
	bg := &Member{
		id:        id,
		cfg:       bgCfg,
		active:    model,
		group:     concept.DefaultGroup,
		createdAt: time.Now(),
	}
	bg.win = window.New(cfg.Window)
	bg.win.AddModel(id, prior, 0)
	return bg
}

// falseAlarmTimeout closes a warning that ran past the example limit with no
// confirmed drift. The background learner and pending snapshot are discarded
// and the warning detector starts over.
func (m *Member) falseAlarmTimeout() {
	m.discardComparisons()
	m.background = nil
	m.pending = nil
	m.state = StateStable
	m.sinceWarning = 0
	m.falseAlarms++
	if m.warnTpl != nil && m.cfg.UseBackground {
		m.warn = m.warnTpl.Copy()
	}

	errNow := m.WindowedError()
	log.Info().Int("member", m.id).Int64("instances", m.instances).Float64("error", errNow).Msg("warning timed out, false alarm")
	m.emitEvent(EventFalseAlarmTimeout, errNow, 0)
}

func (m *Member) discardComparisons() {
	for _, c := range m.snapshot {
		c.DeregisterComparer(m.id)
	}
	m.snapshot = nil
	m.cmpWin = nil
}

func (m *Member) emitEvent(t EventType, errFrac float64, historyID int64) {
	if m.emit == nil {
		return
	}
	m.emit(Event{
		Type:      t,
		MemberID:  m.id,
		Instances: m.instances,
		Error:     errFrac,
		HistoryID: historyID,
		Group:     m.group,
	})
}
