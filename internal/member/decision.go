package member

import (
	"github.com/rs/zerolog/log"

	"driftstream/internal/concept"
)

type actionKind int

const (
	actFalseAlarm actionKind = iota
	actBackground
	actRecurring
	actColdReset
)

type action struct {
	kind   actionKind
	target *concept.Concept
}

// confirmDrift runs the recurrence decision once per confirmed drift signal.
// A promotion that loses the history race is retried with the lost concept
// treated as no longer applicable.
func (m *Member) confirmDrift() {
	excluded := make(map[int64]bool)

	for {
		act := m.decide(excluded)

		switch act.kind {
		case actFalseAlarm:
			// The comparison says nothing beats the incumbent: the
			// drift detector was too eager. Keep the warning (and
			// the background learner) alive, restart only the
			// drift detector.
			m.falseAlarms++
			m.drift = m.driftTpl.Copy()
			errNow := m.WindowedError()
			log.Info().Int("member", m.id).Int64("instances", m.instances).Msg("drift signal retracted by comparison")
			m.emitEvent(EventFalseAlarmComparison, errNow, 0)
			return

		case actRecurring:
			id := act.target.HistoryID()
			c, ok := m.history.Take(m.group, id)
			if !ok {
				// Lost to a concurrent promotion.
				excluded[id] = true
				continue
			}
			m.promoteRecurring(c)
			return

		case actBackground:
			m.promoteBackground()
			return

		case actColdReset:
			m.coldReset()
			return
		}
	}
}

// decide applies the configured decision mechanism. excluded marks concepts
// that lost a history race during this confirmation and must be ignored.
func (m *Member) decide(excluded map[int64]bool) action {
	activeErr := m.WindowedError()

	hasBg := m.background != nil && m.cmpWin != nil && m.cmpWin.ContainsIndex(m.id)
	bgErr := 1.0
	if hasBg {
		if e, err := m.cmpWin.ErrorFraction(m.id); err == nil {
			bgErr = e
		}
	}

	best, bestErr, hasBest := m.bestApplicable(excluded)

	switch m.cfg.DecisionMechanism {
	case 1:
		if !hasBg {
			return action{kind: actFalseAlarm}
		}
		if hasBest && bestErr < bgErr {
			return action{kind: actRecurring, target: best}
		}
		return action{kind: actBackground}

	case 2:
		if !hasBg {
			// Detector fired before a warning ever opened; no
			// comparison is possible, so reset cold. See DESIGN.md.
			return action{kind: actColdReset}
		}
		if activeErr <= bgErr {
			if hasBest && bestErr < activeErr {
				return action{kind: actRecurring, target: best}
			}
			return action{kind: actFalseAlarm}
		}
		if hasBest && bestErr < bgErr {
			return action{kind: actRecurring, target: best}
		}
		return action{kind: actBackground}

	default: // mechanism 0
		if !hasBg {
			return action{kind: actColdReset}
		}
		if hasBest && bestErr < bgErr {
			return action{kind: actRecurring, target: best}
		}
		return action{kind: actBackground}
	}
}

// bestApplicable ranks the snapshot concepts by windowed error, ties broken
// by lowest history id for determinism.
func (m *Member) bestApplicable(excluded map[int64]bool) (*concept.Concept, float64, bool) {
	if !m.cfg.UseRecurring {
		return nil, 0, false
	}

	var best *concept.Concept
	bestErr := 0.0
	for _, c := range m.snapshot {
		id := c.HistoryID()
		if excluded[id] || !c.Applicable(m.id) {
			continue
		}
		e, err := c.ComparisonError(m.id)
		if err != nil {
			continue
		}
		if best == nil || e < bestErr || (e == bestErr && id < best.HistoryID()) {
			best = c
			bestErr = e
		}
	}
	return best, bestErr, best != nil
}

// promoteBackground commits the pending snapshot and makes the background
// learner the active model.
func (m *Member) promoteBackground() {
	bgErr := 0.5
	if e, err := m.cmpWin.ErrorFraction(m.id); err == nil {
		bgErr = e
	}
	archived := m.commitPending()
	m.active = m.background.active
	m.finishDrift(bgErr, EventDriftBackground, archived)
}

// promoteRecurring commits the pending snapshot and reactivates an archived
// concept already removed from history by the caller.
func (m *Member) promoteRecurring(c *concept.Concept) {
	cErr := 0.5
	if e, err := c.ComparisonError(m.id); err == nil {
		cErr = e
	}
	m.commitPending()
	m.active = c.TakeModel()
	m.finishDrift(cErr, EventDriftRecurring, c.HistoryID())
}

// coldReset handles a drift confirmed with no background learner available:
// no comparison is possible, so the active model starts over in place.
func (m *Member) coldReset() {
	archived := m.commitPending()
	errNow := m.WindowedError()
	m.active.Reset()
	m.finishDrift(errNow, EventDriftColdReset, archived)
}

// commitPending archives the warning-open snapshot, assigning its history id.
// Returns the id, or 0 when no snapshot exists (drift without warning).
func (m *Member) commitPending() int64 {
	if m.pending == nil || m.history == nil {
		return 0
	}
	id := m.history.Commit(m.pending, m.group)
	m.pending = nil
	return id
}

// finishDrift tears down the warning apparatus, reseeds the member's own
// error window with the promoted model's estimate, and restarts detectors.
func (m *Member) finishDrift(promotedErr float64, t EventType, historyID int64) {
	m.drifts++
	m.discardComparisons()
	m.background = nil
	m.pending = nil

	m.win.DeleteModel(m.id)
	m.win.AddModel(m.id, promotedErr, 0)

	if m.driftTpl != nil && m.cfg.UseDriftDetector {
		m.drift = m.driftTpl.Copy()
	}
	if m.warnTpl != nil && m.cfg.UseBackground {
		m.warn = m.warnTpl.Copy()
	}

	m.state = StateStable
	m.sinceWarning = 0

	log.Info().
		Int("member", m.id).
		Int64("instances", m.instances).
		Str("kind", string(t)).
		Int64("history_id", historyID).
		Float64("promoted_error", promotedErr).
		Msg("drift confirmed")
	m.emitEvent(t, promotedErr, historyID)
}
