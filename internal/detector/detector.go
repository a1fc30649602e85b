// Package detector defines the binary change-detector capability used to
// watch a member's error stream, plus a DDM-style implementation.
package detector

import "math"

// Detector consumes a stream of correctness bits and latches once the error
// distribution appears to have changed.
type Detector interface {
	// Observe feeds one outcome; incorrect=true is an error bit.
	Observe(incorrect bool)

	// Changed reports whether a change has been signaled. The signal
	// latches until Reset (a Copy starts unlatched).
	Changed() bool

	// Copy returns a fresh, unlatched detector with the same parameters.
	Copy() Detector

	// Reset restores the detector to its initial state.
	Reset()
}

// DDM monitors the running error rate p and its standard deviation s,
// signaling when p+s exceeds the historical minimum of p+s by level standard
// deviations. Lower levels fire earlier; a warning detector typically runs at
// a lower level than a drift detector.
type DDM struct {
	level   float64
	minSeen int

	n       float64
	errors  float64
	pMin    float64
	sMin    float64
	changed bool
}

// NewDDM creates a detector with the given sensitivity level (standard
// deviations above the best observed error rate). minSeen guards against
// firing before the estimate is meaningful; 30 is the usual choice.
func NewDDM(level float64, minSeen int) *DDM {
	d := &DDM{level: level, minSeen: minSeen}
	d.Reset()
	return d
}

func (d *DDM) Observe(incorrect bool) {
	if d.changed {
		return
	}
	d.n++
	if incorrect {
		d.errors++
	}
	if d.n < float64(d.minSeen) {
		return
	}

	p := d.errors / d.n
	s := math.Sqrt(p * (1 - p) / d.n)

	if p+s < d.pMin+d.sMin {
		d.pMin = p
		d.sMin = s
	}
	if p+s > d.pMin+d.level*d.sMin {
		d.changed = true
	}
}

func (d *DDM) Changed() bool { return d.changed }

func (d *DDM) Copy() Detector {
	return NewDDM(d.level, d.minSeen)
}

func (d *DDM) Reset() {
	d.n = 0
	d.errors = 0
	d.pMin = math.Inf(1)
	d.sMin = math.Inf(1)
	d.changed = false
}
