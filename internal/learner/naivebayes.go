package learner

import (
	"math"
)

// NaiveBayes is an incremental Gaussian naive Bayes classifier.
// Per-class, per-feature running mean and variance are maintained with
// Welford's algorithm, so a single example can be absorbed in O(features).
type NaiveBayes struct {
	classCount   int
	featureCount int
	classTotals  []float64
	stats        [][]gaussian // [class][feature]
	seen         int64
}

type gaussian struct {
	weight float64
	mean   float64
	m2     float64
}

func (g *gaussian) observe(value, weight float64) {
	g.weight += weight
	delta := value - g.mean
	g.mean += delta * weight / g.weight
	g.m2 += weight * delta * (value - g.mean)
}

func (g *gaussian) variance() float64 {
	if g.weight <= 1 {
		return 1e-6
	}
	v := g.m2 / (g.weight - 1)
	if v < 1e-6 {
		return 1e-6
	}
	return v
}

// NewNaiveBayes creates a classifier pre-sized for the given class and
// feature counts.
func NewNaiveBayes(classCount, featureCount int) *NaiveBayes {
	nb := &NaiveBayes{classCount: classCount, featureCount: featureCount}
	nb.Reset()
	return nb
}

// Train absorbs one labeled example. Examples with an out-of-range label or
// the wrong feature arity are ignored.
func (nb *NaiveBayes) Train(ex Example) {
	if ex.Label < 0 || ex.Label >= nb.classCount || len(ex.Features) != nb.featureCount {
		return
	}
	w := ex.Weight
	if w <= 0 {
		w = 1
	}
	nb.classTotals[ex.Label] += w
	for i, v := range ex.Features {
		nb.stats[ex.Label][i].observe(v, w)
	}
	nb.seen++
}

// Predict returns per-class log-likelihood scores shifted into [0, inf) and
// normalized to sum to 1 when possible.
func (nb *NaiveBayes) Predict(ex Example) []float64 {
	scores := make([]float64, nb.classCount)
	if nb.seen == 0 || len(ex.Features) != nb.featureCount {
		return scores
	}

	total := 0.0
	for _, t := range nb.classTotals {
		total += t
	}

	logs := make([]float64, nb.classCount)
	maxLog := math.Inf(-1)
	for c := 0; c < nb.classCount; c++ {
		if nb.classTotals[c] == 0 {
			logs[c] = math.Inf(-1)
			continue
		}
		l := math.Log(nb.classTotals[c] / total)
		for i, v := range ex.Features {
			g := nb.stats[c][i]
			variance := g.variance()
			diff := v - g.mean
			l += -0.5*math.Log(2*math.Pi*variance) - diff*diff/(2*variance)
		}
		logs[c] = l
		if l > maxLog {
			maxLog = l
		}
	}

	// Convert to posteriors via the log-sum-exp trick.
	sum := 0.0
	for c, l := range logs {
		if math.IsInf(l, -1) {
			continue
		}
		scores[c] = math.Exp(l - maxLog)
		sum += scores[c]
	}
	if sum > 0 {
		for c := range scores {
			scores[c] /= sum
		}
	}
	return scores
}

// Copy returns an independent classifier with identical learned state.
func (nb *NaiveBayes) Copy() Classifier {
	cp := &NaiveBayes{
		classCount:   nb.classCount,
		featureCount: nb.featureCount,
		classTotals:  append([]float64(nil), nb.classTotals...),
		stats:        make([][]gaussian, nb.classCount),
		seen:         nb.seen,
	}
	for c := range nb.stats {
		cp.stats[c] = append([]gaussian(nil), nb.stats[c]...)
	}
	return cp
}

// Reset discards all learned state.
func (nb *NaiveBayes) Reset() {
	nb.classTotals = make([]float64, nb.classCount)
	nb.stats = make([][]gaussian, nb.classCount)
	for c := range nb.stats {
		nb.stats[c] = make([]gaussian, nb.featureCount)
	}
	nb.seen = 0
}
