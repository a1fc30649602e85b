// Package learner defines the incremental base-learner capability consumed by
// the ensemble, together with two concrete classifiers: an incremental
// Gaussian naive Bayes model and a majority-class baseline.
//
// A Classifier must be trainable one example at a time; Copy must return an
// independent instance so that training one copy never affects another.
package learner

// Example is one labeled stream instance.
type Example struct {
	Features []float64
	Label    int
	Weight   float64
}

// Classifier is the incremental base-model capability.
type Classifier interface {
	// Train updates the model with one labeled example.
	Train(ex Example)

	// Predict returns one score per class; higher means more likely.
	// The slice length is the number of classes seen so far (at least
	// the configured class count for pre-sized models).
	Predict(ex Example) []float64

	// Copy returns an independent instance with the same learned state.
	Copy() Classifier

	// Reset restores the model to its untrained state.
	Reset()
}

// PredictedLabel returns the argmax of a score vector, or -1 for an empty one.
func PredictedLabel(scores []float64) int {
	if len(scores) == 0 {
		return -1
	}
	best := 0
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[best] {
			best = i
		}
	}
	return best
}
