package stream

import (
	"context"
	"math/rand"

	"github.com/rs/zerolog/log"

	"driftstream/internal/learner"
)

// Synthetic generates a SEA-style binary stream: the label is whether the
// sum of the first two features clears a threshold, and the threshold
// switches on a fixed schedule to produce abrupt concept drift. Cycling
// through a small set of thresholds makes old concepts recur, which is what
// the concept memory is for.
type Synthetic struct {
	FeatureCount int
	Thresholds   []float64 // concepts, cycled in order
	SwitchEvery  int64     // examples per concept
	Noise        float64   // probability of flipping the label
	Limit        int64     // 0 = unbounded
	Seed         int64
}

// Stream emits examples until the context ends or Limit is reached.
func (s *Synthetic) Stream(ctx context.Context, out chan<- learner.Example, errs chan<- error) error {
	thresholds := s.Thresholds
	if len(thresholds) == 0 {
		thresholds = []float64{0.8, 1.2, 0.6}
	}
	switchEvery := s.SwitchEvery
	if switchEvery <= 0 {
		switchEvery = 5000
	}
	features := s.FeatureCount
	if features < 2 {
		features = 3
	}
	rng := rand.New(rand.NewSource(s.Seed))

	var produced int64
	for {
		if s.Limit > 0 && produced >= s.Limit {
			log.Info().Int64("examples", produced).Msg("synthetic stream exhausted")
			return nil
		}

		conceptIdx := int(produced/switchEvery) % len(thresholds)
		threshold := thresholds[conceptIdx]

		f := make([]float64, features)
		for i := range f {
			f[i] = rng.Float64()
		}
		label := 0
		if f[0]+f[1] > threshold {
			label = 1
		}
		if s.Noise > 0 && rng.Float64() < s.Noise {
			label = 1 - label
		}

		select {
		case out <- learner.Example{Features: f, Label: label, Weight: 1}:
			produced++
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
