package ensemble

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"driftstream/internal/detector"
	"driftstream/internal/learner"
	"driftstream/internal/member"
	"driftstream/internal/window"
)

func validConfig() Config {
	return Config{
		Size:         4,
		ClassCount:   2,
		WorkerPool:   1,
		WeightedVote: true,
		Member: member.Config{
			UseBackground:    true,
			UseDriftDetector: true,
			UseRecurring:     true,
			WarningTimeout:   500,
			Window: window.Config{
				DefaultSize:       50,
				MinSize:           10,
				Increment:         1,
				Policy:            window.PolicyErrorDriven,
				DecisionThreshold: -1,
				RememberSize:      true,
			},
		},
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"zero size", func(c *Config) { c.Size = 0 }, false},
		{"one class", func(c *Config) { c.ClassCount = 1 }, false},
		{"zero min size", func(c *Config) { c.Member.Window.MinSize = 0 }, false},
		{"default below min", func(c *Config) { c.Member.Window.DefaultSize = 5 }, false},
		{"zero increment", func(c *Config) { c.Member.Window.Increment = 0 }, false},
		{"unknown policy", func(c *Config) { c.Member.Window.Policy = 3 }, false},
		{"unknown mechanism", func(c *Config) { c.Member.DecisionMechanism = 3 }, false},
		{"negative timeout", func(c *Config) { c.Member.WarningTimeout = -1 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Size = 0
	_, err := New(cfg, learner.NewNaiveBayes(2, 3), detector.NewDDM(2, 30), detector.NewDDM(3, 30), nil, nil)
	require.Error(t, err)
}

// syntheticExamples builds a deterministic binary stream with one abrupt
// concept switch halfway through.
func syntheticExamples(n int, seed int64) []learner.Example {
	rng := rand.New(rand.NewSource(seed))
	out := make([]learner.Example, 0, n)
	for i := 0; i < n; i++ {
		f := []float64{rng.Float64(), rng.Float64(), rng.Float64()}
		threshold := 0.8
		if i >= n/2 {
			threshold = 1.4
		}
		label := 0
		if f[0]+f[1] > threshold {
			label = 1
		}
		out = append(out, learner.Example{Features: f, Label: label, Weight: 1})
	}
	return out
}

func TestSequentialAndPooledTrainingAgree(t *testing.T) {
	examples := syntheticExamples(1500, 7)

	build := func(workers int) *Coordinator {
		cfg := validConfig()
		cfg.WorkerPool = workers
		co, err := New(cfg, learner.NewNaiveBayes(2, 3), detector.NewDDM(2, 30), detector.NewDDM(3, 30), nil, nil)
		require.NoError(t, err)
		return co
	}

	seq := build(1)
	defer seq.Close()
	pooled := build(4)
	defer pooled.Close()

	for _, ex := range examples {
		seq.Train(ex)
		pooled.Train(ex)
	}

	require.Equal(t, seq.Instances(), pooled.Instances())
	require.Equal(t, seq.Accuracy(), pooled.Accuracy())
	require.Equal(t, seq.History().Size(), pooled.History().Size())
	for i := range seq.Members() {
		sm, pm := seq.Members()[i], pooled.Members()[i]
		require.Equal(t, sm.Warnings(), pm.Warnings(), "member %d warnings", i)
		require.Equal(t, sm.Drifts(), pm.Drifts(), "member %d drifts", i)
		require.Equal(t, sm.FalseAlarms(), pm.FalseAlarms(), "member %d false alarms", i)
		require.Equal(t, sm.State(), pm.State(), "member %d state", i)
	}
}

func TestPredictCombinesMemberVotes(t *testing.T) {
	cfg := validConfig()
	cfg.Size = 3
	cfg.WeightedVote = false
	cfg.Member.UseBackground = false
	cfg.Member.UseDriftDetector = false

	co, err := New(cfg, learner.NewMajorityClass(2), nil, nil, nil, nil)
	require.NoError(t, err)
	defer co.Close()

	ex := learner.Example{Features: []float64{1, 2, 3}, Label: 1, Weight: 1}
	for i := 0; i < 50; i++ {
		co.Train(ex)
	}

	votes := co.Predict(ex)
	require.Len(t, votes, 2)
	require.Equal(t, 1, learner.PredictedLabel(votes))
	require.InDelta(t, 3.0, votes[1], 1e-9, "three unweighted normalized votes for class 1")
	require.Equal(t, 0.0, votes[0])

	// The first vote predates any training and misses; the rest hit.
	require.InDelta(t, 49.0/50.0, co.Accuracy(), 1e-9)
}

func TestTrainAfterCloseDoesNotBlock(t *testing.T) {
	cfg := validConfig()
	cfg.WorkerPool = 4
	co, err := New(cfg, learner.NewNaiveBayes(2, 3), detector.NewDDM(2, 30), detector.NewDDM(3, 30), nil, nil)
	require.NoError(t, err)

	ex := learner.Example{Features: []float64{0.1, 0.2, 0.3}, Label: 0, Weight: 1}
	co.Train(ex)
	co.Close()

	done := make(chan struct{})
	go func() {
		co.Train(ex)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Train blocked on a stopped worker pool")
	}
}

func TestEnsembleLearnsThroughDrift(t *testing.T) {
	if testing.Short() {
		t.Skip("integration-scale stream")
	}

	cfg := validConfig()
	cfg.Size = 5
	co, err := New(cfg, learner.NewNaiveBayes(2, 3), detector.NewDDM(2, 30), detector.NewDDM(3, 30), nil, nil)
	require.NoError(t, err)
	defer co.Close()

	for _, ex := range syntheticExamples(3000, 11) {
		co.Train(ex)
	}

	require.EqualValues(t, 3000, co.Instances())
	require.Greater(t, co.Accuracy(), 0.6, "trailing accuracy after the concept switch")
}
