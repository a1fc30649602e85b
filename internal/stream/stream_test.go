package stream

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"driftstream/internal/learner"
)

func collect(t *testing.T, s Source, capacity int) ([]learner.Example, []error) {
	t.Helper()
	out := make(chan learner.Example, capacity)
	errs := make(chan error, capacity)

	if err := s.Stream(context.Background(), out, errs); err != nil {
		t.Fatalf("Stream failed: %v", err)
	}
	close(out)
	close(errs)

	var examples []learner.Example
	for ex := range out {
		examples = append(examples, ex)
	}
	var streamErrs []error
	for err := range errs {
		streamErrs = append(streamErrs, err)
	}
	return examples, streamErrs
}

func TestSyntheticLabelsFollowThreshold(t *testing.T) {
	s := &Synthetic{FeatureCount: 3, Thresholds: []float64{0.9}, SwitchEvery: 100, Limit: 200, Seed: 42}
	examples, errs := collect(t, s, 256)

	if len(errs) != 0 {
		t.Fatalf("unexpected stream errors: %v", errs)
	}
	if len(examples) != 200 {
		t.Fatalf("got %d examples, want 200", len(examples))
	}
	for i, ex := range examples {
		if len(ex.Features) != 3 {
			t.Fatalf("example %d has %d features, want 3", i, len(ex.Features))
		}
		want := 0
		if ex.Features[0]+ex.Features[1] > 0.9 {
			want = 1
		}
		if ex.Label != want {
			t.Fatalf("example %d label = %d, want %d", i, ex.Label, want)
		}
	}
}

func TestSyntheticIsDeterministicPerSeed(t *testing.T) {
	gen := func(seed int64) []learner.Example {
		s := &Synthetic{FeatureCount: 2, Limit: 50, Seed: seed}
		examples, _ := collect(t, s, 64)
		return examples
	}

	a, b := gen(7), gen(7)
	for i := range a {
		if a[i].Label != b[i].Label || a[i].Features[0] != b[i].Features[0] {
			t.Fatal("same seed produced different streams")
		}
	}
}

func TestSyntheticHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := &Synthetic{FeatureCount: 2}
	err := s.Stream(ctx, make(chan learner.Example), make(chan error, 1))
	if err != context.Canceled {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestCSVReplaySkipsHeaderAndBadRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	content := "f1,f2,label\n0.1,0.2,0\nbad,0.3,1\n0.4,0.5,1\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	examples, errs := collect(t, &CSV{Path: path}, 16)

	if len(examples) != 2 {
		t.Fatalf("got %d examples, want 2", len(examples))
	}
	if examples[0].Features[0] != 0.1 || examples[0].Label != 0 {
		t.Errorf("first example = %+v", examples[0])
	}
	if examples[1].Features[1] != 0.5 || examples[1].Label != 1 {
		t.Errorf("second example = %+v", examples[1])
	}
	if examples[0].Weight != 1 {
		t.Errorf("weight = %f, want 1", examples[0].Weight)
	}
	if len(errs) != 1 {
		t.Errorf("got %d row errors, want 1 for the malformed row", len(errs))
	}
}

func TestCSVMissingFile(t *testing.T) {
	src := &CSV{Path: filepath.Join(t.TempDir(), "absent.csv")}
	err := src.Stream(context.Background(), make(chan learner.Example, 1), make(chan error, 1))
	if err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestParseRow(t *testing.T) {
	tests := []struct {
		name   string
		record []string
		ok     bool
	}{
		{"valid", []string{"0.5", "1.5", "1"}, true},
		{"single field", []string{"1"}, false},
		{"bad feature", []string{"x", "1"}, false},
		{"bad label", []string{"0.5", "x"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ex, err := parseRow(tt.record)
			if tt.ok {
				if err != nil {
					t.Fatalf("parseRow failed: %v", err)
				}
				if len(ex.Features) != len(tt.record)-1 {
					t.Errorf("got %d features, want %d", len(ex.Features), len(tt.record)-1)
				}
			} else if err == nil {
				t.Error("expected a parse error")
			}
		})
	}
}
