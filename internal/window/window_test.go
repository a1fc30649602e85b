package window

import (
	"errors"
	"testing"
)

func TestErrorFractionUsesPriorBeforeResults(t *testing.T) {
	e := New(Config{DefaultSize: 10, MinSize: 2, Increment: 1, Policy: PolicyFixed})
	e.AddModel(0, 0.4, 0)

	got, err := e.ErrorFraction(0)
	if err != nil {
		t.Fatalf("ErrorFraction failed: %v", err)
	}
	if got != 0.4 {
		t.Errorf("expected seeded prior 0.4, got %f", got)
	}
}

func TestErrorFractionOverWindow(t *testing.T) {
	e := New(Config{DefaultSize: 10, MinSize: 2, Increment: 1, Policy: PolicyFixed})
	e.AddModel(0, 0.5, 10)

	// 10 outcomes, 3 of them incorrect: the prior no longer participates.
	outcomes := []bool{true, true, false, true, true, false, true, true, false, true}
	for _, correct := range outcomes {
		if err := e.RecordResult(0, correct); err != nil {
			t.Fatalf("RecordResult failed: %v", err)
		}
	}

	got, err := e.ErrorFraction(0)
	if err != nil {
		t.Fatalf("ErrorFraction failed: %v", err)
	}
	if got != 0.3 {
		t.Errorf("expected 0.3, got %f", got)
	}
}

func TestUnknownIndex(t *testing.T) {
	e := New(Config{DefaultSize: 10, MinSize: 2, Increment: 1})

	if err := e.RecordResult(7, true); !errors.Is(err, ErrUnknownIndex) {
		t.Errorf("RecordResult: expected ErrUnknownIndex, got %v", err)
	}
	if _, err := e.ErrorFraction(7); !errors.Is(err, ErrUnknownIndex) {
		t.Errorf("ErrorFraction: expected ErrUnknownIndex, got %v", err)
	}
}

func TestResultsSlideWithWindow(t *testing.T) {
	e := New(Config{DefaultSize: 4, MinSize: 2, Increment: 1, Policy: PolicyFixed})
	e.AddModel(0, 0.5, 4)

	// 4 incorrect, then 4 correct: only the trailing 4 remain.
	for i := 0; i < 4; i++ {
		e.RecordResult(0, false)
	}
	for i := 0; i < 4; i++ {
		e.RecordResult(0, true)
	}

	got, _ := e.ErrorFraction(0)
	if got != 0 {
		t.Errorf("expected 0 over trailing window, got %f", got)
	}
}

func TestWindowNeverShrinksBelowMin(t *testing.T) {
	e := New(Config{DefaultSize: 4, MinSize: 2, Increment: 1, Policy: PolicyErrorDriven})
	e.AddModel(0, 0.1, 4)

	for i := 0; i < 4; i++ {
		e.RecordResult(0, false)
	}
	for i := 0; i < 10; i++ {
		e.Resize(0.5)
	}

	if size := e.WindowSizeOf(0); size != 2 {
		t.Errorf("expected window clamped at min size 2, got %d", size)
	}
}

func TestWindowGrowsWhenStabilizing(t *testing.T) {
	e := New(Config{DefaultSize: 4, MinSize: 2, Increment: 3, Policy: PolicyErrorDriven})
	e.AddModel(0, 0.5, 4)

	e.Resize(-0.1)
	e.Resize(-0.1)

	if size := e.WindowSizeOf(0); size != 10 {
		t.Errorf("expected 4+2*3=10 after two growth steps, got %d", size)
	}
}

func TestPolicyFixedIgnoresResize(t *testing.T) {
	e := New(Config{DefaultSize: 4, MinSize: 2, Increment: 1, Policy: PolicyFixed})
	e.AddModel(0, 0.1, 4)

	for i := 0; i < 4; i++ {
		e.RecordResult(0, false)
	}
	e.Resize(-0.1)
	e.Resize(0.5)

	if size := e.WindowSizeOf(0); size != 4 {
		t.Errorf("expected fixed size 4, got %d", size)
	}
}

func TestThresholdGateBlocksLowConfidenceResize(t *testing.T) {
	cfg := Config{DefaultSize: 10, MinSize: 2, Increment: 1, Policy: PolicyThresholdGated, DecisionThreshold: 0.9}
	e := New(cfg)
	e.AddModel(0, 0.5, 10)

	// Two results in a window of ten: confidence |1-0.5|*2/10 = 0.1.
	e.RecordResult(0, false)
	e.RecordResult(0, false)
	e.Resize(-0.1)

	if size := e.WindowSizeOf(0); size != 10 {
		t.Errorf("expected gate to block the resize, got size %d", size)
	}

	// A threshold of -1 disables the gate entirely.
	cfg.DecisionThreshold = -1
	e2 := New(cfg)
	e2.AddModel(0, 0.5, 10)
	e2.RecordResult(0, false)
	e2.RecordResult(0, false)
	e2.Resize(-0.1)

	if size := e2.WindowSizeOf(0); size != 11 {
		t.Errorf("expected ungated resize to grow to 11, got %d", size)
	}
}

func TestRememberSizeSurvivesReRegistration(t *testing.T) {
	e := New(Config{DefaultSize: 5, MinSize: 2, Increment: 1, Policy: PolicyErrorDriven, RememberSize: true})
	e.AddModel(0, 0.5, 8)
	e.DeleteModel(0)
	e.AddModel(0, 0.5, 3)

	if size := e.WindowSizeOf(0); size != 8 {
		t.Errorf("expected remembered size 8, got %d", size)
	}

	e2 := New(Config{DefaultSize: 5, MinSize: 2, Increment: 1, Policy: PolicyErrorDriven})
	e2.AddModel(0, 0.5, 8)
	e2.DeleteModel(0)
	e2.AddModel(0, 0.5, 3)

	if size := e2.WindowSizeOf(0); size != 3 {
		t.Errorf("expected seed size 3 without remembering, got %d", size)
	}
}

func TestAddModelReRegistrationIsNoop(t *testing.T) {
	e := New(Config{DefaultSize: 10, MinSize: 2, Increment: 1, Policy: PolicyFixed})
	e.AddModel(0, 0.5, 5)
	e.RecordResult(0, false)

	e.AddModel(0, 0.9, 50)

	if size := e.WindowSizeOf(0); size != 5 {
		t.Errorf("re-registration changed size to %d", size)
	}
	if got, _ := e.ErrorFraction(0); got != 1 {
		t.Errorf("re-registration discarded results, error now %f", got)
	}
}

func TestModelAccounting(t *testing.T) {
	e := New(Config{DefaultSize: 10, MinSize: 2, Increment: 1})

	if e.AmountOfApplicableModels() != 0 {
		t.Fatal("expected no models on a fresh estimator")
	}
	e.AddModel(3, 0.5, 0)
	e.AddModel(8, 0.5, 0)

	if !e.ContainsIndex(3) || !e.ContainsIndex(8) {
		t.Error("expected registered indices to be contained")
	}
	if e.ContainsIndex(4) {
		t.Error("expected unregistered index to be absent")
	}
	if got := e.AmountOfApplicableModels(); got != 2 {
		t.Errorf("expected 2 models, got %d", got)
	}

	e.DeleteModel(3)
	if e.ContainsIndex(3) {
		t.Error("expected deleted index to be absent")
	}
	if got := e.AmountOfApplicableModels(); got != 1 {
		t.Errorf("expected 1 model after delete, got %d", got)
	}
}
