package learner

// MajorityClass predicts the most frequent label seen so far. It is mainly a
// baseline for tests and sanity checks.
type MajorityClass struct {
	classCount int
	counts     []float64
}

// NewMajorityClass creates a baseline classifier for the given class count.
func NewMajorityClass(classCount int) *MajorityClass {
	return &MajorityClass{classCount: classCount, counts: make([]float64, classCount)}
}

func (m *MajorityClass) Train(ex Example) {
	if ex.Label < 0 || ex.Label >= m.classCount {
		return
	}
	w := ex.Weight
	if w <= 0 {
		w = 1
	}
	m.counts[ex.Label] += w
}

func (m *MajorityClass) Predict(Example) []float64 {
	total := 0.0
	for _, c := range m.counts {
		total += c
	}
	scores := make([]float64, m.classCount)
	if total == 0 {
		return scores
	}
	for i, c := range m.counts {
		scores[i] = c / total
	}
	return scores
}

func (m *MajorityClass) Copy() Classifier {
	return &MajorityClass{classCount: m.classCount, counts: append([]float64(nil), m.counts...)}
}

func (m *MajorityClass) Reset() {
	m.counts = make([]float64, m.classCount)
}
