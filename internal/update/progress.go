package update

// Phase is one step of the update sequence with its share of overall
// progress. Weights across a tracker's phases sum to 1.
type Phase struct {
	Name   string
	Weight float64
}

// ProgressFunc receives the overall completed fraction (0..1) and the phase
// that just started or finished.
type ProgressFunc func(fraction float64, phase string)

// Tracker aggregates phase-weighted progress so orchestrators report into a
// small value instead of interleaving UI arithmetic with control flow.
type Tracker struct {
	phases    []Phase
	completed float64
	report    ProgressFunc
}

// NewTracker builds a tracker over the ordered phases. report may be nil.
func NewTracker(phases []Phase, report ProgressFunc) *Tracker {
	return &Tracker{phases: phases, report: report}
}

// Begin announces that a phase is starting, without advancing the fraction.
func (t *Tracker) Begin(name string) {
	if t.report != nil {
		t.report(t.completed, name)
	}
}

// Complete marks the named phase done and reports the new overall fraction.
// Unknown names are ignored.
func (t *Tracker) Complete(name string) {
	for _, p := range t.phases {
		if p.Name == name {
			t.completed += p.Weight
			break
		}
	}
	if t.completed > 1 {
		t.completed = 1
	}
	if t.report != nil {
		t.report(t.completed, name)
	}
}

// Skip marks the named phase as done without reporting a start, used for
// phases the run legitimately bypasses (e.g. migration on a current layout).
func (t *Tracker) Skip(name string) {
	t.Complete(name)
}

// Fraction returns the overall completed fraction.
func (t *Tracker) Fraction() float64 { return t.completed }
