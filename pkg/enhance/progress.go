package enhance

// ProgressFunc receives the completed fraction of a filter in [0, 1].
type ProgressFunc func(fraction float64)

// progress maps sub-stage fractions onto the overall range of a filter and
// never reports a value lower than one already reported.
type progress struct {
	fn   ProgressFunc
	last float64
}

func newProgress(fn ProgressFunc) *progress {
	return &progress{fn: fn, last: -1}
}

func (p *progress) report(fraction float64) {
	if p.fn == nil {
		return
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction < 0 {
		fraction = 0
	}
	if fraction <= p.last {
		return
	}
	p.last = fraction
	p.fn(fraction)
}

// stage returns a reporter for the span [start, start+span] of the whole.
func (p *progress) stage(start, span float64) func(float64) {
	return func(f float64) {
		p.report(start + span*f)
	}
}
