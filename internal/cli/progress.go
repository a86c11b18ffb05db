package cli

import (
	"fmt"
	"io"
)

// ProgressPrinter writes "\rProgress: N%" each time the whole percentage grows.
type ProgressPrinter struct {
	w    io.Writer
	last int
}

// NewProgressPrinter starts below zero so 0% is printed.
func NewProgressPrinter(w io.Writer) *ProgressPrinter {
	return &ProgressPrinter{w: w, last: -1}
}

// Update receives the completed fraction of the running stage.
func (p *ProgressPrinter) Update(fraction float64) {
	percent := int(100 * fraction)
	if percent > p.last {
		p.last = percent
		fmt.Fprintf(p.w, "\rProgress: %d%%", percent)
	}
}

// Done ends the progress line.
func (p *ProgressPrinter) Done() {
	fmt.Fprintln(p.w)
}
