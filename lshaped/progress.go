package lshaped

import (
	"fmt"
	"io"
)

// Progress is the injected reporting sink; engines call Update once
// per iteration (or per timestamp advance, distributed). Tests and
// quiet callers use the no-op default.
type Progress interface {
	Update(iteration int, q, gap float64, cuts int)
}

// nopProgress discards everything.
type nopProgress struct{}

func (nopProgress) Update(int, float64, float64, int) {}

// writerProgress prints one line per update.
type writerProgress struct {
	w io.Writer
}

func (p writerProgress) Update(iteration int, q, gap float64, cuts int) {
	fmt.Fprintf(p.w, "iter %4d  Q %14.6g  gap %12.4g  cuts %d\n", iteration, q, gap, cuts)
}

// newProgress picks the sink for the configured log writer.
func newProgress(w io.Writer) Progress {
	if w == nil {
		return nopProgress{}
	}

	return writerProgress{w: w}
}
