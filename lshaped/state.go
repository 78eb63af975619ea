package lshaped

import (
	"container/heap"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/jandelmi/lshaped/hyperplane"
)

// committeeRow pairs an active-pool cut with its current master row
// index so evictions can delete the row.
type committeeRow struct {
	cut *hyperplane.Hyperplane
	row int
}

// violatedCut is one revived candidate, keyed by violation magnitude.
type violatedCut struct {
	cut       *hyperplane.Hyperplane
	violation float64
}

// violationQueue is a max-heap over violation magnitude: the most
// violated evicted cut is reinserted first.
type violationQueue []violatedCut

func (q violationQueue) Len() int            { return len(q) }
func (q violationQueue) Less(i, j int) bool  { return q[i].violation > q[j].violation }
func (q violationQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *violationQueue) Push(x interface{}) { *q = append(*q, x.(violatedCut)) }
func (q *violationQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]

	return item
}

// state is the mutable solver record shared by the engine variants.
type state struct {
	nx int // first-stage columns
	nb int // θ slots

	c            []float64
	x            []float64
	thetas       []float64
	mastervector []float64
	xi           []float64

	q      float64 // sampled upper value at the last evaluated point
	qtilde float64 // incumbent value
	lower  float64 // current lower model c·x + Σθ

	cuts      []*hyperplane.Hyperplane
	committee []committeeRow
	inactive  []*hyperplane.Hyperplane
	violating violationQueue

	qHist      []float64
	thetaHist  []float64
	qtildeHist []float64
	deltaHist  []float64
}

func newState(c []float64, nb int) *state {
	st := &state{
		nx:     len(c),
		nb:     nb,
		c:      append([]float64(nil), c...),
		thetas: make([]float64, nb),
		q:      math.Inf(1),
		qtilde: math.Inf(1),
		lower:  math.Inf(-1),
	}
	for k := range st.thetas {
		st.thetas[k] = hyperplane.SentinelFloor
	}

	return st
}

// sumThetas folds the θ mirror into the lower-model tail; any slot at
// the sentinel floor makes the whole sum unpopulated (−∞).
func (st *state) sumThetas() float64 {
	var sum float64
	for _, th := range st.thetas {
		if !hyperplane.Populated(th) {
			return math.Inf(-1)
		}
		sum += th
	}

	return sum
}

// cDotX is the first-stage cost at the current point.
func (st *state) cDotX(x []float64) float64 {
	return floats.Dot(st.c, x[:st.nx])
}

// record appends one iteration to the histories; an unpopulated lower
// model is stored as the sentinel floor.
func (st *state) record(delta float64, withDelta bool) {
	st.qHist = append(st.qHist, st.q)
	st.qtildeHist = append(st.qtildeHist, st.qtilde)
	lo := st.lower
	if math.IsInf(lo, -1) {
		lo = hyperplane.SentinelFloor
	}
	st.thetaHist = append(st.thetaHist, lo)
	if withDelta {
		st.deltaHist = append(st.deltaHist, delta)
	}
}

// PopulatedHistory strips sentinel-floor entries from a history
// vector, leaving only the iterations where the value was meaningful.
// Plotting consumers use it on the θ history, whose early entries
// record the −∞ proxy.
func PopulatedHistory(hist []float64) []float64 {
	out := make([]float64, 0, len(hist))
	for _, v := range hist {
		if hyperplane.Populated(v) {
			out = append(out, v)
		}
	}

	return out
}

// queueViolated scans the evicted pool for cuts the current point
// violates and stages them, most violated first, for reinsertion.
func (st *state) queueViolated(tol float64) {
	kept := st.inactive[:0]
	for _, cut := range st.inactive {
		if cut.Violated(st.x, st.thetas, tol) {
			gap := cut.Gap(st.x, st.thetas)
			heap.Push(&st.violating, violatedCut{cut: cut, violation: -gap})
		} else {
			kept = append(kept, cut)
		}
	}
	st.inactive = kept
}

// popViolated drains the staged queue in priority order.
func (st *state) popViolated() []*hyperplane.Hyperplane {
	if st.violating.Len() == 0 {
		return nil
	}
	out := make([]*hyperplane.Hyperplane, 0, st.violating.Len())
	for st.violating.Len() > 0 {
		out = append(out, heap.Pop(&st.violating).(violatedCut).cut)
	}

	return out
}
