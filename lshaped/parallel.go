package lshaped

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/jandelmi/lshaped/hyperplane"
	"github.com/jandelmi/lshaped/solver"
	"github.com/jandelmi/lshaped/subproblem"
)

// decision is the coordinator → worker broadcast: evaluate at x_t.
type decision struct {
	t int
	x []float64
}

// cutMessage is the worker → coordinator report for one subproblem at
// one timestamp.
type cutMessage struct {
	t    int
	id   int
	qval float64
	cut  *hyperplane.Hyperplane
}

// shutdownSignal is the poison value on the work channels.
const shutdownSignal = -1

// runDistributed drives the coordinator/worker process model: workers
// own disjoint subproblem subsets and evaluate them at the decisions
// the coordinator broadcasts; the coordinator owns the master, the
// incumbent and the cut pools. The level-set variant advances its
// timestamp once a κ-fraction of the current one has reported (and at
// least one cut per subproblem exists); the others synchronize fully.
func (e *Solver) runDistributed() (Status, error) {
	nWorkers := e.opts.Workers
	if nWorkers > e.nsub {
		nWorkers = e.nsub
	}

	g, ctx := errgroup.WithContext(context.Background())

	// Buffered control channels: the coordinator never blocks sending.
	decCh := make([]chan decision, nWorkers)
	workCh := make([]chan int, nWorkers)
	for w := 0; w < nWorkers; w++ {
		decCh[w] = make(chan decision, e.opts.MaxIter+2)
		workCh[w] = make(chan int, e.opts.MaxIter+2)
	}
	cutqueue := make(chan cutMessage, 4*e.nsub)

	// Disjoint round-robin ownership of the subproblems.
	for w := 0; w < nWorkers; w++ {
		var owned []*subproblem.Subproblem
		for i := w; i < e.nsub; i += nWorkers {
			owned = append(owned, e.subs[i])
		}
		dec, work := decCh[w], workCh[w]
		g.Go(func() error {
			return runWorker(ctx, owned, dec, work, cutqueue)
		})
	}

	status, err := e.coordinate(ctx, decCh, workCh, cutqueue)

	// Cooperative shutdown: poison every worker, discard outstanding
	// cuts until the pool drains.
	for w := 0; w < nWorkers; w++ {
		workCh[w] <- shutdownSignal
	}
	done := make(chan struct{})
	var werr error
	go func() {
		werr = g.Wait()
		close(done)
	}()
	for {
		select {
		case <-cutqueue:
		case <-done:
			if err == nil && werr != nil && status != Unbounded && status != Infeasible {
				status, err = StoppedPrematurely, werr
			}

			return status, err
		}
	}
}

// runWorker evaluates its owned subproblems at each requested
// timestamp. Decisions and work requests for the same timestamp arrive
// in channel order, so pairing them is a map fill.
func runWorker(ctx context.Context, owned []*subproblem.Subproblem, decisions <-chan decision, work <-chan int, cutqueue chan<- cutMessage) error {
	points := make(map[int][]float64)
	for t := range work {
		if t == shutdownSignal {
			return nil
		}
		for {
			if _, ok := points[t]; ok {
				break
			}
			select {
			case d := <-decisions:
				points[d.t] = d.x
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		x := points[t]
		for _, sub := range owned {
			cut, qv, err := sub.Evaluate(x)
			if err != nil {
				return err
			}
			select {
			case cutqueue <- cutMessage{t: t, id: sub.ID(), qval: qv, cut: cut}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		delete(points, t)
	}

	return nil
}

// coordState is the coordinator's per-timestamp bookkeeping.
type coordState struct {
	aggs     map[int]*hyperplane.Aggregator
	subobj   map[int][]float64
	finished map[int]int
	points   map[int][]float64
	received int // raw cut reports, before any bundling
}

// coordinate is the coordinator loop: wait on the cutqueue, drain what
// is ready, advance the timestamp when its quorum is met.
func (e *Solver) coordinate(ctx context.Context, decCh []chan decision, workCh []chan int, cutqueue chan cutMessage) (Status, error) {
	localized := e.variant.localization() != LS
	async := e.variant.localization() == LV

	quorum := e.nsub
	if async {
		quorum = int(math.Ceil(e.opts.Kappa * float64(e.nsub)))
		if quorum < 1 {
			quorum = 1
		}
	}

	cs := &coordState{
		aggs:     make(map[int]*hyperplane.Aggregator),
		subobj:   make(map[int][]float64),
		finished: make(map[int]int),
		points:   make(map[int][]float64),
	}

	broadcast := func(t int) {
		x := append([]float64(nil), e.st.x...)
		cs.points[t] = x
		for w := range decCh {
			decCh[w] <- decision{t: t, x: x}
			workCh[w] <- t
		}
	}

	t := 0
	broadcast(0)

	for {
		var msg cutMessage
		select {
		case msg = <-cutqueue:
		case <-ctx.Done():
			return StoppedPrematurely, ctx.Err()
		}

		// Bounded drain: the received message plus whatever is ready.
		pending := []cutMessage{msg}
		for drained := false; !drained; {
			select {
			case next := <-cutqueue:
				pending = append(pending, next)
			default:
				drained = true
			}
		}

		for _, m := range pending {
			status, terminal, err := e.absorbCut(cs, m)
			if terminal {
				return status, err
			}
		}

		// Advance once the current timestamp's quorum reported and every
		// subproblem has contributed at least one cut overall.
		if cs.finished[t] >= quorum && cs.received >= e.nsub {
			status, terminal, err := e.advance(cs, t, localized, broadcast)
			if terminal {
				return status, err
			}
			t++
			if t >= e.opts.MaxIter {
				return StoppedPrematurely, nil
			}
		}
	}
}

// absorbCut applies one worker report: terminal signals first, then
// the master row, then the per-timestamp accounting. Late cuts from
// older timestamps still enter the master (they stay valid lower
// supports) and attribute to their own timestamp's table.
func (e *Solver) absorbCut(cs *coordState, m cutMessage) (Status, bool, error) {
	switch m.cut.Kind {
	case hyperplane.Unbounded:
		return Unbounded, true, nil
	case hyperplane.Infeasible:
		return Infeasible, true, nil
	}

	agg, ok := cs.aggs[m.t]
	if !ok {
		agg = hyperplane.NewAggregator(e.opts.Bundle, e.nsub, e.st.nx)
		cs.aggs[m.t] = agg
	}
	for _, ready := range agg.Add(m.cut) {
		if err := e.addCut(ready); err != nil {
			return StoppedPrematurely, true, err
		}
	}

	tab, ok := cs.subobj[m.t]
	if !ok {
		tab = make([]float64, e.nsub)
		for i := range tab {
			tab[i] = math.NaN()
		}
		cs.subobj[m.t] = tab
	}
	tab[m.id] = m.qval
	cs.finished[m.t]++
	cs.received++

	// A complete timestamp yields one sampled value Q_t and one
	// stabilization step at x_t.
	if cs.finished[m.t] == e.nsub {
		for _, ready := range agg.Flush() {
			if err := e.addCut(ready); err != nil {
				return StoppedPrematurely, true, err
			}
		}
		delete(cs.aggs, m.t)

		xt := cs.points[m.t]
		qt := e.st.cDotX(xt)
		for _, v := range tab {
			qt += v
		}
		e.st.x = append(e.st.x[:0], xt...)
		e.st.q = qt
		if !math.IsInf(qt, 1) && !math.IsNaN(qt) {
			if err := e.loc.takeStep(); err != nil {
				return StoppedPrematurely, true, err
			}
		}
		delete(cs.subobj, m.t)
		delete(cs.points, m.t)
	}

	return StoppedPrematurely, false, nil
}

// advance resolves the master, projects, runs pool maintenance and
// broadcasts the next decision.
func (e *Solver) advance(cs *coordState, t int, localized bool, broadcast func(int)) (Status, bool, error) {
	mst, merr := e.master.Solve()
	switch mst {
	case solver.Optimal:
	case solver.Infeasible:
		return Infeasible, true, nil
	default:
		if merr == nil {
			merr = fmt.Errorf("lshaped: master solve ended with status %v", mst)
		}

		return StoppedPrematurely, true, merr
	}

	prim := e.master.Primal()
	e.st.mastervector = append(e.st.mastervector[:0], prim...)
	e.st.x = append(e.st.x[:0], prim[:e.st.nx]...)
	e.st.thetas = append(e.st.thetas[:0], prim[e.st.nx:e.st.nx+e.st.nb]...)
	e.st.lower = e.st.cDotX(e.st.x) + e.st.sumThetas()

	if err := e.loc.project(); err != nil {
		return StoppedPrematurely, true, err
	}

	if localized {
		e.removeInactive()
		e.st.queueViolated(e.opts.Tol)
		for _, cut := range e.st.popViolated() {
			if err := e.addCut(cut); err != nil {
				return StoppedPrematurely, true, err
			}
		}
	}

	e.st.record(e.loc.radius(), e.variant.localization() == TR)
	e.meter.Update(t, e.st.q, e.gap(), len(e.st.cuts))

	if e.loc.checkOptimality() {
		return Optimal, true, nil
	}

	broadcast(t + 1)

	return StoppedPrematurely, false, nil
}
