package lshaped

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/jandelmi/lshaped/hyperplane"
	"github.com/jandelmi/lshaped/solver"
	"github.com/jandelmi/lshaped/subproblem"
)

// Solver is one decomposition engine instance. It is single-use: a
// Solve call builds the master and scenario models, iterates to a
// terminal status and leaves the histories readable.
type Solver struct {
	variant Variant
	factory solver.Factory
	opts    Options

	master     solver.Model
	subs       []*subproblem.Subproblem
	st         *state
	loc        localizer
	meter      Progress
	costvec    []float64 // base objective: c on the x block, θ costs
	promoted   []bool    // per θ slot, linearize-mode cost promotion
	nFirstRows int
	nsub       int
	lb, ub     []float64 // first-stage bounds

	status Status
	err    error
}

// NewSolver builds an engine of the given kind over a model factory.
func NewSolver(v Variant, factory solver.Factory, opts ...Option) *Solver {
	o := DefaultOptions(v)
	for _, opt := range opts {
		opt(&o)
	}

	return &Solver{variant: v, factory: factory, opts: o}
}

// X returns the incumbent first-stage decision of the last solve.
func (e *Solver) X() []float64 {
	return append([]float64(nil), e.st.xi...)
}

// Objective returns the incumbent value Q̃ of the last solve.
func (e *Solver) Objective() float64 { return e.st.qtilde }

// QHistory returns the per-iteration sampled upper values.
func (e *Solver) QHistory() []float64 { return append([]float64(nil), e.st.qHist...) }

// ThetaHistory returns the per-iteration lower-model values; entries at
// the sentinel floor were not yet populated.
func (e *Solver) ThetaHistory() []float64 { return append([]float64(nil), e.st.thetaHist...) }

// QTildeHistory returns the per-iteration incumbent values.
func (e *Solver) QTildeHistory() []float64 { return append([]float64(nil), e.st.qtildeHist...) }

// RadiusHistory returns the trust-region radii (empty for the other
// variants).
func (e *Solver) RadiusHistory() []float64 { return append([]float64(nil), e.st.deltaHist...) }

// NumCuts returns the number of rows inserted into the master.
func (e *Solver) NumCuts() int { return len(e.st.cuts) }

// Solve runs the engine on the problem to a terminal status.
func (e *Solver) Solve(p Problem) (Status, error) {
	if err := p.validate(); err != nil {
		return StoppedPrematurely, err
	}
	e.nsub = len(p.Scenarios)
	if e.opts.Bundle > e.nsub {
		e.opts.Bundle = e.nsub
	}
	nb := hyperplane.NumBundles(e.nsub, e.opts.Bundle)
	e.st = newState(p.C, nb)
	e.meter = newProgress(e.opts.Log)
	e.lb = append([]float64(nil), p.Lb...)
	e.ub = append([]float64(nil), p.Ub...)

	// Variants with a quadratic master (or projection) need QP support;
	// fail before any iteration.
	needQP := e.variant.localization() == RD || (e.variant.localization() == LV && !e.opts.Linearize)
	if needQP && !e.factory().QP() {
		return StoppedPrematurely, fmt.Errorf("%w: %s over an LP-only adapter", ErrQPRequired, e.variant)
	}

	x0, err := e.startingPoint(&p)
	if err != nil {
		return StoppedPrematurely, err
	}
	e.st.x = x0
	e.st.xi = append([]float64(nil), x0...)

	if err := e.buildMaster(&p); err != nil {
		return StoppedPrematurely, err
	}
	if err := e.buildSubproblems(&p); err != nil {
		return StoppedPrematurely, err
	}

	e.loc = newLocalizer(e)
	if err := e.loc.init(); err != nil {
		return StoppedPrematurely, err
	}

	if e.variant.distributed() {
		e.status, e.err = e.runDistributed()
	} else {
		e.status, e.err = e.runSerial()
	}

	return e.status, e.err
}

// startingPoint resolves x₀: explicit start, EVP crash, or uniform
// random within the first-stage bounds.
func (e *Solver) startingPoint(p *Problem) ([]float64, error) {
	if e.opts.Start != nil {
		if len(e.opts.Start) != len(p.C) {
			return nil, fmt.Errorf("%w: start length %d, want %d", ErrShape, len(e.opts.Start), len(p.C))
		}

		return append([]float64(nil), e.opts.Start...), nil
	}
	if e.opts.Crash == CrashEVP {
		return e.evpStart(p)
	}

	rng := rand.New(rand.NewSource(e.opts.Seed))
	x := make([]float64, len(p.C))
	for j := range x {
		lo, hi := p.Lb[j], p.Ub[j]
		switch {
		case !math.IsInf(lo, -1) && !math.IsInf(hi, 1):
			x[j] = lo + rng.Float64()*(hi-lo)
		case !math.IsInf(lo, -1):
			x[j] = lo + rng.Float64()
		case !math.IsInf(hi, 1):
			x[j] = hi - rng.Float64()
		default:
			x[j] = 2*rng.Float64() - 1
		}
	}

	return x, nil
}

// buildMaster creates the master model: the first-stage columns, one θ
// column per bundle slot (floored at the −∞ proxy so the first solves
// stay bounded), and the first-stage rows seeded into the committee as
// LinearConstraint cuts.
func (e *Solver) buildMaster(p *Problem) error {
	e.master = e.factory()
	nx := e.st.nx
	for j := 0; j < nx; j++ {
		e.master.AddColumn(p.Lb[j], p.Ub[j], p.C[j])
	}
	thetaCost := 1.0
	if e.opts.Linearize {
		thetaCost = 0
	}
	e.costvec = make([]float64, nx+e.st.nb)
	copy(e.costvec, p.C)
	e.promoted = make([]bool, e.st.nb)
	for k := 0; k < e.st.nb; k++ {
		e.master.AddColumn(hyperplane.SentinelFloor, math.Inf(1), thetaCost)
		e.costvec[nx+k] = thetaCost
	}

	e.nFirstRows = len(p.Rows)
	for i, r := range p.Rows {
		cut, err := hyperplane.FromRow(r.Indices, r.Values, r.Lb, r.Ub, i, nx)
		if err != nil {
			return err
		}
		if err := e.addCut(cut); err != nil {
			return err
		}
	}

	return nil
}

// buildSubproblems creates one owned scenario model per subproblem.
func (e *Solver) buildSubproblems(p *Problem) error {
	e.subs = make([]*subproblem.Subproblem, 0, e.nsub)
	for i, sc := range p.Scenarios {
		sub, err := buildScenario(e.factory, i, &sc, e.st.nx, e.opts.CheckFeas)
		if err != nil {
			return err
		}
		e.subs = append(e.subs, sub)
	}

	return nil
}

// buildScenario assembles one scenario LP and its evaluator.
func buildScenario(factory solver.Factory, id int, sc *Scenario, nx int, feasCuts bool) (*subproblem.Subproblem, error) {
	m := factory()
	for j := range sc.C {
		m.AddColumn(sc.Lb[j], sc.Ub[j], sc.C[j])
	}
	for _, r := range sc.Rows {
		if _, err := m.AddRow(r.Indices, r.Values, r.Lb, r.Ub); err != nil {
			return nil, err
		}
	}
	sub, err := subproblem.New(id, sc.Probability, m, sc.Terms, nx)
	if err != nil {
		return nil, err
	}
	sub.SetFeasibilityCuts(feasCuts)

	return sub, nil
}

// addCut serializes a cut into the master and registers it in the
// committee. In linearize mode the first optimality cut on a θ slot
// promotes that slot's objective cost to 1.
func (e *Solver) addCut(h *hyperplane.Hyperplane) error {
	indices, values, lb, ub := h.LowLevel()
	if indices == nil {
		return nil // signal kinds have no row form
	}
	row, err := e.master.AddRow(indices, values, lb, ub)
	if err != nil {
		return err
	}
	e.st.cuts = append(e.st.cuts, h)
	e.st.committee = append(e.st.committee, committeeRow{cut: h, row: row})

	if h.Kind == hyperplane.Optimality && e.opts.Linearize && !e.promoted[h.ID] {
		e.promoted[h.ID] = true
		e.costvec[e.st.nx+h.ID] = 1
		if err := e.loc.updateObjective(); err != nil {
			return err
		}
	}

	return nil
}

// runSerial drives the single-threaded iteration to a terminal status.
func (e *Solver) runSerial() (Status, error) {
	localized := e.variant.localization() != LS
	for iter := 0; iter < e.opts.MaxIter; iter++ {
		if localized {
			for _, cut := range e.st.popViolated() {
				if err := e.addCut(cut); err != nil {
					return StoppedPrematurely, err
				}
			}
		}

		status, terminal, err := e.iterate(iter, localized)
		if terminal {
			return status, err
		}
	}

	return StoppedPrematurely, nil
}

// iterate performs one resolve-subs / add-cuts / resolve-master round.
func (e *Solver) iterate(iter int, localized bool) (Status, bool, error) {
	// R1: evaluate every subproblem at the current point, routing cuts
	// through the aggregator into the master.
	agg := hyperplane.NewAggregator(e.opts.Bundle, e.nsub, e.st.nx)
	qsum := e.st.cDotX(e.st.x)
	for _, sub := range e.subs {
		cut, qv, err := sub.Evaluate(e.st.x)
		if err != nil {
			return StoppedPrematurely, true, err
		}
		// R2: terminal signals.
		switch cut.Kind {
		case hyperplane.Unbounded:
			return Unbounded, true, nil
		case hyperplane.Infeasible:
			return Infeasible, true, nil
		}
		qsum += qv
		for _, ready := range agg.Add(cut) {
			if err := e.addCut(ready); err != nil {
				return StoppedPrematurely, true, err
			}
		}
	}
	for _, ready := range agg.Flush() {
		if err := e.addCut(ready); err != nil {
			return StoppedPrematurely, true, err
		}
	}
	e.st.q = qsum

	// R3: stabilization step (skipped while feasibility cuts keep the
	// sampled value infinite).
	if !math.IsInf(e.st.q, 1) {
		if err := e.loc.takeStep(); err != nil {
			return StoppedPrematurely, true, err
		}
	}

	// R4: resolve the master.
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

	// R5: mirror the master solution.
	prim := e.master.Primal()
	e.st.mastervector = append(e.st.mastervector[:0], prim...)
	e.st.x = append(e.st.x[:0], prim[:e.st.nx]...)
	e.st.thetas = append(e.st.thetas[:0], prim[e.st.nx:e.st.nx+e.st.nb]...)
	e.st.lower = e.st.cDotX(e.st.x) + e.st.sumThetas()

	// R6: level-set projection.
	if err := e.loc.project(); err != nil {
		return StoppedPrematurely, true, err
	}

	// Cut pool maintenance.
	if localized {
		e.removeInactive()
		e.st.queueViolated(e.opts.Tol)
	}

	e.st.record(e.loc.radius(), e.variant.localization() == TR)
	e.meter.Update(iter, e.st.q, e.gap(), len(e.st.cuts))

	// R7: optimality test.
	if e.loc.checkOptimality() {
		return Optimal, true, nil
	}

	return StoppedPrematurely, false, nil
}

// gap returns the relative incumbent/lower-model gap.
func (e *Solver) gap() float64 {
	if math.IsInf(e.st.lower, -1) || math.IsInf(e.st.qtilde, 1) {
		return math.Inf(1)
	}

	return math.Abs(e.st.qtilde-e.st.lower) / (1 + math.Abs(e.st.lower))
}

// removeInactive evicts committee entries the current point leaves
// slack, scanning by increasing index and never dropping below the
// baseline of first-stage rows plus one slot per subproblem.
// First-stage rows themselves are structural and never evicted.
func (e *Solver) removeInactive() {
	baseline := e.nFirstRows + e.nsub
	remaining := len(e.st.committee)
	if remaining <= baseline {
		return
	}

	dropIdx := make(map[int]bool)
	var dropRows []int
	for i, cr := range e.st.committee {
		if remaining <= baseline {
			break
		}
		if cr.cut.Kind == hyperplane.LinearConstraint {
			continue
		}
		if cr.cut.Active(e.st.x, e.st.thetas, e.opts.Tol) {
			continue
		}
		dropIdx[i] = true
		dropRows = append(dropRows, cr.row)
		e.st.inactive = append(e.st.inactive, cr.cut)
		remaining--
	}
	if len(dropRows) == 0 {
		return
	}

	e.master.DeleteRows(dropRows)

	sort.Ints(dropRows)
	kept := make([]committeeRow, 0, remaining)
	for i, cr := range e.st.committee {
		if dropIdx[i] {
			continue
		}
		shift := sort.SearchInts(dropRows, cr.row)
		kept = append(kept, committeeRow{cut: cr.cut, row: cr.row - shift})
	}
	e.st.committee = kept
}
