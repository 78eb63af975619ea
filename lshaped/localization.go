package lshaped

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/jandelmi/lshaped/hyperplane"
	"github.com/jandelmi/lshaped/solver"
)

// localizer is the per-variant capability set: initialization, the
// stabilization step after each sampling pass, the optimality test,
// the optional projection, and objective refresh.
type localizer interface {
	init() error
	takeStep() error
	checkOptimality() bool
	project() error
	updateObjective() error
	radius() float64
}

// newLocalizer dispatches on the variant's localization kind.
func newLocalizer(e *Solver) localizer {
	switch e.variant.localization() {
	case RD:
		return &regularizedLoc{e: e, sigma: e.opts.Sigma}
	case TR:
		return &trustRegionLoc{e: e, deltaMax: e.opts.DeltaMax}
	case LV:
		return &levelSetLoc{e: e, lambda: e.opts.Lambda}
	default:
		return &plainLoc{e: e}
	}
}

// converged is the shared relative test |lower − v| ≤ τ(1+|lower|)
// with a populated lower model.
func converged(lower, v, tol float64) bool {
	if math.IsInf(lower, -1) || math.IsInf(v, 0) {
		return false
	}

	return math.Abs(lower-v) <= tol*(1+math.Abs(lower))
}

// ---------------------------------------------------------------------
// Plain multicut: no stabilization, the incumbent just tracks the best
// sampled value.
// ---------------------------------------------------------------------

type plainLoc struct {
	e *Solver
}

func (l *plainLoc) init() error { return nil }

func (l *plainLoc) takeStep() error {
	st := l.e.st
	if st.q < st.qtilde {
		st.qtilde = st.q
		st.xi = append(st.xi[:0], st.x...)
	}

	return nil
}

func (l *plainLoc) checkOptimality() bool {
	st := l.e.st

	return converged(st.lower, st.q, l.e.opts.Tol)
}

func (l *plainLoc) project() error { return nil }

func (l *plainLoc) updateObjective() error {
	return l.e.master.SetObjective(l.e.costvec)
}

func (l *plainLoc) radius() float64 { return 0 }

// ---------------------------------------------------------------------
// Regularized decomposition (Ruszczyński): proximal penalty
// (1/2σ)‖x − ξ‖² around the incumbent, σ doubled on exact serious
// steps and halved on null steps.
// ---------------------------------------------------------------------

type regularizedLoc struct {
	e     *Solver
	sigma float64
}

func (l *regularizedLoc) init() error {
	if l.e.opts.Autotune {
		// Scale the initial weight to the starting point's cost magnitude.
		c0 := math.Abs(l.e.st.cDotX(l.e.st.xi))
		l.sigma = math.Max(1, 0.1*(1+c0))
	}

	return l.updateObjective()
}

func (l *regularizedLoc) updateObjective() error {
	e := l.e
	nx := e.st.nx
	adjusted := append([]float64(nil), e.costvec...)
	quadIdx := make([]int, nx)
	quadVal := make([]float64, nx)
	for j := 0; j < nx; j++ {
		adjusted[j] -= e.st.xi[j] / l.sigma
		quadIdx[j] = j
		quadVal[j] = 1 / l.sigma
	}
	if err := e.master.SetObjective(adjusted); err != nil {
		return err
	}

	return e.master.SetQuadObjective(quadIdx, quadVal)
}

func (l *regularizedLoc) takeStep() error {
	st := l.e.st
	tol := l.e.opts.Tol
	gamma := l.e.opts.Gamma

	// First sampled value becomes the incumbent value at ξ = x₀.
	if math.IsInf(st.qtilde, 1) {
		st.qtilde = st.q

		return nil
	}

	switch {
	case converged(st.lower, st.q, tol):
		// Exact serious step: accept, relax the penalty.
		st.xi = append(st.xi[:0], st.x...)
		st.qtilde = st.q
		l.sigma *= 2

		return l.updateObjective()
	case st.q+tol*(1+math.Abs(st.q)) <= gamma*st.qtilde+(1-gamma)*st.lower:
		// Approximate serious step: accept, keep the penalty.
		st.xi = append(st.xi[:0], st.x...)
		st.qtilde = st.q

		return l.updateObjective()
	default:
		// Null step: tighten around the incumbent.
		l.sigma /= 2

		return l.updateObjective()
	}
}

func (l *regularizedLoc) checkOptimality() bool {
	st := l.e.st

	return converged(st.lower, st.qtilde, l.e.opts.Tol)
}

func (l *regularizedLoc) project() error { return nil }

func (l *regularizedLoc) radius() float64 { return 0 }

// ---------------------------------------------------------------------
// Trust region (Linderoth/Wright): box of radius Δ around ξ imposed
// through the master's variable bounds, enlarged on strong major steps
// and reduced after poor or repeatedly null minor steps.
// ---------------------------------------------------------------------

type trustRegionLoc struct {
	e        *Solver
	delta    float64
	deltaMax float64
	cDelta   int
}

func (l *trustRegionLoc) init() error {
	norm := floats.Norm(l.e.st.xi, math.Inf(1))
	l.delta = math.Max(1, 0.01*norm)
	if l.e.opts.Autotune {
		l.deltaMax = math.Max(l.deltaMax, 10*l.delta)
	}
	l.applyBounds()

	return nil
}

// applyBounds intersects the first-stage bounds with the Δ-box.
func (l *trustRegionLoc) applyBounds() {
	e := l.e
	for j := 0; j < e.st.nx; j++ {
		lo := math.Max(e.lb[j], e.st.xi[j]-l.delta)
		hi := math.Min(e.ub[j], e.st.xi[j]+l.delta)
		e.master.SetBounds(j, lo, hi)
	}
}

func (l *trustRegionLoc) takeStep() error {
	st := l.e.st
	tol := l.e.opts.Tol
	gamma := l.e.opts.Gamma

	if math.IsInf(st.qtilde, 1) {
		st.qtilde = st.q
		l.applyBounds()

		return nil
	}

	if !math.IsInf(st.lower, -1) && st.q <= st.qtilde-gamma*math.Abs(st.qtilde-st.lower) {
		// Major step. The enlarge test reads the pre-acceptance incumbent.
		enlarge := math.Abs(st.q-st.qtilde) <= 0.5*(st.qtilde-st.lower) &&
			floats.Distance(st.xi, st.x, math.Inf(1))-l.delta <= tol
		l.cDelta = 0
		st.xi = append(st.xi[:0], st.x...)
		st.qtilde = st.q
		if enlarge {
			l.delta = math.Min(l.deltaMax, 2*l.delta)
		}
	} else if !math.IsInf(st.lower, -1) && st.qtilde-st.lower > tol {
		// Minor step.
		rho := math.Min(1, l.delta) * (st.q - st.qtilde) / (st.qtilde - st.lower)
		if rho > 0 {
			l.cDelta++
		}
		if rho > 3 || (l.cDelta >= 3 && 1 < rho && rho <= 3) {
			l.cDelta = 0
			l.delta /= math.Min(rho, 4)
		}
	}
	l.applyBounds()

	return nil
}

func (l *trustRegionLoc) checkOptimality() bool {
	st := l.e.st

	return converged(st.lower, st.qtilde, l.e.opts.Tol)
}

func (l *trustRegionLoc) project() error { return nil }

func (l *trustRegionLoc) updateObjective() error {
	return l.e.master.SetObjective(l.e.costvec)
}

func (l *trustRegionLoc) radius() float64 { return l.delta }

// ---------------------------------------------------------------------
// Level sets: after each master solve, x is pulled to the nearest
// point of the level set {c·x + Σθ ≤ λQ̃ + (1−λ)θ}. The projection
// solves a fresh model over the committee rows: a proximal QP, or the
// 1-norm LP in linearize mode.
// ---------------------------------------------------------------------

type levelSetLoc struct {
	e      *Solver
	lambda float64
}

func (l *levelSetLoc) init() error { return nil }

func (l *levelSetLoc) takeStep() error {
	st := l.e.st
	if st.q < st.qtilde {
		st.qtilde = st.q
	}

	return nil
}

func (l *levelSetLoc) project() error {
	e := l.e
	st := e.st
	if math.IsInf(st.lower, -1) || math.IsInf(st.qtilde, 1) {
		return nil // no level to project onto yet
	}
	level := l.lambda*st.qtilde + (1-l.lambda)*st.lower

	pm := e.factory()
	nx, nb := st.nx, st.nb
	for j := 0; j < nx; j++ {
		pm.AddColumn(e.lb[j], e.ub[j], 0)
	}
	for k := 0; k < nb; k++ {
		pm.AddColumn(hyperplane.SentinelFloor, math.Inf(1), 0)
	}

	// The committee carries every row currently in the master.
	for _, cr := range st.committee {
		indices, values, lb, ub := cr.cut.LowLevel()
		if _, err := pm.AddRow(indices, values, lb, ub); err != nil {
			return err
		}
	}

	// Level row: c·x + Σθ ≤ L.
	lvlIdx := make([]int, nx+nb)
	lvlVal := make([]float64, nx+nb)
	for j := 0; j < nx; j++ {
		lvlIdx[j] = j
		lvlVal[j] = st.c[j]
	}
	for k := 0; k < nb; k++ {
		lvlIdx[nx+k] = nx + k
		lvlVal[nx+k] = 1
	}
	if _, err := pm.AddRow(lvlIdx, lvlVal, math.Inf(-1), level); err != nil {
		return err
	}

	if e.opts.Linearize {
		// 1-norm: t_j ≥ |x_j − ξ_j| with Σ t_j as the objective.
		for j := 0; j < nx; j++ {
			tCol := pm.AddColumn(0, math.Inf(1), 1)
			if _, err := pm.AddRow([]int{j, tCol}, []float64{-1, 1}, -st.xi[j], math.Inf(1)); err != nil {
				return err
			}
			if _, err := pm.AddRow([]int{j, tCol}, []float64{1, 1}, st.xi[j], math.Inf(1)); err != nil {
				return err
			}
		}
	} else {
		// ‖x − ξ‖²: quadratic diagonal 2 with linear −2ξ.
		costs := make([]float64, pm.NumColumns())
		quadIdx := make([]int, nx)
		quadVal := make([]float64, nx)
		for j := 0; j < nx; j++ {
			costs[j] = -2 * st.xi[j]
			quadIdx[j] = j
			quadVal[j] = 2
		}
		if err := pm.SetObjective(costs); err != nil {
			return err
		}
		if err := pm.SetQuadObjective(quadIdx, quadVal); err != nil {
			return err
		}
	}

	status, err := pm.Solve()
	if status != solver.Optimal {
		if err == nil {
			err = fmt.Errorf("lshaped: level projection ended with status %v", status)
		}

		return err
	}

	proj := pm.Primal()
	st.x = append(st.x[:0], proj[:nx]...)
	st.xi = append(st.xi[:0], proj[:nx]...)

	return nil
}

func (l *levelSetLoc) checkOptimality() bool {
	st := l.e.st

	return converged(st.lower, st.qtilde, l.e.opts.Tol)
}

func (l *levelSetLoc) updateObjective() error {
	return l.e.master.SetObjective(l.e.costvec)
}

func (l *levelSetLoc) radius() float64 { return 0 }
