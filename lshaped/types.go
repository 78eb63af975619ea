// Package lshaped drives Benders (L-shaped) decomposition of two-stage
// stochastic linear programs: a master model accumulates optimality and
// feasibility cuts produced by scenario subproblems until the lower
// model meets the sampled upper bound.
//
// Engines come in eight kinds: the serial drivers LS, RD, TR, LV and
// their distributed counterparts DLS, DRD, DTR, DLV. The second letter
// pair selects the localization that stabilizes the master sequence:
//
//	– LS: plain multicut L-shaped, no localization.
//	– RD: regularized decomposition (quadratic proximal penalty around
//	      an incumbent ξ; requires a QP-capable adapter).
//	– TR: trust region (box of radius Δ around ξ, adapted per step).
//	– LV: level sets (projection of x onto a level set of the lower
//	      model; LP-only in linearized mode).
//
// Construction and use:
//
//	eng := lshaped.NewSolver(lshaped.TR, denselp.Factory,
//	    lshaped.WithTolerance(1e-6),
//	    lshaped.WithBundle(2),
//	)
//	status, err := eng.Solve(problem)
//	// status ∈ {Optimal, Infeasible, Unbounded, StoppedPrematurely}
//	x, obj := eng.X(), eng.Objective()
//
// After termination the Q, θ, Q̃ and Δ histories remain readable for
// plotting; θ entries at or below the sentinel floor mean "not yet
// populated".
//
// Errors (sentinel):
//
//	– ErrQPRequired      the variant needs a QP-capable adapter
//	– ErrShape           first-stage data with inconsistent lengths
//	– ErrNoScenarios     a problem without scenarios
//	– ErrCrashShape      EVP crash over structurally differing scenarios
package lshaped

import (
	"errors"
	"fmt"

	"github.com/jandelmi/lshaped/subproblem"
)

// Sentinel errors.
var (
	// ErrQPRequired is returned before the first iteration when the
	// regularized variant (or non-linearized level sets) is constructed
	// over an adapter without quadratic support.
	ErrQPRequired = errors.New("lshaped: variant requires a QP-capable solver adapter")

	// ErrShape indicates first-stage data with inconsistent lengths.
	ErrShape = errors.New("lshaped: problem shape mismatch")

	// ErrNoScenarios indicates a problem without second-stage scenarios.
	ErrNoScenarios = errors.New("lshaped: problem has no scenarios")

	// ErrCrashShape indicates the EVP crash met scenarios whose rows or
	// columns differ structurally and cannot be averaged.
	ErrCrashShape = errors.New("lshaped: EVP crash needs structurally identical scenarios")
)

// Variant selects the engine kind.
type Variant int

const (
	// LS is the plain serial multicut engine.
	LS Variant = iota
	// RD is serial regularized decomposition.
	RD
	// TR is the serial trust-region engine.
	TR
	// LV is the serial level-set engine.
	LV
	// DLS is the distributed plain engine.
	DLS
	// DRD is distributed regularized decomposition.
	DRD
	// DTR is the distributed trust-region engine.
	DTR
	// DLV is the distributed (asynchronous) level-set engine.
	DLV
)

// String returns the variant mnemonic.
func (v Variant) String() string {
	names := [...]string{"ls", "rd", "tr", "lv", "dls", "drd", "dtr", "dlv"}
	if v < 0 || int(v) >= len(names) {
		return "unknown"
	}

	return names[v]
}

// distributed reports whether the variant runs the coordinator/worker
// driver.
func (v Variant) distributed() bool { return v >= DLS }

// localization maps the variant onto its serial localization kind.
func (v Variant) localization() Variant {
	if v.distributed() {
		return v - DLS
	}

	return v
}

// Status is the terminal state of a solve.
type Status int

const (
	// Optimal: the lower model met the incumbent within tolerance.
	Optimal Status = iota
	// Infeasible: the master (or a scenario with feasibility cuts off)
	// has no feasible point.
	Infeasible
	// Unbounded: some scenario subproblem is unbounded below.
	Unbounded
	// StoppedPrematurely: iteration cap or a non-terminal solver fault;
	// the achieved gap is readable from the histories.
	StoppedPrematurely
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case Optimal:
		return "Optimal"
	case Infeasible:
		return "Infeasible"
	case Unbounded:
		return "Unbounded"
	default:
		return "StoppedPrematurely"
	}
}

// Row is one linear constraint lb ≤ Σ Values[i]·x[Indices[i]] ≤ ub.
// Exactly one bound must be finite: ranged rows are rejected at
// ingestion.
type Row struct {
	Indices []int
	Values  []float64
	Lb, Ub  float64
}

// Scenario is one second-stage realization: a weighted LP over its own
// columns whose row constants are shifted by the first-stage decision
// through the master terms (rhs = base + Σ Coeff·x[Col]).
type Scenario struct {
	Probability float64
	C           []float64
	Lb, Ub      []float64
	Rows        []Row
	Terms       []subproblem.Term
}

// Problem is the front-end surface: first-stage costs, bounds and rows
// plus the scenario set.
type Problem struct {
	C         []float64
	Lb, Ub    []float64
	Rows      []Row
	Scenarios []Scenario
}

// validate checks the first-stage shape invariants.
func (p *Problem) validate() error {
	n := len(p.C)
	if len(p.Lb) != n || len(p.Ub) != n {
		return fmt.Errorf("%w: %d costs, %d/%d bounds", ErrShape, n, len(p.Lb), len(p.Ub))
	}
	if len(p.Scenarios) == 0 {
		return ErrNoScenarios
	}
	for i, sc := range p.Scenarios {
		if len(sc.Lb) != len(sc.C) || len(sc.Ub) != len(sc.C) {
			return fmt.Errorf("%w: scenario %d has %d costs, %d/%d bounds", ErrShape, i, len(sc.C), len(sc.Lb), len(sc.Ub))
		}
	}

	return nil
}
