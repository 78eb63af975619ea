// Package subproblem evaluates one second-stage scenario LP at a
// first-stage point and emits one cut per solve.
//
// A Subproblem owns its LP model; the linkage of the first-stage
// decision into the scenario's right-hand side is a list of master
// terms (row, column, coefficient): evaluating at x sets every linked
// row's constant to base + Σ coeff·x[col]. The emitted cut is pure
// data — it references neither the subproblem nor the solver — so the
// distributed driver can ship it between goroutines by value.
//
// Cut construction per solve status:
//
//	– Optimal:    δQ[col] −= π·λ[row]·coeff over the master terms with
//	              dual multipliers λ; q = π·obj + δQ·x; an Optimality
//	              cut for the subproblem's id.
//	– Infeasible: with feasibility cuts enabled, G[col] −= λ[row]·coeff
//	              over the Farkas ray λ; g = obj + G·x; scaled by |g|
//	              (falling back to the largest |G| entry, and skipped
//	              entirely when both are zero); a Feasibility cut.
//	              Otherwise the terminal Infeasible signal.
//	– Unbounded:  the Unbounded signal.
//	– Other:      a fatal solver fault, wrapped and returned.
package subproblem

import (
	"errors"
	"fmt"
	"math"

	"github.com/jandelmi/lshaped/hyperplane"
	"github.com/jandelmi/lshaped/solver"
)

// Sentinel errors.
var (
	// ErrBadTerm indicates a master term referencing a column or row
	// outside the model.
	ErrBadTerm = errors.New("subproblem: master term out of range")

	// ErrBadProbability indicates a scenario probability outside (0, 1].
	ErrBadProbability = errors.New("subproblem: probability outside (0, 1]")

	// ErrSolverFault wraps a solve that ended in Status Other.
	ErrSolverFault = errors.New("subproblem: solver fault")
)

// Term links first-stage column Col into the right-hand side of
// second-stage row Row with the given coefficient.
type Term struct {
	Row, Col int
	Coeff    float64
}

// Subproblem is one scenario evaluator. It owns its LP model and must
// be driven from a single goroutine.
type Subproblem struct {
	id          int
	prob        float64
	model       solver.Model
	terms       []Term
	nMasterCols int
	base        [][2]float64 // original (lb, ub) per linked row
	x           []float64    // snapshot of the last evaluation point
	feasCuts    bool
}

// New wraps an already-built scenario model. terms' columns must lie in
// [0, nMasterCols) and rows inside the model; the current row bounds
// are snapshotted as the x-independent base.
func New(id int, prob float64, model solver.Model, terms []Term, nMasterCols int) (*Subproblem, error) {
	if prob <= 0 || prob > 1 {
		return nil, fmt.Errorf("%w: %g", ErrBadProbability, prob)
	}
	nRows := model.NumRows()
	for _, t := range terms {
		if t.Col < 0 || t.Col >= nMasterCols {
			return nil, fmt.Errorf("%w: column %d with %d master columns", ErrBadTerm, t.Col, nMasterCols)
		}
		if t.Row < 0 || t.Row >= nRows {
			return nil, fmt.Errorf("%w: row %d with %d rows", ErrBadTerm, t.Row, nRows)
		}
	}
	base := make([][2]float64, nRows)
	for r := 0; r < nRows; r++ {
		lb, ub := model.RowBounds(r)
		base[r] = [2]float64{lb, ub}
	}

	return &Subproblem{
		id:          id,
		prob:        prob,
		model:       model,
		terms:       terms,
		nMasterCols: nMasterCols,
		base:        base,
	}, nil
}

// ID returns the subproblem identifier.
func (s *Subproblem) ID() int { return s.id }

// Probability returns the scenario weight π.
func (s *Subproblem) Probability() float64 { return s.prob }

// SetFeasibilityCuts selects the reaction to an infeasible scenario
// solve: a Feasibility cut when on, the terminal Infeasible signal
// when off (the default).
func (s *Subproblem) SetFeasibilityCuts(on bool) { s.feasCuts = on }

// updateRHS pushes x into every linked row's bounds.
func (s *Subproblem) updateRHS(x []float64) {
	shift := make(map[int]float64, len(s.terms))
	for _, t := range s.terms {
		shift[t.Row] += t.Coeff * x[t.Col]
	}
	for r, d := range shift {
		lb, ub := s.base[r][0], s.base[r][1]
		if !math.IsInf(lb, -1) {
			lb += d
		}
		if !math.IsInf(ub, 1) {
			ub += d
		}
		s.model.SetRowBounds(r, lb, ub)
	}
}

// Evaluate solves the scenario LP at x and returns the resulting cut.
// The recourse value π·obj is returned alongside for the engine's
// upper-bound bookkeeping (it is meaningful only for optimality cuts).
func (s *Subproblem) Evaluate(x []float64) (*hyperplane.Hyperplane, float64, error) {
	if len(x) != s.nMasterCols {
		return nil, 0, fmt.Errorf("subproblem %d: point length %d, want %d", s.id, len(x), s.nMasterCols)
	}
	s.x = append(s.x[:0], x...)
	s.updateRHS(x)

	status, err := s.model.Solve()
	switch status {
	case solver.Optimal:
		cut, cerr := s.optimalityCut(x)

		return cut, s.prob * s.model.Objective(), cerr
	case solver.Infeasible:
		if !s.feasCuts {
			return hyperplane.NewInfeasible(s.id), math.Inf(1), nil
		}
		cut, cerr := s.feasibilityCut(x)

		return cut, math.Inf(1), cerr
	case solver.Unbounded:
		return hyperplane.NewUnbounded(s.id), math.Inf(-1), nil
	default:
		if err == nil {
			err = fmt.Errorf("status %v", status)
		}

		return nil, 0, fmt.Errorf("%w: subproblem %d: %v", ErrSolverFault, s.id, err)
	}
}

// optimalityCut builds the dual cut of an optimal scenario solve.
func (s *Subproblem) optimalityCut(x []float64) (*hyperplane.Hyperplane, error) {
	duals := s.model.Duals()
	dq := make([]float64, s.nMasterCols)
	for _, t := range s.terms {
		dq[t.Col] -= s.prob * duals[t.Row] * t.Coeff
	}
	indices, values := sparsify(dq)
	q := s.prob * s.model.Objective()
	for i, idx := range indices {
		q += values[i] * x[idx]
	}

	return hyperplane.NewOptimality(indices, values, q, s.id, s.nMasterCols)
}

// feasibilityCut builds the Farkas cut of an infeasible scenario solve.
func (s *Subproblem) feasibilityCut(x []float64) (*hyperplane.Hyperplane, error) {
	ray := s.model.FarkasRay()
	g := s.model.Objective()
	gv := make([]float64, s.nMasterCols)
	for _, t := range s.terms {
		gv[t.Col] -= ray[t.Row] * t.Coeff
	}
	indices, values := sparsify(gv)
	for i, idx := range indices {
		g += values[i] * x[idx]
	}

	// Rescale extreme certificates; a fully zero cut stays unscaled.
	scale := math.Abs(g)
	if scale == 0 {
		for _, v := range values {
			if a := math.Abs(v); a > scale {
				scale = a
			}
		}
	}
	if scale > 0 {
		for i := range values {
			values[i] /= scale
		}
		g /= scale
	}

	return hyperplane.NewFeasibility(indices, values, g, s.id, s.nMasterCols)
}

// sparsify compacts a dense vector into parallel index/value slices.
func sparsify(dense []float64) ([]int, []float64) {
	var nnz int
	for _, v := range dense {
		if v != 0 {
			nnz++
		}
	}
	indices := make([]int, 0, nnz)
	values := make([]float64, 0, nnz)
	for i, v := range dense {
		if v != 0 {
			indices = append(indices, i)
			values = append(values, v)
		}
	}

	return indices, values
}
