package subproblem_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jandelmi/lshaped/denselp"
	"github.com/jandelmi/lshaped/hyperplane"
	"github.com/jandelmi/lshaped/solver"
	"github.com/jandelmi/lshaped/subproblem"
)

// stubModel scripts one solve outcome so cut construction can be
// checked against hand-computed duals.
type stubModel struct {
	bounds [][2]float64
	status solver.Status
	err    error
	obj    float64
	duals  []float64
	ray    []float64
}

func (s *stubModel) AddColumn(lb, ub, cost float64) int                       { panic("unused") }
func (s *stubModel) SetObjective(costs []float64) error                       { panic("unused") }
func (s *stubModel) SetQuadObjective(idx []int, val []float64) error          { panic("unused") }
func (s *stubModel) AddRow(i []int, v []float64, lb, ub float64) (int, error) { panic("unused") }
func (s *stubModel) DeleteRows(rows []int)                                    { panic("unused") }
func (s *stubModel) SetBounds(col int, lb, ub float64)                        { panic("unused") }
func (s *stubModel) SetRowBounds(r int, lb, ub float64)                       { s.bounds[r] = [2]float64{lb, ub} }
func (s *stubModel) RowBounds(r int) (float64, float64)                       { return s.bounds[r][0], s.bounds[r][1] }
func (s *stubModel) NumColumns() int                                          { return 0 }
func (s *stubModel) NumRows() int                                             { return len(s.bounds) }
func (s *stubModel) Solve() (solver.Status, error)                            { return s.status, s.err }
func (s *stubModel) Primal() []float64                                        { return nil }
func (s *stubModel) Objective() float64                                       { return s.obj }
func (s *stubModel) Duals() []float64                                         { return s.duals }
func (s *stubModel) FarkasRay() []float64                                     { return s.ray }
func (s *stubModel) QP() bool                                                 { return false }

func TestEvaluate_OptimalityCutFormula(t *testing.T) {
	stub := &stubModel{
		bounds: [][2]float64{{1, math.Inf(1)}},
		status: solver.Optimal,
		obj:    10,
		duals:  []float64{3},
	}
	sub, err := subproblem.New(7, 0.5, stub, []subproblem.Term{{Row: 0, Col: 1, Coeff: 2}}, 2)
	require.NoError(t, err)

	x := []float64{0, 4}
	cut, qval, err := sub.Evaluate(x)
	require.NoError(t, err)
	require.Equal(t, hyperplane.Optimality, cut.Kind)
	require.Equal(t, 7, cut.ID)

	// δQ = −π·λ·coeff on column 1; q = π·obj + δQ·x.
	require.Equal(t, []int{1}, cut.Indices)
	require.InDelta(t, -3.0, cut.Values[0], 1e-12)
	require.InDelta(t, -7.0, cut.Q, 1e-12)

	// The recourse estimate at the generating point is exactly π·obj.
	require.InDelta(t, 5.0, cut.Recourse(x), 1e-12)
	require.InDelta(t, 5.0, qval, 1e-12)
}

func TestEvaluate_UpdatesRHS(t *testing.T) {
	stub := &stubModel{
		bounds: [][2]float64{{1, math.Inf(1)}},
		status: solver.Optimal,
		duals:  []float64{0},
	}
	sub, err := subproblem.New(0, 1, stub, []subproblem.Term{{Row: 0, Col: 1, Coeff: 2}}, 2)
	require.NoError(t, err)

	_, _, err = sub.Evaluate([]float64{0, 4})
	require.NoError(t, err)

	// base lb 1 shifted by 2·4 = 8; the infinite side stays infinite.
	require.InDelta(t, 9.0, stub.bounds[0][0], 1e-12)
	require.True(t, math.IsInf(stub.bounds[0][1], 1))
}

func TestEvaluate_FeasibilityCutScaled(t *testing.T) {
	stub := &stubModel{
		bounds: [][2]float64{{0, math.Inf(1)}},
		status: solver.Infeasible,
		obj:    6,
		ray:    []float64{2},
	}
	sub, err := subproblem.New(1, 1, stub, []subproblem.Term{{Row: 0, Col: 1, Coeff: 2}}, 2)
	require.NoError(t, err)
	sub.SetFeasibilityCuts(true)

	cut, qval, err := sub.Evaluate([]float64{0, 4})
	require.NoError(t, err)
	require.Equal(t, hyperplane.Feasibility, cut.Kind)
	require.True(t, math.IsInf(qval, 1), "infeasible scenarios poison the recourse sum")

	// Unscaled: G = [−4] on column 1, g = 6 + (−4)·4 = −10; then divided
	// by |g| = 10.
	require.Equal(t, []int{1}, cut.Indices)
	require.InDelta(t, -0.4, cut.Values[0], 1e-12)
	require.InDelta(t, -1.0, cut.Q, 1e-12)
}

func TestEvaluate_InfeasibleSignalWhenCutsOff(t *testing.T) {
	stub := &stubModel{
		bounds: [][2]float64{{0, math.Inf(1)}},
		status: solver.Infeasible,
		obj:    6,
		ray:    []float64{2},
	}
	sub, err := subproblem.New(3, 1, stub, nil, 2)
	require.NoError(t, err)

	cut, _, err := sub.Evaluate([]float64{0, 0})
	require.NoError(t, err)
	require.Equal(t, hyperplane.Infeasible, cut.Kind)
	require.Equal(t, 3, cut.ID)
}

func TestEvaluate_UnboundedSignal(t *testing.T) {
	stub := &stubModel{bounds: [][2]float64{}, status: solver.Unbounded}
	sub, err := subproblem.New(2, 1, stub, nil, 1)
	require.NoError(t, err)

	cut, qval, err := sub.Evaluate([]float64{0})
	require.NoError(t, err)
	require.Equal(t, hyperplane.Unbounded, cut.Kind)
	require.True(t, math.IsInf(qval, -1))
	require.False(t, cut.Bounded())
}

func TestEvaluate_SolverFaultIsFatal(t *testing.T) {
	stub := &stubModel{bounds: [][2]float64{}, status: solver.Other}
	sub, err := subproblem.New(0, 1, stub, nil, 1)
	require.NoError(t, err)

	_, _, err = sub.Evaluate([]float64{0})
	require.ErrorIs(t, err, subproblem.ErrSolverFault)
}

func TestEvaluate_ShapeError(t *testing.T) {
	stub := &stubModel{bounds: [][2]float64{}, status: solver.Optimal}
	sub, err := subproblem.New(0, 1, stub, nil, 3)
	require.NoError(t, err)

	_, _, err = sub.Evaluate([]float64{0})
	require.Error(t, err)
	require.Contains(t, err.Error(), "length 1")
	require.Contains(t, err.Error(), "want 3")
}

func TestNew_Validation(t *testing.T) {
	stub := &stubModel{bounds: [][2]float64{{0, 1}}}

	_, err := subproblem.New(0, 0, stub, nil, 1)
	require.ErrorIs(t, err, subproblem.ErrBadProbability)

	_, err = subproblem.New(0, 1, stub, []subproblem.Term{{Row: 0, Col: 5, Coeff: 1}}, 1)
	require.ErrorIs(t, err, subproblem.ErrBadTerm)

	_, err = subproblem.New(0, 1, stub, []subproblem.Term{{Row: 9, Col: 0, Coeff: 1}}, 1)
	require.ErrorIs(t, err, subproblem.ErrBadTerm)
}

// TestEvaluate_AgainstRealLP drives a real scenario LP: min y subject
// to y ≥ 5 − x. The recourse function is Q(x) = 5 − x and the cut must
// reproduce it exactly.
func TestEvaluate_AgainstRealLP(t *testing.T) {
	m := denselp.New()
	m.AddColumn(math.Inf(-1), math.Inf(1), 1) // y free, cost 1
	_, err := m.AddRow([]int{0}, []float64{1}, 5, math.Inf(1))
	require.NoError(t, err)

	// Additive linkage: rhs(x) = 5 + (−1)·x.
	sub, err := subproblem.New(0, 1, m, []subproblem.Term{{Row: 0, Col: 0, Coeff: -1}}, 1)
	require.NoError(t, err)

	x := []float64{2}
	cut, qval, err := sub.Evaluate(x)
	require.NoError(t, err)
	require.Equal(t, hyperplane.Optimality, cut.Kind)
	require.InDelta(t, 3.0, qval, 1e-7)
	require.InDelta(t, 3.0, cut.Recourse(x), 1e-7)

	// The cut is exact everywhere for a linear recourse: θ ≥ 5 − x.
	require.InDelta(t, 5.0, cut.Recourse([]float64{0}), 1e-7)
	require.InDelta(t, 1.0, cut.Recourse([]float64{4}), 1e-7)
}
