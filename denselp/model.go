package denselp

import (
	"errors"
	"fmt"

	"github.com/jandelmi/lshaped/solver"
)

// Sentinel errors reported through Solve.
var (
	// ErrIterationLimit indicates the simplex exceeded its pivot budget.
	ErrIterationLimit = errors.New("denselp: simplex iteration limit exceeded")

	// ErrSingularBasis indicates a basis solve failed; the model is
	// numerically degenerate.
	ErrSingularBasis = errors.New("denselp: singular basis")

	// ErrUnboundedQuadratic indicates the conditional-gradient path met an
	// unbounded linearization; quadratic solves need a bounded polyhedron.
	ErrUnboundedQuadratic = errors.New("denselp: quadratic solve over unbounded polyhedron")
)

type column struct {
	lb, ub, cost float64
}

type row struct {
	indices []int
	values  []float64
	lb, ub  float64
}

// Model is a mutable dense LP/QP instance implementing solver.Model.
type Model struct {
	qp   bool
	cols []column
	rows []row

	quadIdx []int
	quadVal []float64

	status solver.Status
	primal []float64
	obj    float64
	duals  []float64
	ray    []float64
}

var _ solver.Model = (*Model)(nil)

// New returns an empty LP-only model.
func New() *Model { return &Model{} }

// NewQP returns an empty model with the quadratic path enabled.
func NewQP() *Model { return &Model{qp: true} }

// Factory adapts New to the solver.Factory signature.
func Factory() solver.Model { return New() }

// FactoryQP adapts NewQP to the solver.Factory signature.
func FactoryQP() solver.Model { return NewQP() }

// AddColumn appends a variable with bounds [lb, ub] and linear cost.
func (m *Model) AddColumn(lb, ub, cost float64) int {
	m.cols = append(m.cols, column{lb: lb, ub: ub, cost: cost})

	return len(m.cols) - 1
}

// SetObjective replaces the linear objective.
func (m *Model) SetObjective(costs []float64) error {
	if len(costs) != len(m.cols) {
		return fmt.Errorf("denselp: objective length %d, model has %d columns", len(costs), len(m.cols))
	}
	for j, c := range costs {
		m.cols[j].cost = c
	}

	return nil
}

// SetQuadObjective replaces the diagonal quadratic term
// ½·Σ values[i]·x[indices[i]]². Nil clears it.
func (m *Model) SetQuadObjective(indices []int, values []float64) error {
	if !m.qp {
		return solver.ErrQPUnsupported
	}
	if len(indices) != len(values) {
		return fmt.Errorf("denselp: quadratic term has %d indices, %d values", len(indices), len(values))
	}
	m.quadIdx = append([]int(nil), indices...)
	m.quadVal = append([]float64(nil), values...)

	return nil
}

// AddRow appends lb ≤ Σ values[i]·x[indices[i]] ≤ ub.
func (m *Model) AddRow(indices []int, values []float64, lb, ub float64) (int, error) {
	if len(indices) != len(values) {
		return 0, fmt.Errorf("denselp: row has %d indices, %d values", len(indices), len(values))
	}
	for _, idx := range indices {
		if idx < 0 || idx >= len(m.cols) {
			return 0, fmt.Errorf("denselp: row index %d outside %d columns", idx, len(m.cols))
		}
	}
	m.rows = append(m.rows, row{
		indices: append([]int(nil), indices...),
		values:  append([]float64(nil), values...),
		lb:      lb,
		ub:      ub,
	})

	return len(m.rows) - 1, nil
}

// DeleteRows removes the given rows; the rest shift down in order.
func (m *Model) DeleteRows(drop []int) {
	if len(drop) == 0 {
		return
	}
	dead := make(map[int]bool, len(drop))
	for _, r := range drop {
		dead[r] = true
	}
	kept := m.rows[:0]
	for i, r := range m.rows {
		if !dead[i] {
			kept = append(kept, r)
		}
	}
	m.rows = kept
}

// SetRowBounds replaces one row's bounds.
func (m *Model) SetRowBounds(r int, lb, ub float64) {
	m.rows[r].lb = lb
	m.rows[r].ub = ub
}

// RowBounds reads one row's bounds.
func (m *Model) RowBounds(r int) (lb, ub float64) {
	return m.rows[r].lb, m.rows[r].ub
}

// SetBounds replaces one column's bounds.
func (m *Model) SetBounds(col int, lb, ub float64) {
	m.cols[col].lb = lb
	m.cols[col].ub = ub
}

// NumColumns reports the column count.
func (m *Model) NumColumns() int { return len(m.cols) }

// NumRows reports the row count.
func (m *Model) NumRows() int { return len(m.rows) }

// QP reports quadratic-path availability.
func (m *Model) QP() bool { return m.qp }

// Primal returns the last primal vector.
func (m *Model) Primal() []float64 { return m.primal }

// Objective returns the last objective; after an Infeasible solve it
// is the residual infeasibility the ray certifies.
func (m *Model) Objective() float64 { return m.obj }

// Duals returns the per-row sensitivities of the last Optimal solve.
func (m *Model) Duals() []float64 { return m.duals }

// FarkasRay returns the infeasibility certificate of the last
// Infeasible solve.
func (m *Model) FarkasRay() []float64 { return m.ray }

// Solve optimizes the model in place.
func (m *Model) Solve() (solver.Status, error) {
	if m.qp && len(m.quadIdx) > 0 {
		return m.solveQuadratic()
	}
	costs := make([]float64, len(m.cols))
	for j, c := range m.cols {
		costs[j] = c.cost
	}
	res, err := solveLP(m.cols, m.rows, costs)
	m.store(res)

	return m.status, err
}

func (m *Model) store(res lpResult) {
	m.status = res.status
	m.primal = res.x
	m.obj = res.obj
	m.duals = res.duals
	m.ray = res.ray
}

// quadAt evaluates ½·Σ q_i x_i² at x.
func (m *Model) quadAt(x []float64) float64 {
	var sum float64
	for i, idx := range m.quadIdx {
		sum += 0.5 * m.quadVal[i] * x[idx] * x[idx]
	}

	return sum
}

// linearAt evaluates c·x at x.
func (m *Model) linearAt(x []float64) float64 {
	var sum float64
	for j, c := range m.cols {
		sum += c.cost * x[j]
	}

	return sum
}
