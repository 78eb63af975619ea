package denselp

import (
	"math"

	"github.com/jandelmi/lshaped/solver"
)

const (
	cgMaxIter = 500
	cgTol     = 1e-9
)

// solveQuadratic minimizes c·x + ½·Σ q_i x_i² over the model's
// polyhedron by conditional gradient: each step solves the linearized
// LP at the current iterate and moves toward the vertex with an exact
// closed-form line search. The duals of the last linearized solve are
// kept; the engines read only the primal and objective of quadratic
// masters.
func (m *Model) solveQuadratic() (solver.Status, error) {
	n := len(m.cols)
	quad := make([]float64, n)
	for i, idx := range m.quadIdx {
		quad[idx] += m.quadVal[i]
	}

	// 1) Feasible start: the plain linear solve.
	costs := make([]float64, n)
	for j, c := range m.cols {
		costs[j] = c.cost
	}
	res, err := solveLP(m.cols, m.rows, costs)
	if err != nil {
		m.store(res)

		return m.status, err
	}
	if res.status == solver.Unbounded {
		m.store(lpResult{status: solver.Other})

		return solver.Other, ErrUnboundedQuadratic
	}
	if res.status != solver.Optimal {
		m.store(res)

		return m.status, nil
	}

	x := append([]float64(nil), res.x...)
	grad := make([]float64, n)
	last := res
	for iter := 0; iter < cgMaxIter; iter++ {
		// 2) Linearize: ∇f = c + q∘x.
		for j := range grad {
			grad[j] = m.cols[j].cost + quad[j]*x[j]
		}
		res, err = solveLP(m.cols, m.rows, grad)
		if err != nil {
			m.store(res)

			return m.status, err
		}
		if res.status == solver.Unbounded {
			m.store(lpResult{status: solver.Other})

			return solver.Other, ErrUnboundedQuadratic
		}
		if res.status != solver.Optimal {
			m.store(res)

			return m.status, nil
		}
		last = res

		// 3) Vertex direction and Frank-Wolfe gap.
		descent := 0.0
		var denom float64
		for j := range x {
			d := res.x[j] - x[j]
			descent += grad[j] * d
			denom += quad[j] * d * d
		}
		fval := m.linearAt(x) + m.quadAt(x)
		if descent >= -cgTol*(1+math.Abs(fval)) {
			break
		}

		// 4) Exact line search on the segment.
		gamma := 1.0
		if denom > 0 {
			gamma = math.Min(1, -descent/denom)
		}
		for j := range x {
			x[j] += gamma * (res.x[j] - x[j])
		}
	}

	m.store(lpResult{
		status: solver.Optimal,
		x:      x,
		obj:    m.linearAt(x) + m.quadAt(x),
		duals:  last.duals,
	})

	return solver.Optimal, nil
}
