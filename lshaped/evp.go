package lshaped

import (
	"fmt"
	"math"

	"github.com/jandelmi/lshaped/solver"
)

// evpStart solves the expected-value problem — every scenario averaged
// into one deterministic second stage — and starts from its
// first-stage optimum. The averaging needs structurally identical
// scenarios: same column count, same rows with the same sparsity, same
// linkage terms.
func (e *Solver) evpStart(p *Problem) ([]float64, error) {
	base := &p.Scenarios[0]
	for i := 1; i < len(p.Scenarios); i++ {
		sc := &p.Scenarios[i]
		if len(sc.C) != len(base.C) || len(sc.Rows) != len(base.Rows) || len(sc.Terms) != len(base.Terms) {
			return nil, fmt.Errorf("%w: scenario %d differs from scenario 0", ErrCrashShape, i)
		}
		for r := range sc.Rows {
			if len(sc.Rows[r].Indices) != len(base.Rows[r].Indices) {
				return nil, fmt.Errorf("%w: scenario %d row %d sparsity differs", ErrCrashShape, i, r)
			}
		}
	}

	// Probability-weighted averages of the scenario data.
	var ptotal float64
	for _, sc := range p.Scenarios {
		ptotal += sc.Probability
	}
	ny := len(base.C)
	avgC := make([]float64, ny)
	avgLb := make([]float64, ny)
	avgUb := make([]float64, ny)
	avgRowLb := make([]float64, len(base.Rows))
	avgRowUb := make([]float64, len(base.Rows))
	avgRowVal := make([][]float64, len(base.Rows))
	for r := range base.Rows {
		avgRowVal[r] = make([]float64, len(base.Rows[r].Values))
	}
	avgTerm := make([]float64, len(base.Terms))
	for _, sc := range p.Scenarios {
		w := sc.Probability / ptotal
		for j := range sc.C {
			avgC[j] += w * sc.C[j]
			avgLb[j] += w * sc.Lb[j]
			avgUb[j] += w * sc.Ub[j]
		}
		for r := range sc.Rows {
			avgRowLb[r] += w * sc.Rows[r].Lb
			avgRowUb[r] += w * sc.Rows[r].Ub
			for k, v := range sc.Rows[r].Values {
				avgRowVal[r][k] += w * v
			}
		}
		for t := range sc.Terms {
			avgTerm[t] += w * sc.Terms[t].Coeff
		}
	}

	// Deterministic equivalent: first-stage columns and rows plus the
	// averaged second stage, linked by moving each term onto the row's
	// left side (rhs = base + Σ coeff·x ⇔ a·y − Σ coeff·x ≥ base).
	m := e.factory()
	nx := len(p.C)
	for j := 0; j < nx; j++ {
		m.AddColumn(p.Lb[j], p.Ub[j], p.C[j])
	}
	for j := 0; j < ny; j++ {
		m.AddColumn(avgLb[j], avgUb[j], avgC[j])
	}
	for _, r := range p.Rows {
		if _, err := m.AddRow(r.Indices, r.Values, r.Lb, r.Ub); err != nil {
			return nil, err
		}
	}
	for ri, r := range base.Rows {
		indices := make([]int, 0, len(r.Indices)+len(base.Terms))
		values := make([]float64, 0, len(r.Indices)+len(base.Terms))
		for k, idx := range r.Indices {
			indices = append(indices, nx+idx)
			values = append(values, avgRowVal[ri][k])
		}
		for ti, t := range base.Terms {
			if t.Row != ri {
				continue
			}
			indices = append(indices, t.Col)
			values = append(values, -avgTerm[ti])
		}
		if _, err := m.AddRow(indices, values, avgRowLb[ri], avgRowUb[ri]); err != nil {
			return nil, err
		}
	}

	status, err := m.Solve()
	if status != solver.Optimal {
		if err == nil {
			err = fmt.Errorf("lshaped: expected-value crash ended with status %v", status)
		}

		return nil, err
	}

	x := append([]float64(nil), m.Primal()[:nx]...)
	for j := range x {
		if math.IsNaN(x[j]) {
			return nil, fmt.Errorf("lshaped: expected-value crash produced NaN at column %d", j)
		}
	}

	return x, nil
}
