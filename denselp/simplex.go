package denselp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jandelmi/lshaped/solver"
)

const (
	pivotTol    = 1e-10
	feasTol     = 1e-8
	reducedTol  = 1e-9
	maxPivotMul = 200
)

// lpResult carries one solve outcome back to the model.
type lpResult struct {
	status solver.Status
	x      []float64
	obj    float64
	duals  []float64
	ray    []float64
}

// colKind tags how an original column maps into standard form.
type colKind int

const (
	colShift  colKind = iota // x = lb + z
	colMirror                // x = ub − z (lb = −∞)
	colSplit                 // x = z⁺ − z⁻ (both bounds infinite)
)

type colMap struct {
	kind   colKind
	z      int // first standard column
	offset float64
}

// stdForm is the converted program min c·z, A z = b, z ≥ 0.
type stdForm struct {
	m, n     int
	a        *mat.Dense
	b        []float64
	c        []float64
	objConst float64
	cols     []colMap
	origRows int
	origCols int
}

// convert rewrites the bounded-variable model over z ≥ 0:
// lower-bounded columns shift, upper-only columns mirror, free columns
// split; finite upper bounds and ranged-row slacks become explicit
// bound rows. Converted row i < len(rows) corresponds to original row
// i, so dual sensitivities map back by index.
func convert(cols []column, rows []row, costs []float64) (*stdForm, error) {
	sf := &stdForm{origRows: len(rows), origCols: len(cols)}
	sf.cols = make([]colMap, len(cols))

	// 1) Assign standard columns per variable.
	n := 0
	for j, c := range cols {
		if math.IsInf(c.lb, 1) || math.IsInf(c.ub, -1) {
			return nil, fmt.Errorf("denselp: column %d has inverted infinite bounds", j)
		}
		switch {
		case !math.IsInf(c.lb, -1):
			sf.cols[j] = colMap{kind: colShift, z: n, offset: c.lb}
			n++
		case !math.IsInf(c.ub, 1):
			sf.cols[j] = colMap{kind: colMirror, z: n, offset: c.ub}
			n++
		default:
			sf.cols[j] = colMap{kind: colSplit, z: n}
			n += 2
		}
	}

	// 2) Count bound rows: shifted columns with finite ub, plus ranged-row
	// slack caps.
	type boundRow struct {
		z   int
		cap float64
	}
	var bounds []boundRow
	for j, c := range cols {
		if sf.cols[j].kind == colShift && !math.IsInf(c.ub, 1) {
			bounds = append(bounds, boundRow{z: sf.cols[j].z, cap: c.ub - c.lb})
		}
	}

	// 3) Slack columns per row (none for equalities).
	type slack struct {
		z    int
		sign float64
	}
	slacks := make([]slack, len(rows))
	for i, r := range rows {
		lower := !math.IsInf(r.lb, -1)
		upper := !math.IsInf(r.ub, 1)
		switch {
		case lower && upper && r.lb == r.ub:
			slacks[i] = slack{z: -1}
		case lower && upper:
			// Ranged: a·x − s = lb with 0 ≤ s ≤ ub − lb.
			slacks[i] = slack{z: n, sign: -1}
			bounds = append(bounds, boundRow{z: n, cap: r.ub - r.lb})
			n++
		case lower:
			slacks[i] = slack{z: n, sign: -1}
			n++
		case upper:
			slacks[i] = slack{z: n, sign: 1}
			n++
		default:
			return nil, fmt.Errorf("denselp: row %d has no finite bound", i)
		}
	}

	// 4) Bound rows need one slack each.
	boundSlackStart := n
	n += len(bounds)

	m := len(rows) + len(bounds)
	sf.m, sf.n = m, n
	if m > 0 {
		sf.a = mat.NewDense(m, n, nil)
	}
	sf.b = make([]float64, m)
	sf.c = make([]float64, n)

	// 5) Costs and row coefficients through the variable maps.
	addCoeff := func(rowIdx, origCol int, v float64) {
		cm := sf.cols[origCol]
		switch cm.kind {
		case colShift:
			sf.a.Set(rowIdx, cm.z, sf.a.At(rowIdx, cm.z)+v)
			sf.b[rowIdx] -= v * cm.offset
		case colMirror:
			sf.a.Set(rowIdx, cm.z, sf.a.At(rowIdx, cm.z)-v)
			sf.b[rowIdx] -= v * cm.offset
		case colSplit:
			sf.a.Set(rowIdx, cm.z, sf.a.At(rowIdx, cm.z)+v)
			sf.a.Set(rowIdx, cm.z+1, sf.a.At(rowIdx, cm.z+1)-v)
		}
	}
	for j := range cols {
		cm := sf.cols[j]
		switch cm.kind {
		case colShift:
			sf.c[cm.z] = costs[j]
			sf.objConst += costs[j] * cm.offset
		case colMirror:
			sf.c[cm.z] = -costs[j]
			sf.objConst += costs[j] * cm.offset
		case colSplit:
			sf.c[cm.z] = costs[j]
			sf.c[cm.z+1] = -costs[j]
		}
	}

	for i, r := range rows {
		// Row constant first, then substitutions adjust it.
		if slacks[i].z >= 0 && slacks[i].sign < 0 {
			sf.b[i] = r.lb
		} else if slacks[i].z >= 0 {
			sf.b[i] = r.ub
		} else {
			sf.b[i] = r.lb // equality
		}
		for k, origCol := range r.indices {
			addCoeff(i, origCol, r.values[k])
		}
		if slacks[i].z >= 0 {
			sf.a.Set(i, slacks[i].z, slacks[i].sign)
		}
	}

	// 6) Bound rows: z + w = cap.
	for k, br := range bounds {
		rowIdx := len(rows) + k
		if br.cap < 0 {
			return nil, fmt.Errorf("denselp: crossed bounds (width %g)", br.cap)
		}
		sf.a.Set(rowIdx, br.z, 1)
		sf.a.Set(rowIdx, boundSlackStart+k, 1)
		sf.b[rowIdx] = br.cap
	}

	return sf, nil
}

// recover maps a standard-form point back onto the original columns.
func (sf *stdForm) recover(z []float64) []float64 {
	x := make([]float64, sf.origCols)
	for j, cm := range sf.cols {
		switch cm.kind {
		case colShift:
			x[j] = cm.offset + z[cm.z]
		case colMirror:
			x[j] = cm.offset - z[cm.z]
		case colSplit:
			x[j] = z[cm.z] - z[cm.z+1]
		}
	}

	return x
}

// solveLP runs the two-phase dense simplex. costs may differ from the
// model's stored costs (the quadratic path passes linearizations).
func solveLP(cols []column, rows []row, costs []float64) (lpResult, error) {
	sf, err := convert(cols, rows, costs)
	if err != nil {
		return lpResult{status: solver.Other}, err
	}

	m, n := sf.m, sf.n

	// No rows: z = 0 is optimal unless some column's cost decreases the
	// objective along its unbounded direction.
	if m == 0 {
		for _, cj := range sf.c {
			if cj < -reducedTol {
				return lpResult{status: solver.Unbounded, obj: math.Inf(-1)}, nil
			}
		}

		return lpResult{status: solver.Optimal, x: sf.recover(make([]float64, n)), obj: sf.objConst, duals: []float64{}}, nil
	}

	// Phase 1: signed artificials with unit cost; the identity (up to
	// sign) start basis makes the initial point |b|.
	tab := newTableau(sf, m, n)
	phase1Obj, basis, err := tab.run(tab.phase1Costs(), nil, true)
	if err != nil {
		return lpResult{status: solver.Other}, err
	}
	if phase1Obj > feasTol*(1+math.Min(norm1(sf.b), 1e6)) {
		// Infeasible: the phase-1 basis duals certify it.
		y, derr := tab.duals(basis, tab.phase1Costs())
		if derr != nil {
			return lpResult{status: solver.Other}, derr
		}

		return lpResult{
			status: solver.Infeasible,
			obj:    phase1Obj,
			ray:    y[:sf.origRows],
		}, nil
	}

	// Phase 2: real costs, artificials barred from entering.
	obj, basis, err := tab.run(tab.phase2Costs(), basis, false)
	if err != nil {
		if err == errUnbounded {
			return lpResult{status: solver.Unbounded, obj: math.Inf(-1)}, nil
		}

		return lpResult{status: solver.Other}, err
	}

	y, err := tab.duals(basis, tab.phase2Costs())
	if err != nil {
		return lpResult{status: solver.Other}, err
	}

	return lpResult{
		status: solver.Optimal,
		x:      sf.recover(tab.point(basis)),
		obj:    obj + sf.objConst,
		duals:  y[:sf.origRows],
	}, nil
}

var errUnbounded = fmt.Errorf("denselp: unbounded")

// tableau holds the standard-form data extended by artificial columns.
type tableau struct {
	sf    *stdForm
	m     int
	nReal int
	nTot  int // real + artificial
	art   []float64
	basic []float64 // current basic values, parallel to basis
}

func newTableau(sf *stdForm, m, n int) *tableau {
	t := &tableau{sf: sf, m: m, nReal: n, nTot: n + m}
	t.art = make([]float64, m)
	for i := range t.art {
		if sf.b[i] < 0 {
			t.art[i] = -1
		} else {
			t.art[i] = 1
		}
	}

	return t
}

// columnOf writes standard column j (real or artificial) into dst.
func (t *tableau) columnOf(j int, dst []float64) {
	for i := range dst {
		dst[i] = 0
	}
	if j < t.nReal {
		for i := 0; i < t.m; i++ {
			dst[i] = t.sf.a.At(i, j)
		}

		return
	}
	dst[j-t.nReal] = t.art[j-t.nReal]
}

func (t *tableau) phase1Costs() []float64 {
	c := make([]float64, t.nTot)
	for j := t.nReal; j < t.nTot; j++ {
		c[j] = 1
	}

	return c
}

func (t *tableau) phase2Costs() []float64 {
	c := make([]float64, t.nTot)
	copy(c, t.sf.c)

	return c
}

// basisMatrix assembles B from the basis column indices.
func (t *tableau) basisMatrix(basis []int) *mat.Dense {
	b := mat.NewDense(t.m, t.m, nil)
	col := make([]float64, t.m)
	for k, j := range basis {
		t.columnOf(j, col)
		for i := 0; i < t.m; i++ {
			b.Set(i, k, col[i])
		}
	}

	return b
}

// duals solves Bᵀy = c_B for the current basis.
func (t *tableau) duals(basis []int, costs []float64) ([]float64, error) {
	bm := t.basisMatrix(basis)
	cb := mat.NewVecDense(t.m, nil)
	for k, j := range basis {
		cb.SetVec(k, costs[j])
	}
	var y mat.VecDense
	if err := y.SolveVec(bm.T(), cb); err != nil {
		return nil, ErrSingularBasis
	}
	out := make([]float64, t.m)
	for i := 0; i < t.m; i++ {
		out[i] = y.AtVec(i)
	}

	return out, nil
}

// point expands the basic values into a full standard-form vector.
func (t *tableau) point(basis []int) []float64 {
	z := make([]float64, t.nReal)
	for k, j := range basis {
		if j < t.nReal {
			z[j] = t.basic[k]
		}
	}

	return z
}

// run performs simplex pivots under Bland's rule until optimality,
// unboundedness or the pivot budget. phase1 starts from the artificial
// basis; otherwise the provided basis is reused. Artificials never
// enter outside phase 1.
func (t *tableau) run(costs []float64, startBasis []int, phase1 bool) (float64, []int, error) {
	basis := startBasis
	if phase1 {
		basis = make([]int, t.m)
		for i := range basis {
			basis[i] = t.nReal + i
		}
	}

	if err := t.refreshBasics(basis); err != nil {
		return 0, nil, err
	}

	maxIter := maxPivotMul * (t.nTot + t.m)
	colBuf := make([]float64, t.m)
	for iter := 0; iter < maxIter; iter++ {
		y, err := t.duals(basis, costs)
		if err != nil {
			return 0, nil, err
		}

		// Entering column: Bland — smallest index with negative reduced cost.
		inBasis := make(map[int]bool, t.m)
		for _, j := range basis {
			inBasis[j] = true
		}
		entering := -1
		limit := t.nReal
		if phase1 {
			limit = t.nTot
		}
		for j := 0; j < limit; j++ {
			if inBasis[j] {
				continue
			}
			t.columnOf(j, colBuf)
			red := costs[j]
			for i := 0; i < t.m; i++ {
				red -= y[i] * colBuf[i]
			}
			if red < -reducedTol {
				entering = j
				break
			}
		}
		if entering == -1 {
			// Optimal for this phase.
			obj := 0.0
			for k, j := range basis {
				obj += costs[j] * t.basic[k]
			}

			return obj, basis, nil
		}

		// Direction w = B⁻¹ A_e.
		t.columnOf(entering, colBuf)
		w, err := t.solveBasis(basis, colBuf)
		if err != nil {
			return 0, nil, err
		}

		// Ratio test; ties break toward the smallest leaving variable
		// index (Bland), which rules out cycling.
		leave, ratio := -1, math.Inf(1)
		for i := 0; i < t.m; i++ {
			if w[i] > pivotTol {
				r := t.basic[i] / w[i]
				switch {
				case leave == -1 || r < ratio-pivotTol:
					leave, ratio = i, r
				case r <= ratio+pivotTol && basis[i] < basis[leave]:
					leave, ratio = i, r
				}
			}
		}
		if leave == -1 {
			return 0, nil, errUnbounded
		}

		basis[leave] = entering
		if err := t.refreshBasics(basis); err != nil {
			return 0, nil, err
		}
	}

	return 0, nil, ErrIterationLimit
}

// refreshBasics recomputes basic values x_B = B⁻¹b.
func (t *tableau) refreshBasics(basis []int) error {
	xb, err := t.solveBasis(basis, t.sf.b)
	if err != nil {
		return err
	}
	// Clamp round-off negatives; the scale guard matters when sentinel
	// bounds push the right-hand side toward 1e10.
	clamp := feasTol * (1 + 1e-8*norm1(t.sf.b))
	for i := range xb {
		if xb[i] < 0 && xb[i] > -clamp {
			xb[i] = 0
		}
	}
	t.basic = xb

	return nil
}

// solveBasis solves B·w = rhs.
func (t *tableau) solveBasis(basis []int, rhs []float64) ([]float64, error) {
	bm := t.basisMatrix(basis)
	v := mat.NewVecDense(t.m, nil)
	for i := 0; i < t.m; i++ {
		v.SetVec(i, rhs[i])
	}
	var w mat.VecDense
	if err := w.SolveVec(bm, v); err != nil {
		return nil, ErrSingularBasis
	}
	out := make([]float64, t.m)
	for i := 0; i < t.m; i++ {
		out[i] = w.AtVec(i)
	}

	return out, nil
}

func norm1(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += math.Abs(x)
	}

	return s
}
