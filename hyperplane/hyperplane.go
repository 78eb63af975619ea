package hyperplane

import "math"

// dot computes the sparse product δQ·x, panicking with a
// *DimensionError when x is shorter than the cut's dimension.
func (h *Hyperplane) dot(x []float64) float64 {
	if len(x) < h.Dim {
		panic(&DimensionError{Want: h.Dim, Got: len(x)})
	}
	var sum float64
	for i, idx := range h.Indices {
		sum += h.Values[i] * x[idx]
	}

	return sum
}

// Evaluate returns the pair (δQ·x, q) for the cut at x.
func (h *Hyperplane) Evaluate(x []float64) (gval, q float64) {
	return h.dot(x), h.Q
}

// Recourse returns the recourse estimate q − δQ·x that an optimality
// cut places on its θ slot at x. Calling it on any other kind is a
// programming error.
func (h *Hyperplane) Recourse(x []float64) float64 {
	if h.Kind != Optimality {
		panic("hyperplane: Recourse on " + h.Kind.String() + " cut")
	}

	return h.Q - h.dot(x)
}

// Bounded reports whether the cut describes a bounded relation; only
// the Unbounded signal does not.
func (h *Hyperplane) Bounded() bool {
	return h.Kind != Unbounded
}

// Populated reports whether a θ value carries meaning: solver noise
// leaves unpopulated slots within a unit of the sentinel floor, so the
// test allows that margin.
func Populated(theta float64) bool {
	return theta > SentinelFloor+1
}

// Active reports whether the cut supports the point within tolerance:
// generic kinds require |δQ·x − q| ≤ τ(1+|δQ·x|); an optimality cut
// requires a populated θ slot with |θ_id − Q| ≤ τ(1+|Q|).
// Signal kinds are never active.
func (h *Hyperplane) Active(x, thetas []float64, tol float64) bool {
	switch h.Kind {
	case Optimality:
		theta := thetas[h.ID]
		if !Populated(theta) {
			return false
		}
		q := h.Recourse(x)

		return math.Abs(theta-q) <= tol*(1+math.Abs(q))
	case Feasibility, LinearConstraint:
		gval := h.dot(x)

		return math.Abs(gval-h.Q) <= tol*(1+math.Abs(gval))
	default:
		return false
	}
}

// Satisfied reports whether the cut holds at the point within
// tolerance: generic kinds require δQ·x ≥ q − τ(1+|δQ·x|); an
// optimality cut requires a populated θ slot with θ_id ≥ Q − τ(1+|Q|).
// The Infeasible signal is never satisfied; the Unbounded signal never
// constrains and is vacuously satisfied.
func (h *Hyperplane) Satisfied(x, thetas []float64, tol float64) bool {
	switch h.Kind {
	case Optimality:
		theta := thetas[h.ID]
		if !Populated(theta) {
			return false
		}
		q := h.Recourse(x)

		return theta >= q-tol*(1+math.Abs(q))
	case Feasibility, LinearConstraint:
		gval := h.dot(x)

		return gval >= h.Q-tol*(1+math.Abs(gval))
	case Unbounded:
		return true
	default:
		return false
	}
}

// Violated is the negation of Satisfied.
func (h *Hyperplane) Violated(x, thetas []float64, tol float64) bool {
	return !h.Satisfied(x, thetas, tol)
}

// Gap returns the signed slack of the cut at the point: δQ·x − q for
// generic kinds, θ_id − Q(x) for optimality cuts with a populated θ
// slot and +∞ otherwise. Negative gaps mean violation.
func (h *Hyperplane) Gap(x, thetas []float64) float64 {
	switch h.Kind {
	case Optimality:
		theta := thetas[h.ID]
		if !Populated(theta) {
			return math.Inf(1)
		}

		return theta - h.Recourse(x)
	case Feasibility, LinearConstraint:
		return h.dot(x) - h.Q
	default:
		return math.Inf(1)
	}
}

// LowLevel serializes the cut as a master model row
// (indices, values, lb, ub) with lb = q and ub = +∞. An optimality cut
// additionally binds its θ slot: column dim+id enters with coefficient
// +1 so the row reads δQ·x + θ_id ≥ q. Signal kinds have no row form
// and return nil indices.
func (h *Hyperplane) LowLevel() (indices []int, values []float64, lb, ub float64) {
	switch h.Kind {
	case Optimality:
		indices = make([]int, len(h.Indices)+1)
		values = make([]float64, len(h.Values)+1)
		copy(indices, h.Indices)
		copy(values, h.Values)
		indices[len(h.Indices)] = h.Dim + h.ID
		values[len(h.Values)] = 1.0

		return indices, values, h.Q, math.Inf(1)
	case Feasibility, LinearConstraint:
		return h.Indices, h.Values, h.Q, math.Inf(1)
	default:
		return nil, nil, 0, 0
	}
}
