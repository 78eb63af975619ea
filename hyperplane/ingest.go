package hyperplane

import (
	"fmt"
	"math"
)

// FromRow ingests a first-stage row constraint lb ≤ a·x ≤ ub as a
// LinearConstraint cut in ≥ form. A ≤-only row is negated into
// (−a)·x ≥ −ub. Rows with two finite bounds are ranged and rejected;
// rows with no finite bound constrain nothing and are rejected too.
func FromRow(indices []int, values []float64, lb, ub float64, id, dim int) (*Hyperplane, error) {
	lower := !math.IsInf(lb, -1)
	upper := !math.IsInf(ub, 1)

	switch {
	case lower && upper:
		return nil, fmt.Errorf("%w: row %d has bounds [%g, %g]", ErrRangedRow, id, lb, ub)
	case !lower && !upper:
		return nil, fmt.Errorf("%w: row %d", ErrFreeRow, id)
	case lower:
		return NewLinearConstraint(indices, values, lb, id, dim)
	default:
		neg := make([]float64, len(values))
		for i, v := range values {
			neg[i] = -v
		}
		idx := make([]int, len(indices))
		copy(idx, indices)

		return NewLinearConstraint(idx, neg, -ub, id, dim)
	}
}
