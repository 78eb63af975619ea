package hyperplane

import (
	"errors"
	"fmt"
	"math"
)

// Sentinel errors returned by cut construction and ingestion.
var (
	// ErrBadIndex indicates a coefficient index outside [0, dim).
	ErrBadIndex = errors.New("hyperplane: coefficient index out of range")

	// ErrNonFinite indicates a NaN or infinite coefficient or offset.
	ErrNonFinite = errors.New("hyperplane: non-finite coefficient")

	// ErrNotOptimality indicates a non-optimality cut was offered to a Bundle.
	ErrNotOptimality = errors.New("hyperplane: bundle accepts optimality cuts only")

	// ErrRangedRow indicates a row with two finite bounds (equality rows
	// included); ranged rows have no one-sided cut form and must be rejected.
	ErrRangedRow = errors.New("hyperplane: ranged row constraint")

	// ErrFreeRow indicates a row with no finite bound; such a row constrains
	// nothing and ingesting it is almost certainly a caller bug.
	ErrFreeRow = errors.New("hyperplane: row has no finite bound")
)

// SentinelFloor is the −∞ proxy for θ values. Any θ at or below this
// floor reads as "not yet populated": the master has not produced a
// meaningful value for that slot.
const SentinelFloor = -1e10

// Kind tags the five cut flavours.
type Kind int

const (
	// Optimality bounds the recourse estimate of subproblem (or bundle) ID
	// from below: θ_ID ≥ q − δQ·x.
	Optimality Kind = iota

	// Feasibility excludes first-stage points with infeasible recourse:
	// δQ·x ≥ q.
	Feasibility

	// LinearConstraint carries a first-stage row constraint: δQ·x ≥ q.
	LinearConstraint

	// Unbounded signals an unbounded subproblem. No coefficients.
	Unbounded

	// Infeasible signals an infeasible subproblem when feasibility-cut
	// generation is off. No coefficients.
	Infeasible
)

// String returns the kind name for diagnostics.
func (k Kind) String() string {
	switch k {
	case Optimality:
		return "Optimality"
	case Feasibility:
		return "Feasibility"
	case LinearConstraint:
		return "LinearConstraint"
	case Unbounded:
		return "Unbounded"
	case Infeasible:
		return "Infeasible"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// DimensionError reports an evaluation against a point of the wrong
// length. It is raised by panic: mismatched dimensions are programming
// errors, not runtime conditions.
type DimensionError struct {
	Want, Got int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("hyperplane: dimension mismatch: cut has %d, point has %d", e.Want, e.Got)
}

// Hyperplane is an immutable affine cut. δQ is stored sparse as
// parallel Indices/Values; Q is the scalar offset q; ID names the
// subproblem (or bundle slot) the cut belongs to; Dim is the
// first-stage decision length every index must fall under.
//
// Unbounded and Infeasible cuts carry no coefficients and a zero
// offset; they are signals, not rows.
type Hyperplane struct {
	Kind    Kind
	Indices []int
	Values  []float64
	Q       float64
	ID      int
	Dim     int
}

// validate checks the coefficient invariants shared by all
// coefficient-bearing kinds.
func validate(indices []int, values []float64, q float64, dim int) error {
	if len(indices) != len(values) {
		return fmt.Errorf("%w: %d indices, %d values", ErrBadIndex, len(indices), len(values))
	}
	if math.IsNaN(q) || math.IsInf(q, 0) {
		return fmt.Errorf("%w: offset %v", ErrNonFinite, q)
	}
	for i, idx := range indices {
		if idx < 0 || idx >= dim {
			return fmt.Errorf("%w: index %d with dim %d", ErrBadIndex, idx, dim)
		}
		if v := values[i]; math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: value %v at index %d", ErrNonFinite, v, idx)
		}
	}
	return nil
}

// NewOptimality builds an optimality cut θ_id ≥ q − δQ·x for
// subproblem (or bundle slot) id.
func NewOptimality(indices []int, values []float64, q float64, id, dim int) (*Hyperplane, error) {
	if err := validate(indices, values, q, dim); err != nil {
		return nil, err
	}
	return &Hyperplane{Kind: Optimality, Indices: indices, Values: values, Q: q, ID: id, Dim: dim}, nil
}

// NewFeasibility builds a feasibility cut δQ·x ≥ q emitted by
// subproblem id.
func NewFeasibility(indices []int, values []float64, q float64, id, dim int) (*Hyperplane, error) {
	if err := validate(indices, values, q, dim); err != nil {
		return nil, err
	}
	return &Hyperplane{Kind: Feasibility, Indices: indices, Values: values, Q: q, ID: id, Dim: dim}, nil
}

// NewLinearConstraint builds a first-stage row cut δQ·x ≥ q with
// row identifier id.
func NewLinearConstraint(indices []int, values []float64, q float64, id, dim int) (*Hyperplane, error) {
	if err := validate(indices, values, q, dim); err != nil {
		return nil, err
	}
	return &Hyperplane{Kind: LinearConstraint, Indices: indices, Values: values, Q: q, ID: id, Dim: dim}, nil
}

// NewUnbounded builds the unbounded-subproblem signal for id.
func NewUnbounded(id int) *Hyperplane {
	return &Hyperplane{Kind: Unbounded, ID: id}
}

// NewInfeasible builds the infeasible-subproblem signal for id.
func NewInfeasible(id int) *Hyperplane {
	return &Hyperplane{Kind: Infeasible, ID: id}
}
