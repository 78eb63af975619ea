// Package hyperplane_test contains unit tests for the cut algebra:
// construction invariants, predicate arms per kind, serialization
// round-trips and first-stage row ingestion.
package hyperplane_test

import (
	"errors"
	"math"
	"testing"

	"github.com/jandelmi/lshaped/hyperplane"
)

// ------------------------------------------------------------------------
// 1. Construction: coefficient invariants.
// ------------------------------------------------------------------------

func TestNewOptimality_BadIndex(t *testing.T) {
	// Index 2 is outside dim=2.
	_, err := hyperplane.NewOptimality([]int{0, 2}, []float64{1, 1}, 0, 0, 2)
	if !errors.Is(err, hyperplane.ErrBadIndex) {
		t.Fatalf("expected ErrBadIndex, got %v", err)
	}
}

func TestNewOptimality_NonFinite(t *testing.T) {
	_, err := hyperplane.NewOptimality([]int{0}, []float64{math.NaN()}, 0, 0, 2)
	if !errors.Is(err, hyperplane.ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite for NaN value, got %v", err)
	}
	_, err = hyperplane.NewFeasibility([]int{0}, []float64{1}, math.Inf(1), 0, 2)
	if !errors.Is(err, hyperplane.ErrNonFinite) {
		t.Fatalf("expected ErrNonFinite for infinite offset, got %v", err)
	}
}

func TestNewOptimality_LengthMismatch(t *testing.T) {
	_, err := hyperplane.NewOptimality([]int{0, 1}, []float64{1}, 0, 0, 2)
	if !errors.Is(err, hyperplane.ErrBadIndex) {
		t.Fatalf("expected ErrBadIndex for parallel-slice mismatch, got %v", err)
	}
}

// ------------------------------------------------------------------------
// 2. Evaluation and the dimension-mismatch panic.
// ------------------------------------------------------------------------

func TestEvaluate_Generic(t *testing.T) {
	// 2x₀ + 3x₁ ≥ 4 evaluated at (1, 2) gives Gval = 8.
	h, err := hyperplane.NewLinearConstraint([]int{0, 1}, []float64{2, 3}, 4, 0, 2)
	if err != nil {
		t.Fatalf("unexpected construction error: %v", err)
	}
	gval, q := h.Evaluate([]float64{1, 2})
	if gval != 8 || q != 4 {
		t.Fatalf("Evaluate = (%g, %g), want (8, 4)", gval, q)
	}
}

func TestRecourse_Optimality(t *testing.T) {
	// q − δQ·x = 10 − (1·1 + 2·2) = 5.
	h, _ := hyperplane.NewOptimality([]int{0, 1}, []float64{1, 2}, 10, 0, 2)
	if got := h.Recourse([]float64{1, 2}); got != 5 {
		t.Fatalf("Recourse = %g, want 5", got)
	}
}

func TestEvaluate_DimensionMismatchPanics(t *testing.T) {
	h, _ := hyperplane.NewLinearConstraint([]int{0, 1}, []float64{1, 1}, 0, 0, 2)
	defer func() {
		r := recover()
		if r == nil {
			t.Fatal("expected panic on short point")
		}
		de, ok := r.(*hyperplane.DimensionError)
		if !ok {
			t.Fatalf("expected *DimensionError, got %T", r)
		}
		if de.Want != 2 || de.Got != 1 {
			t.Fatalf("DimensionError = %+v, want Want=2 Got=1", de)
		}
	}()
	h.Evaluate([]float64{1})
}

// ------------------------------------------------------------------------
// 3. Predicates per kind.
// ------------------------------------------------------------------------

const tol = 1e-6

func TestPredicates_Generic(t *testing.T) {
	// x₀ ≥ 1 at x₀ = 1: active and satisfied, gap 0.
	h, _ := hyperplane.NewLinearConstraint([]int{0}, []float64{1}, 1, 0, 1)

	x := []float64{1}
	if !h.Active(x, nil, tol) {
		t.Error("cut should be active at its boundary")
	}
	if !h.Satisfied(x, nil, tol) {
		t.Error("cut should be satisfied at its boundary")
	}
	if gap := h.Gap(x, nil); gap != 0 {
		t.Errorf("Gap = %g, want 0", gap)
	}

	// Interior point: satisfied but not active, positive gap.
	x = []float64{3}
	if h.Active(x, nil, tol) {
		t.Error("cut should be inactive in the interior")
	}
	if !h.Satisfied(x, nil, tol) {
		t.Error("cut should be satisfied in the interior")
	}
	if gap := h.Gap(x, nil); gap != 2 {
		t.Errorf("Gap = %g, want 2", gap)
	}

	// Violated point: negative gap.
	x = []float64{0}
	if !h.Violated(x, nil, tol) {
		t.Error("cut should be violated below its boundary")
	}
	if gap := h.Gap(x, nil); gap != -1 {
		t.Errorf("Gap = %g, want -1", gap)
	}
}

func TestPredicates_Optimality(t *testing.T) {
	// θ₀ ≥ 10 − x₀ at x₀ = 4: recourse estimate 6.
	h, _ := hyperplane.NewOptimality([]int{0}, []float64{1}, 10, 0, 1)
	x := []float64{4}

	// Unpopulated θ slot: not active, not satisfied, infinite gap.
	thetas := []float64{hyperplane.SentinelFloor}
	if h.Active(x, thetas, tol) || h.Satisfied(x, thetas, tol) {
		t.Error("sentinel θ must read as unpopulated")
	}
	if gap := h.Gap(x, thetas); !math.IsInf(gap, 1) {
		t.Errorf("Gap with sentinel θ = %g, want +Inf", gap)
	}

	// θ exactly at the estimate: active, satisfied, zero gap.
	thetas = []float64{6}
	if !h.Active(x, thetas, tol) || !h.Satisfied(x, thetas, tol) {
		t.Error("cut should support θ at the recourse estimate")
	}
	if gap := h.Gap(x, thetas); gap != 0 {
		t.Errorf("Gap = %g, want 0", gap)
	}

	// θ above: satisfied, inactive. θ below: violated.
	thetas = []float64{8}
	if h.Active(x, thetas, tol) || !h.Satisfied(x, thetas, tol) {
		t.Error("cut should be slack above the estimate")
	}
	thetas = []float64{5}
	if !h.Violated(x, thetas, tol) {
		t.Error("cut should be violated below the estimate")
	}
}

func TestPredicates_Signals(t *testing.T) {
	ub := hyperplane.NewUnbounded(3)
	if ub.Bounded() {
		t.Error("Unbounded signal must report Bounded() == false")
	}
	if !ub.Satisfied(nil, nil, tol) {
		t.Error("Unbounded signal constrains nothing")
	}

	inf := hyperplane.NewInfeasible(4)
	if !inf.Bounded() {
		t.Error("Infeasible signal is still bounded")
	}
	if inf.Satisfied(nil, nil, tol) {
		t.Error("Infeasible signal is never satisfied")
	}
	if gap := inf.Gap(nil, nil); !math.IsInf(gap, 1) {
		t.Errorf("signal Gap = %g, want +Inf", gap)
	}
}

// ------------------------------------------------------------------------
// 4. Serialization round-trip.
// ------------------------------------------------------------------------

func TestLowLevel_Feasibility(t *testing.T) {
	h, _ := hyperplane.NewFeasibility([]int{0, 2}, []float64{1, -2}, 3, 1, 4)
	indices, values, lb, ub := h.LowLevel()
	if len(indices) != 2 || indices[0] != 0 || indices[1] != 2 {
		t.Fatalf("indices = %v, want [0 2]", indices)
	}
	if values[0] != 1 || values[1] != -2 {
		t.Fatalf("values = %v, want [1 -2]", values)
	}
	if lb != 3 || !math.IsInf(ub, 1) {
		t.Fatalf("bounds = (%g, %g), want (3, +Inf)", lb, ub)
	}
}

func TestLowLevel_OptimalityAppendsThetaColumn(t *testing.T) {
	h, _ := hyperplane.NewOptimality([]int{1}, []float64{-0.5}, 7, 2, 3)
	indices, values, lb, _ := h.LowLevel()
	if len(indices) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(indices))
	}
	// θ slot 2 lands on column dim+id = 5 with coefficient +1.
	if indices[1] != 5 || values[1] != 1.0 {
		t.Fatalf("θ column = (%d, %g), want (5, 1)", indices[1], values[1])
	}
	if lb != 7 {
		t.Fatalf("lb = %g, want q = 7", lb)
	}
}

func TestLowLevel_RoundTrip(t *testing.T) {
	// Re-reading the serialized row must restore the same linear relation:
	// the x-block coefficients, q and the θ column placement.
	orig, _ := hyperplane.NewOptimality([]int{0, 1}, []float64{2, -1}, 9, 1, 2)
	indices, values, lb, _ := orig.LowLevel()

	// Strip the θ column back off and rebuild.
	back, err := hyperplane.NewOptimality(indices[:len(indices)-1], values[:len(values)-1], lb, indices[len(indices)-1]-orig.Dim, orig.Dim)
	if err != nil {
		t.Fatalf("rebuild failed: %v", err)
	}
	x := []float64{1.5, -2}
	if got, want := back.Recourse(x), orig.Recourse(x); math.Abs(got-want) > 1e-15 {
		t.Fatalf("round-trip recourse = %g, want %g", got, want)
	}
	if back.ID != orig.ID {
		t.Fatalf("round-trip id = %d, want %d", back.ID, orig.ID)
	}
}

// ------------------------------------------------------------------------
// 5. Row ingestion.
// ------------------------------------------------------------------------

func TestFromRow_GreaterSide(t *testing.T) {
	h, err := hyperplane.FromRow([]int{0, 1}, []float64{1, 1}, 2, math.Inf(1), 0, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Kind != hyperplane.LinearConstraint || h.Q != 2 {
		t.Fatalf("got kind %v q %g, want LinearConstraint q 2", h.Kind, h.Q)
	}
}

func TestFromRow_LessSideNegates(t *testing.T) {
	// x₀ + x₁ ≤ 5 becomes −x₀ − x₁ ≥ −5.
	h, err := hyperplane.FromRow([]int{0, 1}, []float64{1, 1}, math.Inf(-1), 5, 0, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if h.Q != -5 || h.Values[0] != -1 || h.Values[1] != -1 {
		t.Fatalf("negated form wrong: values %v q %g", h.Values, h.Q)
	}
	// The point (2,2) satisfies the original row, so it satisfies the cut.
	if !h.Satisfied([]float64{2, 2}, nil, tol) {
		t.Error("(2,2) should satisfy x₀+x₁ ≤ 5")
	}
	if !h.Violated([]float64{3, 3}, nil, tol) {
		t.Error("(3,3) should violate x₀+x₁ ≤ 5")
	}
}

func TestFromRow_RejectsRangedAndFree(t *testing.T) {
	if _, err := hyperplane.FromRow([]int{0}, []float64{1}, 0, 1, 0, 1); !errors.Is(err, hyperplane.ErrRangedRow) {
		t.Fatalf("expected ErrRangedRow, got %v", err)
	}
	// Equality rows are a zero-width range and are rejected too.
	if _, err := hyperplane.FromRow([]int{0}, []float64{1}, 1, 1, 0, 1); !errors.Is(err, hyperplane.ErrRangedRow) {
		t.Fatalf("expected ErrRangedRow for equality, got %v", err)
	}
	if _, err := hyperplane.FromRow([]int{0}, []float64{1}, math.Inf(-1), math.Inf(1), 0, 1); !errors.Is(err, hyperplane.ErrFreeRow) {
		t.Fatalf("expected ErrFreeRow, got %v", err)
	}
}
