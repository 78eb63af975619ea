package lshaped

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jandelmi/lshaped/denselp"
)

// newTRFixture wires a minimal engine around a one-variable master so
// the trust-region machine can be stepped directly.
func newTRFixture(delta, deltaMax float64) (*Solver, *trustRegionLoc) {
	m := denselp.New()
	m.AddColumn(-100, 100, 1)
	e := &Solver{
		variant: TR,
		opts:    DefaultOptions(TR),
		master:  m,
		lb:      []float64{-100},
		ub:      []float64{100},
		nsub:    1,
	}
	e.st = newState([]float64{1}, 1)
	e.st.x = []float64{0}
	e.st.xi = []float64{0}
	loc := &trustRegionLoc{e: e, delta: delta, deltaMax: deltaMax}

	return e, loc
}

func TestTrustRegion_MajorStepDoublesAndCaps(t *testing.T) {
	e, loc := newTRFixture(1.0, 1.5)
	e.st.qtilde = 10
	e.st.lower = 0
	e.st.q = 6
	e.st.x = []float64{0.5}

	require.NoError(t, loc.takeStep())

	// |Q−Q̃| = 4 ≤ ½(Q̃−θ) = 5 and the trial stayed inside the box, so
	// the radius doubles — but the cap wins.
	require.InDelta(t, 1.5, loc.delta, 1e-12)
	require.Equal(t, 0, loc.cDelta)
	require.InDelta(t, 6.0, e.st.qtilde, 1e-12)
	require.Equal(t, []float64{0.5}, e.st.xi)
}

func TestTrustRegion_MajorWithoutEnlarge(t *testing.T) {
	e, loc := newTRFixture(1.0, 100)
	e.st.qtilde = 8
	e.st.lower = 6
	e.st.q = 6 // major, but |Q−Q̃| = 2 > ½(Q̃−θ) = 1
	e.st.x = []float64{0.5}

	require.NoError(t, loc.takeStep())
	require.InDelta(t, 1.0, loc.delta, 1e-12)
	require.InDelta(t, 6.0, e.st.qtilde, 1e-12)
}

func TestTrustRegion_ReduceOnLargeRho(t *testing.T) {
	e, loc := newTRFixture(1.0, 100)
	e.st.qtilde = 10
	e.st.lower = 9.9
	e.st.q = 11 // ρ = (11−10)/(0.1) = 10 > 3

	require.NoError(t, loc.takeStep())
	require.InDelta(t, 0.25, loc.delta, 1e-12) // Δ / min(ρ, 4)
	require.Equal(t, 0, loc.cDelta)
}

func TestTrustRegion_ReduceAfterRepeatedNulls(t *testing.T) {
	e, loc := newTRFixture(1.0, 100)
	e.st.qtilde = 10
	e.st.lower = 8
	e.st.q = 14 // ρ = (14−10)/(10−8) = 2: only the repeated-null clause can fire

	require.NoError(t, loc.takeStep())
	require.Equal(t, 1, loc.cDelta)
	require.InDelta(t, 1.0, loc.delta, 1e-12)

	require.NoError(t, loc.takeStep())
	require.Equal(t, 2, loc.cDelta)
	require.InDelta(t, 1.0, loc.delta, 1e-12)

	// Third consecutive null with 1 < ρ ≤ 3 reduces exactly once.
	require.NoError(t, loc.takeStep())
	require.Equal(t, 0, loc.cDelta)
	require.InDelta(t, 0.5, loc.delta, 1e-12)
}

func TestTrustRegion_ReduceMonotone(t *testing.T) {
	// Every reduce strictly shrinks the radius.
	e, loc := newTRFixture(4.0, 100)
	e.st.qtilde = 10
	e.st.lower = 9
	e.st.q = 20 // ρ = min(1,4)·10 = 10

	before := loc.delta
	require.NoError(t, loc.takeStep())
	require.Less(t, loc.delta, before)
}

func TestRegularized_SigmaHalvesOnNullStep(t *testing.T) {
	m := denselp.NewQP()
	m.AddColumn(-10, 10, 1)
	m.AddColumn(-1e10, math.Inf(1), 1) // θ slot
	e := &Solver{
		variant: RD,
		opts:    DefaultOptions(RD),
		master:  m,
		lb:      []float64{-10},
		ub:      []float64{10},
	}
	e.st = newState([]float64{1}, 1)
	e.st.x = []float64{1}
	e.st.xi = []float64{0}
	e.costvec = []float64{1, 1}
	loc := &regularizedLoc{e: e, sigma: 4}

	// Null step: neither exact nor approximate descent.
	e.st.qtilde = 5
	e.st.lower = 0
	e.st.q = 9
	require.NoError(t, loc.takeStep())
	require.InDelta(t, 2.0, loc.sigma, 1e-12)
	require.InDelta(t, 5.0, e.st.qtilde, 1e-12)

	// Exact serious step: Q meets the lower model, σ doubles.
	e.st.q = 0
	e.st.lower = 0
	require.NoError(t, loc.takeStep())
	require.InDelta(t, 4.0, loc.sigma, 1e-12)
	require.InDelta(t, 0.0, e.st.qtilde, 1e-12)
	require.Equal(t, []float64{1}, e.st.xi)
}

func TestConverged_SentinelGuards(t *testing.T) {
	require.False(t, converged(math.Inf(-1), 5, 1e-6))
	require.False(t, converged(5, math.Inf(1), 1e-6))
	require.True(t, converged(5, 5+1e-8, 1e-6))
	require.False(t, converged(5, 6, 1e-6))
}
