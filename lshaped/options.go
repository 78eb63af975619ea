package lshaped

import (
	"io"
	"math"
)

// Crash selects how the starting point x₀ is produced when none is
// supplied.
type Crash int

const (
	// CrashNone draws x₀ uniformly inside the first-stage bounds.
	CrashNone Crash = iota

	// CrashEVP solves the expected-value problem (all scenarios averaged
	// into one) and starts from its first-stage optimum.
	CrashEVP
)

// Options configures an engine. Zero values are filled by
// DefaultOptions; prefer the functional constructors below.
//
// Gamma steers the serious-step tests: the approximate descent factor
// of regularized decomposition and the acceptance factor of the trust
// region. Sigma and Lambda are the initial regularization weight and
// the level parameter. Kappa is the asynchronous advance fraction: the
// distributed level-set coordinator moves to the next timestamp once
// κ·S subproblems of the current one have reported (and at least S
// cuts exist overall).
type Options struct {
	Tol       float64
	Gamma     float64
	Bundle    int
	Crash     Crash
	Autotune  bool
	Log       io.Writer
	Linearize bool
	CheckFeas bool
	Kappa     float64
	Workers   int
	Sigma     float64
	Lambda    float64
	DeltaMax  float64
	MaxIter   int
	Start     []float64
	Seed      int64
}

// Option mutates Options.
type Option func(*Options)

// DefaultOptions returns the defaults for a variant: τ = 1e−6,
// bundle 1, κ = 0.3, σ = 1, λ = 0.5, Δ̅ = 1000 and a variant-specific
// γ (0.9 for regularized decomposition, 1e−4 for the trust region).
func DefaultOptions(v Variant) Options {
	gamma := 1e-4
	if v.localization() == RD {
		gamma = 0.9
	}

	return Options{
		Tol:      1e-6,
		Gamma:    gamma,
		Bundle:   1,
		Kappa:    0.3,
		Workers:  2,
		Sigma:    1.0,
		Lambda:   0.5,
		DeltaMax: 1000,
		MaxIter:  500,
		Seed:     1,
	}
}

// WithTolerance sets the progress threshold τ. Must be positive.
func WithTolerance(tol float64) Option {
	return func(o *Options) {
		if tol <= 0 || math.IsNaN(tol) {
			panic("lshaped: tolerance must be positive")
		}
		o.Tol = tol
	}
}

// WithGamma sets the serious-step factor γ ∈ (0, 1).
func WithGamma(gamma float64) Option {
	return func(o *Options) {
		if gamma <= 0 || gamma >= 1 {
			panic("lshaped: gamma must lie in (0, 1)")
		}
		o.Gamma = gamma
	}
}

// WithBundle sets the optimality-cut bundle size B ≥ 1; it is clamped
// to the scenario count at solve time.
func WithBundle(b int) Option {
	return func(o *Options) {
		if b < 1 {
			panic("lshaped: bundle size must be at least 1")
		}
		o.Bundle = b
	}
}

// WithCrash selects the starting-point strategy.
func WithCrash(c Crash) Option {
	return func(o *Options) { o.Crash = c }
}

// WithAutotune lets the engine pick σ (regularized) from the starting
// point's cost instead of the configured value, and raises Δ̅ (trust
// region) to at least ten times the initial radius.
func WithAutotune() Option {
	return func(o *Options) { o.Autotune = true }
}

// WithLog installs a progress writer; each iteration prints Q, the gap
// and the cut count. Nil disables logging (the default).
func WithLog(w io.Writer) Option {
	return func(o *Options) { o.Log = w }
}

// WithLinearize keeps the level-set projection LP-only (1-norm) and
// defers θ-column costs until each slot receives its first optimality
// cut.
func WithLinearize() Option {
	return func(o *Options) { o.Linearize = true }
}

// WithCheckFeasibility turns scenario infeasibility into feasibility
// cuts instead of terminating.
func WithCheckFeasibility() Option {
	return func(o *Options) { o.CheckFeas = true }
}

// WithKappa sets the asynchronous advance fraction κ ∈ (0, 1].
func WithKappa(kappa float64) Option {
	return func(o *Options) {
		if kappa <= 0 || kappa > 1 {
			panic("lshaped: kappa must lie in (0, 1]")
		}
		o.Kappa = kappa
	}
}

// WithWorkers sets the distributed worker count W ≥ 1.
func WithWorkers(w int) Option {
	return func(o *Options) {
		if w < 1 {
			panic("lshaped: worker count must be at least 1")
		}
		o.Workers = w
	}
}

// WithSigma sets the initial regularization weight σ > 0.
func WithSigma(sigma float64) Option {
	return func(o *Options) {
		if sigma <= 0 {
			panic("lshaped: sigma must be positive")
		}
		o.Sigma = sigma
	}
}

// WithLambda sets the level parameter λ ∈ (0, 1).
func WithLambda(lambda float64) Option {
	return func(o *Options) {
		if lambda <= 0 || lambda >= 1 {
			panic("lshaped: lambda must lie in (0, 1)")
		}
		o.Lambda = lambda
	}
}

// WithDeltaMax sets the trust-region radius cap Δ̅ > 0.
func WithDeltaMax(dmax float64) Option {
	return func(o *Options) {
		if dmax <= 0 {
			panic("lshaped: delta max must be positive")
		}
		o.DeltaMax = dmax
	}
}

// WithMaxIterations caps the iteration (or timestamp) count; exceeding
// it returns StoppedPrematurely.
func WithMaxIterations(n int) Option {
	return func(o *Options) {
		if n < 1 {
			panic("lshaped: iteration cap must be at least 1")
		}
		o.MaxIter = n
	}
}

// WithStart supplies x₀ explicitly; its length is validated at solve
// time.
func WithStart(x []float64) Option {
	return func(o *Options) { o.Start = append([]float64(nil), x...) }
}

// WithSeed seeds the random starting point of CrashNone.
func WithSeed(seed int64) Option {
	return func(o *Options) { o.Seed = seed }
}
