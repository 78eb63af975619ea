// Package lshaped solves two-stage stochastic linear programs by
// Benders (L-shaped) decomposition.
//
// A first-stage decision x minimizes c·x + E[Q(x,ξ)], where Q(x,ξ) is
// the optimal value of a second-stage linear program parameterized by a
// scenario ξ. The recourse function is convex and piecewise linear but
// only available implicitly, one LP per scenario; the engine
// approximates it from below by linear optimality cuts on auxiliary
// variables θ, adding feasibility cuts when a scenario subproblem is
// infeasible at the current x.
//
// The module is organized under five subpackages:
//
//	hyperplane/  — cut representation, predicates, bundling, row ingestion
//	solver/      — the LP/QP adapter contract the engines drive
//	denselp/     — a pure-Go reference adapter (two-phase simplex + proximal QP)
//	subproblem/  — second-stage evaluator emitting one cut per solve
//	lshaped/     — serial and distributed engines with regularized,
//	               trust-region and level-set localization
//
// Convergence is stabilized by localization variants: regularized
// decomposition (quadratic proximal penalty), trust region (box around
// an incumbent) and level sets (projection onto a level set of the
// current lower model). A distributed driver overlaps subproblem
// evaluation with master updates across a coordinator/worker pool.
//
//	go get github.com/jandelmi/lshaped
package lshaped
