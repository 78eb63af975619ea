// Package denselp is a pure-Go reference implementation of the
// solver.Model contract: a dense bounded-variable linear-programming
// kernel with dual multipliers and Farkas rays, and an optional
// proximal conditional-gradient path for the diagonal quadratic
// objectives the regularized and level-set engines build.
//
// The LP kernel converts the model to standard form
// (min c·z, A·z = b, z ≥ 0: lower bounds shifted out, upper bounds as
// explicit rows, free variables split) and runs a two-phase dense
// simplex with Bland's pivoting rule. Phase one discovers a feasible
// basis through signed artificial columns; a positive phase-one
// optimum certifies infeasibility and its basis duals form the Farkas
// ray. Dual multipliers come from the final basis via Bᵀy = c_B.
//
// Quadratic objectives are handled by conditional gradient: each step
// solves the linearized LP at the current iterate and moves along the
// vertex direction with a closed-form exact line search. The quadratic
// path requires the feasible polyhedron to be bounded in every
// direction the gradient can take; an unbounded linearization surfaces
// as Status Other with a descriptive error.
//
// Complexity:
//
//	– Simplex: O(m³) per pivot for the dense basis solves; intended for
//	  the small and medium models decomposition produces, not for
//	  large-scale LPs.
//	– Conditional gradient: one LP solve per step, O(1/k) objective gap.
//
// New returns an LP-only adapter (QP() == false); NewQP enables the
// quadratic path. Both are safe to use from a single goroutine only,
// matching the one-model-per-owner discipline of the engines.
package denselp
