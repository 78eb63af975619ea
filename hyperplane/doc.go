// Package hyperplane implements the cut algebra of L-shaped
// decomposition: affine lower bounds on the recourse function and on
// the feasible polyhedron, together with the predicates the engines
// use to drive and prune the cut pool.
//
// A Hyperplane is a tagged record (δQ sparse, q, id, kind) with kind in
// {Optimality, Feasibility, LinearConstraint, Unbounded, Infeasible}.
// Optimality cuts bound the recourse estimate of one subproblem (or one
// bundle of subproblems) from below; feasibility cuts exclude
// first-stage points with infeasible recourse; linear-constraint cuts
// carry the first-stage row constraints into the committee pool.
// Unbounded and Infeasible carry no coefficients; they are terminal
// signals from the subproblem evaluator.
//
// Predicates (§ per-kind arms in hyperplane.go):
//
//	– Evaluate:  δQ·x (generic) or q − δQ·x (optimality recourse estimate)
//	– Active:    the cut supports the current point within tolerance
//	– Satisfied: the cut holds at the current point within tolerance
//	– Violated:  ¬Satisfied
//	– Gap:       signed slack; +∞ for an optimality cut whose θ slot
//	             is still at the sentinel floor
//	– LowLevel:  (indices, values, lb, ub) master-row serialization;
//	             optimality appends column dim+id with coefficient +1
//	             so the row reads δQ·x + θ_id ≥ q
//
// Bundling sums groups of B optimality cuts into a single aggregate
// row (see Aggregator); first-stage rows are ingested as
// LinearConstraint cuts via FromRow, with ranged rows rejected.
//
// Errors (sentinel):
//
//	– ErrBadIndex      coefficient index outside [0, dim)
//	– ErrNonFinite     non-finite coefficient or offset
//	– ErrNotOptimality a non-optimality cut was offered to a Bundle
//	– ErrRangedRow     a row with two finite bounds (equalities included) was ingested
//	– ErrFreeRow       a row with no finite bound was ingested
//
// Evaluating at a point shorter than the cut's dimension is a
// programming error and panics with a *DimensionError reporting both
// sizes; entries of a longer point beyond the dimension are ignored.
package hyperplane
