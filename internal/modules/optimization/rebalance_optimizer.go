// Package optimization finds the continuous purchase amounts that move a
// portfolio closest to its target allocation with the cash available.
package optimization

import (
	"fmt"
	"math"

	"github.com/aristath/rebalancer/internal/domain"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/optimize"
)

const (
	defaultPenaltyWeight = 1000.0
	defaultMaxIterations = 500
)

// RebalanceOptimizer solves
//
//	minimize   J1(x) + J2(x)
//	subject to 0 ≤ x_i ≤ totalCash, Σx ≤ totalCash
//
// with gonum. Variables are scaled by totalCash so the solver works on [0, 1].
// Bounds are enforced by projection and the budget by a quadratic penalty.
type RebalanceOptimizer struct {
	penaltyWeight float64
	maxIterations int
	log           zerolog.Logger
}

// NewRebalanceOptimizer creates a new rebalance optimizer
func NewRebalanceOptimizer(log zerolog.Logger) *RebalanceOptimizer {
	return &RebalanceOptimizer{
		penaltyWeight: defaultPenaltyWeight,
		maxIterations: defaultMaxIterations,
		log:           log.With().Str("component", "rebalance_optimizer").Logger(),
	}
}

// Optimize returns one purchase amount per asset, in the order of current.
//
// current is each holding's value and totalCash the investable cash, both in
// one currency; target holds fractions summing to 1. Non-convergence is not an
// error: the best feasible point seen is returned, all zeros if nothing helps.
// Only mismatched input lengths fail.
func (o *RebalanceOptimizer) Optimize(current, target []float64, totalCash float64) ([]float64, error) {
	n := len(current)
	if len(target) != n {
		return nil, fmt.Errorf("%w: %d current values for %d targets", domain.ErrValidation, n, len(target))
	}

	zeros := make([]float64, n)
	if n == 0 || !(totalCash > 0) || math.IsInf(totalCash, 0) {
		return zeros, nil
	}

	// Scaled problem: y = x / totalCash
	scaledCurrent := make([]float64, n)
	floats.ScaleTo(scaledCurrent, 1/totalCash, current)

	problem := optimize.Problem{
		Func: func(y []float64) float64 {
			yProj := projectToBounds(y)
			obj := Objective(yProj, scaledCurrent, target, 1.0)
			obj += o.penaltyWeight * floats.Distance(y, yProj, 2) * floats.Distance(y, yProj, 2)
			if excess := floats.Sum(yProj) - 1.0; excess > 0 {
				obj += o.penaltyWeight * excess * excess
			}
			return obj
		},
		Grad: func(grad, y []float64) {
			yProj := projectToBounds(y)
			Gradient(grad, yProj, scaledCurrent, target, 1.0)

			excess := math.Max(0, floats.Sum(yProj)-1.0)
			for i := range grad {
				if yProj[i] != y[i] {
					// Clipped: the objective is flat along this axis
					grad[i] = 2 * o.penaltyWeight * (y[i] - yProj[i])
					continue
				}
				grad[i] += 2 * o.penaltyWeight * excess
			}
		},
	}

	initial := o.initialGuess(current, target, totalCash)

	best := projectToFeasible(initial)
	bestScore := Objective(best, scaledCurrent, target, 1.0)

	settings := &optimize.Settings{MajorIterations: o.maxIterations}
	methods := []struct {
		name   string
		method optimize.Method
	}{
		{"bfgs", &optimize.BFGS{}},
		{"nelder_mead", &optimize.NelderMead{}},
	}

	for _, m := range methods {
		result, err := optimize.Minimize(problem, initial, settings, m.method)
		if result == nil {
			o.log.Debug().Err(err).Str("method", m.name).Msg("Solver returned no result")
			continue
		}

		candidate := projectToFeasible(result.X)
		score := Objective(candidate, scaledCurrent, target, 1.0)

		o.log.Debug().
			Str("method", m.name).
			Str("status", result.Status.String()).
			Float64("objective", score).
			AnErr("solver_error", err).
			Msg("Solver finished")

		if score < bestScore {
			best, bestScore = candidate, score
		}
		if err == nil && isConverged(result.Status) {
			break
		}
	}

	solution := make([]float64, n)
	floats.ScaleTo(solution, totalCash, best)
	return solution, nil
}

// initialGuess returns target*(Σcurrent + totalCash) − current in scaled
// units, clipped to the bounds.
func (o *RebalanceOptimizer) initialGuess(current, target []float64, totalCash float64) []float64 {
	total := floats.Sum(current) + totalCash
	guess := make([]float64, len(current))
	for i := range guess {
		guess[i] = (target[i]*total - current[i]) / totalCash
	}
	return projectToBounds(guess)
}

func isConverged(status optimize.Status) bool {
	return status == optimize.Success ||
		status == optimize.GradientThreshold ||
		status == optimize.FunctionConvergence
}

// projectToBounds clips every component to [0, 1]
func projectToBounds(y []float64) []float64 {
	proj := make([]float64, len(y))
	for i, v := range y {
		if math.IsNaN(v) {
			continue
		}
		proj[i] = math.Max(0, math.Min(1, v))
	}
	return proj
}

// projectToFeasible clips to the bounds, then scales down onto the budget
func projectToFeasible(y []float64) []float64 {
	proj := projectToBounds(y)
	if sum := floats.Sum(proj); sum > 1 {
		floats.Scale(1/sum, proj)
	}
	return proj
}
