package optimization

// Objective scores a candidate purchase vector x against the target allocation.
//
// It is the sum of two terms in [0, 1):
//   - J1 = ‖target − (current+x)/Σ(current+x)‖², allocation distance
//   - J2 = ((totalCash − Σx) / (totalCash + Σx))², unused cash
//
// target holds fractions summing to 1. All slices must have equal length.
func Objective(x, current, target []float64, totalCash float64) float64 {
	j1 := allocationTerm(x, current, target, nil)
	j2 := cashTerm(x, totalCash, nil)
	return j1 + j2
}

// Gradient writes ∂Objective/∂x into grad
func Gradient(grad, x, current, target []float64, totalCash float64) {
	for i := range grad {
		grad[i] = 0
	}
	allocationTerm(x, current, target, grad)
	cashTerm(x, totalCash, grad)
}

// allocationTerm returns J1 and, when grad is non-nil, adds its gradient
func allocationTerm(x, current, target, grad []float64) float64 {
	n := len(x)
	total := 0.0
	for i := 0; i < n; i++ {
		total += current[i] + x[i]
	}

	// Nothing held and nothing bought: every allocation reads as zero
	if total <= 0 {
		j1 := 0.0
		for i := 0; i < n; i++ {
			j1 += target[i] * target[i]
		}
		return j1
	}

	diff := make([]float64, n)
	j1 := 0.0
	weighted := 0.0
	for i := 0; i < n; i++ {
		alloc := (current[i] + x[i]) / total
		diff[i] = target[i] - alloc
		j1 += diff[i] * diff[i]
		weighted += diff[i] * alloc
	}

	if grad != nil {
		for i := 0; i < n; i++ {
			grad[i] += -2.0 / total * (diff[i] - weighted)
		}
	}
	return j1
}

// cashTerm returns J2 and, when grad is non-nil, adds its gradient
func cashTerm(x []float64, totalCash float64, grad []float64) float64 {
	spent := 0.0
	for _, v := range x {
		spent += v
	}

	denom := totalCash + spent
	if denom == 0 {
		return 0
	}
	ratio := (totalCash - spent) / denom

	if grad != nil {
		d := 2.0 * ratio * (-2.0 * totalCash / (denom * denom))
		for i := range grad {
			grad[i] += d
		}
	}
	return ratio * ratio
}
