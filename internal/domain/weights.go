package domain

import (
	"fmt"
	"math"
)

const (
	// WeightTotal is the value every conservative weight set sums to
	WeightTotal = 100.0
	// WeightTolerance is the accepted drift when validating a weight sum
	WeightTolerance = 0.01

	weightTotalCents int64 = 10000
)

// Round2 rounds v to two decimal places
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

func fromCents(c int64) float64 {
	return float64(c) / 100
}

// SumWeights returns the arithmetic sum rounded to 2 decimal places
func SumWeights(weights []float64) float64 {
	var total float64
	for _, w := range weights {
		total += w
	}
	return Round2(total)
}

// ValidateWeightSum fails unless the weights sum to 100 within WeightTolerance
func ValidateWeightSum(weights []float64) error {
	sum := SumWeights(weights)
	// 1e-9 absorbs binary representation error of the rounded sum
	if math.Abs(sum-WeightTotal) > WeightTolerance+1e-9 {
		return ErrWeightSumInvalid.With(fmt.Sprintf("sum is %.2f", sum))
	}
	return nil
}

// EqualDistribution returns n weights of 100/n truncated to 2 decimals, with
// the remainder added to the last element.
func EqualDistribution(n int) ([]float64, error) {
	if n < 1 {
		return nil, ErrOutOfRange.With(fmt.Sprintf("cannot distribute over %d weights", n))
	}

	base := weightTotalCents / int64(n)
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = fromCents(base)
	}
	weights[n-1] = fromCents(weightTotalCents - base*int64(n-1))
	return weights, nil
}

// NormalizeWeights rescales weights so they sum to exactly 100.00. Each
// weight is rounded to 2 decimals and the residual lands on the last element.
func NormalizeWeights(weights []float64) ([]float64, error) {
	if len(weights) == 0 {
		return nil, ErrWeightSumInvalid.With("no weights to normalize")
	}

	var total float64
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, ErrOutOfRange.With(fmt.Sprintf("weight[%d] = %v", i, w))
		}
		total += w
	}
	if total <= 0 {
		return nil, ErrWeightSumInvalid.With("weights must have a positive sum")
	}

	factor := WeightTotal / total
	cents := make([]int64, len(weights))
	var acc int64
	for i, w := range weights {
		cents[i] = toCents(w * factor)
		acc += cents[i]
	}
	absorbResidual(cents, weightTotalCents-acc)

	out := make([]float64, len(cents))
	for i, c := range cents {
		out[i] = fromCents(c)
	}
	return out, nil
}

// absorbResidual adds the rounding residual to the last element. A negative
// residual that would push the last element below zero walks back to the
// nearest element that can take it.
func absorbResidual(cents []int64, residual int64) {
	for i := len(cents) - 1; i >= 0; i-- {
		if cents[i]+residual >= 0 {
			cents[i] += residual
			return
		}
	}
}

// RedistributeWeights removes the weight at index and spreads it over the
// remaining weights in proportion to their share, then renormalizes.
func RedistributeWeights(weights []float64, index int) ([]float64, error) {
	n := len(weights)
	if index < 0 || index >= n {
		return nil, ErrInvalidIndex.With(fmt.Sprintf("index %d out of bounds for %d weights", index, n))
	}
	if n == 1 {
		return nil, ErrInvalidIndex.With("cannot remove the only weight")
	}

	removed := weights[index]
	rest := make([]float64, 0, n-1)
	var remaining float64
	for i, w := range weights {
		if i == index {
			continue
		}
		rest = append(rest, w)
		remaining += w
	}

	if remaining <= 0 {
		// nothing to be proportional to
		if removed <= 0 {
			return EqualDistribution(len(rest))
		}
		share := removed / float64(len(rest))
		for i := range rest {
			rest[i] += share
		}
		return NormalizeWeights(rest)
	}

	for i, w := range rest {
		rest[i] = w + removed*(w/remaining)
	}
	return NormalizeWeights(rest)
}

// ApplyWeightChange sets weights[index] to newWeight, spreads the signed delta
// evenly across the other weights (never below zero) and renormalizes.
func ApplyWeightChange(weights []float64, index int, newWeight float64) ([]float64, error) {
	if newWeight < 0 || newWeight > WeightTotal || math.IsNaN(newWeight) {
		return nil, ErrOutOfRange.With(fmt.Sprintf("weight %v must be between 0 and 100", newWeight))
	}
	n := len(weights)
	if index < 0 || index >= n {
		return nil, ErrInvalidIndex.With(fmt.Sprintf("index %d out of bounds for %d weights", index, n))
	}

	out := make([]float64, n)
	copy(out, weights)

	delta := newWeight - out[index]
	out[index] = newWeight
	if n > 1 {
		share := delta / float64(n-1)
		for i := range out {
			if i == index {
				continue
			}
			out[i] = math.Max(0, out[i]-share)
		}
	}
	return NormalizeWeights(out)
}

// WeightedScore is score * weight / 100, or 0 when the score is unset
func WeightedScore(score *float64, weight float64) float64 {
	if score == nil {
		return 0
	}
	return *score * weight / WeightTotal
}
