package fusion

import "fmt"

// ExtractPattern returns the confidence-weighted mean of the real part of
// every state vector. With zero total confidence (including N=0) it returns
// the zero vector of length dim.
func ExtractPattern(states [][]complex128, confidences []float64, dim int) []float64 {
	if len(states) != len(confidences) {
		panic(fmt.Sprintf("fusion: %d states but %d confidences", len(states), len(confidences)))
	}
	out := make([]float64, dim)
	var total float64
	for _, c := range confidences {
		total += c
	}
	if total == 0 {
		return out
	}
	for i, s := range states {
		if len(s) != dim {
			panic(fmt.Sprintf("fusion: state %d has dimension %d, want %d", i, len(s), dim))
		}
		w := confidences[i]
		for k, z := range s {
			out[k] += w * real(z)
		}
	}
	for k := range out {
		out[k] /= total
	}
	return out
}
