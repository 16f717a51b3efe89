package model

import "slices"

// ComplexVector is the lossless wire form of a complex vector: parallel
// real and imaginary arrays of equal length.
type ComplexVector struct {
	Re []float64 `json:"re"`
	Im []float64 `json:"im"`
}

// NewComplexVector splits v into its real and imaginary parts.
func NewComplexVector(v []complex128) ComplexVector {
	cv := ComplexVector{
		Re: make([]float64, len(v)),
		Im: make([]float64, len(v)),
	}
	for i, z := range v {
		cv.Re[i] = real(z)
		cv.Im[i] = imag(z)
	}
	return cv
}

// Len returns the vector length.
func (cv ComplexVector) Len() int {
	return len(cv.Re)
}

// Complex reassembles the complex vector.
// Panics if the real and imaginary arrays differ in length.
func (cv ComplexVector) Complex() []complex128 {
	if len(cv.Re) != len(cv.Im) {
		panic("model: ComplexVector re/im length mismatch")
	}
	out := make([]complex128, len(cv.Re))
	for i := range cv.Re {
		out[i] = complex(cv.Re[i], cv.Im[i])
	}
	return out
}

// Clone returns a deep copy.
func (cv ComplexVector) Clone() ComplexVector {
	return ComplexVector{Re: slices.Clone(cv.Re), Im: slices.Clone(cv.Im)}
}
