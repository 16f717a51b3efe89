package linalg

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrNotHermitian is returned when the input matrix is not Hermitian within
// tolerance.
var ErrNotHermitian = errors.New("linalg: matrix is not Hermitian")

// ErrEigenFailed is returned when the decomposition does not converge.
var ErrEigenFailed = errors.New("linalg: eigen decomposition did not converge")

// Eigen is the result of a Hermitian eigendecomposition.
type Eigen struct {
	// Values holds the n eigenvalues in descending order.
	Values []float64

	// Leading is the unit-norm eigenvector of Values[0]. Its global phase
	// is fixed so the largest-magnitude component is real and positive,
	// which makes the vector reproducible across runs.
	Leading []complex128
}

// EigenHermitian decomposes the Hermitian matrix h.
// tol bounds the accepted deviation from Hermitian symmetry.
// Returns ErrNotHermitian or ErrEigenFailed.
// Complexity: O(n³) time, O(n²) memory.
func EigenHermitian(h *Hermitian, tol float64) (Eigen, error) {
	n := h.Size()
	if n == 0 {
		return Eigen{Values: []float64{}, Leading: []complex128{}}, nil
	}
	if !h.IsHermitian(tol) {
		return Eigen{}, ErrNotHermitian
	}

	// Real symmetric embedding [[A, -B], [B, A]] of H = A + iB.
	m := 2 * n
	data := make([]float64, m*m)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			z := h.At(i, j)
			a, b := real(z), imag(z)
			data[i*m+j] = a
			data[i*m+(n+j)] = -b
			data[(n+i)*m+j] = b
			data[(n+i)*m+(n+j)] = a
		}
	}
	sym := mat.NewSymDense(m, data)

	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return Eigen{}, fmt.Errorf("EigenHermitian %dx%d: %w", n, n, ErrEigenFailed)
	}
	raw := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// Sort embedding eigenpairs descending; each eigenvalue of H occupies
	// two adjacent slots.
	order := make([]int, m)
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return raw[order[a]] > raw[order[b]] })

	values := make([]float64, n)
	for k := 0; k < n; k++ {
		values[k] = (raw[order[2*k]] + raw[order[2*k+1]]) / 2
	}

	col := order[0]
	leading := make([]complex128, n)
	for i := 0; i < n; i++ {
		leading[i] = complex(vecs.At(i, col), vecs.At(n+i, col))
	}
	normalize(leading)

	return Eigen{Values: values, Leading: leading}, nil
}

// normalize scales v to unit norm and rotates its global phase so the
// largest-magnitude component (lowest index on ties) is real and positive.
func normalize(v []complex128) {
	norm := math.Sqrt(NormSquared(v))
	if norm == 0 {
		return
	}
	pivot := 0
	for i := range v {
		if cmplx.Abs(v[i]) > cmplx.Abs(v[pivot])+1e-12 {
			pivot = i
		}
	}
	rot := cmplx.Conj(v[pivot]) / complex(cmplx.Abs(v[pivot]), 0)
	for i := range v {
		v[i] = v[i] * rot / complex(norm, 0)
	}
}
