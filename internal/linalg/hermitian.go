package linalg

import (
	"fmt"
	"math"
	"math/cmplx"
	"slices"
)

// Hermitian is a dense n×n complex matrix stored row-major.
// Writes through Set keep the matrix Hermitian: setting (i,j) also sets
// (j,i) to the conjugate, and diagonal entries are forced real.
type Hermitian struct {
	n    int
	data []complex128
}

// NewHermitian allocates an n×n zero matrix.
func NewHermitian(n int) *Hermitian {
	if n < 0 {
		panic(fmt.Sprintf("linalg: negative dimension %d", n))
	}
	return &Hermitian{n: n, data: make([]complex128, n*n)}
}

// Size returns n.
func (h *Hermitian) Size() int {
	return h.n
}

// At returns element (i,j).
func (h *Hermitian) At(i, j int) complex128 {
	h.check(i, j)
	return h.data[i*h.n+j]
}

// Set writes element (i,j) and its mirror (j,i).
func (h *Hermitian) Set(i, j int, v complex128) {
	h.check(i, j)
	if i == j {
		h.data[i*h.n+i] = complex(real(v), 0)
		return
	}
	h.data[i*h.n+j] = v
	h.data[j*h.n+i] = cmplx.Conj(v)
}

// Trace returns the (real) sum of the diagonal.
func (h *Hermitian) Trace() float64 {
	var tr float64
	for i := 0; i < h.n; i++ {
		tr += real(h.data[i*h.n+i])
	}
	return tr
}

// Scale multiplies every element by f in place.
func (h *Hermitian) Scale(f float64) {
	for k := range h.data {
		h.data[k] *= complex(f, 0)
	}
}

// IsHermitian reports whether |M[i][j] - conj(M[j][i])| <= tol for all i,j.
func (h *Hermitian) IsHermitian(tol float64) bool {
	for i := 0; i < h.n; i++ {
		for j := i; j < h.n; j++ {
			if cmplx.Abs(h.data[i*h.n+j]-cmplx.Conj(h.data[j*h.n+i])) > tol {
				return false
			}
		}
	}
	return true
}

// IsZero reports whether every element is exactly zero.
func (h *Hermitian) IsZero() bool {
	for _, v := range h.data {
		if v != 0 {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (h *Hermitian) Clone() *Hermitian {
	return &Hermitian{n: h.n, data: slices.Clone(h.data)}
}

func (h *Hermitian) check(i, j int) {
	if i < 0 || i >= h.n || j < 0 || j >= h.n {
		panic(fmt.Sprintf("linalg: index (%d,%d) out of range for %dx%d matrix", i, j, h.n, h.n))
	}
}

// Inner returns the inner product Σ a[k]·conj(b[k]).
// Panics if the lengths differ.
func Inner(a, b []complex128) complex128 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("linalg: inner product length mismatch %d != %d", len(a), len(b)))
	}
	var sum complex128
	for k := range a {
		sum += a[k] * cmplx.Conj(b[k])
	}
	return sum
}

// NormSquared returns Σ |a[k]|².
func NormSquared(a []complex128) float64 {
	var sum float64
	for _, z := range a {
		sum += real(z)*real(z) + imag(z)*imag(z)
	}
	return sum
}

// Gram returns M = S·Sᴴ for the stacked rows of S, i.e. M[i][j] =
// Inner(rows[i], rows[j]). Only the upper triangle is computed; the lower
// triangle is its exact conjugate mirror, so the result is Hermitian without
// rounding asymmetry. Panics if the rows differ in length.
func Gram(rows [][]complex128) *Hermitian {
	n := len(rows)
	g := NewHermitian(n)
	if n == 0 {
		return g
	}
	dim := len(rows[0])
	for i, r := range rows {
		if len(r) != dim {
			panic(fmt.Sprintf("linalg: Gram row %d has length %d, want %d", i, len(r), dim))
		}
	}
	for i := 0; i < n; i++ {
		g.Set(i, i, complex(NormSquared(rows[i]), 0))
		for j := i + 1; j < n; j++ {
			g.Set(i, j, Inner(rows[i], rows[j]))
		}
	}
	return g
}

// Fidelity returns |M[i][j]|² / (M[i][i]·M[j][j]), the normalized squared
// overlap of rows i and j of the Gram matrix M. Returns 0 when either
// diagonal entry is zero.
func Fidelity(m *Hermitian, i, j int) float64 {
	di := real(m.At(i, i))
	dj := real(m.At(j, j))
	if di <= 0 || dj <= 0 {
		return 0
	}
	a := cmplx.Abs(m.At(i, j))
	return math.Min(1, a*a/(di*dj))
}
