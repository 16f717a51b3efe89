// Package linalg provides the complex linear algebra behind signal fusion:
// Hermitian matrices, Gram construction and Hermitian eigendecomposition.
//
// Complex arithmetic uses Go's native complex128. The eigensolver embeds an
// n×n Hermitian matrix H = A + iB into the 2n×2n real symmetric matrix
//
//	[ A  -B ]
//	[ B   A ]
//
// and solves it with gonum's symmetric eigendecomposition. Every eigenvalue
// of H appears twice in the embedding, and an embedding eigenvector [x; y]
// maps back to the eigenvector x + iy of H.
//
// Dimension mismatches are programming errors and panic. Numerical failures
// (asymmetry beyond tolerance, non-convergence) are returned as errors.
package linalg
