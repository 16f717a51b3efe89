// Package fusion implements the numerical core of sigfuse.
//
// A fusion round runs these components in order:
//
//  1. Encoder: raw features + context + confidence -> complex state vector
//  2. BuildCorrelation: stacked states -> trace-normalized Gram matrix
//  3. Fuser (spectral or pairwise): decomposition + confidence update law
//  4. StabilityMonitor: eigenvalue entropy and its round-over-round trend
//  5. ExtractPattern: confidence-weighted consensus feature vector
//
// Every function here is pure or owns only its own state. Nothing in this
// package performs I/O, spawns goroutines or reads the wall clock, so
// identical inputs always produce identical outputs.
//
// Degenerate inputs (no signals, a single signal, all-zero states, a
// decomposition that fails to converge) are expected steady state, not
// errors: fusers return a neutral Outcome that leaves confidences untouched.
package fusion
