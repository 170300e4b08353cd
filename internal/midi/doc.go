// Package midi owns the wire protocol primitives.
//
// Ownership boundary:
// - message model and status-byte classification
// - per-stream parser state machine with resynchronization
// - encoder with running-status compression
//
// The package does no I/O and holds no cross-stream state; merge-point
// concerns live in internal/merge.
package midi
