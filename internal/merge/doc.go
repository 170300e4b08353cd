// Package merge owns the merge point of the two input streams.
//
// Ownership boundary:
// - the event union and the bounded merge channel
// - the single-consumer engine with its per-source status cache
// - running-status re-derivation on the shared output
package merge
