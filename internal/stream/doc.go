// Package stream owns the per-source read loop.
//
// Ownership boundary:
// - the ByteSource capability contract and transport fault taxonomy
// - binding one parser to one source
// - translating faults into invalidation events, in program order
package stream
