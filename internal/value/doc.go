// Package value holds the constrained payload types used when frames leave
// the process: golden snapshots, the run store and CLI JSON output.
//
// Only strings, integers, booleans, arrays and objects are representable.
// Floats and nulls are rejected so that canonical encodings, and therefore
// snapshot digests, are stable across platforms.
package value
