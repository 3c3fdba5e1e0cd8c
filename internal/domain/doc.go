// Package domain defines the core domain types and interfaces.
//
// This package contains concept-oriented files (emotion.go, modality.go, fusion.go, etc.)
// with shared value types and cross-cutting interfaces. Value types carry small pure helpers
// (arithmetic, parsing, validation); anything with state or I/O lives elsewhere.
// Prevents circular imports by keeping interfaces on the consumer side.
package domain
