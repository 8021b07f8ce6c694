// Package domain defines the core business types of the pipeline engine.
//
// This package depends on nothing outside the Go standard library. Definitions,
// run records and the error taxonomy live here so that the engine, the storage
// layer and the HTTP service can share them without importing each other.
//
// The dependency direction is always:
//
//	Infrastructure → Domain (CORRECT)
//	Domain → Infrastructure (FORBIDDEN)
package domain
