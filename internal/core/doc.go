// Package core provides shared data models used across all engine components.
// These models are implementation-agnostic and can be consumed by both the
// pipeline stages and the calling layer.
//
// Structure:
//
//	schema.go     - Schema descriptor and column profiles
//	identifier.go - Canonical identifiers and resolution statuses
//	authority.go  - Known identifier authorities and their patterns
//	graph.go      - Intermediate graph nodes, edges, snapshots
//	report.go     - Validation reports and findings
//	errors.go     - Coded engine errors
package core
