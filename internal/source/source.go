// Package source provides streaming access to raw tabular sources (CSV/TSV
// files or in-memory tables). Sources are the engine's only input besides the
// mapping configuration; download connectors and UI glue live outside.
package source

// Row is a single raw record keyed by column name, tagged with its original
// position in the source. The position keys deterministic merge ordering in
// the graph builder.
type Row struct {
	Index  int
	Values map[string]string
}

// Iterator provides streaming access to rows.
type Iterator interface {
	// Next advances to the next row. Returns false when done or on error.
	Next() bool

	// Value returns the current row. Only valid after Next() returns true.
	Value() Row

	// Err returns any error encountered during iteration.
	Err() error

	// Close releases resources. Must be called when done.
	Close() error
}

// Source is a readable tabular input.
type Source interface {
	// ID identifies the source (path or handle name) for caching and
	// provenance.
	ID() string

	// Columns returns the header in declared order.
	Columns() []string

	// Rows returns a fresh iterator over all rows. Multiple passes over the
	// same source must yield identical rows.
	Rows() (Iterator, error)

	// Malformed returns the number of rows skipped because their field count
	// did not match the header. Populated after a full pass.
	Malformed() int
}
