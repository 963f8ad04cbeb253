package core

// =============================================================================
// SCHEMA DESCRIPTOR
// Output of the raw schema profiler. Immutable once produced; one per source.
// =============================================================================

// ColumnType is the inferred logical type of a raw column.
type ColumnType string

const (
	TypeString     ColumnType = "string"
	TypeInteger    ColumnType = "integer"
	TypeFloat      ColumnType = "float"
	TypeBoolean    ColumnType = "boolean"
	TypeIdentifier ColumnType = "identifier"
	TypeDate       ColumnType = "date"
)

// ColumnProfile describes one column of a raw source.
type ColumnProfile struct {
	Name         string
	InferredType ColumnType
	// Authority is set when InferredType is TypeIdentifier and the values
	// match a known authority pattern.
	Authority     Authority
	NullRatio     float64 // fraction of sampled values that were empty, in [0,1]
	DistinctRatio float64 // distinct non-null values / non-null values, in [0,1]
	SampleValues  []string
	Position      int
}

// ColumnHints groups columns by likely role, derived from name tokens.
type ColumnHints struct {
	IDColumns       []string
	LabelColumns    []string
	RelationColumns []string
}

// SchemaDescriptor is the profiled shape of one raw tabular source.
type SchemaDescriptor struct {
	// SourceID identifies the profiled source (path or handle name); schema
	// descriptors are cached keyed by this identity.
	SourceID string
	Columns  []*ColumnProfile
	Hints    ColumnHints
	// RowsSampled is the number of rows the profiler inspected.
	RowsSampled int
	// MalformedRows counts rows skipped during profiling. Malformed rows are
	// a warning, never a profiling failure.
	MalformedRows int
}

// Column returns the profile for the named column, or nil.
func (s *SchemaDescriptor) Column(name string) *ColumnProfile {
	for _, c := range s.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// ColumnNames returns the declared column order.
func (s *SchemaDescriptor) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}
