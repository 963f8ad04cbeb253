// Package mapping loads declarative mapping configurations and resolves them
// against a profiled schema into an executable binding plan.
package mapping

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/path2target/transform-core/internal/core"
)

// TransformKind is the closed set of per-field transforms.
type TransformKind string

const (
	TransformRename    TransformKind = "rename"
	TransformCast      TransformKind = "cast"
	TransformNormalize TransformKind = "normalizeIdentifier"
	TransformConstant  TransformKind = "constant"
	TransformConcat    TransformKind = "concat"
)

// MergeStrategy declares how two rules targeting the same (class, predicate)
// combine. Conflicting targets without a strategy are a mapping error.
type MergeStrategy string

const (
	MergeLastWins  MergeStrategy = "last_wins"
	MergeFirstWins MergeStrategy = "first_wins"
)

// Rule binds one source field (or constant) to an intermediate-model target.
type Rule struct {
	SourceField     string        `yaml:"source_field"`
	TargetClass     string        `yaml:"target_class"`
	TargetPredicate string        `yaml:"target_predicate"`
	Transform       TransformKind `yaml:"transform"`

	// Authority selects the resolution provider for normalizeIdentifier.
	Authority core.Authority `yaml:"authority,omitempty"`

	// CastType is the target type for cast transforms.
	CastType core.ColumnType `yaml:"cast_type,omitempty"`

	// Value is the fixed value for constant transforms.
	Value string `yaml:"value,omitempty"`

	// Fields and Separator configure concat transforms.
	Fields    []string `yaml:"fields,omitempty"`
	Separator string   `yaml:"separator,omitempty"`

	// Required rules must produce a value for every row: an empty cell with
	// no default is a build warning, and the shape check reports the missing
	// property as an error.
	Required bool `yaml:"required"`

	// Default satisfies a required rule when the source cell is empty.
	Default string `yaml:"default,omitempty"`

	// Merge must be declared when another rule writes the same target.
	Merge MergeStrategy `yaml:"merge,omitempty"`
}

// EdgeRule materializes one edge per row between two mapped classes.
type EdgeRule struct {
	SubjectClass string `yaml:"subject_class"`
	Predicate    string `yaml:"predicate"`
	ObjectClass  string `yaml:"object_class"`

	// PredicateField takes the predicate from a column instead of a literal.
	PredicateField string `yaml:"predicate_field,omitempty"`

	// SubjectField / ObjectField override the id column of the respective
	// class. An override pointing at values that never materialize as nodes
	// produces a dangling-edge build error.
	SubjectField string `yaml:"subject_field,omitempty"`
	ObjectField  string `yaml:"object_field,omitempty"`
}

// Config is a declarative mapping: an ordered rule set plus the declared root
// entity type.
type Config struct {
	Root    string     `yaml:"root"`
	BaseIRI string     `yaml:"base_iri,omitempty"`
	Rules   []Rule     `yaml:"rules"`
	Edges   []EdgeRule `yaml:"edges,omitempty"`
}

// Load reads a mapping config from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Errorf(core.CodeConfiguration, "read mapping config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a mapping config from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, core.Errorf(core.CodeConfiguration, "parse mapping config: %w", err)
	}
	if cfg.Root == "" {
		return nil, core.Errorf(core.CodeConfiguration, "mapping config declares no root entity type")
	}
	if len(cfg.Rules) == 0 {
		return nil, core.Errorf(core.CodeConfiguration, "mapping config declares no rules")
	}
	for i := range cfg.Rules {
		if cfg.Rules[i].Transform == "" {
			cfg.Rules[i].Transform = TransformRename
		}
	}
	return &cfg, nil
}

// RuleID names a rule for error context and provenance trails.
func RuleID(index int, r *Rule) string {
	return fmt.Sprintf("r%02d:%s.%s", index, r.TargetClass, r.TargetPredicate)
}
