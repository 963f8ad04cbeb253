// Package validate checks the intermediate graph, and its serialized form,
// against shape constraints. Shape sets are supplied as configuration and
// evaluated here, never authored here.
package validate

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/path2target/transform-core/internal/core"
)

// PropertyShape constrains one property of an entity class.
type PropertyShape struct {
	Name     string `yaml:"name"`
	Required bool   `yaml:"required"`
	Datatype string `yaml:"datatype,omitempty"`
}

// ClassShape constrains one entity class.
type ClassShape struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Properties  []PropertyShape `yaml:"properties"`
}

// RelationShape permits one predicate between two classes.
type RelationShape struct {
	Subject   string `yaml:"subject"`
	Predicate string `yaml:"predicate"`
	Object    string `yaml:"object"`
}

// ShapeSet is the intermediate-model constraint set: entity classes with
// their property shapes and the permitted relations between them.
type ShapeSet struct {
	Classes   map[string]*ClassShape `yaml:"classes"`
	Relations []RelationShape        `yaml:"relations"`
	// Ontologies lists the ontology keys the model draws terms from.
	Ontologies []string `yaml:"ontologies,omitempty"`
}

// LoadShapes reads a shape set from a YAML file.
func LoadShapes(path string) (*ShapeSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, core.Errorf(core.CodeConfiguration, "read shape set %s: %w", path, err)
	}
	return ParseShapes(data)
}

// ParseShapes decodes a shape set from YAML bytes.
func ParseShapes(data []byte) (*ShapeSet, error) {
	var set ShapeSet
	if err := yaml.Unmarshal(data, &set); err != nil {
		return nil, core.Errorf(core.CodeConfiguration, "parse shape set: %w", err)
	}
	for name, cls := range set.Classes {
		if cls.Name == "" {
			cls.Name = name
		}
	}
	return &set, nil
}

// Class returns the shape for a class, or nil.
func (s *ShapeSet) Class(name string) *ClassShape {
	return s.Classes[name]
}

// Permits reports whether the predicate is allowed between the two classes.
func (s *ShapeSet) Permits(subject, predicate, object string) bool {
	for _, r := range s.Relations {
		if r.Subject == subject && r.Predicate == predicate && r.Object == object {
			return true
		}
	}
	return false
}

// Property returns a class's property shape, or nil.
func (c *ClassShape) Property(name string) *PropertyShape {
	for i := range c.Properties {
		if c.Properties[i].Name == name {
			return &c.Properties[i]
		}
	}
	return nil
}

// BiolinkSkeleton returns the built-in minimal Biolink model: the central
// dogma chain plus pathway participation.
func BiolinkSkeleton() *ShapeSet {
	idName := []PropertyShape{
		{Name: "id", Required: true},
		{Name: "name"},
	}
	return &ShapeSet{
		Classes: map[string]*ClassShape{
			"Gene":       {Name: "Gene", Properties: idName},
			"Transcript": {Name: "Transcript", Properties: idName},
			"Protein":    {Name: "Protein", Properties: idName},
			"Pathway":    {Name: "Pathway", Properties: idName},
		},
		Relations: []RelationShape{
			{Subject: "Gene", Predicate: "transcribes_to", Object: "Transcript"},
			{Subject: "Transcript", Predicate: "translates_to", Object: "Protein"},
			{Subject: "Protein", Predicate: "participates_in", Object: "Pathway"},
		},
		Ontologies: []string{"GO", "MONDO", "HPO", "CHEBI"},
	}
}
