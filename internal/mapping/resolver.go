package mapping

import (
	"fmt"
	"strings"

	"github.com/path2target/transform-core/internal/core"
	"github.com/path2target/transform-core/internal/source"
)

// IDPredicate is the target predicate that carries a class's node identity.
const IDPredicate = "id"

// Binding is one resolved rule with its executable transform.
type Binding struct {
	RuleID string
	Rule   Rule

	// NeedsResolution marks normalizeIdentifier bindings; Apply returns the
	// raw value and the builder consults the normalizer.
	NeedsResolution bool
	Authority       core.Authority

	// IsNodeID marks the binding that provides node identity for its class.
	IsNodeID bool

	apply applyFunc
}

// Apply evaluates the binding's transform against a raw row.
func (b *Binding) Apply(row source.Row) (any, error) {
	return b.apply(row)
}

// EdgeBinding is one resolved edge rule. Endpoint columns are fixed at
// resolve time; endpoint identifiers are produced at build time through the
// same id bindings that key the nodes.
type EdgeBinding struct {
	Rule           EdgeRule
	SubjectField   string
	ObjectField    string
	PredicateField string

	// SubjectOverride / ObjectOverride are set when the edge rule bypasses
	// the class id binding with an explicit column.
	SubjectOverride bool
	ObjectOverride  bool
}

// Plan is the ordered, executable form of a mapping config. Pure output of
// Resolve: deterministic given the same schema and config.
type Plan struct {
	Root     string
	BaseIRI  string
	Bindings []*Binding
	Edges    []*EdgeBinding

	idBindings map[string]*Binding // class -> node-id binding
}

// IDBinding returns the node-id binding for a class, or nil.
func (p *Plan) IDBinding(class string) *Binding {
	return p.idBindings[class]
}

// Classes returns every target class referenced by a binding, in first-seen
// rule order.
func (p *Plan) Classes() []string {
	seen := make(map[string]bool)
	var out []string
	for _, b := range p.Bindings {
		if !seen[b.Rule.TargetClass] {
			seen[b.Rule.TargetClass] = true
			out = append(out, b.Rule.TargetClass)
		}
	}
	return out
}

// Resolve validates cfg against the profiled schema and compiles the binding
// plan. No side effects; all violations surface as mapping errors.
func Resolve(schema *core.SchemaDescriptor, cfg *Config) (*Plan, error) {
	plan := &Plan{
		Root:       cfg.Root,
		BaseIRI:    cfg.BaseIRI,
		idBindings: make(map[string]*Binding),
	}

	targets := make(map[string]int) // (class, predicate) -> first rule index
	for i := range cfg.Rules {
		rule := cfg.Rules[i]
		ruleID := RuleID(i, &rule)

		if err := checkFields(schema, &rule, ruleID); err != nil {
			return nil, err
		}
		if rule.Required && rule.Transform == TransformConstant && rule.Value == "" {
			return nil, core.Errorf(core.CodeMapping,
				"%s: required rule has neither a source nor an explicit value", ruleID)
		}
		if rule.Transform == TransformNormalize && rule.Authority == "" {
			return nil, core.Errorf(core.CodeMapping,
				"%s: normalizeIdentifier requires an authority", ruleID)
		}

		key := rule.TargetClass + "." + rule.TargetPredicate
		if first, conflict := targets[key]; conflict {
			if rule.Merge == "" {
				return nil, core.Errorf(core.CodeMapping,
					"%s: conflicting targets: rule %d already writes %s and no merge strategy is declared",
					ruleID, first, key)
			}
			if rule.Merge != MergeLastWins && rule.Merge != MergeFirstWins {
				return nil, core.Errorf(core.CodeMapping,
					"%s: unknown merge strategy %q", ruleID, rule.Merge)
			}
		} else {
			targets[key] = i
		}

		apply, err := compile(&rule)
		if err != nil {
			return nil, err
		}
		b := &Binding{
			RuleID:          ruleID,
			Rule:            rule,
			NeedsResolution: rule.Transform == TransformNormalize,
			Authority:       rule.Authority,
			IsNodeID:        rule.TargetPredicate == IDPredicate,
			apply:           apply,
		}
		plan.Bindings = append(plan.Bindings, b)
		if b.IsNodeID {
			if _, dup := plan.idBindings[rule.TargetClass]; !dup {
				plan.idBindings[rule.TargetClass] = b
			}
		}
	}

	for i := range cfg.Edges {
		eb, err := resolveEdge(schema, plan, &cfg.Edges[i], i)
		if err != nil {
			return nil, err
		}
		plan.Edges = append(plan.Edges, eb)
	}

	return plan, nil
}

func checkFields(schema *core.SchemaDescriptor, rule *Rule, ruleID string) error {
	switch rule.Transform {
	case TransformConstant:
		return nil
	case TransformConcat:
		if len(rule.Fields) == 0 {
			return core.Errorf(core.CodeMapping, "%s: concat declares no fields", ruleID)
		}
		for _, f := range rule.Fields {
			if schema.Column(f) == nil {
				return unknownField(schema, ruleID, f)
			}
		}
		return nil
	default:
		if rule.SourceField == "" {
			return core.Errorf(core.CodeMapping, "%s: rule declares no source field", ruleID)
		}
		if schema.Column(rule.SourceField) == nil {
			return unknownField(schema, ruleID, rule.SourceField)
		}
		return nil
	}
}

// unknownField names the profiled columns so a typo is obvious from the error.
func unknownField(schema *core.SchemaDescriptor, ref, field string) error {
	return core.Errorf(core.CodeMapping, "%s: unknown field %q (source has: %s)",
		ref, field, strings.Join(schema.ColumnNames(), ", "))
}

func resolveEdge(schema *core.SchemaDescriptor, plan *Plan, rule *EdgeRule, index int) (*EdgeBinding, error) {
	name := fmt.Sprintf("edge%02d:%s-[%s]->%s", index, rule.SubjectClass, rule.Predicate, rule.ObjectClass)

	if rule.Predicate == "" && rule.PredicateField == "" {
		return nil, core.Errorf(core.CodeMapping, "%s: edge declares neither predicate nor predicate_field", name)
	}
	if rule.PredicateField != "" && schema.Column(rule.PredicateField) == nil {
		return nil, unknownField(schema, name, rule.PredicateField)
	}

	eb := &EdgeBinding{Rule: *rule, PredicateField: rule.PredicateField}

	var err error
	eb.SubjectField, eb.SubjectOverride, err = endpointField(schema, plan, rule.SubjectClass, rule.SubjectField, name)
	if err != nil {
		return nil, err
	}
	eb.ObjectField, eb.ObjectOverride, err = endpointField(schema, plan, rule.ObjectClass, rule.ObjectField, name)
	if err != nil {
		return nil, err
	}
	return eb, nil
}

func endpointField(schema *core.SchemaDescriptor, plan *Plan, class, override, name string) (string, bool, error) {
	if override != "" {
		if schema.Column(override) == nil {
			return "", false, unknownField(schema, name, override)
		}
		return override, true, nil
	}
	idb := plan.IDBinding(class)
	if idb == nil {
		return "", false, core.Errorf(core.CodeMapping,
			"%s: class %s has no id rule and the edge declares no field override", name, class)
	}
	if idb.Rule.SourceField == "" {
		return "", false, core.Errorf(core.CodeMapping,
			"%s: id rule for class %s has no source field usable as an edge endpoint", name, class)
	}
	return idb.Rule.SourceField, false, nil
}
