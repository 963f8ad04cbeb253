package validate_test

import (
	"strings"
	"testing"

	"github.com/path2target/transform-core/internal/core"
	"github.com/path2target/transform-core/internal/validate"
)

func node(id, class string, props map[string]any) *core.GraphNode {
	if props == nil {
		props = make(map[string]any)
	}
	return &core.GraphNode{ID: id, Type: class, Properties: props}
}

func findingsByRule(report *core.Report, ruleID string) []core.Finding {
	var out []core.Finding
	for _, f := range report.Findings {
		if f.RuleID == ruleID {
			out = append(out, f)
		}
	}
	return out
}

func TestPreExport_Unit_CleanGraphPasses(t *testing.T) {
	g := core.NewGraph("run-1", "Gene")
	g.PutNode(node("ENSG00000012048", "Gene", map[string]any{"id": "ENSG00000012048", "name": "BRCA1"}))

	report := validate.PreExport(g, validate.BiolinkSkeleton())
	if report.HasErrors() {
		t.Fatalf("clean graph must pass: %+v", report.Findings)
	}
	if len(report.Findings) != 0 {
		t.Fatalf("expected no findings, got %+v", report.Findings)
	}
}

func TestPreExport_Unit_MissingRequiredPropertyIsError(t *testing.T) {
	g := core.NewGraph("run-1", "Gene")
	g.PutNode(node("n1", "Gene", map[string]any{"name": "BRCA1"}))

	report := validate.PreExport(g, validate.BiolinkSkeleton())
	errs := findingsByRule(report, validate.RuleRequiredProperty)
	if len(errs) != 1 {
		t.Fatalf("expected 1 required-property finding, got %+v", report.Findings)
	}
	if errs[0].Severity != core.SeverityError || errs[0].TargetRef != "n1" {
		t.Fatalf("unexpected finding: %+v", errs[0])
	}
	if !report.HasErrors() {
		t.Fatal("report must flag errors")
	}
}

func TestPreExport_Unit_UnknownClassIsWarning(t *testing.T) {
	g := core.NewGraph("run-1", "Gene")
	g.PutNode(node("n1", "Metabolite", map[string]any{"id": "n1"}))

	report := validate.PreExport(g, validate.BiolinkSkeleton())
	warns := findingsByRule(report, validate.RuleUnknownClass)
	if len(warns) != 1 || warns[0].Severity != core.SeverityWarning {
		t.Fatalf("expected 1 unknown-class warning, got %+v", report.Findings)
	}
	if report.HasErrors() {
		t.Fatal("unknown class alone must not block export")
	}
}

func TestPreExport_Unit_ExtraPropertyIsWarning(t *testing.T) {
	g := core.NewGraph("run-1", "Gene")
	g.PutNode(node("ENSG00000012048", "Gene", map[string]any{
		"id": "ENSG00000012048", "name": "BRCA1", "flavor": "purple",
	}))

	report := validate.PreExport(g, validate.BiolinkSkeleton())
	warns := findingsByRule(report, validate.RuleExtraProperty)
	if len(warns) != 1 {
		t.Fatalf("expected 1 extra-property warning, got %+v", report.Findings)
	}
	if !strings.Contains(warns[0].Message, "flavor") {
		t.Fatalf("finding must name the property: %s", warns[0].Message)
	}
}

func TestPreExport_Unit_UnresolvedAndAmbiguousAreWarnings(t *testing.T) {
	g := core.NewGraph("run-1", "Gene")

	unresolved := node("XYZ99", "Gene", map[string]any{"id": "XYZ99"})
	unresolved.Resolution = &core.CanonicalIdentifier{
		RawValue: "XYZ99", Authority: core.AuthorityEnsembl, Status: core.StatusUnresolved,
	}
	g.PutNode(unresolved)

	ambiguous := node("ENSG00000000001", "Gene", map[string]any{"id": "ENSG00000000001"})
	ambiguous.Resolution = &core.CanonicalIdentifier{
		RawValue: "DUP", Authority: core.AuthorityEnsembl, Status: core.StatusAmbiguous,
		Alternates: []core.Candidate{{ID: "ENSG00000000002"}},
	}
	g.PutNode(ambiguous)

	report := validate.PreExport(g, validate.BiolinkSkeleton())
	warns := findingsByRule(report, validate.RuleIdentifierStatus)
	if len(warns) != 2 {
		t.Fatalf("expected 2 identifier warnings, got %+v", report.Findings)
	}
	if report.HasErrors() {
		t.Fatal("identifier status must not block export")
	}
}

func TestPreExport_Unit_ImpermissiblePredicateIsError(t *testing.T) {
	g := core.NewGraph("run-1", "Gene")
	g.PutNode(node("g1", "Gene", map[string]any{"id": "g1"}))
	g.PutNode(node("p1", "Pathway", map[string]any{"id": "p1"}))
	g.AddEdge(&core.GraphEdge{SubjectID: "g1", Predicate: "participates_in", ObjectID: "p1"})

	report := validate.PreExport(g, validate.BiolinkSkeleton())
	errs := findingsByRule(report, validate.RulePredicateBinding)
	if len(errs) != 1 || errs[0].Severity != core.SeverityError {
		t.Fatalf("expected 1 predicate error, got %+v", report.Findings)
	}
}

func TestPreExport_Unit_PermittedChainPasses(t *testing.T) {
	g := core.NewGraph("run-1", "Gene")
	g.PutNode(node("g1", "Gene", map[string]any{"id": "g1"}))
	g.PutNode(node("t1", "Transcript", map[string]any{"id": "t1"}))
	g.PutNode(node("pr1", "Protein", map[string]any{"id": "pr1"}))
	g.PutNode(node("pw1", "Pathway", map[string]any{"id": "pw1"}))
	g.AddEdge(&core.GraphEdge{SubjectID: "g1", Predicate: "transcribes_to", ObjectID: "t1"})
	g.AddEdge(&core.GraphEdge{SubjectID: "t1", Predicate: "translates_to", ObjectID: "pr1"})
	g.AddEdge(&core.GraphEdge{SubjectID: "pr1", Predicate: "participates_in", ObjectID: "pw1"})

	report := validate.PreExport(g, validate.BiolinkSkeleton())
	if report.HasErrors() {
		t.Fatalf("central dogma chain must pass: %+v", report.Findings)
	}
}

func TestPreExport_Unit_TypeConflictIsWarning(t *testing.T) {
	g := core.NewGraph("run-1", "Gene")
	n := node("SHARED", "Gene", map[string]any{"id": "SHARED"})
	n.Annotations = map[string]any{"typeConflict": "Pathway"}
	g.PutNode(n)

	report := validate.PreExport(g, validate.BiolinkSkeleton())
	warns := findingsByRule(report, validate.RuleTypeConflict)
	if len(warns) != 1 {
		t.Fatalf("expected 1 type-conflict warning, got %+v", report.Findings)
	}
}

func TestParseShapes_Unit_YAML(t *testing.T) {
	set, err := validate.ParseShapes([]byte(`
classes:
  Gene:
    properties:
      - name: id
        required: true
      - name: symbol
relations:
  - subject: Gene
    predicate: related_to
    object: Gene
`))
	if err != nil {
		t.Fatalf("ParseShapes failed: %v", err)
	}
	cls := set.Class("Gene")
	if cls == nil || cls.Name != "Gene" {
		t.Fatalf("class name not backfilled: %+v", cls)
	}
	if p := cls.Property("id"); p == nil || !p.Required {
		t.Fatalf("unexpected id property: %+v", p)
	}
	if !set.Permits("Gene", "related_to", "Gene") {
		t.Fatal("declared relation must be permitted")
	}
	if set.Permits("Gene", "translates_to", "Gene") {
		t.Fatal("undeclared relation must not be permitted")
	}
}
