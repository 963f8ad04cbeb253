package resolve

import (
	"context"
	"net/url"
	"strconv"

	"github.com/path2target/transform-core/internal/core"
	"github.com/path2target/transform-core/internal/rest"
)

// OLSBaseURL is the public EBI Ontology Lookup Service v4 endpoint.
const OLSBaseURL = "https://www.ebi.ac.uk/ols4/api"

// OLSProvider resolves ontology terms through the EBI Ontology Lookup
// Service. One instance serves one ontology-backed authority (MONDO, ChEBI,
// GO, HPO), so each gets its own rate budget and cache key space.
type OLSProvider struct {
	client    *rest.Client
	authority core.Authority
	ontology  string
	pageSize  int
}

// NewOLSProvider creates an OLS provider scoped to one ontology. A nil
// config uses the public endpoint with default limits.
func NewOLSProvider(authority core.Authority, ontology string, cfg *rest.ClientConfig) *OLSProvider {
	if cfg == nil {
		cfg = rest.DefaultClientConfig()
		cfg.BaseURL = OLSBaseURL
	}
	return &OLSProvider{
		client:    rest.NewClient(cfg),
		authority: authority,
		ontology:  ontology,
		pageSize:  5,
	}
}

// Authority implements Provider.
func (p *OLSProvider) Authority() core.Authority { return p.authority }

type olsSearchResponse struct {
	Response struct {
		Docs []struct {
			OboID string  `json:"obo_id"`
			Label string  `json:"label"`
			Score float64 `json:"score"`
		} `json:"docs"`
	} `json:"response"`
}

// Resolve implements Provider.
func (p *OLSProvider) Resolve(ctx context.Context, rawValues []string) (map[string][]core.Candidate, error) {
	out := make(map[string][]core.Candidate, len(rawValues))
	for _, v := range rawValues {
		q := url.Values{}
		q.Set("q", v)
		if p.ontology != "" {
			q.Set("ontology", p.ontology)
		}
		q.Set("size", strconv.Itoa(p.pageSize))

		resp, err := p.client.Get(ctx, "/search", q)
		if err != nil {
			return nil, err
		}
		var body olsSearchResponse
		if err := resp.JSON(&body); err != nil {
			return nil, err
		}

		candidates := make([]core.Candidate, 0, len(body.Response.Docs))
		for _, d := range body.Response.Docs {
			if d.OboID == "" {
				continue
			}
			score := d.Score
			if score <= 0 {
				score = 1.0
			}
			candidates = append(candidates, core.Candidate{ID: d.OboID, Label: d.Label, Score: score})
		}
		if len(candidates) > 0 {
			out[v] = candidates
		}
	}
	return out, nil
}

var _ Provider = (*OLSProvider)(nil)

// DefaultRegistry builds the startup authority table: Ensembl, UniProt, and
// the OLS-backed ontology authorities.
func DefaultRegistry() *Registry {
	return NewRegistry(
		NewEnsemblProvider(nil, nil),
		NewUniProtProvider(nil),
		NewOLSProvider(core.AuthorityMONDO, "mondo", nil),
		NewOLSProvider(core.AuthorityCHEBI, "chebi", nil),
		NewOLSProvider(core.AuthorityGO, "go", nil),
		NewOLSProvider(core.AuthorityHPO, "hp", nil),
		NewOLSProvider(core.AuthorityOLS, "", nil),
	)
}
