package resolve

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/path2target/transform-core/internal/core"
	"github.com/path2target/transform-core/internal/rest"
)

// EnsemblBaseURL is the public Ensembl REST endpoint.
const EnsemblBaseURL = "https://rest.ensembl.org"

// MyGeneBaseURL is the public MyGene.info endpoint, the general resolver
// tier between canonical-id validation and the Ensembl symbol lookup.
const MyGeneBaseURL = "https://mygene.info/v3"

// EnsemblProvider resolves gene identifiers in three tiers: bulk POST
// lookup/id for already-canonical ids, a MyGene.info query for everything
// else (it accepts HGNC ids, NCBI gene ids, and aliases the symbol endpoint
// rejects), and per-symbol GET lookup/symbol as the final fallback.
type EnsemblProvider struct {
	client  *rest.Client
	mygene  *rest.Client
	species string
}

// NewEnsemblProvider creates an Ensembl provider. A nil config uses the
// respective public endpoint with default limits.
func NewEnsemblProvider(cfg, mygeneCfg *rest.ClientConfig) *EnsemblProvider {
	if cfg == nil {
		cfg = rest.DefaultClientConfig()
		cfg.BaseURL = EnsemblBaseURL
		// Public Ensembl REST allows 15 req/s.
		cfg.RateLimit = 15
	}
	if mygeneCfg == nil {
		mygeneCfg = rest.DefaultClientConfig()
		mygeneCfg.BaseURL = MyGeneBaseURL
	}
	return &EnsemblProvider{
		client:  rest.NewClient(cfg),
		mygene:  rest.NewClient(mygeneCfg),
		species: "homo_sapiens",
	}
}

// Authority implements Provider.
func (p *EnsemblProvider) Authority() core.Authority { return core.AuthorityEnsembl }

type ensemblLookup struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Description string `json:"description"`
}

// Resolve implements Provider.
func (p *EnsemblProvider) Resolve(ctx context.Context, rawValues []string) (map[string][]core.Candidate, error) {
	out := make(map[string][]core.Candidate, len(rawValues))

	var canonical []string
	var symbols []string
	for _, v := range rawValues {
		if core.IsCanonical(v, core.AuthorityEnsembl) {
			canonical = append(canonical, v)
		} else {
			symbols = append(symbols, v)
		}
	}

	if len(canonical) > 0 {
		if err := p.lookupIDs(ctx, canonical, out); err != nil {
			return nil, err
		}
	}
	for _, sym := range symbols {
		found, err := p.queryMyGene(ctx, sym, out)
		if err != nil {
			// MyGene is an auxiliary tier; anything short of cancellation
			// falls through to the Ensembl symbol lookup.
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			found = false
		}
		if found {
			continue
		}
		if err := p.lookupSymbol(ctx, sym, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// lookupIDs validates canonical ids via the bulk lookup endpoint. Ids the
// service does not know come back as null entries and stay unresolved.
func (p *EnsemblProvider) lookupIDs(ctx context.Context, ids []string, out map[string][]core.Candidate) error {
	resp, err := p.client.Post(ctx, "/lookup/id", map[string]any{"ids": ids})
	if err != nil {
		return err
	}
	var body map[string]*ensemblLookup
	if err := resp.JSON(&body); err != nil {
		return err
	}
	for _, id := range ids {
		if rec := body[id]; rec != nil && rec.ID != "" {
			out[id] = []core.Candidate{{ID: rec.ID, Label: rec.DisplayName, Score: 1.0}}
		}
	}
	return nil
}

type myGeneHit struct {
	Score  float64 `json:"_score"`
	Symbol string  `json:"symbol"`
	Name   string  `json:"name"`
	// Ensembl is an object for single-gene hits and an array otherwise.
	Ensembl json.RawMessage `json:"ensembl"`
}

func (h *myGeneHit) ensemblGene() string {
	var one struct {
		Gene string `json:"gene"`
	}
	if err := json.Unmarshal(h.Ensembl, &one); err == nil && one.Gene != "" {
		return one.Gene
	}
	var many []struct {
		Gene string `json:"gene"`
	}
	if err := json.Unmarshal(h.Ensembl, &many); err == nil {
		for _, m := range many {
			if m.Gene != "" {
				return m.Gene
			}
		}
	}
	return ""
}

// queryMyGene asks the general resolver for one value and reports whether it
// produced candidates. Hits without an Ensembl gene id are skipped.
func (p *EnsemblProvider) queryMyGene(ctx context.Context, value string, out map[string][]core.Candidate) (bool, error) {
	q := url.Values{}
	q.Set("q", value)
	q.Set("species", "human")
	q.Set("fields", "ensembl.gene,symbol,name")
	q.Set("size", "5")
	resp, err := p.mygene.Get(ctx, "/query", q)
	if err != nil {
		return false, err
	}
	var body struct {
		Hits []myGeneHit `json:"hits"`
	}
	if err := resp.JSON(&body); err != nil {
		return false, err
	}
	var cands []core.Candidate
	for _, hit := range body.Hits {
		if id := hit.ensemblGene(); id != "" {
			label := hit.Symbol
			if label == "" {
				label = hit.Name
			}
			cands = append(cands, core.Candidate{ID: id, Label: label, Score: hit.Score})
		}
	}
	if len(cands) == 0 {
		return false, nil
	}
	out[value] = cands
	return true, nil
}

// lookupSymbol resolves one symbol; a 404 means no candidates, not a failure.
func (p *EnsemblProvider) lookupSymbol(ctx context.Context, symbol string, out map[string][]core.Candidate) error {
	resp, err := p.client.Get(ctx, "/lookup/symbol/"+p.species+"/"+url.PathEscape(symbol), nil)
	if err != nil {
		if httpErr, ok := err.(*rest.HTTPError); ok && httpErr.StatusCode == 404 {
			return nil
		}
		return err
	}
	var rec ensemblLookup
	if err := resp.JSON(&rec); err != nil {
		return err
	}
	if rec.ID != "" {
		out[symbol] = []core.Candidate{{ID: rec.ID, Label: rec.DisplayName, Score: 1.0}}
	}
	return nil
}

var _ Provider = (*EnsemblProvider)(nil)
