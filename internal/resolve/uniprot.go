package resolve

import (
	"context"
	"fmt"
	"net/url"

	"github.com/path2target/transform-core/internal/core"
	"github.com/path2target/transform-core/internal/rest"
)

// UniProtBaseURL is the public UniProt REST endpoint.
const UniProtBaseURL = "https://rest.uniprot.org"

// UniProtProvider resolves gene names to reviewed human UniProt accessions
// through the uniprotkb search API.
type UniProtProvider struct {
	client     *rest.Client
	organismID string
	pageSize   int
}

// NewUniProtProvider creates a UniProt provider. A nil config uses the
// public endpoint with default limits.
func NewUniProtProvider(cfg *rest.ClientConfig) *UniProtProvider {
	if cfg == nil {
		cfg = rest.DefaultClientConfig()
		cfg.BaseURL = UniProtBaseURL
	}
	return &UniProtProvider{client: rest.NewClient(cfg), organismID: "9606", pageSize: 5}
}

// Authority implements Provider.
func (p *UniProtProvider) Authority() core.Authority { return core.AuthorityUniProt }

type uniprotSearchResponse struct {
	Results []struct {
		PrimaryAccession   string `json:"primaryAccession"`
		ProteinDescription struct {
			RecommendedName struct {
				FullName struct {
					Value string `json:"value"`
				} `json:"fullName"`
			} `json:"recommendedName"`
		} `json:"proteinDescription"`
	} `json:"results"`
}

// Resolve implements Provider. Search order mirrors the public API: an
// accession-shaped value is queried as an accession, anything else as a gene
// name scoped to the configured organism.
func (p *UniProtProvider) Resolve(ctx context.Context, rawValues []string) (map[string][]core.Candidate, error) {
	out := make(map[string][]core.Candidate, len(rawValues))
	for _, v := range rawValues {
		query := fmt.Sprintf("gene:%s AND organism_id:%s", v, p.organismID)
		if core.IsCanonical(v, core.AuthorityUniProt) {
			query = "accession:" + v
		}
		q := url.Values{}
		q.Set("query", query)
		q.Set("format", "json")
		q.Set("size", fmt.Sprintf("%d", p.pageSize))

		resp, err := p.client.Get(ctx, "/uniprotkb/search", q)
		if err != nil {
			return nil, err
		}
		var body uniprotSearchResponse
		if err := resp.JSON(&body); err != nil {
			return nil, err
		}

		// The search API ranks but does not score; rank is folded into a
		// descending score so the normalizer's ambiguity rule applies only
		// when UniProt returns several entries for the same gene name.
		candidates := make([]core.Candidate, 0, len(body.Results))
		for i, r := range body.Results {
			if r.PrimaryAccession == "" {
				continue
			}
			score := 1.0
			if i > 0 {
				score = 1.0 / float64(i+1)
			}
			candidates = append(candidates, core.Candidate{
				ID:    r.PrimaryAccession,
				Label: r.ProteinDescription.RecommendedName.FullName.Value,
				Score: score,
			})
		}
		if len(candidates) > 0 {
			out[v] = candidates
		}
	}
	return out, nil
}

var _ Provider = (*UniProtProvider)(nil)
