package resolve_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/path2target/transform-core/internal/core"
	"github.com/path2target/transform-core/internal/resolve"
	"github.com/path2target/transform-core/internal/rest"
)

func fastConfig(baseURL string) *rest.ClientConfig {
	return &rest.ClientConfig{
		BaseURL:    baseURL,
		Timeout:    2 * time.Second,
		MaxRetries: 1,
		RateLimit:  1000,
		RateBurst:  100,
	}
}

// fakeEnsembl mimics the two lookup endpoints: bulk POST /lookup/id and
// GET /lookup/symbol/homo_sapiens/{symbol}.
func fakeEnsembl(t *testing.T) *httptest.Server {
	t.Helper()
	known := map[string]map[string]string{
		"BRCA1":           {"id": "ENSG00000012048", "display_name": "BRCA1"},
		"TP53":            {"id": "ENSG00000141510", "display_name": "TP53"},
		"ENSG00000012048": {"id": "ENSG00000012048", "display_name": "BRCA1"},
	}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/lookup/id":
			var req map[string][]string
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("bad bulk body: %v", err)
			}
			resp := make(map[string]any)
			for _, id := range req["ids"] {
				if rec, ok := known[id]; ok {
					resp[id] = rec
				} else {
					resp[id] = nil
				}
			}
			json.NewEncoder(w).Encode(resp)

		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/lookup/symbol/homo_sapiens/"):
			symbol := strings.TrimPrefix(r.URL.Path, "/lookup/symbol/homo_sapiens/")
			rec, ok := known[symbol]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(rec)

		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
}

// fakeMyGene serves /query from a fixed hit table; anything else comes back
// as an empty hit list.
func fakeMyGene(t *testing.T, hits map[string][]map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/query" {
			t.Errorf("unexpected mygene path %s", r.URL.Path)
		}
		q := r.URL.Query().Get("q")
		json.NewEncoder(w).Encode(map[string]any{"hits": hits[q]})
	}))
}

func emptyMyGene(t *testing.T) *httptest.Server {
	t.Helper()
	return fakeMyGene(t, nil)
}

func TestEnsemblProvider_Unit_SymbolLookup(t *testing.T) {
	srv := fakeEnsembl(t)
	defer srv.Close()
	mg := emptyMyGene(t)
	defer mg.Close()

	p := resolve.NewEnsemblProvider(fastConfig(srv.URL), fastConfig(mg.URL))
	out, err := p.Resolve(context.Background(), []string{"BRCA1", "TP53"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := out["BRCA1"]; len(got) != 1 || got[0].ID != "ENSG00000012048" {
		t.Fatalf("unexpected BRCA1 candidates: %v", got)
	}
	if got := out["TP53"]; len(got) != 1 || got[0].ID != "ENSG00000141510" {
		t.Fatalf("unexpected TP53 candidates: %v", got)
	}
}

func TestEnsemblProvider_Unit_CanonicalIDsUseBulkLookup(t *testing.T) {
	srv := fakeEnsembl(t)
	defer srv.Close()

	mg := emptyMyGene(t)
	defer mg.Close()

	p := resolve.NewEnsemblProvider(fastConfig(srv.URL), fastConfig(mg.URL))
	out, err := p.Resolve(context.Background(), []string{"ENSG00000012048", "ENSG99999999999"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if got := out["ENSG00000012048"]; len(got) != 1 || got[0].Label != "BRCA1" {
		t.Fatalf("unexpected candidates: %v", got)
	}
	if _, ok := out["ENSG99999999999"]; ok {
		t.Fatal("unknown canonical id must stay absent")
	}
}

func TestEnsemblProvider_Unit_UnknownSymbolIsNoMatch(t *testing.T) {
	srv := fakeEnsembl(t)
	defer srv.Close()

	mg := emptyMyGene(t)
	defer mg.Close()

	p := resolve.NewEnsemblProvider(fastConfig(srv.URL), fastConfig(mg.URL))
	out, err := p.Resolve(context.Background(), []string{"XYZ99"})
	if err != nil {
		t.Fatalf("a 404 on symbol lookup must not be an error: %v", err)
	}
	if _, ok := out["XYZ99"]; ok {
		t.Fatal("expected no candidates for unknown symbol")
	}
}

func TestEnsemblProvider_Unit_MyGeneResolvesAliases(t *testing.T) {
	srv := fakeEnsembl(t)
	defer srv.Close()
	// NCBI gene ids the Ensembl symbol endpoint rejects; one hit carries the
	// ensembl field as an object, the other as an array.
	mg := fakeMyGene(t, map[string][]map[string]any{
		"672": {
			{"_score": 88.5, "symbol": "BRCA1", "name": "BRCA1 DNA repair associated",
				"ensembl": map[string]any{"gene": "ENSG00000012048"}},
		},
		"7157": {
			{"_score": 92.1, "symbol": "TP53", "name": "tumor protein p53",
				"ensembl": []map[string]any{{"gene": "ENSG00000141510"}}},
		},
	})
	defer mg.Close()

	p := resolve.NewEnsemblProvider(fastConfig(srv.URL), fastConfig(mg.URL))
	out, err := p.Resolve(context.Background(), []string{"672", "7157"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got := out["672"]
	if len(got) != 1 || got[0].ID != "ENSG00000012048" || got[0].Label != "BRCA1" {
		t.Fatalf("unexpected candidates for 672: %v", got)
	}
	// The score comes from the MyGene hit, so the answer did not fall through
	// to the symbol lookup tier.
	if got[0].Score != 88.5 {
		t.Fatalf("expected MyGene score, got %v", got[0].Score)
	}
	if got := out["7157"]; len(got) != 1 || got[0].ID != "ENSG00000141510" {
		t.Fatalf("unexpected candidates for 7157: %v", got)
	}
}

func TestEnsemblProvider_Unit_MyGeneFailureFallsBackToSymbolLookup(t *testing.T) {
	srv := fakeEnsembl(t)
	defer srv.Close()
	mg := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer mg.Close()

	p := resolve.NewEnsemblProvider(fastConfig(srv.URL), fastConfig(mg.URL))
	out, err := p.Resolve(context.Background(), []string{"BRCA1"})
	if err != nil {
		t.Fatalf("MyGene outage must not fail the batch: %v", err)
	}
	got := out["BRCA1"]
	if len(got) != 1 || got[0].ID != "ENSG00000012048" {
		t.Fatalf("expected symbol-lookup fallback, got %v", got)
	}
}

func TestOLSProvider_Unit_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("ontology"); got != "mondo" {
			t.Errorf("expected ontology filter, got %q", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"response": map[string]any{
				"docs": []map[string]any{
					{"obo_id": "MONDO:0007254", "label": "breast carcinoma", "score": 12.5},
					{"obo_id": "MONDO:0004989", "label": "breast cancer", "score": 3.5},
				},
			},
		})
	}))
	defer srv.Close()

	p := resolve.NewOLSProvider(core.AuthorityMONDO, "mondo", fastConfig(srv.URL))
	out, err := p.Resolve(context.Background(), []string{"breast carcinoma"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got := out["breast carcinoma"]
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %v", got)
	}
	if got[0].ID != "MONDO:0007254" || got[0].Score <= got[1].Score {
		t.Fatalf("candidates not ranked: %v", got)
	}
}

func TestUniProtProvider_Unit_GeneQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("query")
		if !strings.Contains(q, "gene:BRCA1") || !strings.Contains(q, "organism_id:9606") {
			t.Errorf("unexpected query %q", q)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"results": []map[string]any{
				{"primaryAccession": "P38398", "proteinDescription": map[string]any{
					"recommendedName": map[string]any{"fullName": map[string]any{"value": "BRCA1"}},
				}},
			},
		})
	}))
	defer srv.Close()

	p := resolve.NewUniProtProvider(fastConfig(srv.URL))
	out, err := p.Resolve(context.Background(), []string{"BRCA1"})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	got := out["BRCA1"]
	if len(got) != 1 || got[0].ID != "P38398" {
		t.Fatalf("unexpected candidates: %v", got)
	}
}
