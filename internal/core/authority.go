package core

import "regexp"

// Authority names an external identifier authority the normalizer can query.
type Authority string

const (
	AuthorityEnsembl Authority = "ensembl"
	AuthorityUniProt Authority = "uniprot"
	AuthorityOLS     Authority = "ols"
	AuthorityMONDO   Authority = "mondo"
	AuthorityCHEBI   Authority = "chebi"
	AuthorityGO      Authority = "go"
	AuthorityHPO     Authority = "hpo"
)

// authorityPattern pairs an authority with the regex its canonical
// identifiers match.
type authorityPattern struct {
	Authority Authority
	Pattern   *regexp.Regexp
}

// Canonical identifier patterns, in detection precedence order.
var authorityPatterns = []authorityPattern{
	{AuthorityEnsembl, regexp.MustCompile(`^(ENSG|ENST|ENSP)\d{6,}(\.\d+)?$`)},
	{AuthorityUniProt, regexp.MustCompile(`^[OPQ][0-9][A-Z0-9]{3}[0-9]$|^[A-NR-Z][0-9][A-Z][A-Z0-9]{2}[0-9]$`)},
	{AuthorityMONDO, regexp.MustCompile(`^MONDO:\d+$`)},
	{AuthorityCHEBI, regexp.MustCompile(`^CHEBI:\d+$`)},
	{AuthorityGO, regexp.MustCompile(`^GO:\d{7}$`)},
	{AuthorityHPO, regexp.MustCompile(`^HP:\d{7}$`)},
}

// DetectAuthority returns the authority whose canonical pattern the value
// matches, or "" when the value matches no known pattern.
func DetectAuthority(value string) Authority {
	for _, ap := range authorityPatterns {
		if ap.Pattern.MatchString(value) {
			return ap.Authority
		}
	}
	return ""
}

// IsCanonical reports whether value is already a canonical identifier of the
// given authority. Used by the normalizer to skip network resolution.
func IsCanonical(value string, authority Authority) bool {
	for _, ap := range authorityPatterns {
		if ap.Authority == authority {
			return ap.Pattern.MatchString(value)
		}
	}
	return false
}

// KnownAuthorities lists authorities with a canonical pattern registered.
func KnownAuthorities() []Authority {
	out := make([]Authority, 0, len(authorityPatterns))
	for _, ap := range authorityPatterns {
		out = append(out, ap.Authority)
	}
	return out
}
