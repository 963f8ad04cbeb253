package core

import "time"

// =============================================================================
// CANONICAL IDENTIFIERS
// Produced by the normalizer, consumed by the graph builder. Never mutated
// after creation; a re-resolution produces a new record.
// =============================================================================

// ResolutionStatus describes the outcome of resolving one raw identifier.
type ResolutionStatus string

const (
	StatusResolved    ResolutionStatus = "resolved"
	StatusAmbiguous   ResolutionStatus = "ambiguous"
	StatusUnresolved  ResolutionStatus = "unresolved"
	StatusCachedStale ResolutionStatus = "cachedStale"
)

// Candidate is one resolution candidate returned by a provider.
type Candidate struct {
	ID    string
	Label string
	Score float64
}

// CanonicalIdentifier records the resolution of one raw value against one
// authority.
type CanonicalIdentifier struct {
	RawValue    string
	Authority   Authority
	CanonicalID string
	// Label is the authority's preferred display name, when available.
	Label      string
	Confidence float64
	Status     ResolutionStatus
	// Alternates holds the remaining equally-plausible candidates when the
	// status is ambiguous, so downstream consumers can accept or flag.
	Alternates []Candidate
	ResolvedAt time.Time
}

// EffectiveID returns the identifier the graph should use: the canonical id
// when resolution is confirmed, otherwise the raw value as a provisional id.
// An ambiguous best guess stays on the record; it never keys the graph.
func (c *CanonicalIdentifier) EffectiveID() string {
	if c.Confirmed() {
		return c.CanonicalID
	}
	return c.RawValue
}

// Confirmed reports whether the canonical id is accepted for graph identity:
// a resolved record or a stale cache hit of one. Records carrying alternates
// were ambiguous at resolution time and stay unconfirmed even when served
// stale.
func (c *CanonicalIdentifier) Confirmed() bool {
	if c.CanonicalID == "" || len(c.Alternates) > 0 {
		return false
	}
	return c.Status == StatusResolved || c.Status == StatusCachedStale
}
