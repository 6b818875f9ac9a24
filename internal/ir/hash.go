package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// The version suffix leaves room for a future algorithm change.
const (
	DomainGraph     = "tab/graph/v1"
	DomainDelta     = "tab/delta/v1"
	DomainComposite = "tab/composite/v1"
)

// hashWithDomain computes SHA-256 with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// GraphFingerprint identifies a graph by its content.
// Equal graphs always share a fingerprint, whatever their overlay layout.
func GraphFingerprint(g *Graph) (string, error) {
	canonical, err := MarshalCanonical(CanonicalGraph(g))
	if err != nil {
		return "", fmt.Errorf("GraphFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainGraph, canonical), nil
}

// DeltaKey identifies a raw update query. Used as the parse cache key.
func DeltaKey(raw string) string {
	return hashWithDomain(DomainDelta, []byte(raw))
}

// CompositeFingerprint identifies an aligned composite by its labels and
// the content of every moment.
func CompositeFingerprint(c *Composite) (string, error) {
	moments := make(map[string]any, len(c.Moments)+1)
	for _, m := range c.Moments {
		moments[TimeLabel(m.Time)] = CanonicalGraph(m.Graph)
	}
	moments[NowLabel] = CanonicalGraph(c.Now)

	canonical, err := MarshalCanonical(moments)
	if err != nil {
		return "", fmt.Errorf("CompositeFingerprint: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainComposite, canonical), nil
}

// MustGraphFingerprint is like GraphFingerprint but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustGraphFingerprint(g *Graph) string {
	fp, err := GraphFingerprint(g)
	if err != nil {
		panic(err)
	}
	return fp
}
