package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for digests. The version suffix allows the row encoding
// to change without old and new digests ever comparing equal.
const (
	DomainState = "watchgraft/state/v1"
	DomainFacts = "watchgraft/facts/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest hashes rows in the given order. Each row is canonical JSON
// terminated by a newline, so row boundaries can't shift between rows.
func Digest(domain string, rows []Object) (string, error) {
	var data []byte
	for i, row := range rows {
		b, err := MarshalCanonical(row)
		if err != nil {
			return "", fmt.Errorf("digest row %d: %w", i, err)
		}
		data = append(data, b...)
		data = append(data, '\n')
	}
	return hashWithDomain(domain, data), nil
}

// FactsDigest hashes aggregated facts in their given order.
func FactsDigest(facts []AggregatedFact) (string, error) {
	rows := make([]Object, len(facts))
	for i, f := range facts {
		rows[i] = Object{
			"account_id":     Int(f.Key.AccountID),
			"guid":           Str(f.Key.GUID),
			"view_count":     Int(f.Count),
			"last_viewed_at": Int(f.LastViewedAt),
		}
	}
	return Digest(DomainFacts, rows)
}
