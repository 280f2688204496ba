package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

const verifiedDateLayout = "2006-01-02"

// AdvisorHash fingerprints the registry fields of a verified advisor on the
// UTC day of verification. Re-verifying the same record on the same day
// yields the same hash.
func AdvisorHash(v AdvisorVerification, at time.Time) (string, error) {
	return ContentHash(struct {
		AdvisorVerification
		VerifiedDate string `json:"verified_date"`
	}{v, at.UTC().Format(verifiedDateLayout)})
}

// AdvisorTransactionHash derives the "0x"-prefixed fingerprint of one
// verification event.
func AdvisorTransactionHash(advisorHash, advisorID string, at time.Time) string {
	sum := sha256.Sum256([]byte(advisorHash + advisorID + at.UTC().Format(time.RFC3339Nano)))
	return "0x" + hex.EncodeToString(sum[:])
}

type trailItem struct {
	TransactionHash string   `json:"transaction_hash"`
	ContentHash     string   `json:"content_hash"`
	ScoreInt        int      `json:"score_int"`
	InputKind       string   `json:"input_kind"`
	Indicators      []string `json:"indicators"`
	RecordedAt      string   `json:"recorded_at"`
}

// AuditTrailHash combines the entries into one digest: each entry is hashed
// as canonical JSON, the hex digests are sorted and the sha256 of their
// concatenation is returned. Entry order does not matter.
func AuditTrailHash(entries []*Entry) (string, error) {
	digests := make([]string, 0, len(entries))
	for _, e := range entries {
		indicators := e.Indicators
		if indicators == nil {
			indicators = []string{}
		}
		d, err := ContentHash(trailItem{
			TransactionHash: e.TransactionHash,
			ContentHash:     e.ContentHash,
			ScoreInt:        e.ScoreInt,
			InputKind:       e.InputKind,
			Indicators:      indicators,
			RecordedAt:      e.RecordedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return "", err
		}
		digests = append(digests, d)
	}
	sort.Strings(digests)

	sum := sha256.Sum256([]byte(strings.Join(digests, "")))
	return hex.EncodeToString(sum[:]), nil
}

// AuditTransactionHash derives the "0x"-prefixed fingerprint of an audit trail.
func AuditTransactionHash(trailHash string, at time.Time) string {
	sum := sha256.Sum256([]byte("audit_trail_" + trailHash + "_" + at.UTC().Format(time.RFC3339Nano)))
	return "0x" + hex.EncodeToString(sum[:])
}
