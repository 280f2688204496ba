package fingerprint

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/richxcame/trustx/internal/risk"
)

// CanonicalJSON encodes v with object keys sorted at every depth and no
// insignificant whitespace. Numbers keep their original text.
func CanonicalJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}

	// Maps are encoded with sorted keys.
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ContentHash is the hex sha256 of the canonical encoding of v.
func ContentHash(v interface{}) (string, error) {
	canonical, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// ScoreInt is the score in hundredths.
func ScoreInt(score float64) int {
	return int(math.Round(score * 100))
}

// Exceeds reports whether score reaches threshold. The score is rounded
// first so summation noise cannot cross the boundary.
func Exceeds(score, threshold float64) bool {
	return risk.RoundScore(score) >= threshold
}

// TransactionHash derives the "0x"-prefixed fingerprint of an entry.
func TransactionHash(contentHash string, scoreInt int, inputKind string, indicators []string, at time.Time) (string, error) {
	if indicators == nil {
		indicators = []string{}
	}
	canonical, err := CanonicalJSON(indicators)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(contentHash))
	h.Write([]byte(strconv.Itoa(scoreInt)))
	h.Write([]byte(inputKind))
	h.Write(canonical)
	h.Write([]byte(at.UTC().Format(time.RFC3339Nano)))
	return "0x" + hex.EncodeToString(h.Sum(nil)), nil
}

// Recompute derives the fingerprint of a stored entry.
func Recompute(e *Entry) (string, error) {
	return TransactionHash(e.ContentHash, e.ScoreInt, e.InputKind, e.Indicators, e.RecordedAt)
}
