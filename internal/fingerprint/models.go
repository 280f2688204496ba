package fingerprint

import (
	"time"

	"github.com/google/uuid"
)

// StatusRecorded is the only state an entry can be in. There is no
// confirmation step because nothing is written to an external ledger.
const StatusRecorded = "RECORDED"

// DefaultThreshold is the minimum risk score that gets fingerprinted.
const DefaultThreshold = 0.70

// Entry is a stored fingerprint. TransactionHash can be recomputed from
// the other fields, which is what Verify does.
type Entry struct {
	ID              uuid.UUID  `json:"id"`
	TransactionHash string     `json:"transaction_hash"`
	ContentHash     string     `json:"content_hash"`
	RiskScore       float64    `json:"risk_score"`
	ScoreInt        int        `json:"score_int"`
	InputKind       string     `json:"input_kind"`
	Indicators      []string   `json:"indicators"`
	RecordedAt      time.Time  `json:"recorded_at"`
	AnalysisID      *uuid.UUID `json:"analysis_id,omitempty"`
	Status          string     `json:"status"`
	GasUsed         int64      `json:"gas_used"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Report is what gets fingerprinted.
type Report struct {
	// Body is hashed as canonical JSON.
	Body       interface{}
	RiskScore  float64
	InputKind  string
	Indicators []string
	AnalysisID *uuid.UUID
}

// LogResult describes the outcome of a log call. Notarized is always
// false: the hash is a local integrity fingerprint only.
type LogResult struct {
	Success     bool       `json:"success"`
	Recorded    bool       `json:"recorded"`
	Hash        string     `json:"hash,omitempty"`
	ContentHash string     `json:"content_hash"`
	RiskScore   float64    `json:"risk_score"`
	Threshold   float64    `json:"threshold"`
	GasUsed     int64      `json:"gas_used"`
	Notarized   bool       `json:"notarized"`
	EntryID     *uuid.UUID `json:"entry_id,omitempty"`
	RecordedAt  *time.Time `json:"recorded_at,omitempty"`
}

// VerifyResult reports whether a stored fingerprint still matches its data.
type VerifyResult struct {
	Hash       string `json:"hash"`
	Exists     bool   `json:"exists"`
	Valid      bool   `json:"valid"`
	Recomputed string `json:"recomputed,omitempty"`
	Entry      *Entry `json:"entry,omitempty"`
	Notarized  bool   `json:"notarized"`
}

// Stats summarises the fingerprint log
type Stats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
	ByKind   map[string]int64 `json:"by_input_kind"`
}

// AdvisorVerification is the registry data covered by an advisor fingerprint.
type AdvisorVerification struct {
	AdvisorID          string `json:"advisor_id"`
	AdvisorName        string `json:"advisor_name"`
	RegistrationNumber string `json:"registration_number"`
	Status             string `json:"status"`
}

// AdvisorFingerprint marks one successful advisor verification. It is
// returned to the caller and published, not stored.
type AdvisorFingerprint struct {
	Hash         string    `json:"hash"`
	AdvisorHash  string    `json:"advisor_hash"`
	VerifiedDate string    `json:"verified_date"`
	VerifiedAt   time.Time `json:"verified_at"`
	Notarized    bool      `json:"notarized"`
}

// AuditTrail is a digest over every entry recorded in [From, To).
type AuditTrail struct {
	Hash           string    `json:"hash"`
	AuditTrailHash string    `json:"audit_trail_hash"`
	TotalReports   int       `json:"total_reports"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	CreatedAt      time.Time `json:"created_at"`
	Notarized      bool      `json:"notarized"`
}

// LedgerStatus describes the fingerprint log backend.
type LedgerStatus struct {
	Network          string     `json:"network"`
	Connected        bool       `json:"connected"`
	Notarized        bool       `json:"notarized"`
	Threshold        float64    `json:"threshold"`
	TotalEntries     int64      `json:"total_entries"`
	LatestRecordedAt *time.Time `json:"latest_recorded_at,omitempty"`
}

// LogRequest is the body of POST /blockchain/log
type LogRequest struct {
	Report map[string]interface{} `json:"report" validate:"required"`
}

// AdvisorVerifiedEvent is published for every advisor fingerprint
type AdvisorVerifiedEvent struct {
	Hash        string    `json:"hash"`
	AdvisorHash string    `json:"advisor_hash"`
	AdvisorID   string    `json:"advisor_id"`
	Status      string    `json:"status"`
	VerifiedAt  time.Time `json:"verified_at"`
}

// RecordedEvent is published after an entry is stored
type RecordedEvent struct {
	EntryID         uuid.UUID  `json:"entry_id"`
	TransactionHash string     `json:"transaction_hash"`
	ContentHash     string     `json:"content_hash"`
	RiskScore       float64    `json:"risk_score"`
	InputKind       string     `json:"input_kind"`
	AnalysisID      *uuid.UUID `json:"analysis_id,omitempty"`
	RecordedAt      time.Time  `json:"recorded_at"`
}
