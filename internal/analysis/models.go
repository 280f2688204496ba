package analysis

import (
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/trustx/internal/fingerprint"
	"github.com/richxcame/trustx/internal/registry"
	"github.com/richxcame/trustx/internal/risk"
)

// UserType classifies a session owner
type UserType string

const (
	UserTypeInvestor  UserType = "INVESTOR"
	UserTypeRegulator UserType = "REGULATOR"
	UserTypeAdmin     UserType = "ADMIN"
)

// Record is a persisted analysis. It is only ever updated to attach a
// ledger fingerprint.
type Record struct {
	ID                 uuid.UUID       `json:"id"`
	InputKind          risk.InputKind  `json:"input_type"`
	ContentFingerprint string          `json:"content_fingerprint"`
	RiskScore          float64         `json:"risk_score"`
	RiskLevel          risk.Level      `json:"risk_level"`
	Assessment         risk.Assessment `json:"analysis_result"`
	LedgerFingerprint  *string         `json:"ledger_fingerprint,omitempty"`
	SessionID          *uuid.UUID      `json:"session_id,omitempty"`
	EvidenceKey        *string         `json:"evidence_key,omitempty"`
	UserAgent          string          `json:"-"`
	IPAddress          string          `json:"-"`
	CreatedAt          time.Time       `json:"created_at"`
}

// Session groups the analyses of one client
type Session struct {
	ID                 uuid.UUID  `json:"session_id"`
	UserType           UserType   `json:"user_type"`
	IPAddress          string     `json:"-"`
	UserAgent          string     `json:"-"`
	TotalAnalyses      int64      `json:"total_analyses"`
	HighRiskDetections int64      `json:"high_risk_detections"`
	FirstAnalysis      *time.Time `json:"first_analysis"`
	LastAnalysis       *time.Time `json:"last_analysis"`
	CreatedAt          time.Time  `json:"created_at"`
}

// SessionSummary is the public view of a session
type SessionSummary struct {
	Session
	RiskDetectionRate float64 `json:"risk_detection_rate"`
	Duration          string  `json:"session_duration"`
}

// Input is one analysis request after binding
type Input struct {
	Kind        risk.InputKind
	Content     string
	URL         string
	AdvisorName string
	AdvisorID   string
	Image       []byte
	ImageType   string
	SessionID   *uuid.UUID
	ClientIP    string
	UserAgent   string
}

// Analysis is the result returned to the caller of /detect
type Analysis struct {
	risk.Assessment
	InputKind          risk.InputKind         `json:"input_type"`
	RecordID           *uuid.UUID             `json:"record_id,omitempty"`
	ContentFingerprint string                 `json:"content_fingerprint"`
	LedgerFingerprint  string                 `json:"ledger_fingerprint,omitempty"`
	Fingerprint        *fingerprint.LogResult `json:"fingerprint,omitempty"`
	ExtractedText      string                 `json:"extracted_text,omitempty"`
	EvidenceKey        string                 `json:"evidence_key,omitempty"`
	FailedSignals      []string               `json:"failed_signals,omitempty"`
	SkippedSignals     []string               `json:"skipped_signals,omitempty"`
	ProcessingMS       int64                  `json:"processing_ms"`
}

// HighRiskEvent is published for every HIGH analysis
type HighRiskEvent struct {
	RecordID           *uuid.UUID     `json:"record_id,omitempty"`
	InputKind          risk.InputKind `json:"input_kind"`
	RiskScore          float64        `json:"risk_score"`
	Indicators         []string       `json:"indicators"`
	ContentFingerprint string         `json:"content_fingerprint"`
	LedgerFingerprint  string         `json:"ledger_fingerprint,omitempty"`
	SessionID          *uuid.UUID     `json:"session_id,omitempty"`
}

// DetectRequest is the body of POST /detect, as JSON or multipart form
type DetectRequest struct {
	Type        string `json:"type" form:"type" validate:"required,input_kind"`
	Content     string `json:"content" form:"content" validate:"max=20000"`
	URL         string `json:"url" form:"url" validate:"max=2048"`
	AdvisorName string `json:"advisor_name" form:"advisor_name" validate:"max=200"`
	AdvisorID   string `json:"advisor_id" form:"advisor_id" validate:"max=50"`
	SessionID   string `json:"session_id" form:"session_id" validate:"omitempty,uuid"`
}

// CreateSessionRequest is the body of POST /sessions
type CreateSessionRequest struct {
	UserType string `json:"user_type" validate:"omitempty,user_type"`
}

// HistoryQuery holds GET /history parameters
type HistoryQuery struct {
	SessionID string `form:"session_id" json:"session_id" validate:"omitempty,uuid"`
	Limit     int    `form:"limit" json:"limit" validate:"omitempty,min=1"`
}

// Overview holds totals by time window
type Overview struct {
	TotalAnalyses      int64   `json:"total_analyses"`
	AnalysesToday      int64   `json:"analyses_today"`
	AnalysesThisWeek   int64   `json:"analyses_this_week"`
	AnalysesThisMonth  int64   `json:"analyses_this_month"`
	HighRiskPercentage float64 `json:"high_risk_percentage"`
}

// TrendPoint is one day of the high-risk trend
type TrendPoint struct {
	Date          string `json:"date"`
	HighRiskCount int64  `json:"high_risk_count"`
}

// IndicatorCount is a recurring indicator among HIGH analyses
type IndicatorCount struct {
	Pattern  string     `json:"pattern"`
	Count    int64      `json:"count"`
	Severity risk.Level `json:"severity"`
}

// Alert is a regulator-facing notice
type Alert struct {
	Type           string     `json:"type"`
	Severity       risk.Level `json:"severity"`
	Message        string     `json:"message"`
	CreatedAt      time.Time  `json:"created_at"`
	ActionRequired bool       `json:"action_required"`
}

type Trends struct {
	HighRisk7Days []TrendPoint `json:"high_risk_7_days"`
}

// Dashboard aggregates statistics for the regulator dashboard
type Dashboard struct {
	Overview           Overview           `json:"overview"`
	RiskBreakdown      map[string]int64   `json:"risk_breakdown"`
	InputTypeBreakdown map[string]int64   `json:"input_type_breakdown"`
	Trends             Trends             `json:"trends"`
	Fingerprints       *fingerprint.Stats `json:"blockchain,omitempty"`
	Registry           *registry.Stats    `json:"sebi_verification,omitempty"`
	TopIndicators      []IndicatorCount   `json:"top_fraud_patterns"`
	Alerts             []Alert            `json:"alerts"`
	LastUpdated        time.Time          `json:"last_updated"`
}
