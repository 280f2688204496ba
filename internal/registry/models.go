package registry

import (
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/trustx/internal/fingerprint"
	"github.com/richxcame/trustx/internal/risk"
)

// Registration statuses
const (
	StatusActive    = "ACTIVE"
	StatusSuspended = "SUSPENDED"
	StatusCancelled = "CANCELLED"
	StatusNotFound  = "NOT_FOUND"
)

// Source tells where a lookup result came from
type Source string

const (
	SourceCache    Source = "cache"
	SourceDatabase Source = "local_cache"
	SourceWeb      Source = "sebi_website"
	SourceStale    Source = "stale_cache"
	SourceNone     Source = "none"
)

// ContactInfo holds published contact details of an advisor
type ContactInfo struct {
	Address string `json:"address,omitempty" yaml:"address"`
	Phone   string `json:"phone,omitempty" yaml:"phone"`
	Email   string `json:"email,omitempty" yaml:"email"`
}

// Advisor is a cached registry record
type Advisor struct {
	ID                 uuid.UUID   `json:"id"`
	AdvisorID          string      `json:"advisor_id"`
	Name               string      `json:"advisor_name"`
	RegistrationNumber string      `json:"registration_number,omitempty"`
	RegisteredOn       *time.Time  `json:"registration_date,omitempty"`
	Status             string      `json:"status"`
	CompanyName        string      `json:"company_name,omitempty"`
	Contact            ContactInfo `json:"contact_info"`
	Verified           bool        `json:"verified"`
	LastVerified       time.Time   `json:"last_verified"`
	CreatedAt          time.Time   `json:"created_at"`
}

// LookupResult is the outcome of an advisor verification
type LookupResult struct {
	AdvisorName     string    `json:"advisor_name"`
	AdvisorID       string    `json:"advisor_id,omitempty"`
	IsRegistered    bool      `json:"is_registered"`
	Status          string    `json:"verification_status"`
	MatchedRecord   *Advisor  `json:"registration_details,omitempty"`
	Source          Source    `json:"source"`
	RiskIndicators  []string  `json:"risk_indicators"`
	Recommendations []string  `json:"recommendations"`
	VerifiedAt      time.Time `json:"verified_at"`

	VerificationFingerprint *fingerprint.AdvisorFingerprint `json:"verification_fingerprint,omitempty"`
}

// EntityVerification is the result of checking a broker or fund house
type EntityVerification struct {
	Name            string    `json:"name"`
	EntityType      string    `json:"entity_type"`
	IsRegistered    bool      `json:"is_registered"`
	Status          string    `json:"verification_status"`
	MatchedName     string    `json:"matched_name,omitempty"`
	RiskIndicators  []string  `json:"risk_indicators"`
	Recommendations []string  `json:"recommendations"`
	VerifiedAt      time.Time `json:"verified_at"`
}

// AlertResult lists regulator warnings that mention an entity
type AlertResult struct {
	EntityName   string     `json:"entity_name"`
	HasAlerts    bool       `json:"has_alerts"`
	AlertDetails []string   `json:"alert_details"`
	RiskLevel    risk.Level `json:"risk_level"`
}

// Stats summarises the advisor cache
type Stats struct {
	TotalAdvisors     int64 `json:"total_advisors"`
	ActiveAdvisors    int64 `json:"active_advisors"`
	SuspendedAdvisors int64 `json:"suspended_advisors"`
	CancelledAdvisors int64 `json:"cancelled_advisors"`
	Verifications     int64 `json:"verifications"`
}

// VerifyAdvisorRequest is the body of POST /verify/advisor
type VerifyAdvisorRequest struct {
	AdvisorName string `json:"advisor_name" validate:"required,max=200"`
	AdvisorID   string `json:"advisor_id" validate:"omitempty,max=50"`
}

// VerifyBrokerRequest is the body of POST /verify/broker
type VerifyBrokerRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

// VerifyFundRequest is the body of POST /verify/fund. The fund house is
// matched on AMCName when given, otherwise on Name.
type VerifyFundRequest struct {
	Name    string `json:"name" validate:"required,max=200"`
	AMCName string `json:"amc_name" validate:"omitempty,max=200"`
}
