package registry

import (
	_ "embed"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed seed.yaml
var seedYAML []byte

type seedAdvisor struct {
	AdvisorID          string      `yaml:"advisor_id"`
	Name               string      `yaml:"name"`
	RegistrationNumber string      `yaml:"registration_number"`
	RegisteredOn       string      `yaml:"registered_on"`
	Status             string      `yaml:"status"`
	CompanyName        string      `yaml:"company_name"`
	Contact            ContactInfo `yaml:"contact"`
}

// SeedData is the built-in registry sample
type SeedData struct {
	Advisors   []seedAdvisor `yaml:"advisors"`
	Brokers    []string      `yaml:"brokers"`
	FundHouses []string      `yaml:"fund_houses"`
	Alerts     []string      `yaml:"alerts"`
}

// DefaultSeed returns the embedded sample data.
func DefaultSeed() *SeedData {
	seed, err := ParseSeed(seedYAML)
	if err != nil {
		panic(fmt.Sprintf("registry: embedded seed is malformed: %v", err))
	}
	return seed
}

// ParseSeed decodes a seed document.
func ParseSeed(data []byte) (*SeedData, error) {
	var seed SeedData
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for _, a := range seed.Advisors {
		if a.AdvisorID == "" || a.Name == "" {
			return nil, fmt.Errorf("seed advisor needs advisor_id and name")
		}
		if a.RegisteredOn != "" {
			if _, err := time.Parse("2006-01-02", a.RegisteredOn); err != nil {
				return nil, fmt.Errorf("seed advisor %s: %w", a.AdvisorID, err)
			}
		}
	}
	return &seed, nil
}

// AdvisorRecords converts the seed advisors into cache records verified at now.
func (s *SeedData) AdvisorRecords(now time.Time) []*Advisor {
	out := make([]*Advisor, 0, len(s.Advisors))
	for _, a := range s.Advisors {
		rec := &Advisor{
			AdvisorID:          a.AdvisorID,
			Name:               a.Name,
			RegistrationNumber: a.RegistrationNumber,
			Status:             a.Status,
			CompanyName:        a.CompanyName,
			Contact:            a.Contact,
			Verified:           true,
			LastVerified:       now,
		}
		if t, err := time.Parse("2006-01-02", a.RegisteredOn); err == nil {
			rec.RegisteredOn = &t
		}
		out = append(out, rec)
	}
	return out
}
