package domain

import (
	"math"
	"time"
)

// ComplianceStatus classifies the validity of a bus's certificates
type ComplianceStatus string

const (
	ComplianceValid    ComplianceStatus = "valid"
	ComplianceExpiring ComplianceStatus = "expiring"
	ComplianceExpired  ComplianceStatus = "expired"
	ComplianceUnknown  ComplianceStatus = "unknown"
)

// BusCompliance holds certificate expiry data for one bus
type BusCompliance struct {
	ID                  string           `json:"id"`
	BusID               string           `json:"busId"`
	PollutionCertExpiry *time.Time       `json:"pollutionCertExpiry"`
	FitnessCertExpiry   *time.Time       `json:"fitnessCertExpiry"`
	PollutionCertURL    string           `json:"pollutionCertUrl,omitempty"`
	FitnessCertURL      string           `json:"fitnessCertUrl,omitempty"`
	ComplianceStatus    ComplianceStatus `json:"complianceStatus"`
	LastChecked         time.Time        `json:"lastChecked"`
}

// NewCompliance holds the fields accepted when recording certificates.
// Records are keyed by bus, so a second submission replaces the first.
type NewCompliance struct {
	BusID               string     `json:"busId"`
	PollutionCertExpiry *time.Time `json:"pollutionCertExpiry"`
	FitnessCertExpiry   *time.Time `json:"fitnessCertExpiry"`
	PollutionCertURL    string     `json:"pollutionCertUrl"`
	FitnessCertURL      string     `json:"fitnessCertUrl"`

	// Status is derived by the service before the record is stored.
	Status ComplianceStatus `json:"-"`
}

// Validate checks the request
func (n NewCompliance) Validate() error {
	var errs ValidationErrors
	if n.BusID == "" {
		errs.add("busId", "is required")
	}
	return errs.Err()
}

// ExpiringWithinDays is how close to expiry a certificate turns a bus expiring
const ExpiringWithinDays = 15

// DeriveComplianceStatus classifies certificate expiries: expired when any
// has passed, expiring when any falls within ExpiringWithinDays, otherwise
// valid. Nil expiries are not evaluated.
func DeriveComplianceStatus(now time.Time, expiries ...*time.Time) ComplianceStatus {
	status := ComplianceValid
	for _, expiry := range expiries {
		if expiry == nil {
			continue
		}
		switch days := DaysLeft(*expiry, now); {
		case days < 0:
			return ComplianceExpired
		case days < ExpiringWithinDays:
			status = ComplianceExpiring
		}
	}
	return status
}

// DaysLeft returns the whole days from now until expiry, rounded down so an
// expiry earlier today counts as -1
func DaysLeft(expiry, now time.Time) int {
	return int(math.Floor(expiry.Sub(now).Hours() / 24))
}
