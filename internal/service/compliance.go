package service

import (
	"context"
	"time"

	"github.com/busbuddy/backend/internal/domain"
)

// ComplianceStatusFor derives the status of one bus from its certificate
// expiries. A nil record is unknown.
func ComplianceStatusFor(record *domain.BusCompliance, now time.Time) domain.ComplianceStatus {
	if record == nil {
		return domain.ComplianceUnknown
	}
	return domain.DeriveComplianceStatus(now, record.PollutionCertExpiry, record.FitnessCertExpiry)
}

// ComplianceView is one entry of GET /api/compliance/status
type ComplianceView struct {
	BusID             string                  `json:"busId"`
	BusNumber         string                  `json:"busNumber"`
	Status            domain.ComplianceStatus `json:"status"`
	PollutionDaysLeft *int                    `json:"pollutionDaysLeft"`
	FitnessDaysLeft   *int                    `json:"fitnessDaysLeft"`
}

// ComplianceSummary counts buses per status
type ComplianceSummary struct {
	Valid    int `json:"valid"`
	Expiring int `json:"expiring"`
	Expired  int `json:"expired"`
	Unknown  int `json:"unknown"`
}

// ComplianceService records certificates and derives fleet compliance
type ComplianceService struct {
	repo DataRepository
	now  Clock
}

// NewComplianceService creates a new compliance service
func NewComplianceService(repo DataRepository, now Clock) *ComplianceService {
	if now == nil {
		now = time.Now
	}
	return &ComplianceService{repo: repo, now: now}
}

// List returns the stored records with their status re-derived for today
func (s *ComplianceService) List(ctx context.Context) ([]domain.BusCompliance, error) {
	records, err := s.repo.ListCompliance(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range records {
		records[i].ComplianceStatus = ComplianceStatusFor(&records[i], now)
	}
	return records, nil
}

// Record validates and upserts the certificates of one bus
func (s *ComplianceService) Record(ctx context.Context, req domain.NewCompliance) (domain.BusCompliance, error) {
	if err := req.Validate(); err != nil {
		return domain.BusCompliance{}, err
	}
	if _, err := s.repo.GetBus(ctx, req.BusID); err != nil {
		return domain.BusCompliance{}, err
	}
	req.Status = ComplianceStatusFor(&domain.BusCompliance{
		PollutionCertExpiry: req.PollutionCertExpiry,
		FitnessCertExpiry:   req.FitnessCertExpiry,
	}, s.now())
	return s.repo.UpsertCompliance(ctx, req)
}

// Statuses returns one entry per bus, unknown where no record exists
func (s *ComplianceService) Statuses(ctx context.Context) ([]ComplianceView, error) {
	buses, err := s.repo.ListBuses(ctx)
	if err != nil {
		return nil, err
	}
	records, err := s.repo.ListCompliance(ctx)
	if err != nil {
		return nil, err
	}
	return complianceViews(buses, records, s.now()), nil
}

func complianceViews(buses []domain.Bus, records []domain.BusCompliance, now time.Time) []ComplianceView {
	byBus := make(map[string]*domain.BusCompliance, len(records))
	for i := range records {
		byBus[records[i].BusID] = &records[i]
	}

	views := make([]ComplianceView, 0, len(buses))
	for _, b := range buses {
		rec := byBus[b.ID]
		v := ComplianceView{
			BusID:     b.ID,
			BusNumber: b.BusNumber,
			Status:    ComplianceStatusFor(rec, now),
		}
		if rec != nil {
			v.PollutionDaysLeft = daysLeftPtr(rec.PollutionCertExpiry, now)
			v.FitnessDaysLeft = daysLeftPtr(rec.FitnessCertExpiry, now)
		}
		views = append(views, v)
	}
	return views
}

func summarize(views []ComplianceView) ComplianceSummary {
	var sum ComplianceSummary
	for _, v := range views {
		switch v.Status {
		case domain.ComplianceValid:
			sum.Valid++
		case domain.ComplianceExpiring:
			sum.Expiring++
		case domain.ComplianceExpired:
			sum.Expired++
		default:
			sum.Unknown++
		}
	}
	return sum
}

func daysLeftPtr(expiry *time.Time, now time.Time) *int {
	if expiry == nil {
		return nil
	}
	d := domain.DaysLeft(*expiry, now)
	return &d
}
