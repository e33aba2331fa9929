package service

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/busbuddy/backend/internal/domain"
)

// DashboardData is the aggregated fleet overview
type DashboardData struct {
	Buses           []domain.Bus      `json:"buses"`
	ActiveBuses     int               `json:"activeBuses"`
	LatestAnalytics *domain.Analytics `json:"latestAnalytics"`
	Compliance      ComplianceSummary `json:"compliance"`
	Timestamp       time.Time         `json:"timestamp"`
}

// DashboardService aggregates all live data
type DashboardService struct {
	repo DataRepository
	now  Clock
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(repo DataRepository, now Clock) *DashboardService {
	if now == nil {
		now = time.Now
	}
	return &DashboardService{repo: repo, now: now}
}

// GetDashboardData fetches buses, analytics and compliance concurrently.
// A failed bus listing fails the call; the other parts degrade to empty.
func (s *DashboardService) GetDashboardData(ctx context.Context) (DashboardData, error) {
	var (
		buses    []domain.Bus
		latest   *domain.Analytics
		records  []domain.BusCompliance
		busErr   error
		wg       sync.WaitGroup
		mu       sync.Mutex
		softErrs []error
	)

	// Fetch buses concurrently
	wg.Add(1)
	go func() {
		defer wg.Done()
		b, err := s.repo.ListBuses(ctx)
		mu.Lock()
		buses, busErr = b, err
		mu.Unlock()
	}()

	// Fetch latest analytics concurrently
	wg.Add(1)
	go func() {
		defer wg.Done()
		a, err := s.repo.LatestAnalytics(ctx)
		mu.Lock()
		switch {
		case err == nil:
			latest = &a
		case !errors.Is(err, domain.ErrAnalyticsNotFound):
			softErrs = append(softErrs, err)
		}
		mu.Unlock()
	}()

	// Fetch compliance concurrently
	wg.Add(1)
	go func() {
		defer wg.Done()
		c, err := s.repo.ListCompliance(ctx)
		mu.Lock()
		if err != nil {
			softErrs = append(softErrs, err)
		} else {
			records = c
		}
		mu.Unlock()
	}()

	wg.Wait()

	if busErr != nil {
		return DashboardData{}, busErr
	}
	for _, err := range softErrs {
		log.Printf("Dashboard data fetch error: %v", err)
	}

	now := s.now()
	active := 0
	for _, b := range buses {
		if b.IsActive() {
			active++
		}
	}

	return DashboardData{
		Buses:           buses,
		ActiveBuses:     active,
		LatestAnalytics: latest,
		Compliance:      summarize(complianceViews(buses, records, now)),
		Timestamp:       now,
	}, nil
}
