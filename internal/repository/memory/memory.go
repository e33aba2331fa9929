// Package memory implements domain.DataRepository for demo mode and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/busbuddy/backend/internal/domain"
	"github.com/google/uuid"
)

// Repository keeps all state in process memory. Every read returns copies.
type Repository struct {
	mu         sync.RWMutex
	buses      map[string]domain.Bus
	busOrder   []string
	routes     map[string]domain.Route
	routeOrder []string
	schedules  []domain.Schedule
	analytics  []domain.Analytics
	compliance map[string]domain.BusCompliance // keyed by bus id
	alerts     map[string]domain.ProximityAlert
	alertOrder []string
	users      map[string]domain.User

	now func() time.Time
}

// NewRepository creates an empty in-memory repository
func NewRepository() *Repository {
	return &Repository{
		buses:      make(map[string]domain.Bus),
		routes:     make(map[string]domain.Route),
		compliance: make(map[string]domain.BusCompliance),
		alerts:     make(map[string]domain.ProximityAlert),
		users:      make(map[string]domain.User),
		now:        time.Now,
	}
}

// WithClock replaces the timestamp source
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

// ListBuses returns buses in insertion order
func (r *Repository) ListBuses(ctx context.Context) ([]domain.Bus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Bus, 0, len(r.busOrder))
	for _, id := range r.busOrder {
		out = append(out, copyBus(r.buses[id]))
	}
	return out, nil
}

// GetBus returns one bus by id
func (r *Repository) GetBus(ctx context.Context, id string) (domain.Bus, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.buses[id]
	if !ok {
		return domain.Bus{}, domain.ErrBusNotFound
	}
	return copyBus(b), nil
}

// CreateBus registers a bus; bus numbers are unique
func (r *Repository) CreateBus(ctx context.Context, nb domain.NewBus) (domain.Bus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, b := range r.buses {
		if b.BusNumber == nb.BusNumber {
			return domain.Bus{}, domain.ErrDuplicateBusNumber
		}
	}

	b := domain.Bus{
		ID:           uuid.NewString(),
		BusNumber:    nb.BusNumber,
		RouteName:    nb.RouteName,
		Status:       nb.Status,
		CurrentSpeed: nb.CurrentSpeed,
		Occupancy:    nb.Occupancy,
		LastUpdated:  r.now(),
	}
	if b.Status == "" {
		b.Status = domain.BusStatusActive
	}
	if nb.DriverID != nil {
		d := *nb.DriverID
		b.DriverID = &d
	}
	if nb.Latitude != nil {
		b.Latitude = *nb.Latitude
	}
	if nb.Longitude != nil {
		b.Longitude = *nb.Longitude
	}

	r.buses[b.ID] = b
	r.busOrder = append(r.busOrder, b.ID)
	return copyBus(b), nil
}

// UpdateBusLocation replaces position and speed under the write lock
func (r *Repository) UpdateBusLocation(ctx context.Context, id string, lat, lng, speed float64) (domain.Bus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.buses[id]
	if !ok {
		return domain.Bus{}, domain.ErrBusNotFound
	}
	b.Latitude = lat
	b.Longitude = lng
	b.CurrentSpeed = speed
	b.LastUpdated = r.now()
	r.buses[b.ID] = b
	return copyBus(b), nil
}

// ListRoutes returns routes in insertion order
func (r *Repository) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Route, 0, len(r.routeOrder))
	for _, id := range r.routeOrder {
		out = append(out, copyRoute(r.routes[id]))
	}
	return out, nil
}

// GetRoute returns one route by id
func (r *Repository) GetRoute(ctx context.Context, id string) (domain.Route, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.routes[id]
	if !ok {
		return domain.Route{}, domain.ErrRouteNotFound
	}
	return copyRoute(rt), nil
}

// CreateRoute stores a route
func (r *Repository) CreateRoute(ctx context.Context, nr domain.NewRoute) (domain.Route, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rt := domain.Route{
		ID:                  uuid.NewString(),
		RouteNumber:         nr.RouteNumber,
		Name:                nr.Name,
		From:                nr.From,
		To:                  nr.To,
		ServiceClass:        nr.ServiceClass,
		City:                nr.City,
		Stops:               append([]domain.Stop(nil), nr.Stops...),
		IsEcoRoute:          nr.IsEcoRoute,
		EstimatedCO2Savings: nr.EstimatedCO2Savings,
	}
	if rt.City == "" {
		rt.City = domain.DefaultCity
	}
	r.routes[rt.ID] = rt
	r.routeOrder = append(r.routeOrder, rt.ID)
	return copyRoute(rt), nil
}

// ListSchedules returns the schedules of one route sorted by departure time
func (r *Repository) ListSchedules(ctx context.Context, routeID string) ([]domain.Schedule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.routes[routeID]; !ok {
		return nil, domain.ErrRouteNotFound
	}
	out := make([]domain.Schedule, 0)
	for _, s := range r.schedules {
		if s.RouteID == routeID {
			out = append(out, copySchedule(s))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DepartureTime < out[j].DepartureTime
	})
	return out, nil
}

// CreateSchedule stores a schedule for an existing route
func (r *Repository) CreateSchedule(ctx context.Context, ns domain.NewSchedule) (domain.Schedule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.routes[ns.RouteID]; !ok {
		return domain.Schedule{}, domain.ErrRouteNotFound
	}
	s := domain.Schedule{
		ID:            uuid.NewString(),
		RouteID:       strings.Clone(ns.RouteID),
		DepartureTime: ns.DepartureTime,
		ArrivalTime:   ns.ArrivalTime,
		DaysOfWeek:    append([]string(nil), ns.DaysOfWeek...),
		IsActive:      ns.IsActive == nil || *ns.IsActive,
	}
	if len(s.DaysOfWeek) == 0 {
		s.DaysOfWeek = append([]string(nil), domain.AllDays...)
	}
	r.schedules = append(r.schedules, s)
	return copySchedule(s), nil
}

// ListAnalytics returns snapshots oldest first
func (r *Repository) ListAnalytics(ctx context.Context) ([]domain.Analytics, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := append([]domain.Analytics(nil), r.analytics...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out, nil
}

// LatestAnalytics returns the snapshot with the most recent date
func (r *Repository) LatestAnalytics(ctx context.Context) (domain.Analytics, error) {
	all, _ := r.ListAnalytics(ctx)
	if len(all) == 0 {
		return domain.Analytics{}, domain.ErrAnalyticsNotFound
	}
	return all[len(all)-1], nil
}

// CreateAnalytics stores a snapshot for a day not yet recorded
func (r *Repository) CreateAnalytics(ctx context.Context, na domain.NewAnalytics) (domain.Analytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a := domain.Analytics{
		ID:             uuid.NewString(),
		TotalCO2Saved:  na.TotalCO2Saved,
		TotalFuelSaved: na.TotalFuelSaved,
		TotalTrips:     na.TotalTrips,
		AvgBusSpeed:    na.AvgBusSpeed,
	}
	if na.Date != nil {
		a.Date = *na.Date
	} else {
		a.Date = r.now()
	}
	day := domain.AnalyticsDay(a.Date)
	for _, existing := range r.analytics {
		if domain.AnalyticsDay(existing.Date) == day {
			return domain.Analytics{}, domain.ErrAnalyticsDayExists
		}
	}
	r.analytics = append(r.analytics, a)
	return a, nil
}

// CorrectAnalytics amends a recorded snapshot
func (r *Repository) CorrectAnalytics(ctx context.Context, id string, c domain.AnalyticsCorrection) (domain.Analytics, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, a := range r.analytics {
		if a.ID == id {
			r.analytics[i] = c.Apply(a)
			return r.analytics[i], nil
		}
	}
	return domain.Analytics{}, domain.ErrAnalyticsNotFound
}

// ListCompliance returns all compliance records in bus order
func (r *Repository) ListCompliance(ctx context.Context) ([]domain.BusCompliance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.BusCompliance, 0, len(r.compliance))
	for _, id := range r.busOrder {
		if c, ok := r.compliance[id]; ok {
			out = append(out, copyCompliance(c))
		}
	}
	return out, nil
}

// UpsertCompliance replaces the record of a bus, keeping its id
func (r *Repository) UpsertCompliance(ctx context.Context, nc domain.NewCompliance) (domain.BusCompliance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.buses[nc.BusID]; !ok {
		return domain.BusCompliance{}, domain.ErrBusNotFound
	}
	c := domain.BusCompliance{
		ID:                  uuid.NewString(),
		BusID:               strings.Clone(nc.BusID),
		PollutionCertExpiry: copyTime(nc.PollutionCertExpiry),
		FitnessCertExpiry:   copyTime(nc.FitnessCertExpiry),
		PollutionCertURL:    nc.PollutionCertURL,
		FitnessCertURL:      nc.FitnessCertURL,
		ComplianceStatus:    nc.Status,
		LastChecked:         r.now(),
	}
	if existing, ok := r.compliance[nc.BusID]; ok {
		c.ID = existing.ID
	}
	if c.ComplianceStatus == "" {
		c.ComplianceStatus = domain.ComplianceUnknown
	}
	r.compliance[c.BusID] = c
	return copyCompliance(c), nil
}

// ListAlertsByUser returns the alerts of one user, oldest first
func (r *Repository) ListAlertsByUser(ctx context.Context, userID string) ([]domain.ProximityAlert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.ProximityAlert, 0)
	for _, id := range r.alertOrder {
		if a := r.alerts[id]; a.UserID == userID {
			out = append(out, copyAlert(a))
		}
	}
	return out, nil
}

// CreateAlert stores an alert for an existing bus
func (r *Repository) CreateAlert(ctx context.Context, na domain.NewProximityAlert) (domain.ProximityAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.buses[na.BusID]; !ok {
		return domain.ProximityAlert{}, domain.ErrBusNotFound
	}
	a := domain.ProximityAlert{
		ID:            uuid.NewString(),
		UserID:        strings.Clone(na.UserID),
		BusID:         strings.Clone(na.BusID),
		AlertDistance: domain.DefaultAlertDistanceKm,
		IsActive:      na.IsActive == nil || *na.IsActive,
		CreatedAt:     r.now(),
	}
	if na.AlertDistance != nil {
		a.AlertDistance = *na.AlertDistance
	}
	r.alerts[a.ID] = a
	r.alertOrder = append(r.alertOrder, a.ID)
	return copyAlert(a), nil
}

// DeleteAlert removes an alert
func (r *Repository) DeleteAlert(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.alerts[id]; !ok {
		return domain.ErrAlertNotFound
	}
	delete(r.alerts, id)
	for i, aid := range r.alertOrder {
		if aid == id {
			r.alertOrder = append(r.alertOrder[:i], r.alertOrder[i+1:]...)
			break
		}
	}
	return nil
}

// MarkAlertSent records when a notification last went out
func (r *Repository) MarkAlertSent(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.alerts[id]
	if !ok {
		return domain.ErrAlertNotFound
	}
	a.LastAlertSent = &at
	r.alerts[a.ID] = a
	return nil
}

// GetUser returns one user by id
func (r *Repository) GetUser(ctx context.Context, id string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return copyUser(u), nil
}

// GetUserByFirebaseUID returns the user linked to a Firebase account
func (r *Repository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (domain.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.FirebaseUID == firebaseUID {
			return copyUser(u), nil
		}
	}
	return domain.User{}, domain.ErrUserNotFound
}

// CreateUser stores a profile; firebase uids and emails are unique
func (r *Repository) CreateUser(ctx context.Context, nu domain.NewUser) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if u.FirebaseUID == nu.FirebaseUID || u.Email == nu.Email {
			return domain.User{}, domain.ErrDuplicateUser
		}
	}
	u := domain.User{
		ID:            uuid.NewString(),
		FirebaseUID:   strings.Clone(nu.FirebaseUID),
		Email:         strings.Clone(nu.Email),
		Name:          nu.Name,
		Phone:         nu.Phone,
		Role:          nu.Role,
		VehicleNumber: nu.VehicleNumber,
		AssignedRoute: nu.AssignedRoute,
		FavoriteStops: append([]string{}, nu.FavoriteStops...),
		CreatedAt:     r.now(),
	}
	if u.Role == "" {
		u.Role = domain.RolePassenger
	}
	r.users[u.ID] = u
	return copyUser(u), nil
}

// SetEcoPoints replaces the eco point balance of a user
func (r *Repository) SetEcoPoints(ctx context.Context, id string, points int) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.users[id]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	u.EcoPoints = points
	r.users[u.ID] = u
	return copyUser(u), nil
}

// Health always returns nil in memory mode
func (r *Repository) Health(ctx context.Context) error {
	return nil
}

func copyBus(b domain.Bus) domain.Bus {
	if b.DriverID != nil {
		d := *b.DriverID
		b.DriverID = &d
	}
	return b
}

func copyRoute(rt domain.Route) domain.Route {
	rt.Stops = append([]domain.Stop(nil), rt.Stops...)
	return rt
}

func copySchedule(s domain.Schedule) domain.Schedule {
	s.DaysOfWeek = append([]string(nil), s.DaysOfWeek...)
	return s
}

func copyCompliance(c domain.BusCompliance) domain.BusCompliance {
	c.PollutionCertExpiry = copyTime(c.PollutionCertExpiry)
	c.FitnessCertExpiry = copyTime(c.FitnessCertExpiry)
	return c
}

func copyAlert(a domain.ProximityAlert) domain.ProximityAlert {
	a.LastAlertSent = copyTime(a.LastAlertSent)
	return a
}

func copyUser(u domain.User) domain.User {
	u.FavoriteStops = append([]string{}, u.FavoriteStops...)
	return u
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
