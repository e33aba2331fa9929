package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/busbuddy/backend/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// PostgresRepository implements domain.DataRepository
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

const busColumns = `id, bus_number, route_name, driver_id, latitude, longitude,
	status, current_speed, occupancy, last_updated`

func scanBus(row pgx.Row) (domain.Bus, error) {
	var b domain.Bus
	err := row.Scan(
		&b.ID, &b.BusNumber, &b.RouteName, &b.DriverID, &b.Latitude, &b.Longitude,
		&b.Status, &b.CurrentSpeed, &b.Occupancy, &b.LastUpdated,
	)
	return b, err
}

// ListBuses returns all buses in creation order
func (r *PostgresRepository) ListBuses(ctx context.Context) ([]domain.Bus, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+busColumns+` FROM buses ORDER BY created_at, bus_number`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query buses: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Bus, 0)
	for rows.Next() {
		b, err := scanBus(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan bus row: %w", err)
		}
		results = append(results, b)
	}
	return results, rows.Err()
}

// GetBus returns one bus by id
func (r *PostgresRepository) GetBus(ctx context.Context, id string) (domain.Bus, error) {
	b, err := scanBus(r.pool.QueryRow(ctx, `SELECT `+busColumns+` FROM buses WHERE id = $1`, id))
	if err != nil {
		return domain.Bus{}, mapError(err, domain.ErrBusNotFound, nil, "get bus")
	}
	return b, nil
}

// CreateBus inserts a bus; duplicate numbers map to domain.ErrDuplicateBusNumber
func (r *PostgresRepository) CreateBus(ctx context.Context, nb domain.NewBus) (domain.Bus, error) {
	query := `
		INSERT INTO buses (
			id, bus_number, route_name, driver_id, latitude, longitude,
			status, current_speed, occupancy, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		RETURNING ` + busColumns

	status := nb.Status
	if status == "" {
		status = domain.BusStatusActive
	}
	b, err := scanBus(r.pool.QueryRow(ctx, query,
		uuid.NewString(), nb.BusNumber, nb.RouteName, nb.DriverID, deref(nb.Latitude), deref(nb.Longitude),
		status, nb.CurrentSpeed, nb.Occupancy,
	))
	if err != nil {
		return domain.Bus{}, mapError(err, domain.ErrBusNotFound, domain.ErrDuplicateBusNumber, "create bus")
	}
	return b, nil
}

// UpdateBusLocation replaces position and speed in a single statement
func (r *PostgresRepository) UpdateBusLocation(ctx context.Context, id string, lat, lng, speed float64) (domain.Bus, error) {
	query := `
		UPDATE buses
		SET latitude = $2, longitude = $3, current_speed = $4, last_updated = now()
		WHERE id = $1
		RETURNING ` + busColumns

	b, err := scanBus(r.pool.QueryRow(ctx, query, id, lat, lng, speed))
	if err != nil {
		return domain.Bus{}, mapError(err, domain.ErrBusNotFound, nil, "update bus location")
	}
	return b, nil
}

const routeColumns = `id, route_number, name, from_stop, to_stop, service_class,
	city, stops, is_eco_route, estimated_co2_savings`

func scanRoute(row pgx.Row) (domain.Route, error) {
	var (
		rt    domain.Route
		stops []byte
	)
	err := row.Scan(
		&rt.ID, &rt.RouteNumber, &rt.Name, &rt.From, &rt.To, &rt.ServiceClass,
		&rt.City, &stops, &rt.IsEcoRoute, &rt.EstimatedCO2Savings,
	)
	if err != nil {
		return rt, err
	}
	if err := json.Unmarshal(stops, &rt.Stops); err != nil {
		return rt, fmt.Errorf("decode stops: %w", err)
	}
	return rt, nil
}

// ListRoutes returns all routes in creation order
func (r *PostgresRepository) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+routeColumns+` FROM routes ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query routes: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Route, 0)
	for rows.Next() {
		rt, err := scanRoute(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan route row: %w", err)
		}
		results = append(results, rt)
	}
	return results, rows.Err()
}

// GetRoute returns one route by id
func (r *PostgresRepository) GetRoute(ctx context.Context, id string) (domain.Route, error) {
	rt, err := scanRoute(r.pool.QueryRow(ctx, `SELECT `+routeColumns+` FROM routes WHERE id = $1`, id))
	if err != nil {
		return domain.Route{}, mapError(err, domain.ErrRouteNotFound, nil, "get route")
	}
	return rt, nil
}

// CreateRoute inserts a route with its stops as jsonb
func (r *PostgresRepository) CreateRoute(ctx context.Context, nr domain.NewRoute) (domain.Route, error) {
	stops, err := json.Marshal(nr.Stops)
	if err != nil {
		return domain.Route{}, fmt.Errorf("postgres: failed to encode stops: %w", err)
	}
	city := nr.City
	if city == "" {
		city = domain.DefaultCity
	}

	query := `
		INSERT INTO routes (
			id, route_number, name, from_stop, to_stop, service_class,
			city, stops, is_eco_route, estimated_co2_savings
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8::jsonb, $9, $10)
		RETURNING ` + routeColumns

	rt, err := scanRoute(r.pool.QueryRow(ctx, query,
		uuid.NewString(), nr.RouteNumber, nr.Name, nr.From, nr.To, nr.ServiceClass,
		city, string(stops), nr.IsEcoRoute, nr.EstimatedCO2Savings,
	))
	if err != nil {
		return domain.Route{}, mapError(err, domain.ErrRouteNotFound, nil, "create route")
	}
	return rt, nil
}

const scheduleColumns = `id, route_id, departure_time, arrival_time, days_of_week, is_active`

func scanSchedule(row pgx.Row) (domain.Schedule, error) {
	var (
		s    domain.Schedule
		days []byte
	)
	if err := row.Scan(&s.ID, &s.RouteID, &s.DepartureTime, &s.ArrivalTime, &days, &s.IsActive); err != nil {
		return s, err
	}
	if err := json.Unmarshal(days, &s.DaysOfWeek); err != nil {
		return s, fmt.Errorf("decode days: %w", err)
	}
	return s, nil
}

// ListSchedules returns the schedules of a route sorted by departure time
func (r *PostgresRepository) ListSchedules(ctx context.Context, routeID string) ([]domain.Schedule, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM routes WHERE id = $1)`, routeID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("postgres: failed to check route: %w", err)
	}
	if !exists {
		return nil, domain.ErrRouteNotFound
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+scheduleColumns+` FROM schedules WHERE route_id = $1 ORDER BY departure_time`, routeID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query schedules: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Schedule, 0)
	for rows.Next() {
		s, err := scanSchedule(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan schedule row: %w", err)
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

// CreateSchedule inserts a schedule; an unknown route maps to domain.ErrRouteNotFound
func (r *PostgresRepository) CreateSchedule(ctx context.Context, ns domain.NewSchedule) (domain.Schedule, error) {
	days := ns.DaysOfWeek
	if len(days) == 0 {
		days = domain.AllDays
	}
	encoded, err := json.Marshal(days)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("postgres: failed to encode days: %w", err)
	}

	query := `
		INSERT INTO schedules (id, route_id, departure_time, arrival_time, days_of_week, is_active)
		VALUES ($1, $2, $3, $4, $5::jsonb, $6)
		RETURNING ` + scheduleColumns

	s, err := scanSchedule(r.pool.QueryRow(ctx, query,
		uuid.NewString(), ns.RouteID, ns.DepartureTime, ns.ArrivalTime, string(encoded), ns.IsActive == nil || *ns.IsActive,
	))
	if err != nil {
		return domain.Schedule{}, mapError(err, domain.ErrRouteNotFound, nil, "create schedule")
	}
	return s, nil
}

const analyticsColumns = `id, date, total_co2_saved, total_fuel_saved, total_trips, avg_bus_speed`

func scanAnalytics(row pgx.Row) (domain.Analytics, error) {
	var a domain.Analytics
	err := row.Scan(&a.ID, &a.Date, &a.TotalCO2Saved, &a.TotalFuelSaved, &a.TotalTrips, &a.AvgBusSpeed)
	return a, err
}

// ListAnalytics returns snapshots oldest first
func (r *PostgresRepository) ListAnalytics(ctx context.Context) ([]domain.Analytics, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+analyticsColumns+` FROM analytics ORDER BY date ASC`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query analytics: %w", err)
	}
	defer rows.Close()

	results := make([]domain.Analytics, 0)
	for rows.Next() {
		a, err := scanAnalytics(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan analytics row: %w", err)
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// LatestAnalytics returns the most recent snapshot
func (r *PostgresRepository) LatestAnalytics(ctx context.Context) (domain.Analytics, error) {
	a, err := scanAnalytics(r.pool.QueryRow(ctx, `SELECT `+analyticsColumns+` FROM analytics ORDER BY date DESC LIMIT 1`))
	if err != nil {
		return domain.Analytics{}, mapError(err, domain.ErrAnalyticsNotFound, nil, "get latest analytics")
	}
	return a, nil
}

// CreateAnalytics inserts a snapshot; a recorded day maps to domain.ErrAnalyticsDayExists
func (r *PostgresRepository) CreateAnalytics(ctx context.Context, na domain.NewAnalytics) (domain.Analytics, error) {
	date := time.Now()
	if na.Date != nil {
		date = *na.Date
	}

	query := `
		INSERT INTO analytics (id, date, day, total_co2_saved, total_fuel_saved, total_trips, avg_bus_speed)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7)
		RETURNING ` + analyticsColumns

	a, err := scanAnalytics(r.pool.QueryRow(ctx, query,
		uuid.NewString(), date, domain.AnalyticsDay(date),
		na.TotalCO2Saved, na.TotalFuelSaved, na.TotalTrips, na.AvgBusSpeed,
	))
	if err != nil {
		return domain.Analytics{}, mapError(err, domain.ErrAnalyticsNotFound, domain.ErrAnalyticsDayExists, "create analytics")
	}
	return a, nil
}

// CorrectAnalytics amends the totals of a recorded snapshot
func (r *PostgresRepository) CorrectAnalytics(ctx context.Context, id string, c domain.AnalyticsCorrection) (domain.Analytics, error) {
	query := `
		UPDATE analytics SET
			total_co2_saved  = COALESCE($2, total_co2_saved),
			total_fuel_saved = COALESCE($3, total_fuel_saved),
			total_trips      = COALESCE($4, total_trips),
			avg_bus_speed    = COALESCE($5, avg_bus_speed)
		WHERE id = $1
		RETURNING ` + analyticsColumns

	a, err := scanAnalytics(r.pool.QueryRow(ctx, query,
		id, c.TotalCO2Saved, c.TotalFuelSaved, c.TotalTrips, c.AvgBusSpeed,
	))
	if err != nil {
		return domain.Analytics{}, mapError(err, domain.ErrAnalyticsNotFound, nil, "correct analytics")
	}
	return a, nil
}

const complianceColumns = `id, bus_id, pollution_cert_expiry, fitness_cert_expiry,
	pollution_cert_url, fitness_cert_url, compliance_status, last_checked`

func scanCompliance(row pgx.Row) (domain.BusCompliance, error) {
	var c domain.BusCompliance
	err := row.Scan(
		&c.ID, &c.BusID, &c.PollutionCertExpiry, &c.FitnessCertExpiry,
		&c.PollutionCertURL, &c.FitnessCertURL, &c.ComplianceStatus, &c.LastChecked,
	)
	return c, err
}

// ListCompliance returns every compliance record
func (r *PostgresRepository) ListCompliance(ctx context.Context) ([]domain.BusCompliance, error) {
	query := `
		SELECT c.id, c.bus_id, c.pollution_cert_expiry, c.fitness_cert_expiry,
			   c.pollution_cert_url, c.fitness_cert_url, c.compliance_status, c.last_checked
		FROM bus_compliance c
		JOIN buses b ON b.id = c.bus_id
		ORDER BY b.created_at, b.bus_number
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query compliance: %w", err)
	}
	defer rows.Close()

	results := make([]domain.BusCompliance, 0)
	for rows.Next() {
		c, err := scanCompliance(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan compliance row: %w", err)
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// UpsertCompliance inserts or replaces the record of one bus
func (r *PostgresRepository) UpsertCompliance(ctx context.Context, nc domain.NewCompliance) (domain.BusCompliance, error) {
	status := nc.Status
	if status == "" {
		status = domain.ComplianceUnknown
	}

	query := `
		INSERT INTO bus_compliance (
			id, bus_id, pollution_cert_expiry, fitness_cert_expiry,
			pollution_cert_url, fitness_cert_url, compliance_status, last_checked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (bus_id) DO UPDATE SET
			pollution_cert_expiry = EXCLUDED.pollution_cert_expiry,
			fitness_cert_expiry   = EXCLUDED.fitness_cert_expiry,
			pollution_cert_url    = EXCLUDED.pollution_cert_url,
			fitness_cert_url      = EXCLUDED.fitness_cert_url,
			compliance_status     = EXCLUDED.compliance_status,
			last_checked          = now()
		RETURNING ` + complianceColumns

	c, err := scanCompliance(r.pool.QueryRow(ctx, query,
		uuid.NewString(), nc.BusID, nc.PollutionCertExpiry, nc.FitnessCertExpiry,
		nc.PollutionCertURL, nc.FitnessCertURL, status,
	))
	if err != nil {
		return domain.BusCompliance{}, mapError(err, domain.ErrBusNotFound, nil, "upsert compliance")
	}
	return c, nil
}

const alertColumns = `id, user_id, bus_id, alert_distance, is_active, last_alert_sent, created_at`

func scanAlert(row pgx.Row) (domain.ProximityAlert, error) {
	var a domain.ProximityAlert
	err := row.Scan(&a.ID, &a.UserID, &a.BusID, &a.AlertDistance, &a.IsActive, &a.LastAlertSent, &a.CreatedAt)
	return a, err
}

// ListAlertsByUser returns the alerts of one user, oldest first
func (r *PostgresRepository) ListAlertsByUser(ctx context.Context, userID string) ([]domain.ProximityAlert, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+alertColumns+` FROM proximity_alerts WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query proximity alerts: %w", err)
	}
	defer rows.Close()

	results := make([]domain.ProximityAlert, 0)
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan proximity alert row: %w", err)
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// CreateAlert inserts an alert; an unknown bus maps to domain.ErrBusNotFound
func (r *PostgresRepository) CreateAlert(ctx context.Context, na domain.NewProximityAlert) (domain.ProximityAlert, error) {
	distance := domain.DefaultAlertDistanceKm
	if na.AlertDistance != nil {
		distance = *na.AlertDistance
	}

	query := `
		INSERT INTO proximity_alerts (id, user_id, bus_id, alert_distance, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING ` + alertColumns

	a, err := scanAlert(r.pool.QueryRow(ctx, query,
		uuid.NewString(), na.UserID, na.BusID, distance, na.IsActive == nil || *na.IsActive,
	))
	if err != nil {
		return domain.ProximityAlert{}, mapError(err, domain.ErrBusNotFound, nil, "create proximity alert")
	}
	return a, nil
}

// DeleteAlert removes an alert
func (r *PostgresRepository) DeleteAlert(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM proximity_alerts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete proximity alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}

// MarkAlertSent records when a notification last went out
func (r *PostgresRepository) MarkAlertSent(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `UPDATE proximity_alerts SET last_alert_sent = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("postgres: failed to mark proximity alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrAlertNotFound
	}
	return nil
}

const userColumns = `id, firebase_uid, email, name, phone, role, vehicle_number,
	assigned_route, eco_points, eco_score, favorite_stops, created_at`

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u     domain.User
		stops []byte
	)
	err := row.Scan(
		&u.ID, &u.FirebaseUID, &u.Email, &u.Name, &u.Phone, &u.Role, &u.VehicleNumber,
		&u.AssignedRoute, &u.EcoPoints, &u.EcoScore, &stops, &u.CreatedAt,
	)
	if err != nil {
		return u, err
	}
	if err := json.Unmarshal(stops, &u.FavoriteStops); err != nil {
		return u, fmt.Errorf("decode favorite stops: %w", err)
	}
	return u, nil
}

// GetUser returns one user by id
func (r *PostgresRepository) GetUser(ctx context.Context, id string) (domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return domain.User{}, mapError(err, domain.ErrUserNotFound, nil, "get user")
	}
	return u, nil
}

// GetUserByFirebaseUID returns the user linked to a Firebase account
func (r *PostgresRepository) GetUserByFirebaseUID(ctx context.Context, firebaseUID string) (domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE firebase_uid = $1`, firebaseUID))
	if err != nil {
		return domain.User{}, mapError(err, domain.ErrUserNotFound, nil, "get user by firebase uid")
	}
	return u, nil
}

// CreateUser inserts a profile; a taken uid or email maps to domain.ErrDuplicateUser
func (r *PostgresRepository) CreateUser(ctx context.Context, nu domain.NewUser) (domain.User, error) {
	stops := nu.FavoriteStops
	if stops == nil {
		stops = []string{}
	}
	encoded, err := json.Marshal(stops)
	if err != nil {
		return domain.User{}, fmt.Errorf("postgres: failed to encode favorite stops: %w", err)
	}
	role := nu.Role
	if role == "" {
		role = domain.RolePassenger
	}

	query := `
		INSERT INTO users (
			id, firebase_uid, email, name, phone, role, vehicle_number,
			assigned_route, favorite_stops, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, now())
		RETURNING ` + userColumns

	u, err := scanUser(r.pool.QueryRow(ctx, query,
		uuid.NewString(), nu.FirebaseUID, nu.Email, nu.Name, nu.Phone, role, nu.VehicleNumber,
		nu.AssignedRoute, string(encoded),
	))
	if err != nil {
		return domain.User{}, mapError(err, domain.ErrUserNotFound, domain.ErrDuplicateUser, "create user")
	}
	return u, nil
}

// SetEcoPoints replaces the eco point balance of a user
func (r *PostgresRepository) SetEcoPoints(ctx context.Context, id string, points int) (domain.User, error) {
	u, err := scanUser(r.pool.QueryRow(ctx,
		`UPDATE users SET eco_points = $2 WHERE id = $1 RETURNING `+userColumns, id, points))
	if err != nil {
		return domain.User{}, mapError(err, domain.ErrUserNotFound, nil, "set eco points")
	}
	return u, nil
}

// Health checks database connectivity
func (r *PostgresRepository) Health(ctx context.Context) error {
	if err := r.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgres: health check failed: %w", err)
	}
	return nil
}

// mapError translates driver errors into domain sentinels. notFound is
// returned for missing rows and for foreign key violations, conflict for
// unique violations when set.
func mapError(err error, notFound, conflict error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation && conflict != nil:
			return conflict
		case pgErr.Code == pgForeignKeyViolation:
			return notFound
		}
	}
	return fmt.Errorf("postgres: failed to %s: %w", op, err)
}

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
