package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/busbuddy/backend/internal/cache"
	"github.com/busbuddy/backend/internal/domain"
	"github.com/busbuddy/backend/internal/metrics"
	"github.com/busbuddy/backend/internal/repository/memory"
	"github.com/busbuddy/backend/internal/service"
)

func newTestApp(t *testing.T) (*fiber.App, *memory.Repository) {
	t.Helper()
	repo := memory.NewRepository()
	now := func() time.Time { return time.Date(2024, 1, 1, 15, 0, 0, 0, time.UTC) }

	app := NewApp(false)
	SetupRoutes(app, Dependencies{
		Fleet:      service.NewFleetService(repo, service.NewETAEstimatorWithBuffer(func() float64 { return 0 })),
		Arrivals:   service.NewRouteArrivalService(repo, now),
		Proximity:  service.NewProximityService(repo, cache.NewMemoryStore(time.Hour), service.LogNotifier{}),
		Compliance: service.NewComplianceService(repo, now),
		Dashboard:  service.NewDashboardService(repo, now),
		Users:      service.NewUserService(repo),
		StoreName:  "memory",
		Metrics:    metrics.NewCollector(time.Second).Handler(),
	})
	return app, repo
}

func do(t *testing.T, app *fiber.App, method, path string, body any) (int, []byte) {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out
}

func seedBus(t *testing.T, repo *memory.Repository, number string, speed float64) domain.Bus {
	t.Helper()
	lat, lng := 12.2958, 76.6394
	b, err := repo.CreateBus(context.Background(), domain.NewBus{
		BusNumber: number, RouteName: "Test", Latitude: &lat, Longitude: &lng,
		Status: domain.BusStatusActive, CurrentSpeed: speed,
	})
	if err != nil {
		t.Fatalf("CreateBus failed: %v", err)
	}
	return b
}

type errorBody struct {
	Error   bool                `json:"error"`
	Message string              `json:"message"`
	Details []domain.FieldError `json:"details"`
}

func decodeError(t *testing.T, raw []byte) errorBody {
	t.Helper()
	var e errorBody
	if err := json.Unmarshal(raw, &e); err != nil {
		t.Fatalf("decode error body %s: %v", raw, err)
	}
	if !e.Error {
		t.Errorf("expected error=true in %s", raw)
	}
	return e
}

func TestHealthCheck(t *testing.T) {
	app, _ := newTestApp(t)
	code, body := do(t, app, "GET", "/health", nil)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var got map[string]string
	_ = json.Unmarshal(body, &got)
	if got["status"] != "ok" || got["database"] != "memory" {
		t.Errorf("unexpected health body %s", body)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	app, _ := newTestApp(t)
	code, body := do(t, app, "GET", "/metrics", nil)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if !strings.Contains(string(body), "busbuddy_simulator_ticks_total") {
		t.Error("expected simulator metrics in the exposition")
	}
}

func TestGetBusIdempotent(t *testing.T) {
	app, repo := newTestApp(t)
	bus := seedBus(t, repo, "MYS101", 25)

	code1, first := do(t, app, "GET", "/api/buses/"+bus.ID, nil)
	code2, second := do(t, app, "GET", "/api/buses/"+bus.ID, nil)
	if code1 != fiber.StatusOK || code2 != fiber.StatusOK {
		t.Fatalf("expected 200s, got %d and %d", code1, code2)
	}
	if !bytes.Equal(first, second) {
		t.Errorf("expected identical payloads:\n%s\n%s", first, second)
	}
}

func TestGetBusNotFound(t *testing.T) {
	app, _ := newTestApp(t)
	code, body := do(t, app, "GET", "/api/buses/missing", nil)
	if code != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
	if e := decodeError(t, body); e.Message != "Bus not found" {
		t.Errorf("unexpected message %q", e.Message)
	}
}

func TestCreateBus(t *testing.T) {
	app, _ := newTestApp(t)
	req := map[string]any{"busNumber": "BLR13", "routeName": "Shivajinagar → Banashankari", "latitude": 12.97, "longitude": 77.59}

	code, body := do(t, app, "POST", "/api/buses", req)
	if code != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", code, body)
	}
	var bus domain.Bus
	_ = json.Unmarshal(body, &bus)
	if bus.ID == "" || bus.Status != domain.BusStatusActive {
		t.Errorf("unexpected bus %+v", bus)
	}

	if code, _ := do(t, app, "POST", "/api/buses", req); code != fiber.StatusConflict {
		t.Errorf("expected 409 for a duplicate bus number, got %d", code)
	}

	code, body = do(t, app, "POST", "/api/buses", map[string]any{"busNumber": "X"})
	if code != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if e := decodeError(t, body); len(e.Details) == 0 {
		t.Errorf("expected field details in %s", body)
	}

	if code, _ := do(t, app, "POST", "/api/buses", "{not json"); code != fiber.StatusBadRequest {
		t.Errorf("expected 400 for malformed json, got %d", code)
	}
}

func TestUpdateBusLocation(t *testing.T) {
	app, repo := newTestApp(t)
	bus := seedBus(t, repo, "MYS102", 20)
	path := "/api/buses/" + bus.ID + "/location"

	tests := []struct {
		name string
		body any
		want int
	}{
		{"valid", map[string]any{"latitude": 12.3, "longitude": 76.7, "speed": 33}, fiber.StatusOK},
		{"string speed", `{"latitude":12.3,"longitude":76.7,"speed":"fast"}`, fiber.StatusBadRequest},
		{"missing longitude", map[string]any{"latitude": 12.3, "speed": 10}, fiber.StatusBadRequest},
		{"latitude out of range", map[string]any{"latitude": 123.0, "longitude": 76.7, "speed": 10}, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := do(t, app, "PATCH", path, tt.body); code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, code, body)
			}
		})
	}

	if code, _ := do(t, app, "PATCH", "/api/buses/missing/location", map[string]any{"latitude": 1, "longitude": 1, "speed": 1}); code != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}

	got, _ := repo.GetBus(context.Background(), bus.ID)
	if got.CurrentSpeed != 33 {
		t.Errorf("expected speed 33 after the valid update, got %v", got.CurrentSpeed)
	}
}

func TestUpdateBusLocationBackToBack(t *testing.T) {
	app, repo := newTestApp(t)
	first := seedBus(t, repo, "MYS110", 20)
	second := seedBus(t, repo, "MYS111", 20)

	for _, u := range []struct {
		id    string
		speed float64
	}{{first.ID, 31}, {second.ID, 42}} {
		body := map[string]any{"latitude": 12.31, "longitude": 76.64, "speed": u.speed}
		if code, out := do(t, app, "PATCH", "/api/buses/"+u.id+"/location", body); code != fiber.StatusOK {
			t.Fatalf("expected 200, got %d: %s", code, out)
		}
	}

	code, body := do(t, app, "GET", "/api/buses", nil)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var buses []domain.Bus
	if err := json.Unmarshal(body, &buses); err != nil {
		t.Fatalf("decode buses: %v", err)
	}
	if len(buses) != 2 {
		t.Fatalf("expected 2 buses, got %s", body)
	}
	want := map[string]float64{"MYS110": 31, "MYS111": 42}
	for _, b := range buses {
		if b.ID == "" || b.Status != domain.BusStatusActive || b.CurrentSpeed != want[b.BusNumber] {
			t.Errorf("unexpected bus after back-to-back updates: %+v", b)
		}
	}

	if code, _ := do(t, app, "GET", "/api/buses/"+first.ID, nil); code != fiber.StatusOK {
		t.Errorf("expected the first bus to stay addressable, got %d", code)
	}
}

func TestCreateScheduleKeepsRouteID(t *testing.T) {
	app, repo := newTestApp(t)
	rt, err := repo.CreateRoute(context.Background(), domain.NewRoute{Name: "A → B", From: "A", To: "B"})
	if err != nil {
		t.Fatalf("CreateRoute failed: %v", err)
	}

	if code, out := do(t, app, "POST", "/api/routes/"+rt.ID+"/schedules", map[string]any{"departureTime": "09:00"}); code != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", code, out)
	}
	do(t, app, "GET", "/api/buses/some-other-long-request-param", nil)

	got, err := repo.ListSchedules(context.Background(), rt.ID)
	if err != nil {
		t.Fatalf("ListSchedules failed: %v", err)
	}
	if len(got) != 1 || got[0].RouteID != rt.ID {
		t.Errorf("unexpected schedules %+v", got)
	}
}

func TestCalculateETA(t *testing.T) {
	app, repo := newTestApp(t)
	bus := seedBus(t, repo, "MYS103", 0)

	code, body := do(t, app, "POST", "/api/eta/calculate", map[string]any{
		"busId": bus.ID, "destinationLat": 12.3958, "destinationLng": 76.6394,
	})
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	var got service.DirectETAResult
	_ = json.Unmarshal(body, &got)
	if got.BusSpeed != 30 || got.Distance != "11.12" || got.ETA != 22 {
		t.Errorf("unexpected result %+v", got)
	}

	if code, _ := do(t, app, "POST", "/api/eta/calculate", map[string]any{"busId": "ghost", "destinationLat": 1, "destinationLng": 1}); code != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	if code, _ := do(t, app, "POST", "/api/eta/calculate", map[string]any{"busId": bus.ID}); code != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestGetBusETA(t *testing.T) {
	app, repo := newTestApp(t)
	bus := seedBus(t, repo, "MYS104", 30)

	code, body := do(t, app, "GET", "/api/buses/"+bus.ID+"/eta?lat=12.2958&lng=76.6394", nil)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var got service.BusETA
	_ = json.Unmarshal(body, &got)
	if got.Formatted != "Arriving now" || got.Status != service.ETAImminent {
		t.Errorf("unexpected eta %+v", got)
	}

	if code, _ := do(t, app, "GET", "/api/buses/"+bus.ID+"/eta?lat=north", nil); code != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	if code, _ := do(t, app, "GET", "/api/analytics/latest", nil); code != fiber.StatusNotFound {
		t.Errorf("expected 404 on an empty store, got %d", code)
	}
	for _, d := range []string{"2024-01-03T00:00:00Z", "2024-01-01T00:00:00Z"} {
		if code, body := do(t, app, "POST", "/api/analytics", map[string]any{"date": d, "totalTrips": 300}); code != fiber.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", code, body)
		}
	}

	_, body := do(t, app, "GET", "/api/analytics", nil)
	var list []domain.Analytics
	_ = json.Unmarshal(body, &list)
	if len(list) != 2 || !list[0].Date.Before(list[1].Date) {
		t.Errorf("expected ascending analytics, got %s", body)
	}

	_, body = do(t, app, "GET", "/api/analytics/latest", nil)
	var latest domain.Analytics
	_ = json.Unmarshal(body, &latest)
	if latest.Date.Day() != 3 {
		t.Errorf("expected the newest snapshot, got %s", body)
	}

	code, body := do(t, app, "POST", "/api/analytics", map[string]any{"date": "2024-01-03T18:30:00Z", "totalTrips": 999})
	if code != fiber.StatusConflict {
		t.Fatalf("expected 409 for a recorded day, got %d: %s", code, body)
	}

	code, body = do(t, app, "PATCH", "/api/analytics/"+latest.ID, map[string]any{"totalTrips": 320})
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d: %s", code, body)
	}
	var fixed domain.Analytics
	_ = json.Unmarshal(body, &fixed)
	if fixed.ID != latest.ID || fixed.TotalTrips != 320 {
		t.Errorf("unexpected correction %s", body)
	}
	if code, _ := do(t, app, "PATCH", "/api/analytics/missing", map[string]any{"totalTrips": 1}); code != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
	if code, _ := do(t, app, "PATCH", "/api/analytics/"+latest.ID, map[string]any{}); code != fiber.StatusBadRequest {
		t.Errorf("expected 400 for an empty correction, got %d", code)
	}
}

func TestUserEndpoints(t *testing.T) {
	app, _ := newTestApp(t)
	req := map[string]any{"firebaseUid": "fb-42", "email": "meera@example.com", "name": "Meera"}

	code, body := do(t, app, "POST", "/api/users", req)
	if code != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", code, body)
	}
	var user domain.User
	_ = json.Unmarshal(body, &user)
	if user.ID == "" || user.Role != domain.RolePassenger || user.EcoPoints != 0 {
		t.Errorf("unexpected user %s", body)
	}

	code, body = do(t, app, "POST", "/api/users", req)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200 for an existing account, got %d: %s", code, body)
	}
	var again domain.User
	_ = json.Unmarshal(body, &again)
	if again.ID != user.ID {
		t.Errorf("expected the existing user, got %s", body)
	}

	if code, _ := do(t, app, "POST", "/api/users", map[string]any{"firebaseUid": "fb-43"}); code != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}

	code, body = do(t, app, "GET", "/api/users/fb-42", nil)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if code, body := do(t, app, "GET", "/api/users/fb-missing", nil); code != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	} else if e := decodeError(t, body); e.Message != "User not found" {
		t.Errorf("unexpected message %q", e.Message)
	}

	path := "/api/users/" + user.ID + "/eco-points"
	tests := []struct {
		name string
		body any
		want int
	}{
		{"number", map[string]any{"points": 120}, fiber.StatusOK},
		{"string", `{"points":"120"}`, fiber.StatusBadRequest},
		{"missing", map[string]any{}, fiber.StatusBadRequest},
		{"fraction", map[string]any{"points": 1.5}, fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := do(t, app, "PATCH", path, tt.body); code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, code, body)
			}
		})
	}

	_, body = do(t, app, "GET", "/api/users/fb-42", nil)
	var stored domain.User
	_ = json.Unmarshal(body, &stored)
	if stored.EcoPoints != 120 {
		t.Errorf("expected 120 eco points, got %s", body)
	}

	if code, _ := do(t, app, "PATCH", "/api/users/ghost/eco-points", map[string]any{"points": 5}); code != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestRouteEndpoints(t *testing.T) {
	app, _ := newTestApp(t)

	code, body := do(t, app, "POST", "/api/routes", map[string]any{
		"name": "City Bus Stand → KRS", "from": "City Bus Stand", "to": "KRS",
		"stops": []map[string]any{{"name": "City Bus Stand", "lat": 12.3, "lng": 76.65}},
	})
	if code != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", code, body)
	}
	var rt domain.Route
	_ = json.Unmarshal(body, &rt)
	if rt.City != "Mysuru" {
		t.Errorf("expected the default city, got %q", rt.City)
	}

	if code, _ := do(t, app, "POST", "/api/routes", map[string]any{"name": "incomplete"}); code != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}
	if code, _ := do(t, app, "GET", "/api/routes/missing", nil); code != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}

	for _, dep := range []string{"08:00", "14:00", "20:00"} {
		if code, body := do(t, app, "POST", "/api/routes/"+rt.ID+"/schedules", map[string]any{"departureTime": dep}); code != fiber.StatusCreated {
			t.Fatalf("expected 201, got %d: %s", code, body)
		}
	}

	code, body = do(t, app, "GET", "/api/routes/"+rt.ID+"/next-arrival", nil)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var next service.NextArrival
	_ = json.Unmarshal(body, &next)
	if next.NextArrival == nil || *next.NextArrival != "20:00" || next.MinutesUntil == nil || *next.MinutesUntil != 300 {
		t.Errorf("unexpected next arrival %s", body)
	}
}

func TestComplianceEndpoints(t *testing.T) {
	app, repo := newTestApp(t)
	bus := seedBus(t, repo, "MYS105", 20)
	seedBus(t, repo, "MYS106", 20)

	code, body := do(t, app, "POST", "/api/compliance", map[string]any{
		"busId": bus.ID, "pollutionCertExpiry": "2024-01-11T15:00:00Z",
	})
	if code != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", code, body)
	}

	_, body = do(t, app, "GET", "/api/compliance/status", nil)
	var views []service.ComplianceView
	_ = json.Unmarshal(body, &views)
	if len(views) != 2 || views[0].Status != domain.ComplianceExpiring || views[1].Status != domain.ComplianceUnknown {
		t.Errorf("unexpected statuses %s", body)
	}

	if code, _ := do(t, app, "POST", "/api/compliance", map[string]any{"busId": "ghost"}); code != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestProximityAlertEndpoints(t *testing.T) {
	app, repo := newTestApp(t)
	bus := seedBus(t, repo, "MYS107", 20)

	code, body := do(t, app, "POST", "/api/proximity-alerts", map[string]any{"userId": "u1", "busId": bus.ID})
	if code != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", code, body)
	}
	var alert domain.ProximityAlert
	_ = json.Unmarshal(body, &alert)

	_, body = do(t, app, "GET", "/api/proximity-alerts/user/u1", nil)
	var alerts []domain.ProximityAlert
	_ = json.Unmarshal(body, &alerts)
	if len(alerts) != 1 {
		t.Fatalf("expected one alert, got %s", body)
	}

	code, body = do(t, app, "POST", "/api/proximity-alerts/check", map[string]any{"userId": "u1", "latitude": 12.2958, "longitude": 76.6394})
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var results []service.ProximityResult
	_ = json.Unmarshal(body, &results)
	if len(results) != 1 || !results[0].InRange || !results[0].Notified {
		t.Errorf("unexpected check results %s", body)
	}

	if code, _ := do(t, app, "POST", "/api/proximity-alerts/check", map[string]any{"userId": "u1"}); code != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", code)
	}

	if code, _ := do(t, app, "DELETE", "/api/proximity-alerts/"+alert.ID, nil); code != fiber.StatusNoContent {
		t.Errorf("expected 204, got %d", code)
	}
	if code, _ := do(t, app, "DELETE", "/api/proximity-alerts/"+alert.ID, nil); code != fiber.StatusNotFound {
		t.Errorf("expected 404, got %d", code)
	}
}

func TestGetDashboard(t *testing.T) {
	app, repo := newTestApp(t)
	seedBus(t, repo, "MYS108", 20)

	code, body := do(t, app, "GET", "/api/dashboard", nil)
	if code != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	var got struct {
		Success bool                  `json:"success"`
		Data    service.DashboardData `json:"data"`
	}
	_ = json.Unmarshal(body, &got)
	if !got.Success || got.Data.ActiveBuses != 1 {
		t.Errorf("unexpected dashboard %s", body)
	}
}
