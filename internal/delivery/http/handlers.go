package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/busbuddy/backend/internal/domain"
	"github.com/busbuddy/backend/internal/service"
)

// Handler contains all HTTP handlers
type Handler struct {
	fleet      *service.FleetService
	arrivals   *service.RouteArrivalService
	proximity  *service.ProximityService
	compliance *service.ComplianceService
	dashboard  *service.DashboardService
	users      *service.UserService
	storeName  string
}

// NewHandler creates a new handler
func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		fleet:      deps.Fleet,
		arrivals:   deps.Arrivals,
		proximity:  deps.Proximity,
		compliance: deps.Compliance,
		dashboard:  deps.Dashboard,
		users:      deps.Users,
		storeName:  deps.StoreName,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	status, code := "ok", fiber.StatusOK
	if err := h.fleet.Health(c.Context()); err != nil {
		status, code = "degraded", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":   status,
		"service":  "busbuddy-backend",
		"version":  "1.0.0",
		"database": h.storeName,
	})
}

// GetDashboard returns aggregated live data
func (h *Handler) GetDashboard(c *fiber.Ctx) error {
	data, err := h.dashboard.GetDashboardData(c.Context())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch dashboard data")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
	})
}

// ListBuses returns every bus
func (h *Handler) ListBuses(c *fiber.Ctx) error {
	buses, err := h.fleet.ListBuses(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(buses)
}

// GetBus returns one bus
func (h *Handler) GetBus(c *fiber.Ctx) error {
	bus, err := h.fleet.GetBus(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(bus)
}

// CreateBus registers a bus
func (h *Handler) CreateBus(c *fiber.Ctx) error {
	var req domain.NewBus
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	bus, err := h.fleet.CreateBus(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(bus)
}

// UpdateBusLocation applies a position report
func (h *Handler) UpdateBusLocation(c *fiber.Ctx) error {
	var req domain.LocationUpdate
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid location data: latitude, longitude and speed must be numbers")
	}
	bus, err := h.fleet.UpdateLocation(c.Context(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(bus)
}

// GetBusETA estimates the arrival of a bus at the lat/lng query point
func (h *Handler) GetBusETA(c *fiber.Ctx) error {
	dest, err := queryPoint(c)
	if err != nil {
		return err
	}
	eta, err := h.fleet.EstimateETA(c.Context(), c.Params("id"), dest)
	if err != nil {
		return err
	}
	return c.JSON(eta)
}

type etaRequest struct {
	BusID          string   `json:"busId"`
	DestinationLat *float64 `json:"destinationLat"`
	DestinationLng *float64 `json:"destinationLng"`
}

// CalculateETA computes the plain ETA of a bus to a destination
func (h *Handler) CalculateETA(c *fiber.Ctx) error {
	var req etaRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.BusID == "" || req.DestinationLat == nil || req.DestinationLng == nil {
		return fiber.NewError(fiber.StatusBadRequest, "busId, destinationLat and destinationLng are required")
	}
	res, err := h.fleet.CalculateETA(c.Context(), req.BusID, domain.Point{Lat: *req.DestinationLat, Lng: *req.DestinationLng})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// ListAnalytics returns every snapshot, oldest first
func (h *Handler) ListAnalytics(c *fiber.Ctx) error {
	data, err := h.fleet.ListAnalytics(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(data)
}

// GetLatestAnalytics returns the newest snapshot
func (h *Handler) GetLatestAnalytics(c *fiber.Ctx) error {
	a, err := h.fleet.LatestAnalytics(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(a)
}

// CreateAnalytics stores a snapshot
func (h *Handler) CreateAnalytics(c *fiber.Ctx) error {
	var req domain.NewAnalytics
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	a, err := h.fleet.CreateAnalytics(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(a)
}

// CorrectAnalytics amends the totals of a recorded day
func (h *Handler) CorrectAnalytics(c *fiber.Ctx) error {
	var req domain.AnalyticsCorrection
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	a, err := h.fleet.CorrectAnalytics(c.Context(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(a)
}

// ListRoutes returns every route
func (h *Handler) ListRoutes(c *fiber.Ctx) error {
	routes, err := h.fleet.ListRoutes(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(routes)
}

// GetRoute returns one route
func (h *Handler) GetRoute(c *fiber.Ctx) error {
	rt, err := h.fleet.GetRoute(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(rt)
}

// CreateRoute stores a route
func (h *Handler) CreateRoute(c *fiber.Ctx) error {
	var req domain.NewRoute
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	rt, err := h.fleet.CreateRoute(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rt)
}

// ListSchedules returns the schedules of a route
func (h *Handler) ListSchedules(c *fiber.Ctx) error {
	s, err := h.fleet.ListSchedules(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(s)
}

// CreateSchedule adds a departure to a route
func (h *Handler) CreateSchedule(c *fiber.Ctx) error {
	var req domain.NewSchedule
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	s, err := h.fleet.CreateSchedule(c.Context(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(s)
}

// GetNextArrival returns the next departure of a route
func (h *Handler) GetNextArrival(c *fiber.Ctx) error {
	next, err := h.arrivals.NextArrival(c.Context(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(next)
}

// ListCompliance returns the stored certificate records
func (h *Handler) ListCompliance(c *fiber.Ctx) error {
	records, err := h.compliance.List(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(records)
}

// GetComplianceStatus returns one derived status per bus
func (h *Handler) GetComplianceStatus(c *fiber.Ctx) error {
	views, err := h.compliance.Statuses(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(views)
}

// RecordCompliance upserts the certificates of a bus
func (h *Handler) RecordCompliance(c *fiber.Ctx) error {
	var req domain.NewCompliance
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	rec, err := h.compliance.Record(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(rec)
}

// ListUserAlerts returns the proximity alerts of a user
func (h *Handler) ListUserAlerts(c *fiber.Ctx) error {
	alerts, err := h.proximity.ListAlerts(c.Context(), c.Params("userId"))
	if err != nil {
		return err
	}
	return c.JSON(alerts)
}

// CreateAlert pins a bus for a user
func (h *Handler) CreateAlert(c *fiber.Ctx) error {
	var req domain.NewProximityAlert
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	alert, err := h.proximity.CreateAlert(c.Context(), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(alert)
}

// DeleteAlert removes a proximity alert
func (h *Handler) DeleteAlert(c *fiber.Ctx) error {
	if err := h.proximity.DeleteAlert(c.Context(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type proximityCheckRequest struct {
	UserID    string   `json:"userId"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// CheckProximity evaluates the user's alerts against their live location
func (h *Handler) CheckProximity(c *fiber.Ctx) error {
	var req proximityCheckRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if req.UserID == "" || req.Latitude == nil || req.Longitude == nil {
		return fiber.NewError(fiber.StatusBadRequest, "userId, latitude and longitude are required")
	}
	results, err := h.proximity.Evaluate(c.Context(), req.UserID, domain.Point{Lat: *req.Latitude, Lng: *req.Longitude})
	if err != nil {
		return err
	}
	return c.JSON(results)
}

// GetUser returns the profile linked to a Firebase account
func (h *Handler) GetUser(c *fiber.Ctx) error {
	user, err := h.users.GetByFirebaseUID(c.Context(), c.Params("firebaseUid"))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// RegisterUser creates a profile, answering 200 with the existing one when
// the Firebase account is already registered
func (h *Handler) RegisterUser(c *fiber.Ctx) error {
	var req domain.NewUser
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	user, created, err := h.users.Register(c.Context(), req)
	if err != nil {
		return err
	}
	if created {
		return c.Status(fiber.StatusCreated).JSON(user)
	}
	return c.JSON(user)
}

// UpdateEcoPoints replaces the eco point balance of a user
func (h *Handler) UpdateEcoPoints(c *fiber.Ctx) error {
	var req domain.EcoPointsUpdate
	if err := c.BodyParser(&req); err != nil || req.Points == nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid eco points value")
	}
	user, err := h.users.SetEcoPoints(c.Context(), c.Params("id"), req)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

func queryPoint(c *fiber.Ctx) (domain.Point, error) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		return domain.Point{}, fiber.NewError(fiber.StatusBadRequest, "lat must be a number")
	}
	lng, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		return domain.Point{}, fiber.NewError(fiber.StatusBadRequest, "lng must be a number")
	}
	return domain.Point{Lat: lat, Lng: lng}, nil
}
