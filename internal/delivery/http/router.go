package http

import (
	nethttp "net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/busbuddy/backend/internal/service"
)

// Dependencies are the services the routes are served from
type Dependencies struct {
	Fleet      *service.FleetService
	Arrivals   *service.RouteArrivalService
	Proximity  *service.ProximityService
	Compliance *service.ComplianceService
	Dashboard  *service.DashboardService
	Users      *service.UserService
	StoreName  string

	// Metrics is mounted at /metrics when set
	Metrics nethttp.Handler
}

// NewApp creates the fiber app with the shared error handler and middleware
func NewApp(accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "BusBuddy API v1.0",
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorHandler: ErrorHandler,
		// Params and bodies outlive the request once they reach the store
		Immutable: true,
	})

	app.Use(recover.New())
	if accessLog {
		app.Use(logger.New(logger.Config{
			Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
		}))
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,PATCH,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))
	return app
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	handler := NewHandler(deps)

	// Health check
	app.Get("/health", handler.HealthCheck)
	if deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics))
	}

	api := app.Group("/api")
	{
		api.Get("/dashboard", handler.GetDashboard)

		// Buses
		api.Get("/buses", handler.ListBuses)
		api.Post("/buses", handler.CreateBus)
		api.Get("/buses/:id", handler.GetBus)
		api.Patch("/buses/:id/location", handler.UpdateBusLocation)
		api.Get("/buses/:id/eta", handler.GetBusETA)
		api.Post("/eta/calculate", handler.CalculateETA)

		// Analytics
		api.Get("/analytics", handler.ListAnalytics)
		api.Get("/analytics/latest", handler.GetLatestAnalytics)
		api.Post("/analytics", handler.CreateAnalytics)
		api.Patch("/analytics/:id", handler.CorrectAnalytics)

		// Routes and schedules
		api.Get("/routes", handler.ListRoutes)
		api.Post("/routes", handler.CreateRoute)
		api.Get("/routes/:id", handler.GetRoute)
		api.Get("/routes/:id/schedules", handler.ListSchedules)
		api.Post("/routes/:id/schedules", handler.CreateSchedule)
		api.Get("/routes/:id/next-arrival", handler.GetNextArrival)

		// Compliance
		api.Get("/compliance", handler.ListCompliance)
		api.Get("/compliance/status", handler.GetComplianceStatus)
		api.Post("/compliance", handler.RecordCompliance)

		// Proximity alerts
		api.Get("/proximity-alerts/user/:userId", handler.ListUserAlerts)
		api.Post("/proximity-alerts", handler.CreateAlert)
		api.Post("/proximity-alerts/check", handler.CheckProximity)
		api.Delete("/proximity-alerts/:id", handler.DeleteAlert)

		// Users
		api.Get("/users/:firebaseUid", handler.GetUser)
		api.Post("/users", handler.RegisterUser)
		api.Patch("/users/:id/eco-points", handler.UpdateEcoPoints)
	}
}
