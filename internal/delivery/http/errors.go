package http

import (
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"github.com/busbuddy/backend/internal/domain"
)

// ErrorHandler maps domain and fiber errors to JSON error responses
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	var details any

	var fe *fiber.Error
	var verr domain.ValidationErrors
	switch {
	case errors.As(err, &fe):
		code = fe.Code
		message = fe.Message
	case errors.As(err, &verr):
		code = fiber.StatusBadRequest
		message = "Validation failed"
		details = verr
	case errors.Is(err, domain.ErrBusNotFound),
		errors.Is(err, domain.ErrRouteNotFound),
		errors.Is(err, domain.ErrAnalyticsNotFound),
		errors.Is(err, domain.ErrComplianceNotFound),
		errors.Is(err, domain.ErrAlertNotFound),
		errors.Is(err, domain.ErrUserNotFound):
		code = fiber.StatusNotFound
		message = capitalize(err.Error())
	case errors.Is(err, domain.ErrDuplicateBusNumber),
		errors.Is(err, domain.ErrAnalyticsDayExists),
		errors.Is(err, domain.ErrDuplicateUser):
		code = fiber.StatusConflict
		message = capitalize(err.Error())
	default:
		log.Printf("%s %s failed: %v", c.Method(), c.Path(), err)
	}

	body := fiber.Map{
		"error":   true,
		"message": message,
	}
	if details != nil {
		body["details"] = details
	}
	return c.Status(code).JSON(body)
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
