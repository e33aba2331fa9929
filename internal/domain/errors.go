package domain

import (
	"errors"
	"strings"
)

var (
	ErrBusNotFound        = errors.New("bus not found")
	ErrRouteNotFound      = errors.New("route not found")
	ErrAnalyticsNotFound  = errors.New("no analytics found")
	ErrComplianceNotFound = errors.New("compliance record not found")
	ErrAlertNotFound      = errors.New("proximity alert not found")
	ErrDuplicateBusNumber = errors.New("bus number already exists")
	ErrAnalyticsDayExists = errors.New("analytics already recorded for this day")
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateUser      = errors.New("user with this email already exists")
)

// FieldError describes one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationErrors collects every invalid field of a request
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Field+": "+fe.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationErrors) add(field, message string) {
	*v = append(*v, FieldError{Field: field, Message: message})
}

// Err returns nil when nothing was collected.
func (v ValidationErrors) Err() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
