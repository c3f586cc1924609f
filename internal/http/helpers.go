package http

import (
	"net/http"
	"strconv"
	"strings"

	"fintrack/internal/auth"
	"fintrack/internal/core"
)

// queryInt reads an optional integer query parameter; zero when absent.
func queryInt(r *http.Request, key string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(key))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.Validationf("Query parameter %s must be a number", key)
	}
	return n, nil
}

// parseYearMonth extracts the optional year and month query parameters.
// Zero means absent; range checks belong to the services.
func parseYearMonth(r *http.Request) (year, month int, err error) {
	if year, err = queryInt(r, "year"); err != nil {
		return 0, 0, err
	}
	if month, err = queryInt(r, "month"); err != nil {
		return 0, 0, err
	}
	if month < 0 || month > 12 {
		return 0, 0, core.Validationf("Month must be between 1 and 12")
	}
	return year, month, nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// sanitizePtr applies sanitizeInput through an optional field.
func sanitizePtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := sanitizeInput(*s)
	return &v
}

// callerID returns the authenticated user's id. Protected routes always run
// behind the authenticator, so a missing identity is a wiring bug.
func callerID(r *http.Request) (string, error) {
	id, ok := auth.FromContext(r.Context())
	if !ok || id.UserID == "" {
		return "", core.Unauthenticatedf("Authentication required")
	}
	return id.UserID, nil
}
