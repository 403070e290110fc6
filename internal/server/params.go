package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hyperjump/emma/internal/controller"
	"github.com/hyperjump/emma/internal/models"
)

var errBadParam = errors.New("invalid parameter")

// optionalInt parses an integer query parameter; absent or empty yields nil.
func optionalInt(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%s=%q is not an integer: %w", name, raw, errBadParam)
	}
	return &v, nil
}

func requiredInt(r *http.Request, name string) (int, error) {
	v, err := optionalInt(r, name)
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, fmt.Errorf("%s is required: %w", name, errBadParam)
	}
	return *v, nil
}

func requiredString(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return "", fmt.Errorf("%s is required: %w", name, errBadParam)
	}
	return v, nil
}

// queryPair parses the bg and fg parameters most API routes take.
func queryPair(r *http.Request) (bg, fg int, err error) {
	if bg, err = requiredInt(r, "bg"); err != nil {
		return 0, 0, err
	}
	if fg, err = requiredInt(r, "fg"); err != nil {
		return 0, 0, err
	}
	return bg, fg, nil
}

func urlInt(r *http.Request, name string) (int, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer: %w", name, raw, errBadParam)
	}
	return v, nil
}

func urlInt64(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not an integer: %w", name, raw, errBadParam)
	}
	return v, nil
}

// stateFromRequest reads the dashboard state from bg, fg, row and q.
func stateFromRequest(r *http.Request) (controller.State, error) {
	var (
		s   controller.State
		err error
	)
	if s.Background, err = optionalInt(r, "bg"); err != nil {
		return s, err
	}
	if s.Foreground, err = optionalInt(r, "fg"); err != nil {
		return s, err
	}
	if s.SelectedRow, err = optionalInt(r, "row"); err != nil {
		return s, err
	}
	s.Filter = strings.TrimSpace(r.URL.Query().Get("q"))
	return s, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadParam), errors.Is(err, models.ErrRowOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrUnsupportedQuery):
		return http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
