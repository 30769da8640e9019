package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/snackhouse/api/internal/domain"
	"github.com/snackhouse/api/internal/platform/auth"
	"github.com/snackhouse/api/internal/services"
)

var (
	errEmptyBody    = errors.New("request body is empty")
	errBodyTooLarge = errors.New("request body too large")
)

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

func parseOrderIDParam(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if raw == "" {
		return 0, errors.New("order id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("order id %q is not a positive integer", raw)
	}
	return id, nil
}

func parseItemIDParam(r *http.Request) (int64, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "itemID"))
	if raw == "" {
		return 0, errors.New("item id is required")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("item id %q is not a positive integer", raw)
	}
	return id, nil
}

// parseStatusFilters splits repeated and comma separated status query values
// into unique status codes, rejecting unknown codes.
func parseStatusFilters(values []string) ([]domain.StatusCode, error) {
	if len(values) == 0 {
		return nil, nil
	}
	seen := make(map[domain.StatusCode]struct{})
	filters := make([]domain.StatusCode, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := domain.StatusCode(strings.ToLower(strings.TrimSpace(part)))
			if trimmed == "" {
				continue
			}
			if !domain.ValidStatusCode(trimmed) {
				return nil, fmt.Errorf("unknown status %q", trimmed)
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			filters = append(filters, trimmed)
		}
	}
	return filters, nil
}

func parseTimeParam(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("timestamp is empty")
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, errors.New("must be RFC3339 timestamp")
}

// actorFromRequest derives the acting party from the authenticated identity.
// Anonymous requests produce the zero actor.
func actorFromRequest(r *http.Request) services.Actor {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil {
		return services.Actor{}
	}
	return services.Actor{
		ID:       strings.TrimSpace(identity.Subject),
		Name:     strings.TrimSpace(identity.Name),
		Employee: identity.IsEmployee(),
	}
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
