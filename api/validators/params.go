package validators

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/pagination"
)

// UUIDParam parses a uuid path parameter registered on the chi route.
func UUIDParam(r *http.Request, name string) (uuid.UUID, error) {
	raw := chi.URLParam(r, name)
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).WithDetails(map[string]string{name: "must be a valid uuid"})
	}
	return id, nil
}

// LimitQuery reads the optional limit query parameter and clamps it to the
// pagination bounds.
func LimitQuery(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return pagination.DefaultLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "invalid limit").WithDetails(map[string]string{"limit": "must be a positive integer"})
	}
	return pagination.NormalizeLimit(limit), nil
}

// CursorQuery reads the optional cursor query parameter and checks that it
// decodes before handing it to the service layer.
func CursorQuery(r *http.Request) (string, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("cursor"))
	if raw == "" {
		return "", nil
	}
	if _, err := pagination.ParseCursor(raw); err != nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid cursor").WithDetails(map[string]string{"cursor": "is malformed"})
	}
	return raw, nil
}

// BoolQuery reads an optional boolean query parameter, defaulting to false.
func BoolQuery(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).WithDetails(map[string]string{name: "must be a boolean"})
	}
	return value, nil
}

// DecimalField parses a decimal carried as a JSON string field.
func DecimalField(raw, name string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid "+name).WithDetails(map[string]string{name: "must be a decimal number"})
	}
	return value, nil
}
