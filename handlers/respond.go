package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/ajperformance/storefront/backend/models"
	"github.com/ajperformance/storefront/backend/service"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// writeError maps a service error onto a status code and a JSON body carrying its message.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var fe *service.FieldError
	if errors.As(err, &fe) {
		body.Field = fe.Field
	}
	switch {
	case errors.Is(err, service.ErrEmailNotVerified):
		body.Error = "Your account is not verified. Please check your email and verify your account before logging in."
	case status >= 500:
		log.Error().Err(err).Int("status", status).Msg("request failed")
		if !errors.Is(err, service.ErrTransient) {
			body.Error = "internal error"
		}
	}
	writeJSON(w, status, body)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrEmailNotVerified), errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrTransient):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// listQuery reads page, limit, search, categoryId and isAdmin from the query string.
// page is 1-based; limit defaults to the listing page size and is capped at 100.
func listQuery(r *http.Request) models.ListQuery {
	v := r.URL.Query()
	limit := queryInt(v.Get("limit"), models.DefaultPageSize)
	if limit > 100 {
		limit = 100
	}
	q := models.ListQuery{
		Limit:      limit,
		Offset:     models.OffsetFor(queryInt(v.Get("page"), 1), limit),
		Search:     strings.TrimSpace(v.Get("search")),
		CategoryID: strings.TrimSpace(v.Get("categoryId")),
	}
	if b, err := strconv.ParseBool(v.Get("isAdmin")); err == nil {
		q.IsAdmin = &b
	}
	return q
}

func queryInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

// pageResponse is a listing page with 1-based page numbers for clients.
type pageResponse[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
	Limit      int `json:"limit"`
}

func toPageResponse[T any](p models.Page[T]) pageResponse[T] {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	page := 1
	if p.Limit > 0 {
		page = p.Offset/p.Limit + 1
	}
	return pageResponse[T]{
		Items:      items,
		Total:      p.Total,
		Page:       page,
		TotalPages: models.TotalPages(p.Total, p.Limit),
		Limit:      p.Limit,
	}
}
