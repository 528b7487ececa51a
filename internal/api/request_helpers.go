package api

import (
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/api/shared"
	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/platform/logger"
	"github.com/phrazzld/quill-api/internal/store"
)

// Listing bounds for GET /api/articles.
const (
	DefaultPerPage = 10
	MaxPerPage     = 100
)

const dateLayout = "2006-01-02"

// getPrincipalFromContext extracts the authenticated caller placed in the
// context by the authentication middleware.
func getPrincipalFromContext(r *http.Request) (domain.Principal, bool) {
	return shared.PrincipalFromContext(r.Context())
}

// getPathUUID extracts a UUID from the URL path parameters.
//
// Returns:
//   - (uuid.UUID, nil): The parsed UUID if valid
//   - (uuid.UUID{}, error): A validation error if the parameter is missing or malformed
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// handlePrincipalAndPathUUID extracts both the caller and a UUID path
// parameter, writing an error response if either fails.
func handlePrincipalAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
) (domain.Principal, uuid.UUID, bool) {
	log := logger.FromContextOrDefault(r.Context(), slog.Default())

	caller, ok := getPrincipalFromContext(r)
	if !ok {
		log.Warn("principal not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return domain.Principal{}, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid "+paramName,
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return domain.Principal{}, uuid.Nil, false
	}

	return caller, pathID, true
}

// articleListQuery is a parsed GET /api/articles query string.
type articleListQuery struct {
	Filter         store.ArticleFilter
	Page           int
	PerPage        int
	FiltersApplied map[string]string
}

// parseArticleListQuery reads the listing filters. An unknown status is
// ignored; malformed dates and category ids are validation errors. date_to
// is inclusive through the end of that day.
func parseArticleListQuery(q url.Values) (articleListQuery, error) {
	out := articleListQuery{
		Page:           1,
		PerPage:        DefaultPerPage,
		FiltersApplied: map[string]string{},
	}
	for _, key := range []string{"status", "category_ids", "category_id", "date_from", "date_to", "per_page"} {
		if q.Has(key) {
			out.FiltersApplied[key] = q.Get(key)
		}
	}

	if status := domain.ArticleStatus(q.Get("status")); domain.IsValidArticleStatus(status) {
		out.Filter.Status = &status
	}

	var rawIDs []string
	if v := q.Get("category_id"); v != "" {
		rawIDs = append(rawIDs, v)
	}
	for _, v := range q["category_ids"] {
		rawIDs = append(rawIDs, strings.Split(v, ",")...)
	}
	for _, raw := range rawIDs {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return out, domain.NewValidationError("category_ids", "contains an invalid id", domain.ErrValidation)
		}
		out.Filter.CategoryIDs = append(out.Filter.CategoryIDs, id)
	}

	if v := q.Get("date_from"); v != "" {
		from, err := time.Parse(dateLayout, v)
		if err != nil {
			return out, domain.NewValidationError("date_from", "must be a YYYY-MM-DD date", domain.ErrValidation)
		}
		out.Filter.CreatedFrom = &from
	}
	if v := q.Get("date_to"); v != "" {
		day, err := time.Parse(dateLayout, v)
		if err != nil {
			return out, domain.NewValidationError("date_to", "must be a YYYY-MM-DD date", domain.ErrValidation)
		}
		to := day.Add(24*time.Hour - time.Nanosecond)
		out.Filter.CreatedTo = &to
	}

	if v := q.Get("per_page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			out.PerPage = min(max(n, 1), MaxPerPage)
		}
	}
	if v := q.Get("page"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			out.Page = n
		}
	}

	out.Filter.Limit = out.PerPage
	out.Filter.Offset = (out.Page - 1) * out.PerPage
	return out, nil
}
