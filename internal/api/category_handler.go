package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/quill-api/internal/api/shared"
	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/service"
)

// CategoryHandler handles category HTTP requests.
type CategoryHandler struct {
	categories service.CategoryService
	validator  *validator.Validate
	logger     *slog.Logger
}

// NewCategoryHandler creates a new CategoryHandler.
func NewCategoryHandler(categories service.CategoryService, logger *slog.Logger) *CategoryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CategoryHandler{
		categories: categories,
		validator:  validator.New(),
		logger:     logger.With("component", "category_handler"),
	}
}

// ListCategories handles GET /api/categories.
func (h *CategoryHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.categories.List(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list categories")
		return
	}
	data := make([]CategoryResponse, len(categories))
	for i, c := range categories {
		data[i] = categoryToResponse(c)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, data)
}

// GetCategory handles GET /api/categories/{id}.
func (h *CategoryHandler) GetCategory(w http.ResponseWriter, r *http.Request) {
	_, id, ok := handlePrincipalAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	category, err := h.categories.Get(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get category")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, categoryToResponse(category))
}

// CreateCategory handles POST /api/categories.
func (h *CategoryHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	caller, ok := getPrincipalFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}

	var req CreateCategoryRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	category, err := h.categories.Create(r.Context(), caller, req.Name, req.Description)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create category")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, categoryToResponse(category))
}

// UpdateCategory handles PUT and PATCH /api/categories/{id}.
func (h *CategoryHandler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := handlePrincipalAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateCategoryRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	category, err := h.categories.Update(r.Context(), caller, id, service.CategoryPatch{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update category")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, categoryToResponse(category))
}

// DeleteCategory handles DELETE /api/categories/{id}.
func (h *CategoryHandler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := handlePrincipalAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	if err := h.categories.Delete(r.Context(), caller, id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete category")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: "Category deleted successfully"})
}
