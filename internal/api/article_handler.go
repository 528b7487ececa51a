package api

import (
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/quill-api/internal/api/shared"
	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/service"
)

// ArticleHandler handles article HTTP requests. Enrichment is requested by
// the service after writes; its outcome never changes the response here.
type ArticleHandler struct {
	articles  service.ArticleService
	validator *validator.Validate
	logger    *slog.Logger
}

// NewArticleHandler creates a new ArticleHandler.
func NewArticleHandler(articles service.ArticleService, logger *slog.Logger) *ArticleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ArticleHandler{
		articles:  articles,
		validator: validator.New(),
		logger:    logger.With("component", "article_handler"),
	}
}

// CreateArticle handles POST /api/articles.
func (h *ArticleHandler) CreateArticle(w http.ResponseWriter, r *http.Request) {
	caller, ok := getPrincipalFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}

	var req CreateArticleRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	article, err := h.articles.Create(r.Context(), caller, service.CreateArticleInput{
		Title:         req.Title,
		Content:       req.Content,
		Status:        domain.ArticleStatus(req.Status),
		PublishedDate: req.PublishedDate,
		CategoryIDs:   req.CategoryIDs,
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create article")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, articleToResponse(article))
}

// ListArticles handles GET /api/articles.
func (h *ArticleHandler) ListArticles(w http.ResponseWriter, r *http.Request) {
	caller, ok := getPrincipalFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return
	}

	query, err := parseArticleListQuery(r.URL.Query())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	articles, total, err := h.articles.List(r.Context(), caller, query.Filter)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to list articles")
		return
	}

	data := make([]ArticleResponse, len(articles))
	for i, a := range articles {
		data[i] = articleToResponse(a)
	}
	shared.RespondWithJSON(w, r, http.StatusOK, ListArticlesResponse{
		Data:           data,
		Pagination:     newPagination(query.Page, query.PerPage, total, len(articles)),
		FiltersApplied: query.FiltersApplied,
	})
}

// GetArticle handles GET /api/articles/{id}.
func (h *ArticleHandler) GetArticle(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := handlePrincipalAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	article, err := h.articles.Get(r.Context(), caller, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get article")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, articleToResponse(article))
}

// UpdateArticle handles PUT and PATCH /api/articles/{id}. Both are partial.
func (h *ArticleHandler) UpdateArticle(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := handlePrincipalAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateArticleRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	article, err := h.articles.Update(r.Context(), caller, id, req.patch())
	if err != nil {
		HandleAPIError(w, r, err, "Failed to update article")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, articleToResponse(article))
}

// DeleteArticle handles DELETE /api/articles/{id}.
func (h *ArticleHandler) DeleteArticle(w http.ResponseWriter, r *http.Request) {
	caller, id, ok := handlePrincipalAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.articles.Delete(r.Context(), caller, id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete article")
		return
	}
	h.logger.Info("article deleted via API", "article_id", id, "user_id", caller.UserID)
	shared.RespondWithJSON(w, r, http.StatusOK, MessageResponse{Message: "Article deleted successfully"})
}
