package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/domain"
)

// CreateArticleRequest defines the payload for POST /api/articles.
type CreateArticleRequest struct {
	Title         string      `json:"title"          validate:"required,max=255"`
	Content       string      `json:"content"        validate:"required"`
	Status        string      `json:"status"         validate:"required,oneof=draft published archived"`
	PublishedDate *time.Time  `json:"published_date"`
	CategoryIDs   []uuid.UUID `json:"category_ids"`
}

// UpdateArticleRequest defines the payload for PUT and PATCH /api/articles/{id}.
// Absent fields are left unchanged; category_ids replaces the set when present.
type UpdateArticleRequest struct {
	Title         *string      `json:"title"          validate:"omitempty,max=255"`
	Content       *string      `json:"content"`
	Status        *string      `json:"status"         validate:"omitempty,oneof=draft published archived"`
	PublishedDate *time.Time   `json:"published_date"`
	CategoryIDs   *[]uuid.UUID `json:"category_ids"`
}

func (req UpdateArticleRequest) patch() domain.ArticlePatch {
	p := domain.ArticlePatch{
		Title:         req.Title,
		Content:       req.Content,
		PublishedDate: req.PublishedDate,
		CategoryIDs:   req.CategoryIDs,
	}
	if req.Status != nil {
		status := domain.ArticleStatus(*req.Status)
		p.Status = &status
	}
	return p
}

// ArticleResponse is the JSON form of an article. Slug and summary are null
// until the first enrichment finishes.
type ArticleResponse struct {
	ID            uuid.UUID   `json:"id"`
	AuthorID      uuid.UUID   `json:"author_id"`
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	Status        string      `json:"status"`
	PublishedDate *time.Time  `json:"published_date"`
	Slug          *string     `json:"slug"`
	Summary       *string     `json:"summary"`
	CategoryIDs   []uuid.UUID `json:"category_ids"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Pagination describes one page of a listing. From and To are the 1-based
// positions of the first and last item, null for an empty page.
type Pagination struct {
	CurrentPage int  `json:"current_page"`
	LastPage    int  `json:"last_page"`
	PerPage     int  `json:"per_page"`
	Total       int  `json:"total"`
	From        *int `json:"from"`
	To          *int `json:"to"`
}

// ListArticlesResponse is the body of GET /api/articles.
type ListArticlesResponse struct {
	Data           []ArticleResponse `json:"data"`
	Pagination     Pagination        `json:"pagination"`
	FiltersApplied map[string]string `json:"filters_applied"`
}

// MessageResponse carries a plain confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// CreateCategoryRequest defines the payload for POST /api/categories.
type CreateCategoryRequest struct {
	Name        string  `json:"name"        validate:"required,max=255"`
	Description *string `json:"description"`
}

// UpdateCategoryRequest defines the payload for PUT and PATCH /api/categories/{id}.
type UpdateCategoryRequest struct {
	Name        *string `json:"name"        validate:"omitempty,max=255"`
	Description *string `json:"description"`
}

// CategoryResponse is the JSON form of a category.
type CategoryResponse struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Slug          string    `json:"slug"`
	Description   *string   `json:"description"`
	ArticlesCount int       `json:"articles_count"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func articleToResponse(a *domain.Article) ArticleResponse {
	categoryIDs := a.CategoryIDs
	if categoryIDs == nil {
		categoryIDs = []uuid.UUID{}
	}
	return ArticleResponse{
		ID:            a.ID,
		AuthorID:      a.AuthorID,
		Title:         a.Title,
		Content:       a.Content,
		Status:        string(a.Status),
		PublishedDate: a.PublishedDate,
		Slug:          a.Slug,
		Summary:       a.Summary,
		CategoryIDs:   categoryIDs,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
	}
}

func categoryToResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{
		ID:            c.ID,
		Name:          c.Name,
		Slug:          c.Slug,
		Description:   c.Description,
		ArticlesCount: c.ArticleCount,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
}

// newPagination computes the page metadata for total items.
func newPagination(page, perPage, total, count int) Pagination {
	lastPage := 1
	if total > 0 {
		lastPage = (total + perPage - 1) / perPage
	}
	p := Pagination{
		CurrentPage: page,
		LastPage:    lastPage,
		PerPage:     perPage,
		Total:       total,
	}
	if count > 0 {
		from := (page-1)*perPage + 1
		to := from + count - 1
		p.From, p.To = &from, &to
	}
	return p
}
