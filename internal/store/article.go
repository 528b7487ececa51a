package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/quill-api/internal/domain"
)

// ArticleFilter narrows an article listing. Zero values disable a filter.
type ArticleFilter struct {
	AuthorID    *uuid.UUID
	Status      *domain.ArticleStatus
	CategoryIDs []uuid.UUID
	// CreatedFrom and CreatedTo bound created_at inclusively.
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// ArticleStore defines the interface for article persistence.
type ArticleStore interface {
	// Create saves a new article and its category links.
	Create(ctx context.Context, article *domain.Article) error

	// GetByID retrieves an article with its category IDs.
	// Returns ErrArticleNotFound if the article does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Article, error)

	// Update saves the editable fields and replaces the category links.
	// Slug and summary are written only through UpdateSlugAndSummary.
	Update(ctx context.Context, article *domain.Article) error

	// Delete removes an article. Returns ErrArticleNotFound if absent.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns one page of articles newest first, and the total match count.
	List(ctx context.Context, filter ArticleFilter) ([]*domain.Article, int, error)

	// ExistsWithSlug reports whether any article other than excludeID holds slug.
	ExistsWithSlug(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)

	// UpdateSlugAndSummary writes both derived fields in one statement.
	// Returns ErrSlugTaken if another article holds the slug and
	// ErrArticleNotFound if the article was deleted.
	UpdateSlugAndSummary(ctx context.Context, id uuid.UUID, slug, summary string) error

	// WithTx returns a new ArticleStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) ArticleStore
}

// CategoryStore defines the interface for category persistence.
type CategoryStore interface {
	Create(ctx context.Context, category *domain.Category) error

	// GetByID returns ErrCategoryNotFound if the category does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)

	// Update returns ErrCategoryNameExists when the new name is taken.
	Update(ctx context.Context, category *domain.Category) error

	// Delete returns ErrCategoryInUse while articles still reference it.
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns every category with its article count, ordered by name.
	List(ctx context.Context) ([]*domain.Category, error)

	// MissingIDs returns the subset of ids with no matching category.
	MissingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error)

	WithTx(tx *sql.Tx) CategoryStore
}
