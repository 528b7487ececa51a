package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/events"
	"github.com/phrazzld/quill-api/internal/store"
	"github.com/phrazzld/quill-api/internal/task"
)

// CreateArticleInput carries the fields of a new article.
type CreateArticleInput struct {
	Title         string
	Content       string
	Status        domain.ArticleStatus
	PublishedDate *time.Time
	CategoryIDs   []uuid.UUID
}

// ArticleService provides article operations.
type ArticleService interface {
	// Create stores a new article owned by the caller and requests enrichment.
	Create(ctx context.Context, caller domain.Principal, in CreateArticleInput) (*domain.Article, error)

	Get(ctx context.Context, caller domain.Principal, id uuid.UUID) (*domain.Article, error)

	// List returns one page and the total count. Authors only see their own articles.
	List(ctx context.Context, caller domain.Principal, filter store.ArticleFilter) ([]*domain.Article, int, error)

	// Update applies patch and requests enrichment when it touches title or content.
	Update(ctx context.Context, caller domain.Principal, id uuid.UUID, patch domain.ArticlePatch) (*domain.Article, error)

	Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error
}

type articleServiceImpl struct {
	db           *sql.DB
	articles     store.ArticleStore
	categories   store.CategoryStore
	eventEmitter events.EventEmitter
	logger       *slog.Logger
}

// NewArticleService creates an ArticleService.
// It returns an error if any of the required dependencies are nil.
func NewArticleService(
	db *sql.DB,
	articles store.ArticleStore,
	categories store.CategoryStore,
	eventEmitter events.EventEmitter,
	logger *slog.Logger,
) (ArticleService, error) {
	switch {
	case db == nil:
		return nil, &ArticleServiceError{Operation: "create_service", Message: "db cannot be nil"}
	case articles == nil:
		return nil, &ArticleServiceError{Operation: "create_service", Message: "articles cannot be nil"}
	case categories == nil:
		return nil, &ArticleServiceError{Operation: "create_service", Message: "categories cannot be nil"}
	case eventEmitter == nil:
		return nil, &ArticleServiceError{Operation: "create_service", Message: "eventEmitter cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &articleServiceImpl{
		db:           db,
		articles:     articles,
		categories:   categories,
		eventEmitter: eventEmitter,
		logger:       logger.With("component", "article_service"),
	}, nil
}

func (s *articleServiceImpl) Create(
	ctx context.Context,
	caller domain.Principal,
	in CreateArticleInput,
) (*domain.Article, error) {
	if !caller.CanWriteArticles() {
		return nil, ErrForbidden
	}

	article, err := domain.NewArticle(caller.UserID, in.Title, in.Content, in.Status, in.PublishedDate)
	if err != nil {
		return nil, NewArticleServiceError("create_article", "invalid article", err)
	}
	article.CategoryIDs = dedupe(in.CategoryIDs)

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		if err := checkCategories(ctx, s.categories.WithTx(tx), article.CategoryIDs); err != nil {
			return err
		}
		return s.articles.WithTx(tx).Create(ctx, article)
	})
	if err != nil {
		s.logger.Error("failed to create article",
			"error", err,
			"author_id", caller.UserID)
		return nil, NewArticleServiceError("create_article", "failed to save article", err)
	}

	s.logger.Info("article created", "article_id", article.ID, "author_id", caller.UserID)
	s.requestEnrichment(ctx, article.ID)
	return s.reload(ctx, article), nil
}

func (s *articleServiceImpl) Get(ctx context.Context, caller domain.Principal, id uuid.UUID) (*domain.Article, error) {
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, NewArticleServiceError("get_article", "failed to retrieve article", err)
	}
	if !caller.CanAccess(article.AuthorID) {
		return nil, ErrNotOwned
	}
	return article, nil
}

func (s *articleServiceImpl) List(
	ctx context.Context,
	caller domain.Principal,
	filter store.ArticleFilter,
) ([]*domain.Article, int, error) {
	if !caller.Role.Valid() {
		return nil, 0, ErrForbidden
	}
	if caller.Role == domain.RoleAuthor {
		own := caller.UserID
		filter.AuthorID = &own
	}

	articles, total, err := s.articles.List(ctx, filter)
	if err != nil {
		return nil, 0, NewArticleServiceError("list_articles", "failed to list articles", err)
	}
	return articles, total, nil
}

func (s *articleServiceImpl) Update(
	ctx context.Context,
	caller domain.Principal,
	id uuid.UUID,
	patch domain.ArticlePatch,
) (*domain.Article, error) {
	if !caller.CanWriteArticles() {
		return nil, ErrForbidden
	}
	if patch.CategoryIDs != nil {
		ids := dedupe(*patch.CategoryIDs)
		patch.CategoryIDs = &ids
	}

	var updated *domain.Article
	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		articles := s.articles.WithTx(tx)

		article, err := articles.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !caller.CanAccess(article.AuthorID) {
			return ErrNotOwned
		}
		if err := article.Apply(patch); err != nil {
			return err
		}
		if patch.CategoryIDs != nil {
			if err := checkCategories(ctx, s.categories.WithTx(tx), article.CategoryIDs); err != nil {
				return err
			}
		}
		if err := articles.Update(ctx, article); err != nil {
			return err
		}
		updated = article
		return nil
	})
	if err != nil {
		if !errors.Is(err, store.ErrArticleNotFound) && !errors.Is(err, ErrNotOwned) {
			s.logger.Error("failed to update article", "error", err, "article_id", id)
		}
		return nil, NewArticleServiceError("update_article", "failed to update article", err)
	}

	s.logger.Info("article updated", "article_id", id, "text_changed", patch.TouchesText())
	if !patch.TouchesText() {
		return updated, nil
	}
	s.requestEnrichment(ctx, id)
	return s.reload(ctx, updated), nil
}

func (s *articleServiceImpl) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	if !caller.CanWriteArticles() {
		return ErrForbidden
	}

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		articles := s.articles.WithTx(tx)
		article, err := articles.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !caller.CanAccess(article.AuthorID) {
			return ErrNotOwned
		}
		return articles.Delete(ctx, id)
	})
	if err != nil {
		return NewArticleServiceError("delete_article", "failed to delete article", err)
	}

	s.logger.Info("article deleted", "article_id", id)
	return nil
}

// requestEnrichment emits the enrichment event. Failures are logged only:
// the article write has already committed and stays successful.
func (s *articleServiceImpl) requestEnrichment(ctx context.Context, articleID uuid.UUID) {
	event, err := task.NewEnrichmentRequestEvent(articleID)
	if err != nil {
		s.logger.Error("failed to build enrichment event", "error", err, "article_id", articleID)
		return
	}
	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		s.logger.Error("failed to emit enrichment event",
			"error", err,
			"article_id", articleID,
			"event_id", event.ID)
		return
	}
	s.logger.Debug("enrichment event emitted", "article_id", articleID, "event_id", event.ID)
}

// reload re-reads the article so that a synchronous enrichment is visible
// to the caller. It falls back to the written copy.
func (s *articleServiceImpl) reload(ctx context.Context, written *domain.Article) *domain.Article {
	fresh, err := s.articles.GetByID(ctx, written.ID)
	if err != nil {
		s.logger.Warn("failed to reload article after write", "error", err, "article_id", written.ID)
		return written
	}
	return fresh
}

// checkCategories fails with UnknownCategoriesError when any id is missing.
func checkCategories(ctx context.Context, categories store.CategoryStore, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	missing, err := categories.MissingIDs(ctx, ids)
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return &UnknownCategoriesError{IDs: missing}
	}
	return nil
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
