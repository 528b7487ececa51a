package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/platform/logger"
	"github.com/phrazzld/quill-api/internal/store"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var articleColumns = []string{
	"a.id", "a.author_id", "a.title", "a.content", "a.status", "a.published_date",
	"a.slug", "a.summary", "a.created_at", "a.updated_at",
}

// PostgresArticleStore implements store.ArticleStore on PostgreSQL.
type PostgresArticleStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresArticleStore creates an article store over a connection or transaction.
// If logger is nil, a default logger will be used.
func NewPostgresArticleStore(db store.DBTX, logger *slog.Logger) *PostgresArticleStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresArticleStore{
		db:     db,
		logger: logger.With(slog.String("component", "article_store")),
	}
}

var _ store.ArticleStore = (*PostgresArticleStore)(nil)

// WithTx implements store.ArticleStore.WithTx
func (s *PostgresArticleStore) WithTx(tx *sql.Tx) store.ArticleStore {
	return &PostgresArticleStore{db: tx, logger: s.logger}
}

// Create implements store.ArticleStore.Create
func (s *PostgresArticleStore) Create(ctx context.Context, article *domain.Article) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := article.Validate(); err != nil {
		log.Warn("article validation failed during create",
			slog.String("error", err.Error()),
			slog.String("article_id", article.ID.String()))
		return err
	}

	query := `
		INSERT INTO articles (id, author_id, title, content, status, published_date, slug, summary, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := s.db.ExecContext(ctx, query,
		article.ID,
		article.AuthorID,
		article.Title,
		article.Content,
		string(article.Status),
		article.PublishedDate,
		article.Slug,
		article.Summary,
		article.CreatedAt,
		article.UpdatedAt,
	)
	if err != nil {
		log.Error("failed to create article",
			slog.String("error", err.Error()),
			slog.String("article_id", article.ID.String()))
		return MapError(err)
	}

	if err := s.insertCategoryLinks(ctx, article.ID, article.CategoryIDs); err != nil {
		return err
	}

	log.Info("article created",
		slog.String("article_id", article.ID.String()),
		slog.String("author_id", article.AuthorID.String()))
	return nil
}

// GetByID implements store.ArticleStore.GetByID
func (s *PostgresArticleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query, args, err := psql.Select(articleColumns...).
		From("articles a").
		Where(sq.Eq{"a.id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build article query: %w", err)
	}

	article, err := scanArticle(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("article not found", slog.String("article_id", id.String()))
			return nil, store.ErrArticleNotFound
		}
		log.Error("failed to get article",
			slog.String("error", err.Error()),
			slog.String("article_id", id.String()))
		return nil, MapError(err)
	}

	links, err := s.categoryLinks(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	article.CategoryIDs = links[id]

	return article, nil
}

// Update implements store.ArticleStore.Update
func (s *PostgresArticleStore) Update(ctx context.Context, article *domain.Article) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := article.Validate(); err != nil {
		return err
	}

	query := `
		UPDATE articles
		SET title = $1, content = $2, status = $3, published_date = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := s.db.ExecContext(ctx, query,
		article.Title,
		article.Content,
		string(article.Status),
		article.PublishedDate,
		article.UpdatedAt,
		article.ID,
	)
	if err != nil {
		log.Error("failed to update article",
			slog.String("error", err.Error()),
			slog.String("article_id", article.ID.String()))
		return MapError(err)
	}
	if err := CheckRowsAffected(result, store.ErrArticleNotFound); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM article_categories WHERE article_id = $1`, article.ID); err != nil {
		log.Error("failed to clear article categories",
			slog.String("error", err.Error()),
			slog.String("article_id", article.ID.String()))
		return MapError(err)
	}
	return s.insertCategoryLinks(ctx, article.ID, article.CategoryIDs)
}

// Delete implements store.ArticleStore.Delete
func (s *PostgresArticleStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete article",
			slog.String("error", err.Error()),
			slog.String("article_id", id.String()))
		return MapError(err)
	}
	return CheckRowsAffected(result, store.ErrArticleNotFound)
}

// List implements store.ArticleStore.List
func (s *PostgresArticleStore) List(ctx context.Context, filter store.ArticleFilter) ([]*domain.Article, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where, err := articleFilterClause(filter)
	if err != nil {
		return nil, 0, err
	}

	countQuery, countArgs, err := psql.Select("COUNT(*)").From("articles a").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		log.Error("failed to count articles", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}

	page := psql.Select(articleColumns...).
		From("articles a").
		Where(where).
		OrderBy("a.created_at DESC", "a.id DESC")
	if filter.Limit > 0 {
		page = page.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		page = page.Offset(uint64(filter.Offset))
	}
	query, args, err := page.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list articles", slog.String("error", err.Error()))
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	articles := make([]*domain.Article, 0)
	ids := make([]uuid.UUID, 0)
	for rows.Next() {
		article, err := scanArticle(rows)
		if err != nil {
			log.Error("failed to scan article row", slog.String("error", err.Error()))
			return nil, 0, fmt.Errorf("failed to scan article row: %w", err)
		}
		articles = append(articles, article)
		ids = append(ids, article.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating article rows: %w", err)
	}

	if len(ids) > 0 {
		links, err := s.categoryLinks(ctx, ids)
		if err != nil {
			return nil, 0, err
		}
		for _, a := range articles {
			a.CategoryIDs = links[a.ID]
		}
	}

	return articles, total, nil
}

// ExistsWithSlug implements store.ArticleStore.ExistsWithSlug
func (s *PostgresArticleStore) ExistsWithSlug(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM articles WHERE slug = $1 AND id <> $2)`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, slug, excludeID).Scan(&exists); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to check slug",
			slog.String("error", err.Error()),
			slog.String("slug", slug))
		return false, MapError(err)
	}
	return exists, nil
}

// UpdateSlugAndSummary implements store.ArticleStore.UpdateSlugAndSummary
func (s *PostgresArticleStore) UpdateSlugAndSummary(ctx context.Context, id uuid.UUID, slug, summary string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE articles
		SET slug = $1, summary = $2, updated_at = $3
		WHERE id = $4
	`
	result, err := s.db.ExecContext(ctx, query, slug, summary, time.Now().UTC(), id)
	if err != nil {
		mapped := MapError(err)
		if errors.Is(mapped, store.ErrSlugTaken) {
			log.Warn("slug taken by concurrent writer",
				slog.String("article_id", id.String()),
				slog.String("slug", slug))
			return mapped
		}
		log.Error("failed to write slug and summary",
			slog.String("error", err.Error()),
			slog.String("article_id", id.String()))
		return mapped
	}
	return CheckRowsAffected(result, store.ErrArticleNotFound)
}

func (s *PostgresArticleStore) insertCategoryLinks(ctx context.Context, articleID uuid.UUID, categoryIDs []uuid.UUID) error {
	if len(categoryIDs) == 0 {
		return nil
	}

	insert := psql.Insert("article_categories").Columns("article_id", "category_id")
	for _, id := range categoryIDs {
		insert = insert.Values(articleID, id)
	}
	query, args, err := insert.Suffix("ON CONFLICT DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("failed to build category link insert: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		if IsForeignKeyViolation(err) && constraintName(err) == articleCategoriesCategoryFK {
			return fmt.Errorf("%w: unknown category", store.ErrInvalidEntity)
		}
		return MapError(err)
	}
	return nil
}

func (s *PostgresArticleStore) categoryLinks(ctx context.Context, articleIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	query, args, err := psql.Select("article_id", "category_id").
		From("article_categories").
		Where(sq.Eq{"article_id": articleIDs}).
		OrderBy("article_id", "category_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build category link query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	links := make(map[uuid.UUID][]uuid.UUID, len(articleIDs))
	for rows.Next() {
		var articleID, categoryID uuid.UUID
		if err := rows.Scan(&articleID, &categoryID); err != nil {
			return nil, fmt.Errorf("failed to scan category link: %w", err)
		}
		links[articleID] = append(links[articleID], categoryID)
	}
	return links, rows.Err()
}

func articleFilterClause(f store.ArticleFilter) (sq.And, error) {
	where := sq.And{}
	if f.AuthorID != nil {
		where = append(where, sq.Eq{"a.author_id": *f.AuthorID})
	}
	if f.Status != nil {
		where = append(where, sq.Eq{"a.status": string(*f.Status)})
	}
	if f.CreatedFrom != nil {
		where = append(where, sq.GtOrEq{"a.created_at": *f.CreatedFrom})
	}
	if f.CreatedTo != nil {
		where = append(where, sq.LtOrEq{"a.created_at": *f.CreatedTo})
	}
	if len(f.CategoryIDs) > 0 {
		sub, args, err := sq.Select("1").
			From("article_categories ac").
			Where("ac.article_id = a.id").
			Where(sq.Eq{"ac.category_id": f.CategoryIDs}).
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("failed to build category filter: %w", err)
		}
		where = append(where, sq.Expr("EXISTS ("+sub+")", args...))
	}
	return where, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanArticle(row rowScanner) (*domain.Article, error) {
	var (
		a             domain.Article
		status        string
		publishedDate sql.NullTime
		slug          sql.NullString
		summary       sql.NullString
	)
	if err := row.Scan(
		&a.ID,
		&a.AuthorID,
		&a.Title,
		&a.Content,
		&status,
		&publishedDate,
		&slug,
		&summary,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, err
	}

	a.Status = domain.ArticleStatus(status)
	if publishedDate.Valid {
		t := publishedDate.Time
		a.PublishedDate = &t
	}
	if slug.Valid {
		a.Slug = &slug.String
	}
	if summary.Valid {
		a.Summary = &summary.String
	}
	return &a, nil
}
