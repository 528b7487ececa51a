package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/store"
)

var articleRowColumns = []string{
	"id", "author_id", "title", "content", "status", "published_date",
	"slug", "summary", "created_at", "updated_at",
}

func newArticle(t *testing.T) *domain.Article {
	t.Helper()
	a, err := domain.NewArticle(uuid.New(), "Hello Postgres", "Body text", domain.ArticleStatusDraft, nil)
	require.NoError(t, err)
	return a
}

func TestPostgresArticleStore_Create(t *testing.T) {
	t.Parallel()

	t.Run("inserts article and category links", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		article := newArticle(t)
		cat1, cat2 := uuid.New(), uuid.New()
		article.CategoryIDs = []uuid.UUID{cat1, cat2}

		mock.ExpectExec("INSERT INTO articles").
			WithArgs(article.ID, article.AuthorID, article.Title, article.Content, "draft",
				sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO article_categories \(article_id,category_id\) VALUES \(\$1,\$2\),\(\$3,\$4\) ON CONFLICT DO NOTHING`).
			WithArgs(article.ID, cat1, article.ID, cat2).
			WillReturnResult(sqlmock.NewResult(0, 2))

		require.NoError(t, s.Create(context.Background(), article))
	})

	t.Run("unknown category", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		article := newArticle(t)
		article.CategoryIDs = []uuid.UUID{uuid.New()}

		mock.ExpectExec("INSERT INTO articles").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec("INSERT INTO article_categories").
			WillReturnError(pgError(foreignKeyViolationCode, articleCategoriesCategoryFK))

		assert.ErrorIs(t, s.Create(context.Background(), article), store.ErrInvalidEntity)
	})

	t.Run("invalid article never reaches the database", func(t *testing.T) {
		t.Parallel()
		db, _ := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		article := newArticle(t)
		article.Title = "  "
		assert.ErrorIs(t, s.Create(context.Background(), article), domain.ErrEmptyArticleTitle)
	})
}

func TestPostgresArticleStore_GetByID(t *testing.T) {
	t.Parallel()

	t.Run("found with categories", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		id, author, cat := uuid.New(), uuid.New(), uuid.New()
		now := time.Now().UTC()
		mock.ExpectQuery(`SELECT a.id, .* FROM articles a WHERE a.id = \$1`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows(articleRowColumns).
				AddRow(id.String(), author.String(), "Title", "Body", "published", now, "title", "A summary.", now, now))
		mock.ExpectQuery(`SELECT article_id, category_id FROM article_categories WHERE article_id IN \(\$1\)`).
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"article_id", "category_id"}).AddRow(id.String(), cat.String()))

		got, err := s.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, id, got.ID)
		assert.Equal(t, author, got.AuthorID)
		assert.Equal(t, domain.ArticleStatusPublished, got.Status)
		require.NotNil(t, got.Slug)
		assert.Equal(t, "title", *got.Slug)
		require.NotNil(t, got.PublishedDate)
		assert.True(t, got.Enriched())
		assert.Equal(t, []uuid.UUID{cat}, got.CategoryIDs)
	})

	t.Run("unenriched article has nil derived fields", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		id := uuid.New()
		now := time.Now().UTC()
		mock.ExpectQuery("FROM articles a").
			WillReturnRows(sqlmock.NewRows(articleRowColumns).
				AddRow(id.String(), uuid.NewString(), "Title", "Body", "draft", nil, nil, nil, now, now))
		mock.ExpectQuery("FROM article_categories").
			WillReturnRows(sqlmock.NewRows([]string{"article_id", "category_id"}))

		got, err := s.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, got.Slug)
		assert.Nil(t, got.Summary)
		assert.Nil(t, got.PublishedDate)
		assert.Empty(t, got.CategoryIDs)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		mock.ExpectQuery("FROM articles a").WillReturnRows(sqlmock.NewRows(articleRowColumns))

		_, err := s.GetByID(context.Background(), uuid.New())
		assert.ErrorIs(t, err, store.ErrArticleNotFound)
	})
}

func TestPostgresArticleStore_Update(t *testing.T) {
	t.Parallel()

	t.Run("replaces category links", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		article := newArticle(t)
		cat := uuid.New()
		article.CategoryIDs = []uuid.UUID{cat}

		mock.ExpectExec("UPDATE articles").WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`DELETE FROM article_categories WHERE article_id = \$1`).
			WithArgs(article.ID).
			WillReturnResult(sqlmock.NewResult(0, 3))
		mock.ExpectExec("INSERT INTO article_categories").
			WithArgs(article.ID, cat).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Update(context.Background(), article))
	})

	t.Run("missing row", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		mock.ExpectExec("UPDATE articles").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, s.Update(context.Background(), newArticle(t)), store.ErrArticleNotFound)
	})
}

func TestPostgresArticleStore_Delete(t *testing.T) {
	t.Parallel()

	db, mock := newMockDB(t)
	s := NewPostgresArticleStore(db, discardLogger())
	id := uuid.New()

	mock.ExpectExec(`DELETE FROM articles WHERE id = \$1`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM articles WHERE id = \$1`).WithArgs(id).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, s.Delete(context.Background(), id))
	assert.ErrorIs(t, s.Delete(context.Background(), id), store.ErrArticleNotFound)
}

func TestPostgresArticleStore_List(t *testing.T) {
	t.Parallel()

	t.Run("filters and paginates", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		author, cat := uuid.New(), uuid.New()
		status := domain.ArticleStatusPublished
		filter := store.ArticleFilter{
			AuthorID:    &author,
			Status:      &status,
			CategoryIDs: []uuid.UUID{cat},
			Limit:       10,
			Offset:      10,
		}

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM articles a WHERE \(a.author_id = \$1 AND a.status = \$2 AND EXISTS \(SELECT 1 FROM article_categories ac WHERE ac.article_id = a.id AND ac.category_id IN \(\$3\)\)\)`).
			WithArgs(author, "published", cat).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

		id := uuid.New()
		now := time.Now().UTC()
		mock.ExpectQuery(`FROM articles a WHERE .* ORDER BY a.created_at DESC, a.id DESC LIMIT 10 OFFSET 10`).
			WillReturnRows(sqlmock.NewRows(articleRowColumns).
				AddRow(id.String(), author.String(), "Title", "Body", "published", nil, nil, nil, now, now))
		mock.ExpectQuery("FROM article_categories WHERE article_id IN").
			WithArgs(id).
			WillReturnRows(sqlmock.NewRows([]string{"article_id", "category_id"}).AddRow(id.String(), cat.String()))

		articles, total, err := s.List(context.Background(), filter)
		require.NoError(t, err)
		assert.Equal(t, 11, total)
		require.Len(t, articles, 1)
		assert.Equal(t, []uuid.UUID{cat}, articles[0].CategoryIDs)
	})

	t.Run("empty page skips link lookup", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		mock.ExpectQuery(`SELECT COUNT\(\*\) FROM articles a`).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectQuery("FROM articles a").WillReturnRows(sqlmock.NewRows(articleRowColumns))

		articles, total, err := s.List(context.Background(), store.ArticleFilter{Limit: 10})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.NotNil(t, articles)
		assert.Empty(t, articles)
	})

	t.Run("count failure", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		mock.ExpectQuery("SELECT COUNT").WillReturnError(errors.New("boom"))
		_, _, err := s.List(context.Background(), store.ArticleFilter{})
		assert.Error(t, err)
	})
}

func TestPostgresArticleStore_Slugs(t *testing.T) {
	t.Parallel()

	t.Run("exists excludes the article itself", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())
		self := uuid.New()

		mock.ExpectQuery(`SELECT EXISTS \(SELECT 1 FROM articles WHERE slug = \$1 AND id <> \$2\)`).
			WithArgs("hello-world", self).
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		exists, err := s.ExistsWithSlug(context.Background(), "hello-world", self)
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("write", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())
		id := uuid.New()

		mock.ExpectExec("UPDATE articles SET slug").
			WithArgs("hello-world", "Greets.", sqlmock.AnyArg(), id).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.UpdateSlugAndSummary(context.Background(), id, "hello-world", "Greets."))
	})

	t.Run("write loses the slug race", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		mock.ExpectExec("UPDATE articles SET slug").
			WillReturnError(pgError(uniqueViolationCode, articlesSlugConstraint))

		err := s.UpdateSlugAndSummary(context.Background(), uuid.New(), "hello-world", "Greets.")
		assert.ErrorIs(t, err, store.ErrSlugTaken)
	})

	t.Run("write to deleted article", func(t *testing.T) {
		t.Parallel()
		db, mock := newMockDB(t)
		s := NewPostgresArticleStore(db, discardLogger())

		mock.ExpectExec("UPDATE articles SET slug").WillReturnResult(sqlmock.NewResult(0, 0))

		err := s.UpdateSlugAndSummary(context.Background(), uuid.New(), "hello-world", "Greets.")
		assert.ErrorIs(t, err, store.ErrArticleNotFound)
	})
}
