package service

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/events"
	"github.com/phrazzld/quill-api/internal/store"
	"github.com/phrazzld/quill-api/internal/task"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newMockDB returns a sqlmock-backed *sql.DB. Expectations are checked on cleanup.
func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, sqlMock.ExpectationsWereMet())
		_ = db.Close()
	})
	return db, sqlMock
}

// MockArticleStore is a testify mock of store.ArticleStore. WithTx returns itself.
type MockArticleStore struct {
	mock.Mock
}

var _ store.ArticleStore = (*MockArticleStore)(nil)

func (m *MockArticleStore) Create(ctx context.Context, article *domain.Article) error {
	return m.Called(ctx, article).Error(0)
}

func (m *MockArticleStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Article, error) {
	args := m.Called(ctx, id)
	if a, ok := args.Get(0).(*domain.Article); ok {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockArticleStore) Update(ctx context.Context, article *domain.Article) error {
	return m.Called(ctx, article).Error(0)
}

func (m *MockArticleStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockArticleStore) List(ctx context.Context, filter store.ArticleFilter) ([]*domain.Article, int, error) {
	args := m.Called(ctx, filter)
	articles, _ := args.Get(0).([]*domain.Article)
	return articles, args.Int(1), args.Error(2)
}

func (m *MockArticleStore) ExistsWithSlug(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	args := m.Called(ctx, slug, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockArticleStore) UpdateSlugAndSummary(ctx context.Context, id uuid.UUID, slug, summary string) error {
	return m.Called(ctx, id, slug, summary).Error(0)
}

func (m *MockArticleStore) WithTx(*sql.Tx) store.ArticleStore {
	return m
}

// MockCategoryStore is a testify mock of store.CategoryStore. WithTx returns itself.
type MockCategoryStore struct {
	mock.Mock
}

var _ store.CategoryStore = (*MockCategoryStore)(nil)

func (m *MockCategoryStore) Create(ctx context.Context, category *domain.Category) error {
	return m.Called(ctx, category).Error(0)
}

func (m *MockCategoryStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	args := m.Called(ctx, id)
	if c, ok := args.Get(0).(*domain.Category); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockCategoryStore) Update(ctx context.Context, category *domain.Category) error {
	return m.Called(ctx, category).Error(0)
}

func (m *MockCategoryStore) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockCategoryStore) List(ctx context.Context) ([]*domain.Category, error) {
	args := m.Called(ctx)
	categories, _ := args.Get(0).([]*domain.Category)
	return categories, args.Error(1)
}

func (m *MockCategoryStore) MissingIDs(ctx context.Context, ids []uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, ids)
	missing, _ := args.Get(0).([]uuid.UUID)
	return missing, args.Error(1)
}

func (m *MockCategoryStore) WithTx(*sql.Tx) store.CategoryStore {
	return m
}

// recordingEmitter captures the article ids of emitted enrichment requests.
type recordingEmitter struct {
	mu       sync.Mutex
	requests []uuid.UUID
	err      error
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.TaskRequestEvent) error {
	var payload task.EnrichmentRequestPayload
	if err := event.UnmarshalPayload(&payload); err != nil {
		return err
	}
	id, err := uuid.Parse(payload.ArticleID)
	if err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.requests = append(e.requests, id)
	return e.err
}

func (e *recordingEmitter) requested() []uuid.UUID {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]uuid.UUID(nil), e.requests...)
}

func testArticle(author uuid.UUID) *domain.Article {
	a, err := domain.NewArticle(author, "Hello World", "Some body text.", domain.ArticleStatusDraft, nil)
	if err != nil {
		panic(err)
	}
	return a
}
