package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/api/shared"
	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/service"
	"github.com/phrazzld/quill-api/internal/store"
)

// MockArticleService is a function-field implementation of service.ArticleService.
type MockArticleService struct {
	CreateFn func(ctx context.Context, caller domain.Principal, in service.CreateArticleInput) (*domain.Article, error)
	GetFn    func(ctx context.Context, caller domain.Principal, id uuid.UUID) (*domain.Article, error)
	ListFn   func(ctx context.Context, caller domain.Principal, filter store.ArticleFilter) ([]*domain.Article, int, error)
	UpdateFn func(ctx context.Context, caller domain.Principal, id uuid.UUID, patch domain.ArticlePatch) (*domain.Article, error)
	DeleteFn func(ctx context.Context, caller domain.Principal, id uuid.UUID) error
}

func (m *MockArticleService) Create(ctx context.Context, caller domain.Principal, in service.CreateArticleInput) (*domain.Article, error) {
	return m.CreateFn(ctx, caller, in)
}

func (m *MockArticleService) Get(ctx context.Context, caller domain.Principal, id uuid.UUID) (*domain.Article, error) {
	return m.GetFn(ctx, caller, id)
}

func (m *MockArticleService) List(ctx context.Context, caller domain.Principal, filter store.ArticleFilter) ([]*domain.Article, int, error) {
	return m.ListFn(ctx, caller, filter)
}

func (m *MockArticleService) Update(ctx context.Context, caller domain.Principal, id uuid.UUID, patch domain.ArticlePatch) (*domain.Article, error) {
	return m.UpdateFn(ctx, caller, id, patch)
}

func (m *MockArticleService) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	return m.DeleteFn(ctx, caller, id)
}

// MockCategoryService is a function-field implementation of service.CategoryService.
type MockCategoryService struct {
	ListFn   func(ctx context.Context) ([]*domain.Category, error)
	GetFn    func(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	CreateFn func(ctx context.Context, caller domain.Principal, name string, description *string) (*domain.Category, error)
	UpdateFn func(ctx context.Context, caller domain.Principal, id uuid.UUID, patch service.CategoryPatch) (*domain.Category, error)
	DeleteFn func(ctx context.Context, caller domain.Principal, id uuid.UUID) error
}

func (m *MockCategoryService) List(ctx context.Context) ([]*domain.Category, error) {
	return m.ListFn(ctx)
}

func (m *MockCategoryService) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	return m.GetFn(ctx, id)
}

func (m *MockCategoryService) Create(ctx context.Context, caller domain.Principal, name string, description *string) (*domain.Category, error) {
	return m.CreateFn(ctx, caller, name, description)
}

func (m *MockCategoryService) Update(ctx context.Context, caller domain.Principal, id uuid.UUID, patch service.CategoryPatch) (*domain.Category, error) {
	return m.UpdateFn(ctx, caller, id, patch)
}

func (m *MockCategoryService) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	return m.DeleteFn(ctx, caller, id)
}

// asCaller injects p the way the auth middleware would.
func asCaller(p domain.Principal) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(shared.WithPrincipal(r.Context(), p)))
		})
	}
}

func newTestRouter(caller *domain.Principal, articles *ArticleHandler, categories *CategoryHandler) http.Handler {
	r := chi.NewRouter()
	if caller != nil {
		r.Use(asCaller(*caller))
	}
	if articles != nil {
		r.Post("/api/articles", articles.CreateArticle)
		r.Get("/api/articles", articles.ListArticles)
		r.Get("/api/articles/{id}", articles.GetArticle)
		r.Put("/api/articles/{id}", articles.UpdateArticle)
		r.Patch("/api/articles/{id}", articles.UpdateArticle)
		r.Delete("/api/articles/{id}", articles.DeleteArticle)
	}
	if categories != nil {
		r.Get("/api/categories", categories.ListCategories)
		r.Get("/api/categories/{id}", categories.GetCategory)
		r.Post("/api/categories", categories.CreateCategory)
		r.Patch("/api/categories/{id}", categories.UpdateCategory)
		r.Delete("/api/categories/{id}", categories.DeleteCategory)
	}
	return r
}
