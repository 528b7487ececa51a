package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/store"
)

// CategoryPatch is a partial category update. Nil fields are left untouched.
type CategoryPatch struct {
	Name        *string
	Description *string
}

// CategoryService provides category operations. Writes are admin-only.
type CategoryService interface {
	List(ctx context.Context) ([]*domain.Category, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.Category, error)
	Create(ctx context.Context, caller domain.Principal, name string, description *string) (*domain.Category, error)
	Update(ctx context.Context, caller domain.Principal, id uuid.UUID, patch CategoryPatch) (*domain.Category, error)
	// Delete fails with ErrCategoryInUse while articles reference the category.
	Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error
}

type categoryServiceImpl struct {
	categories store.CategoryStore
	logger     *slog.Logger
}

// NewCategoryService creates a CategoryService.
func NewCategoryService(categories store.CategoryStore, logger *slog.Logger) (CategoryService, error) {
	if categories == nil {
		return nil, fmt.Errorf("categories cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &categoryServiceImpl{
		categories: categories,
		logger:     logger.With("component", "category_service"),
	}, nil
}

func (s *categoryServiceImpl) List(ctx context.Context) ([]*domain.Category, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, NewArticleServiceError("list_categories", "failed to list categories", err)
	}
	return categories, nil
}

func (s *categoryServiceImpl) Get(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, NewArticleServiceError("get_category", "failed to retrieve category", err)
	}
	return category, nil
}

func (s *categoryServiceImpl) Create(
	ctx context.Context,
	caller domain.Principal,
	name string,
	description *string,
) (*domain.Category, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	category, err := domain.NewCategory(name, normalizeDescription(description))
	if err != nil {
		return nil, NewArticleServiceError("create_category", "invalid category", err)
	}
	if err := s.categories.Create(ctx, category); err != nil {
		return nil, NewArticleServiceError("create_category", "failed to save category", err)
	}

	s.logger.Info("category created", "category_id", category.ID, "slug", category.Slug)
	return category, nil
}

func (s *categoryServiceImpl) Update(
	ctx context.Context,
	caller domain.Principal,
	id uuid.UUID,
	patch CategoryPatch,
) (*domain.Category, error) {
	if !caller.IsAdmin() {
		return nil, ErrForbidden
	}

	category, err := s.categories.GetByID(ctx, id)
	if err != nil {
		return nil, NewArticleServiceError("update_category", "failed to retrieve category", err)
	}
	if patch.Name != nil {
		if err := category.Rename(*patch.Name); err != nil {
			return nil, NewArticleServiceError("update_category", "invalid category", err)
		}
	}
	if patch.Description != nil {
		category.Description = normalizeDescription(patch.Description)
	}

	if err := s.categories.Update(ctx, category); err != nil {
		return nil, NewArticleServiceError("update_category", "failed to save category", err)
	}
	s.logger.Info("category updated", "category_id", id)
	return category, nil
}

func (s *categoryServiceImpl) Delete(ctx context.Context, caller domain.Principal, id uuid.UUID) error {
	if !caller.IsAdmin() {
		return ErrForbidden
	}
	if err := s.categories.Delete(ctx, id); err != nil {
		return NewArticleServiceError("delete_category", "failed to delete category", err)
	}
	s.logger.Info("category deleted", "category_id", id)
	return nil
}

// normalizeDescription maps a blank description to nil.
func normalizeDescription(d *string) *string {
	if d == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*d)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
