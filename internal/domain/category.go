package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Validation errors for Category
var (
	ErrEmptyCategoryName   = errors.New("category name cannot be empty")
	ErrCategoryNameTooLong = errors.New("category name exceeds 255 characters")
)

// Category groups articles. Its slug is derived from the name on every write.
type Category struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	Description  *string   `json:"description"`
	ArticleCount int       `json:"articles_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewCategory creates a validated category.
func NewCategory(name string, description *string) (*Category, error) {
	now := time.Now().UTC()
	c := &Category{
		ID:          uuid.New(),
		Description: description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.Rename(name); err != nil {
		return nil, err
	}
	return c, nil
}

// Rename validates name and rederives the slug.
func (c *Category) Rename(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyCategoryName
	}
	if utf8.RuneCountInString(name) > MaxTitleLength {
		return ErrCategoryNameTooLong
	}
	c.Name = name
	c.Slug = FallbackSlug(name)
	c.UpdatedAt = time.Now().UTC()
	return nil
}
