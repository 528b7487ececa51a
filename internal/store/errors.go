package store

import (
	"errors"
	"fmt"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when a write would violate a uniqueness constraint.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation or
	// references rows that do not exist.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrConflict is returned when a write is refused because of related rows.
	ErrConflict = errors.New("conflicting state")

	// ErrArticleNotFound indicates that the requested article does not exist.
	ErrArticleNotFound = fmt.Errorf("%w: article", ErrNotFound)

	// ErrCategoryNotFound indicates that the requested category does not exist.
	ErrCategoryNotFound = fmt.Errorf("%w: category", ErrNotFound)

	// ErrSlugTaken is returned when another article already holds the slug.
	// Enrichment re-resolves the slug and retries the write on this error.
	ErrSlugTaken = fmt.Errorf("%w: article slug", ErrDuplicate)

	// ErrCategoryNameExists is returned when a category with the same name exists.
	ErrCategoryNameExists = fmt.Errorf("%w: category name", ErrDuplicate)

	// ErrCategoryInUse is returned when deleting a category that still has articles.
	ErrCategoryInUse = fmt.Errorf("%w: category has articles", ErrConflict)
)

// IsNotFoundError reports whether err is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicateError reports whether err is any kind of uniqueness violation.
func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
