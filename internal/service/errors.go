package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/store"
)

// Sentinel errors returned by the services. The API layer maps them to
// status codes; anything else is an internal error.
var (
	// ErrNotOwned indicates an author touching another author's article (403).
	ErrNotOwned = errors.New("resource is owned by another user")

	// ErrForbidden indicates the caller's role does not allow the operation (403).
	ErrForbidden = errors.New("operation not permitted for role")

	// ErrArticleNotFound indicates that the article does not exist (404).
	ErrArticleNotFound = errors.New("article not found")

	// ErrCategoryNotFound indicates that the category does not exist (404).
	ErrCategoryNotFound = errors.New("category not found")

	// ErrCategoryNameExists indicates a duplicate category name (409).
	ErrCategoryNameExists = errors.New("category name already exists")

	// ErrCategoryInUse indicates a category that still has articles (409).
	ErrCategoryInUse = errors.New("category has associated articles")
)

// UnknownCategoriesError lists category ids that do not exist (422).
type UnknownCategoriesError struct {
	IDs []uuid.UUID
}

func (e *UnknownCategoriesError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	return "unknown category ids: " + strings.Join(ids, ", ")
}

// ArticleServiceError wraps errors from the article service with context.
type ArticleServiceError struct {
	// Operation is the operation that failed (e.g., "create_article")
	Operation string
	Message   string
	Err       error
}

func (e *ArticleServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("article service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("article service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ArticleServiceError) Unwrap() error {
	return e.Err
}

// NewArticleServiceError wraps err, passing known sentinels through unwrapped.
func NewArticleServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}
	if sentinel := passThrough(err); sentinel != nil {
		return sentinel
	}
	return &ArticleServiceError{Operation: operation, Message: message, Err: err}
}

// passThrough maps store errors to their service sentinels and returns
// service-level errors unchanged. It returns nil for anything else.
func passThrough(err error) error {
	var unknown *UnknownCategoriesError
	switch {
	case errors.As(err, &unknown):
		return unknown
	case errors.Is(err, store.ErrArticleNotFound), errors.Is(err, ErrArticleNotFound):
		return ErrArticleNotFound
	case errors.Is(err, store.ErrCategoryNotFound), errors.Is(err, ErrCategoryNotFound):
		return ErrCategoryNotFound
	case errors.Is(err, store.ErrCategoryNameExists), errors.Is(err, ErrCategoryNameExists):
		return ErrCategoryNameExists
	case errors.Is(err, store.ErrCategoryInUse), errors.Is(err, ErrCategoryInUse):
		return ErrCategoryInUse
	case errors.Is(err, ErrNotOwned):
		return ErrNotOwned
	case errors.Is(err, ErrForbidden):
		return ErrForbidden
	}
	return nil
}
