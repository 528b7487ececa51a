package enrichment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/domain"
)

// SlugChecker answers whether a slug is held by an article other than excludeID.
type SlugChecker interface {
	ExistsWithSlug(ctx context.Context, slug string, excludeID uuid.UUID) (bool, error)
}

// SlugResolver makes a slug candidate unique by appending -1, -2, ...
type SlugResolver struct {
	checker SlugChecker
}

// NewSlugResolver creates a resolver over checker.
func NewSlugResolver(checker SlugChecker) *SlugResolver {
	return &SlugResolver{checker: checker}
}

// Resolve returns candidate, or the first candidate-N not held by another
// article. The lookup is not atomic with the later write; callers must handle
// a uniqueness violation on persist.
func (r *SlugResolver) Resolve(ctx context.Context, candidate string, excludeID uuid.UUID) (string, error) {
	slug := candidate
	for n := 1; ; n++ {
		taken, err := r.checker.ExistsWithSlug(ctx, slug, excludeID)
		if err != nil {
			return "", fmt.Errorf("failed to check slug %q: %w", slug, err)
		}
		if !taken {
			return slug, nil
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		slug = domain.SlugWithSuffix(candidate, n)
	}
}
