package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ArticleStatus is the editorial state of an article.
type ArticleStatus string

// Possible article status values
const (
	ArticleStatusDraft     ArticleStatus = "draft"
	ArticleStatusPublished ArticleStatus = "published"
	ArticleStatusArchived  ArticleStatus = "archived"
)

// MaxTitleLength bounds article and category titles, in characters.
const MaxTitleLength = 255

// Validation errors for Article
var (
	ErrEmptyArticleID       = errors.New("article ID cannot be empty")
	ErrEmptyArticleAuthorID = errors.New("article author ID cannot be empty")
	ErrEmptyArticleTitle    = errors.New("article title cannot be empty")
	ErrArticleTitleTooLong  = errors.New("article title exceeds 255 characters")
	ErrEmptyArticleContent  = errors.New("article content cannot be empty")
	ErrInvalidArticleStatus = errors.New("invalid article status")
	ErrEmptyArticleSlug     = errors.New("article slug cannot be empty")
)

// Article is a piece of authored content. Slug and Summary are derived
// asynchronously after every title or content write and are nil until the
// first enrichment finishes.
type Article struct {
	ID            uuid.UUID     `json:"id"`
	AuthorID      uuid.UUID     `json:"author_id"`
	Title         string        `json:"title"`
	Content       string        `json:"content"`
	Status        ArticleStatus `json:"status"`
	PublishedDate *time.Time    `json:"published_date"`
	Slug          *string       `json:"slug"`
	Summary       *string       `json:"summary"`
	CategoryIDs   []uuid.UUID   `json:"category_ids"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// NewArticle creates a validated article owned by authorID.
// An empty status defaults to draft.
func NewArticle(
	authorID uuid.UUID,
	title, content string,
	status ArticleStatus,
	publishedDate *time.Time,
) (*Article, error) {
	if status == "" {
		status = ArticleStatusDraft
	}
	now := time.Now().UTC()
	a := &Article{
		ID:            uuid.New(),
		AuthorID:      authorID,
		Title:         strings.TrimSpace(title),
		Content:       content,
		Status:        status,
		PublishedDate: publishedDate,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := a.Validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// Validate checks if the Article has valid data.
func (a *Article) Validate() error {
	if a.ID == uuid.Nil {
		return ErrEmptyArticleID
	}
	if a.AuthorID == uuid.Nil {
		return ErrEmptyArticleAuthorID
	}
	if strings.TrimSpace(a.Title) == "" {
		return ErrEmptyArticleTitle
	}
	if utf8.RuneCountInString(a.Title) > MaxTitleLength {
		return ErrArticleTitleTooLong
	}
	if strings.TrimSpace(a.Content) == "" {
		return ErrEmptyArticleContent
	}
	if !IsValidArticleStatus(a.Status) {
		return ErrInvalidArticleStatus
	}
	if a.Slug != nil && *a.Slug == "" {
		return ErrEmptyArticleSlug
	}
	return nil
}

// Enriched reports whether both derived fields are present.
func (a *Article) Enriched() bool {
	return a.Slug != nil && a.Summary != nil
}

// IsValidArticleStatus checks if status is one of the known values.
func IsValidArticleStatus(status ArticleStatus) bool {
	switch status {
	case ArticleStatusDraft, ArticleStatusPublished, ArticleStatusArchived:
		return true
	default:
		return false
	}
}

// ArticlePatch is a partial update. Nil fields are left untouched.
type ArticlePatch struct {
	Title         *string
	Content       *string
	Status        *ArticleStatus
	PublishedDate *time.Time
	CategoryIDs   *[]uuid.UUID
}

// TouchesText reports whether the patch writes the title or the content,
// which is what makes the derived slug and summary stale.
func (p ArticlePatch) TouchesText() bool {
	return p.Title != nil || p.Content != nil
}

// Apply writes the patch onto a and revalidates. On error a is unchanged.
func (a *Article) Apply(p ArticlePatch) error {
	next := *a
	if p.Title != nil {
		next.Title = strings.TrimSpace(*p.Title)
	}
	if p.Content != nil {
		next.Content = *p.Content
	}
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.PublishedDate != nil {
		next.PublishedDate = p.PublishedDate
	}
	if p.CategoryIDs != nil {
		next.CategoryIDs = append([]uuid.UUID(nil), (*p.CategoryIDs)...)
	}
	if err := next.Validate(); err != nil {
		return err
	}
	next.UpdatedAt = time.Now().UTC()
	*a = next
	return nil
}
