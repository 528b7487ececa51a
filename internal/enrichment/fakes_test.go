package enrichment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/store"
)

var (
	errConnReset    = errors.New("connection reset by peer")
	errValueTooLong = errors.New("value too long for type character varying(255)")
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type slugWrite struct {
	ID      uuid.UUID
	Slug    string
	Summary string
}

// memArticles is an in-memory ArticleRepository.
type memArticles struct {
	mu       sync.Mutex
	articles map[uuid.UUID]*domain.Article

	// failWrites makes the next n UpdateSlugAndSummary calls fail.
	failWrites int
	// claimOnWrite makes the first write of a listed slug lose to another article.
	claimOnWrite map[string]bool
	getErr       error

	writes  []slugWrite
	reads   int
	lookups  []string
	claimed map[string]bool
}

func newMemArticles(articles ...*domain.Article) *memArticles {
	m := &memArticles{
		articles:     make(map[uuid.UUID]*domain.Article),
		claimOnWrite: make(map[string]bool),
		claimed:      make(map[string]bool),
	}
	for _, a := range articles {
		m.articles[a.ID] = a
	}
	return m
}

func (m *memArticles) GetByID(_ context.Context, id uuid.UUID) (*domain.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.getErr != nil {
		return nil, m.getErr
	}
	a, ok := m.articles[id]
	if !ok {
		return nil, store.ErrArticleNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memArticles) ExistsWithSlug(_ context.Context, slug string, excludeID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups = append(m.lookups, slug)
	return m.takenLocked(slug, excludeID), nil
}

func (m *memArticles) UpdateSlugAndSummary(_ context.Context, id uuid.UUID, slug, summary string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites > 0 {
		m.failWrites--
		return errConnReset
	}
	if len(slug) > domain.MaxSlugLength {
		return errValueTooLong
	}
	if m.claimOnWrite[slug] {
		delete(m.claimOnWrite, slug)
		m.claimed[slug] = true
		return store.ErrSlugTaken
	}
	if m.takenLocked(slug, id) {
		return store.ErrSlugTaken
	}
	a, ok := m.articles[id]
	if !ok {
		return store.ErrArticleNotFound
	}
	a.Slug = &slug
	a.Summary = &summary
	m.writes = append(m.writes, slugWrite{ID: id, Slug: slug, Summary: summary})
	return nil
}

func (m *memArticles) takenLocked(slug string, excludeID uuid.UUID) bool {
	if m.claimed[slug] {
		return true
	}
	for id, a := range m.articles {
		if id != excludeID && a.Slug != nil && *a.Slug == slug {
			return true
		}
	}
	return false
}

func (m *memArticles) writeLog() []slugWrite {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]slugWrite(nil), m.writes...)
}

// stubContent is a ContentGenerator with canned answers.
type stubContent struct {
	mu      sync.Mutex
	slug    string
	summary string
	panics  bool
	calls   int
}

func (s *stubContent) GenerateSlug(_ context.Context, title, _ string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.panics {
		panic("generator exploded")
	}
	if s.slug == "" {
		return domain.FallbackSlug(title)
	}
	return s.slug
}

func (s *stubContent) GenerateSummary(_ context.Context, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == "" {
		return domain.FallbackSummary(content)
	}
	return s.summary
}

func (s *stubContent) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newArticle(title, content string, slug *string) *domain.Article {
	now := time.Now().UTC()
	return &domain.Article{
		ID:        uuid.New(),
		AuthorID:  uuid.New(),
		Title:     title,
		Content:   content,
		Status:    domain.ArticleStatusDraft,
		Slug:      slug,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func strPtr(s string) *string { return &s }

// size reports how many article ids the locker is tracking.
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
