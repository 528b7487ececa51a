package enrichment

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/generation"
	"github.com/phrazzld/quill-api/internal/redact"
)

const (
	// DefaultSlugMaxLength bounds generated slugs.
	DefaultSlugMaxLength = 60

	// DefaultCallTimeout bounds one shared generator request.
	DefaultCallTimeout = 30 * time.Second
)

// ContentGenerator proposes slug and summary text. Implementations are total.
type ContentGenerator interface {
	GenerateSlug(ctx context.Context, title, content string) string
	GenerateSummary(ctx context.Context, content string) string
}

// ContentClientConfig tunes outbound traffic to the generator.
type ContentClientConfig struct {
	// RequestsPerSecond and Burst configure the shared rate limiter.
	// A non-positive RequestsPerSecond disables limiting.
	RequestsPerSecond float64
	Burst             int

	// CacheTTL keeps successful generations so that a retried attempt for
	// unchanged text does not call the service again. Zero disables caching.
	CacheTTL time.Duration

	SlugMaxLength int

	// CallTimeout bounds a generator request shared by concurrent callers.
	// The request outlives any single caller's context.
	CallTimeout time.Duration
}

// ContentClient turns prompts into slug and summary candidates and falls
// back to deterministic text whenever the generator gives nothing usable.
type ContentClient struct {
	generator     generation.Generator
	prompts       *Prompts
	limiter       *rate.Limiter
	cache         *cache.Cache
	flight        singleflight.Group
	slugMaxLength int
	callTimeout   time.Duration
	logger        *slog.Logger
}

var _ ContentGenerator = (*ContentClient)(nil)

// NewContentClient wires a generator with prompts, limits and cache.
// A nil prompts uses DefaultPrompts.
func NewContentClient(
	generator generation.Generator,
	prompts *Prompts,
	cfg ContentClientConfig,
	logger *slog.Logger,
) *ContentClient {
	if prompts == nil {
		prompts = DefaultPrompts()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.SlugMaxLength <= 0 {
		cfg.SlugMaxLength = DefaultSlugMaxLength
	}
	if cfg.SlugMaxLength > domain.MaxSlugLength {
		cfg.SlugMaxLength = domain.MaxSlugLength
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	c := &ContentClient{
		generator:     generator,
		prompts:       prompts,
		slugMaxLength: cfg.SlugMaxLength,
		callTimeout:   cfg.CallTimeout,
		logger:        logger.With("component", "content_client"),
	}
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	if cfg.CacheTTL > 0 {
		c.cache = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	return c
}

// GenerateSlug returns a normalized slug candidate for the article, or
// domain.FallbackSlug(title) when generation is unusable.
func (c *ContentClient) GenerateSlug(ctx context.Context, title, content string) string {
	fallback := domain.FallbackSlug(title)

	prompt, err := c.prompts.Slug(title, content)
	if err != nil {
		c.logger.WarnContext(ctx, "slug prompt could not be rendered, using fallback", "error", err)
		return fallback
	}

	text, err := c.generate(ctx, "slug", prompt)
	if err != nil {
		c.logger.WarnContext(ctx, "slug generation failed, using fallback",
			"error", redact.Error(err))
		return fallback
	}

	slug := domain.TruncateSlug(domain.NormalizeSlug(text), c.slugMaxLength)
	if slug == "" || slug == domain.Slugify(title) || slug == fallback {
		c.logger.DebugContext(ctx, "generated slug not distinct from fallback",
			"raw", redact.Truncate(text, 100))
		return fallback
	}
	return slug
}

// GenerateSummary returns a cleaned summary candidate, or
// domain.FallbackSummary(content) when generation is unusable.
func (c *ContentClient) GenerateSummary(ctx context.Context, content string) string {
	fallback := domain.FallbackSummary(content)

	prompt, err := c.prompts.Summary(content)
	if err != nil {
		c.logger.WarnContext(ctx, "summary prompt could not be rendered, using fallback", "error", err)
		return fallback
	}

	text, err := c.generate(ctx, "summary", prompt)
	if err != nil {
		c.logger.WarnContext(ctx, "summary generation failed, using fallback",
			"error", redact.Error(err))
		return fallback
	}

	summary := CleanSummary(text)
	if summary == "" || summary == fallback {
		return fallback
	}
	return summary
}

// generate rate-limits, deduplicates and caches calls to the generator.
// The shared request runs detached from the caller that started it, so a
// cancelled caller does not fail the others waiting on the same key. Each
// caller stops waiting when its own ctx is done.
func (c *ContentClient) generate(ctx context.Context, kind, prompt string) (string, error) {
	key := cacheKey(kind, prompt)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			c.logger.DebugContext(ctx, "generation cache hit", "kind", kind)
			return v.(string), nil
		}
	}

	ch := c.flight.DoChan(key, func() (interface{}, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.callTimeout)
		defer cancel()

		if c.limiter != nil {
			if err := c.limiter.Wait(callCtx); err != nil {
				return "", fmt.Errorf("%w: rate limiter: %v", generation.ErrTransientFailure, err)
			}
		}

		start := time.Now()
		text, err := c.generator.GenerateText(callCtx, prompt)
		c.logger.InfoContext(callCtx, "generation request finished",
			"kind", kind,
			"duration_ms", time.Since(start).Milliseconds(),
			"ok", err == nil)
		if err != nil {
			return "", err
		}
		if c.cache != nil {
			c.cache.Set(key, text, cache.DefaultExpiration)
		}
		return text, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %v", generation.ErrTransientFailure, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// CleanSummary strips markup, collapses whitespace and trims s.
func CleanSummary(s string) string {
	if strings.ContainsAny(s, "<&") {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

func cacheKey(kind, prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return kind + ":" + hex.EncodeToString(sum[:])
}
