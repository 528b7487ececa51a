package domain

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultSlug is used when a title has no sluggable characters at all.
	DefaultSlug = "article"

	// FallbackSummaryLength is the number of content characters kept in a fallback summary.
	FallbackSummaryLength = 150

	// FallbackSummarySuffix is appended to every fallback summary.
	FallbackSummarySuffix = "..."

	// MaxSlugLength is the width of the slug columns. No slug, suffixed or
	// not, may exceed it.
	MaxSlugLength = 255
)

var (
	nonSlugChars     = regexp.MustCompile(`[^a-z0-9-]`)
	nonAlphanumChars = regexp.MustCompile(`[^a-z0-9]+`)
	hyphenRuns       = regexp.MustCompile(`-+`)
)

// NormalizeSlug lowercases s, maps every character outside [a-z0-9-] to a
// hyphen, collapses hyphen runs and trims leading and trailing hyphens.
// It is applied to slugs proposed by the generative-text service.
func NormalizeSlug(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = nonSlugChars.ReplaceAllString(s, "-")
	s = hyphenRuns.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Slugify derives a URL slug from free text: accents are folded to their
// base letters, the result is lowercased and every run of non-alphanumeric
// characters becomes a single hyphen. The result may be empty.
func Slugify(text string) string {
	folded, _, err := transform.String(
		transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC),
		text,
	)
	if err != nil {
		folded = text
	}
	s := strings.ToLower(folded)
	s = nonAlphanumChars.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// FallbackSlug is the deterministic slug used whenever generation is not
// usable: Slugify(title) cut to MaxSlugLength, or DefaultSlug when that is empty.
func FallbackSlug(title string) string {
	if s := TruncateSlug(Slugify(title), MaxSlugLength); s != "" {
		return s
	}
	return DefaultSlug
}

// FallbackSummary is the deterministic summary: the first
// FallbackSummaryLength characters of content followed by "...".
func FallbackSummary(content string) string {
	return TruncateRunes(content, FallbackSummaryLength) + FallbackSummarySuffix
}

// TruncateRunes returns at most n characters of s without splitting a
// multi-byte character.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// TruncateSlug shortens an already-normalized slug to at most max
// characters. It cuts at the last hyphen inside the limit when there is one
// so words are not split.
func TruncateSlug(slug string, max int) string {
	if max <= 0 || len(slug) <= max {
		return slug
	}
	cut := slug[:max]
	if slug[max] == '-' {
		return strings.Trim(cut, "-")
	}
	if i := strings.LastIndexByte(cut, '-'); i > 0 {
		cut = cut[:i]
	}
	return strings.Trim(cut, "-")
}

// SlugWithSuffix returns base with a numeric collision suffix, e.g. "hello-world-2".
// A zero n returns base unchanged. The base is shortened when needed so the
// result fits in MaxSlugLength.
func SlugWithSuffix(base string, n int) string {
	if n <= 0 {
		return base
	}
	suffix := "-" + strconv.Itoa(n)
	if len(base)+len(suffix) > MaxSlugLength {
		base = TruncateSlug(base, MaxSlugLength-len(suffix))
	}
	return base + suffix
}
