// Package enrichment derives a unique slug and a short summary for an
// article after its title or content changes.
//
// ContentClient asks a generation.Generator for candidates and never fails:
// any generation problem yields the deterministic fallback text. SlugResolver
// appends numeric suffixes until the slug is unused. Worker runs one attempt
// at a time under a per-article lock, persists the pair, and after the last
// failed attempt writes the fallback pair so that every article ends up with
// both fields set.
package enrichment
