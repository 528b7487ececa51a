// Package domain holds the editorial entities: articles with their derived
// slug and summary, categories, and the roles that decide who may change them.
// Slug derivation rules live here too so that the enrichment worker and the
// category service agree on the shape of a slug.
package domain
