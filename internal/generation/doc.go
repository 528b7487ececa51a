// Package generation declares the boundary between the application and
// external generative-text services. Provider adapters live under
// internal/platform and implement the Generator interface; callers in
// internal/enrichment depend only on this package.
package generation
