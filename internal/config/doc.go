// Package config loads server, database, auth, LLM, enrichment, task runner,
// Redis and CORS settings from defaults, an optional config.yaml and QUILL_*
// environment variables, and validates the result.
package config
