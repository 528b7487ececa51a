// Package service holds the article and category use cases. Services apply
// role rules, run writes in transactions, and emit the enrichment request
// after a commit that changed an article's text.
package service
