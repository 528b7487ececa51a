// Package store declares the persistence contracts for articles and
// categories, the sentinel errors implementations must return, and the
// transaction helper shared by services.
package store
