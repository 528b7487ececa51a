// Package api handles incoming HTTP requests for articles and categories:
// request decoding and validation, translating callers into
// domain.Principal values for the services, and mapping service errors to
// status codes without leaking internal detail.
package api
