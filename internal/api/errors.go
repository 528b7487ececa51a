package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/phrazzld/quill-api/internal/api/shared"
	"github.com/phrazzld/quill-api/internal/domain"
	"github.com/phrazzld/quill-api/internal/service"
	"github.com/phrazzld/quill-api/internal/service/auth"
	"github.com/phrazzld/quill-api/internal/store"
)

// validationSentinels are domain errors whose text is safe to return to
// clients as the validation message.
var validationSentinels = []error{
	domain.ErrEmptyArticleTitle,
	domain.ErrArticleTitleTooLong,
	domain.ErrEmptyArticleContent,
	domain.ErrInvalidArticleStatus,
	domain.ErrEmptyCategoryName,
	domain.ErrCategoryNameTooLong,
}

func isValidationError(err error) bool {
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return true
	}
	var unknown *service.UnknownCategoriesError
	if errors.As(err, &unknown) {
		return true
	}
	if errors.Is(err, domain.ErrValidation) {
		return true
	}
	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	// Authentication errors
	case errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized

	// Authorization errors
	case errors.Is(err, service.ErrNotOwned),
		errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden

	// Not found errors
	case errors.Is(err, service.ErrArticleNotFound),
		errors.Is(err, service.ErrCategoryNotFound),
		store.IsNotFoundError(err):
		return http.StatusNotFound

	// Conflict errors
	case errors.Is(err, service.ErrCategoryNameExists),
		errors.Is(err, service.ErrCategoryInUse):
		return http.StatusConflict

	// Malformed input
	case errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest

	// Field validation
	case isValidationError(err):
		return http.StatusUnprocessableEntity

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var unknown *service.UnknownCategoriesError
	var fieldErr *domain.ValidationError
	var ve validator.ValidationErrors

	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return "Token expired"
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrMissingToken):
		return "Invalid token"
	case errors.Is(err, domain.ErrUnauthorized):
		return "Authentication required"

	case errors.Is(err, service.ErrNotOwned):
		return "You do not own this article"
	case errors.Is(err, service.ErrForbidden):
		return "Your role does not permit this operation"

	case errors.Is(err, service.ErrArticleNotFound):
		return "Article not found"
	case errors.Is(err, service.ErrCategoryNotFound):
		return "Category not found"

	case errors.Is(err, service.ErrCategoryNameExists):
		return "Category name already exists"
	case errors.Is(err, service.ErrCategoryInUse):
		return "Category has associated articles"

	case errors.As(err, &unknown):
		return "Category is not available or invalid"
	case errors.As(err, &fieldErr):
		return fieldErr.Error()
	case errors.As(err, &ve):
		return SanitizeValidationError(ve)
	}

	for _, sentinel := range validationSentinels {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "An unexpected error occurred"
}

// SanitizeValidationError turns validator errors into a short message naming
// the first failing field.
func SanitizeValidationError(err error) string {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return "Validation error"
	}
	fe := ve[0]
	return fmt.Sprintf("Invalid %s: %s", fe.Field(), getValidationTagMessage(fe.Tag()))
}

// getValidationTagMessage maps validation tags to user-friendly error messages
func getValidationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "oneof":
		return "invalid value"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the status and safe message for err. fallback
// replaces the generic message on internal errors.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	status := MapErrorToStatusCode(err)
	message := GetSafeErrorMessage(err)
	if status == http.StatusInternalServerError && fallback != "" {
		message = fallback
	}

	var opts []shared.ResponseOption
	var unknown *service.UnknownCategoriesError
	if errors.As(err, &unknown) {
		ids := make([]string, len(unknown.IDs))
		for i, id := range unknown.IDs {
			ids[i] = id.String()
		}
		opts = append(opts, shared.WithDetails(map[string][]string{"invalid_category_ids": ids}))
	}
	if status == http.StatusForbidden {
		opts = append(opts, shared.WithElevatedLogLevel())
	}

	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
