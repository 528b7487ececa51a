package generation

import "errors"

// Common errors returned by Generator implementations
var (
	// ErrInvalidResponse is returned when the response cannot be parsed or lacks the expected text
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the provider refuses the prompt on safety grounds
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for transport errors, timeouts and non-2xx statuses
	ErrTransientFailure = errors.New("transient error calling language model")

	// ErrInvalidConfig is returned when the generator configuration is invalid
	ErrInvalidConfig = errors.New("invalid generator configuration")

	// ErrEmptyPrompt is returned when GenerateText is called without a prompt
	ErrEmptyPrompt = errors.New("prompt cannot be empty")
)
