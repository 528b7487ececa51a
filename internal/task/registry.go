package task

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrUnknownTaskType is returned when no decoder is registered for a stored task type.
var ErrUnknownTaskType = errors.New("unknown task type")

// Decoder rebuilds an executable task from its persisted id and payload.
type Decoder func(id uuid.UUID, payload []byte) (Task, error)

// Registry maps task types to decoders so that tasks recovered from the
// database can be executed again.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{decoders: make(map[string]Decoder)}
}

// Register installs the decoder for taskType, replacing any previous one.
func (r *Registry) Register(taskType string, decode Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[taskType] = decode
}

// Decode rebuilds a task of the given type.
func (r *Registry) Decode(id uuid.UUID, taskType string, payload []byte) (Task, error) {
	r.mu.RLock()
	decode, ok := r.decoders[taskType]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
	return decode(id, payload)
}
