package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sourcegraph/conc/panics"
)

// InMemoryEventEmitter dispatches events synchronously to handlers
// registered in this process, in registration order.
type InMemoryEventEmitter struct {
	handlers []EventHandler
	mu       sync.RWMutex
	logger   *slog.Logger
}

var _ EventEmitter = (*InMemoryEventEmitter)(nil)

// NewInMemoryEventEmitter creates an emitter with no handlers.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		logger: logger.With("component", "in_memory_event_emitter"),
	}
}

// RegisterHandler adds a handler.
func (e *InMemoryEventEmitter) RegisterHandler(handler EventHandler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = append(e.handlers, handler)
	e.logger.Debug("registered new event handler", "handler_count", len(e.handlers))
}

// EmitEvent delivers event to every handler. A failing or panicking handler
// does not stop delivery to the rest; all failures are joined into the
// returned error.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskRequestEvent) error {
	if event == nil {
		return errors.New("event cannot be nil")
	}

	e.mu.RLock()
	handlers := make([]EventHandler, len(e.handlers))
	copy(handlers, e.handlers)
	e.mu.RUnlock()

	log := e.logger.With("event_id", event.ID, "event_type", event.Type)
	if len(handlers) == 0 {
		log.Warn("no handlers registered for event")
		return nil
	}
	log.Debug("emitting event", "handler_count", len(handlers))

	var errs []error
	for i, handler := range handlers {
		var (
			err     error
			catcher panics.Catcher
		)
		catcher.Try(func() { err = handler.HandleEvent(ctx, event) })
		if recovered := catcher.Recovered(); recovered != nil {
			err = fmt.Errorf("event handler panicked: %w", recovered.AsError())
		}
		if err != nil {
			log.Error("handler failed to process event", "error", err, "handler_index", i)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
