package protocol

import (
	"log/slog"
	"sync"
)

type Handler func(Event)

// Router maps an action to exactly one handler. Registering an action
// again replaces the previous handler; there is no fan-out.
type Router struct {
	mu       sync.RWMutex
	handlers map[Action]Handler
	logger   *slog.Logger
}

func NewRouter(logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default().With("component", "router")
	}
	return &Router{handlers: make(map[Action]Handler), logger: logger}
}

func (r *Router) On(action Action, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
}

func (r *Router) Off(action Action) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, action)
}

// Reset drops every registration.
func (r *Router) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.handlers)
}

// Dispatch invokes the handler registered for the event's action, falling
// back to the ActionAny handler. It reports whether a handler ran.
func (r *Router) Dispatch(ev Event) bool {
	r.mu.RLock()
	h, ok := r.handlers[ev.Action()]
	if !ok {
		h, ok = r.handlers[ActionAny]
	}
	r.mu.RUnlock()

	if !ok {
		r.logger.Debug("No handler for action", "action", ev.Action())
		return false
	}
	h(ev)
	return true
}
