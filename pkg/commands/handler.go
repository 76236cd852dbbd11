package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/entrhq/forge-driver/pkg/driver"
	"github.com/entrhq/forge-driver/pkg/logging"
)

// Handler executes one protocol command against an environment.
type Handler interface {
	// Name returns the protocol command name (e.g. "findElement")
	Name() string

	// Execute runs the command. params is the command's JSON parameter object and may be empty.
	// Errors are mapped to status codes by the dispatcher.
	Execute(ctx context.Context, env *driver.Environment, params json.RawMessage) (*Response, error)
}

// AlertHandler is implemented by handlers that may run while a dialog is pending.
type AlertHandler interface {
	AllowedWhileBlocked() bool
}

// Registry holds the handlers known to a dispatcher.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty handler registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler. Names must be unique.
func (r *Registry) Register(h Handler) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := h.Name()
	if name == "" {
		return fmt.Errorf("handler name cannot be empty")
	}
	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("handler %q already registered", name)
	}
	r.handlers[name] = h
	return nil
}

// Get returns the handler registered under name.
func (r *Registry) Get(name string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered command names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatcher routes commands to handlers for a single environment.
type Dispatcher struct {
	env      *driver.Environment
	registry *Registry
	logger   *logging.Logger
}

// NewDispatcher creates a dispatcher. A nil logger discards output.
func NewDispatcher(env *driver.Environment, registry *Registry, logger *logging.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Dispatcher{
		env:      env,
		registry: registry,
		logger:   logger,
	}
}

// Execute runs the named command and always returns a Response. While a dialog is pending only
// alert handlers run; every other command fails with StatusUnexpectedAlertOpen.
func (d *Dispatcher) Execute(ctx context.Context, name string, params json.RawMessage) *Response {
	handler, ok := d.registry.Get(name)
	if !ok {
		d.logger.Warnf("unknown command %q", name)
		return ErrorResponse(fmt.Errorf("%w: %s", ErrUnknownCommand, name))
	}

	if alert := d.env.Alert(); alert.Blocked && !allowedWhileBlocked(handler) {
		d.logger.Infof("refusing %s: %s dialog pending", name, alert.Type)
		return ErrorResponse(fmt.Errorf("%w: %s dialog with text %q", ErrUnexpectedAlertOpen, alert.Type, alert.Text))
	}

	d.logger.Debugf("executing %s", name)
	resp, err := handler.Execute(ctx, d.env, params)
	if err != nil {
		d.logger.Infof("%s failed: %v", name, err)
		return ErrorResponse(err)
	}
	if resp == nil {
		return Success(nil)
	}
	return resp
}

func allowedWhileBlocked(h Handler) bool {
	ah, ok := h.(AlertHandler)
	return ok && ah.AllowedWhileBlocked()
}

// decodeParams unmarshals params into v. Empty params leave v untouched.
func decodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	return nil
}
