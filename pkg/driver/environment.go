package driver

import (
	"context"
	"sync"
	"time"

	"github.com/entrhq/forge-driver/pkg/logging"
)

// DefaultCacheClearTimeout bounds the best-effort cache clear started by Attach.
const DefaultCacheClearTimeout = 10 * time.Second

// Environment is the automation state of one session bound to one Surface.
// It is safe for concurrent use by surface callbacks and command handlers.
type Environment struct {
	surface Surface
	logger  *logging.Logger

	cacheClearTimeout time.Duration

	mu            sync.RWMutex
	focusedFrame  string
	keyboardState map[string]any
	mouseState    map[string]any
	implicitWait  time.Duration
	asyncScript   Timeout
	pageLoad      Timeout
	isBlocked     bool
	alertType     string
	alertText     string

	attachMu sync.Mutex
	detach   func()
}

// Option configures an Environment.
type Option func(*Environment)

// WithLogger sets the logger used for event handling and the startup cache clear.
func WithLogger(logger *logging.Logger) Option {
	return func(e *Environment) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithCacheClearTimeout bounds the startup cache clear. Non-positive values keep the default.
func WithCacheClearTimeout(d time.Duration) Option {
	return func(e *Environment) {
		if d > 0 {
			e.cacheClearTimeout = d
		}
	}
}

// NewEnvironment creates the environment for surface. It does not touch the surface;
// call Attach to start observing it.
func NewEnvironment(surface Surface, opts ...Option) *Environment {
	e := &Environment{
		surface:           surface,
		logger:            logging.Nop(),
		cacheClearTimeout: DefaultCacheClearTimeout,
		mouseState:        defaultMouseState(),
		asyncScript:       NoTimeout,
		pageLoad:          NoTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Attach clears the surface cache in the background and subscribes to its navigation and
// notification events. The returned func removes both subscriptions and is safe to call more
// than once. Attaching an already attached environment returns the existing detach func.
func (e *Environment) Attach(ctx context.Context) (detach func()) {
	e.attachMu.Lock()
	defer e.attachMu.Unlock()

	if e.detach != nil {
		e.logger.Warnf("environment already attached, ignoring second attach")
		return e.detach
	}

	go e.clearCache(context.WithoutCancel(ctx))

	unsubscribeNotify := e.surface.OnScriptNotify(e.onScriptNotify)
	unsubscribeNavigating := e.surface.OnNavigating(e.HandleNavigating)

	var once sync.Once
	e.detach = func() {
		once.Do(func() {
			unsubscribeNotify()
			unsubscribeNavigating()

			e.attachMu.Lock()
			e.detach = nil
			e.attachMu.Unlock()
			e.logger.Debugf("environment detached")
		})
	}
	e.logger.Debugf("environment attached")
	return e.detach
}

// Close detaches the environment from its surface if attached.
func (e *Environment) Close() error {
	e.attachMu.Lock()
	detach := e.detach
	e.attachMu.Unlock()

	if detach != nil {
		detach()
	}
	return nil
}

// clearCache failures are logged and never retried.
func (e *Environment) clearCache(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, e.cacheClearTimeout)
	defer cancel()

	if err := e.surface.ClearCache(ctx); err != nil {
		e.logger.Warnf("clearing browser cache failed: %v", err)
		return
	}
	e.logger.Debugf("browser cache cleared")
}

func (e *Environment) onScriptNotify(payload string) {
	if err := e.HandleScriptNotify(payload); err != nil {
		e.logger.Errorf("dropping script notification: %v", err)
	}
}

// HandleScriptNotify applies a notification from the dialog shim. When idle the payload is
// split into type and text and the environment becomes blocked. When already blocked the
// alert state is cleared whatever the payload says.
//
// A payload without a colon received while idle returns ErrMalformedNotification and leaves the
// state untouched.
func (e *Environment) HandleScriptNotify(payload string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.isBlocked {
		e.clearAlertLocked()
		return nil
	}

	alertType, text, err := ParseNotification(payload)
	if err != nil {
		return err
	}
	e.alertType = alertType
	e.alertText = text
	e.isBlocked = true
	return nil
}

// HandleNavigating resets the mouse state. Pointer coordinates and the hovered element are
// meaningless once the document is replaced; every other field survives navigation.
func (e *Environment) HandleNavigating() {
	e.mu.Lock()
	e.mouseState = defaultMouseState()
	e.mu.Unlock()
}

// Surface returns the browser surface this environment is bound to.
func (e *Environment) Surface() Surface {
	return e.surface
}

// CreateFrameObject returns the frame context expected by script execution:
// nil for the top-level document, otherwise a single WINDOW entry naming the focused frame.
func (e *Environment) CreateFrameObject() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.focusedFrame == "" {
		return nil
	}
	return map[string]any{WindowObjectKey: e.focusedFrame}
}

// ClearAlertStatus marks any pending alert as consumed.
func (e *Environment) ClearAlertStatus() {
	e.mu.Lock()
	e.clearAlertLocked()
	e.mu.Unlock()
}

func (e *Environment) clearAlertLocked() {
	e.isBlocked = false
	e.alertType = ""
	e.alertText = ""
}

// IsBlocked reports whether an alert is pending acknowledgment.
func (e *Environment) IsBlocked() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.isBlocked
}

// AlertType returns the type of the pending alert, empty when none is pending.
func (e *Environment) AlertType() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.alertType
}

// AlertText returns the message of the pending alert, empty when none is pending.
func (e *Environment) AlertText() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.alertText
}

// Alert returns the blocked flag, type and text read under one lock.
func (e *Environment) Alert() Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Alert{Blocked: e.isBlocked, Type: e.alertType, Text: e.alertText}
}

// FocusedFrame returns the frame commands target, empty for the top-level document.
func (e *Environment) FocusedFrame() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.focusedFrame
}

// SetFocusedFrame sets the frame commands target. Empty selects the top-level document.
func (e *Environment) SetFocusedFrame(frame string) {
	e.mu.Lock()
	e.focusedFrame = frame
	e.mu.Unlock()
}

// KeyboardState returns a copy of the keyboard state, nil until a command sets it.
func (e *Environment) KeyboardState() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneState(e.keyboardState)
}

// SetKeyboardState replaces the keyboard state with a copy of state.
func (e *Environment) SetKeyboardState(state map[string]any) {
	state = cloneState(state)
	e.mu.Lock()
	e.keyboardState = state
	e.mu.Unlock()
}

// MouseState returns a copy of the mouse state.
func (e *Environment) MouseState() map[string]any {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cloneState(e.mouseState)
}

// SetMouseState replaces the mouse state with a copy of state.
func (e *Environment) SetMouseState(state map[string]any) {
	state = cloneState(state)
	e.mu.Lock()
	e.mouseState = state
	e.mu.Unlock()
}

// ImplicitWait returns the element search polling budget.
func (e *Environment) ImplicitWait() time.Duration {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.implicitWait
}

// SetImplicitWait sets the element search polling budget.
func (e *Environment) SetImplicitWait(d time.Duration) {
	e.mu.Lock()
	e.implicitWait = d
	e.mu.Unlock()
}

// AsyncScriptTimeout returns the asynchronous script timeout, NoTimeout by default.
func (e *Environment) AsyncScriptTimeout() Timeout {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.asyncScript
}

// SetAsyncScriptTimeout sets the asynchronous script timeout.
func (e *Environment) SetAsyncScriptTimeout(t Timeout) {
	e.mu.Lock()
	e.asyncScript = t
	e.mu.Unlock()
}

// PageLoadTimeout returns the page load timeout, NoTimeout by default.
func (e *Environment) PageLoadTimeout() Timeout {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pageLoad
}

// SetPageLoadTimeout sets the page load timeout.
func (e *Environment) SetPageLoadTimeout(t Timeout) {
	e.mu.Lock()
	e.pageLoad = t
	e.mu.Unlock()
}

func defaultMouseState() map[string]any {
	return map[string]any{
		MouseClientXYKey: map[string]any{"x": 0, "y": 0},
		MouseElementKey:  nil,
	}
}

// cloneState copies nested maps and slices so callers never share them with the environment.
func cloneState(state map[string]any) map[string]any {
	if state == nil {
		return nil
	}
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		return cloneState(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
