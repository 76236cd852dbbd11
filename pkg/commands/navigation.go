package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/entrhq/forge-driver/pkg/driver"
	"github.com/entrhq/forge-driver/pkg/surface"
)

// URLPolicy decides which URLs the get command may load.
type URLPolicy interface {
	IsAllowed(url string) bool
}

// GetHandler navigates the surface's window.
type GetHandler struct {
	runner surface.ScriptRunner
	policy URLPolicy
}

// NewGetHandler creates the get handler. A nil policy allows every URL.
func NewGetHandler(runner surface.ScriptRunner, policy URLPolicy) *GetHandler {
	return &GetHandler{runner: runner, policy: policy}
}

// Name returns the command name.
func (h *GetHandler) Name() string {
	return "get"
}

// GetInput defines the input parameters.
type GetInput struct {
	URL string `json:"url"`
}

// Execute loads the URL, bounded by the page load timeout when one is set, and resets frame
// focus to the new top-level document.
func (h *GetHandler) Execute(ctx context.Context, env *driver.Environment, params json.RawMessage) (*Response, error) {
	var input GetInput
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	if input.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidArgument)
	}
	if h.policy != nil && !h.policy.IsAllowed(input.URL) {
		return nil, fmt.Errorf("%w: %s", ErrNavigationDenied, input.URL)
	}

	if d, ok := env.PageLoadTimeout().Duration(); ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	if err := h.runner.Navigate(ctx, input.URL); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("page load: %w", ctxErr)
		}
		return nil, err
	}
	env.SetFocusedFrame("")
	return Success(nil), nil
}

// SwitchToFrameHandler changes the frame later commands target.
type SwitchToFrameHandler struct {
	runner surface.ScriptRunner
}

// NewSwitchToFrameHandler creates the switchToFrame handler.
func NewSwitchToFrameHandler(runner surface.ScriptRunner) *SwitchToFrameHandler {
	return &SwitchToFrameHandler{runner: runner}
}

// Name returns the command name.
func (h *SwitchToFrameHandler) Name() string {
	return "switchToFrame"
}

// SwitchToFrameInput defines the input parameters. ID is null for the top-level document,
// a number for a frame index, a string for a frame name or id, or an element reference.
type SwitchToFrameInput struct {
	ID any `json:"id"`
}

const frameExistsScript = `var doc = frameDocument(args[0]);
if (!doc) { return {status: 'noFrame', value: null}; }
return {status: 'ok', value: true};`

// Execute resolves the frame reference, checks that the frame is reachable and stores it.
// Frame references are resolved from the top-level document.
func (h *SwitchToFrameHandler) Execute(ctx context.Context, env *driver.Environment, params json.RawMessage) (*Response, error) {
	var input SwitchToFrameInput
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}

	ref, err := frameReference(input.ID)
	if err != nil {
		return nil, err
	}
	if ref == "" {
		env.SetFocusedFrame("")
		return Success(nil), nil
	}

	if _, err := runScript(ctx, h.runner, frameExistsScript, map[string]any{driver.WindowObjectKey: ref}); err != nil {
		return nil, err
	}
	env.SetFocusedFrame(ref)
	return Success(nil), nil
}

// Prefixes of the focused frame value. Every reference carries one, so a frame named
// "index:0" is never read as an index.
const (
	frameByIndex   = "index:"
	frameByElement = "element:"
	frameByName    = "name:"
)

func frameReference(id any) (string, error) {
	switch v := id.(type) {
	case nil:
		return "", nil
	case string:
		return frameByName + v, nil
	case float64:
		if v < 0 || v != float64(int(v)) {
			return "", fmt.Errorf("%w: invalid frame index %v", ErrInvalidArgument, v)
		}
		return frameByIndex + strconv.Itoa(int(v)), nil
	case map[string]any:
		if elementID, ok := v[driver.ElementObjectKey].(string); ok && elementID != "" {
			return frameByElement + elementID, nil
		}
	}
	return "", fmt.Errorf("%w: unsupported frame id %v", ErrInvalidArgument, id)
}

// WindowHandleHandler reports the surface's only window handle.
type WindowHandleHandler struct {
	plural bool
}

// NewGetWindowHandleHandler creates the getWindowHandle handler.
func NewGetWindowHandleHandler() *WindowHandleHandler {
	return &WindowHandleHandler{}
}

// NewGetWindowHandlesHandler creates the getWindowHandles handler.
func NewGetWindowHandlesHandler() *WindowHandleHandler {
	return &WindowHandleHandler{plural: true}
}

// Name returns the command name.
func (h *WindowHandleHandler) Name() string {
	if h.plural {
		return "getWindowHandles"
	}
	return "getWindowHandle"
}

// Execute returns the global window handle.
func (h *WindowHandleHandler) Execute(_ context.Context, _ *driver.Environment, _ json.RawMessage) (*Response, error) {
	if h.plural {
		return Success([]string{driver.GlobalWindowHandle}), nil
	}
	return Success(driver.GlobalWindowHandle), nil
}
