package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/entrhq/forge-driver/pkg/driver"
	"github.com/entrhq/forge-driver/pkg/surface"
)

// Keyboard state keys. Modifiers stay pressed across sendKeys calls until released.
const (
	KeyShift   = "shift"
	KeyControl = "control"
	KeyAlt     = "alt"
	KeyMeta    = "meta"
)

// Protocol code points for special keys.
const (
	keyNull      = '\uE000'
	keyBackspace = '\uE003'
	keyTab       = '\uE004'
	keyReturn    = '\uE006'
	keyEnter     = '\uE007'
	keyShift     = '\uE008'
	keyControl   = '\uE009'
	keyAlt       = '\uE00A'
	keySpace     = '\uE00D'
	keyMeta      = '\uE03D'
)

const sendKeysScript = `var r = lookup(args[0]);
if (!r.element) { return lookupFailure(r); }
var el = r.element, text = args[1];
el.focus();
var tag = el.tagName;
if (tag === 'INPUT' || tag === 'TEXTAREA') {
	var current = el.value;
	for (var i = 0; i < text.length; i++) {
		var ch = text.charAt(i);
		if (ch === '\b') { current = current.slice(0, -1); }
		else if (ch === '\n' && tag === 'INPUT') {
			if (el.form && typeof el.form.requestSubmit === 'function') { el.form.requestSubmit(); }
		}
		else { current += ch; }
	}
	el.value = current;
} else if (el.isContentEditable) {
	el.textContent += text.replace(/\x08/g, '');
}
el.dispatchEvent(new Event('input', {bubbles: true}));
el.dispatchEvent(new Event('change', {bubbles: true}));
return {status: 'ok', value: null};`

const mouseMoveScript = `var id = args[0], x = args[1], y = args[2], xoff = args[3], yoff = args[4];
var win = frameWindow(args[5]);
if (!win) { return {status: 'noFrame', value: null}; }
if (id) {
	var r = lookup(id);
	if (!r.element) { return lookupFailure(r); }
	var rect = r.element.getBoundingClientRect();
	x = rect.left + (xoff === null ? rect.width / 2 : xoff);
	y = rect.top + (yoff === null ? rect.height / 2 : yoff);
	win = r.element.ownerDocument.defaultView || win;
} else {
	x += xoff || 0;
	y += yoff || 0;
}
var target = win.document.elementFromPoint(x, y);
if (target) {
	target.dispatchEvent(new win.MouseEvent('mousemove', {clientX: x, clientY: y, bubbles: true, view: win}));
}
return {status: 'ok', value: {x: x, y: y}};`

// SendKeysHandler types into an element and tracks modifier keys in the keyboard state.
type SendKeysHandler struct {
	runner surface.ScriptRunner
}

// NewSendKeysHandler creates the sendKeys handler.
func NewSendKeysHandler(runner surface.ScriptRunner) *SendKeysHandler {
	return &SendKeysHandler{runner: runner}
}

// Name returns the command name.
func (h *SendKeysHandler) Name() string {
	return "sendKeys"
}

// SendKeysInput defines the input parameters.
type SendKeysInput struct {
	ID    string   `json:"id"`
	Value []string `json:"value"`
}

// Execute applies the key sequence. The keyboard state is only stored once typing succeeded.
func (h *SendKeysHandler) Execute(ctx context.Context, env *driver.Environment, params json.RawMessage) (*Response, error) {
	var input SendKeysInput
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	if input.ID == "" {
		return nil, fmt.Errorf("%w: element id is required", ErrInvalidArgument)
	}

	state := env.KeyboardState()
	if state == nil {
		state = map[string]any{}
	}
	text := applyKeys(state, strings.Join(input.Value, ""))

	if _, err := runScript(ctx, h.runner, sendKeysScript, input.ID, text); err != nil {
		return nil, err
	}
	env.SetKeyboardState(state)
	return Success(nil), nil
}

// applyKeys toggles modifiers in state and returns the text to type.
func applyKeys(state map[string]any, keys string) string {
	var b strings.Builder
	for _, r := range keys {
		switch r {
		case keyNull:
			for _, k := range []string{KeyShift, KeyControl, KeyAlt, KeyMeta} {
				state[k] = false
			}
		case keyShift:
			state[KeyShift] = !pressed(state, KeyShift)
		case keyControl:
			state[KeyControl] = !pressed(state, KeyControl)
		case keyAlt:
			state[KeyAlt] = !pressed(state, KeyAlt)
		case keyMeta:
			state[KeyMeta] = !pressed(state, KeyMeta)
		case keyBackspace:
			b.WriteRune('\b')
		case keyTab:
			b.WriteRune('\t')
		case keyReturn, keyEnter:
			b.WriteRune('\n')
		case keySpace:
			b.WriteRune(' ')
		default:
			if r >= '\uE000' && r <= '\uE05D' {
				// Remaining private-use code points are navigation and function keys
				continue
			}
			if pressed(state, KeyShift) {
				r = unicode.ToUpper(r)
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

func pressed(state map[string]any, key string) bool {
	v, _ := state[key].(bool)
	return v
}

// MouseMoveToHandler moves the virtual pointer and records it in the mouse state.
type MouseMoveToHandler struct {
	runner surface.ScriptRunner
}

// NewMouseMoveToHandler creates the mouseMoveTo handler.
func NewMouseMoveToHandler(runner surface.ScriptRunner) *MouseMoveToHandler {
	return &MouseMoveToHandler{runner: runner}
}

// Name returns the command name.
func (h *MouseMoveToHandler) Name() string {
	return "mouseMoveTo"
}

// MouseMoveToInput defines the input parameters. Without an element the offsets are relative
// to the current pointer position; with one they are relative to its top-left corner and
// default to its center.
type MouseMoveToInput struct {
	Element string   `json:"element,omitempty"`
	XOffset *float64 `json:"xoffset,omitempty"`
	YOffset *float64 `json:"yoffset,omitempty"`
}

// Execute moves the pointer.
func (h *MouseMoveToHandler) Execute(ctx context.Context, env *driver.Environment, params json.RawMessage) (*Response, error) {
	var input MouseMoveToInput
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	if input.Element == "" && input.XOffset == nil && input.YOffset == nil {
		return nil, fmt.Errorf("%w: element or offsets are required", ErrInvalidArgument)
	}

	state := env.MouseState()
	x, y := pointerPosition(state)

	value, err := runScript(ctx, h.runner, mouseMoveScript,
		nullable(input.Element), x, y, input.XOffset, input.YOffset, env.CreateFrameObject())
	if err != nil {
		return nil, err
	}

	point, _ := value.(map[string]any)
	newX, okX := toFloat(point["x"])
	newY, okY := toFloat(point["y"])
	if !okX || !okY {
		return nil, fmt.Errorf("unexpected pointer position %v", value)
	}

	state[driver.MouseClientXYKey] = map[string]any{"x": newX, "y": newY}
	if input.Element != "" {
		state[driver.MouseElementKey] = elementRef(input.Element)
	}
	env.SetMouseState(state)
	return Success(nil), nil
}

func pointerPosition(state map[string]any) (float64, float64) {
	xy, _ := state[driver.MouseClientXYKey].(map[string]any)
	x, _ := toFloat(xy["x"])
	y, _ := toFloat(xy["y"])
	return x, y
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
