package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/entrhq/forge-driver/pkg/driver"
	"github.com/entrhq/forge-driver/pkg/surface"
)

// elementStore is the page global mapping element ids to DOM nodes. It lives in the top-level
// window, so a navigation drops every reference.
const elementStore = "__forgeDriverElements"

// scriptPrelude is shared by every command script. Scripts report through an object
// {status, value} where status is ok, noFrame, noElement, stale, timeout or error.
var scriptPrelude = fmt.Sprintf(`var store = window[%[1]s] || (window[%[1]s] = {});
var windowKey = %[2]s, elementKey = %[3]s;
function frameWindow(frame) {
	if (!frame || frame[windowKey] === undefined || frame[windowKey] === null || frame[windowKey] === '') {
		return window;
	}
	var ref = String(frame[windowKey]);
	var el = null;
	if (ref.indexOf('index:') === 0) {
		return window.frames[parseInt(ref.slice(6), 10)] || null;
	}
	if (ref.indexOf('element:') === 0) {
		el = store[ref.slice(8)] || null;
	} else {
		if (ref.indexOf('name:') === 0) { ref = ref.slice(5); }
		var frames = document.querySelectorAll('iframe, frame');
		for (var i = 0; i < frames.length; i++) {
			if (frames[i].name === ref || frames[i].id === ref) { el = frames[i]; break; }
		}
	}
	return el && el.contentWindow ? el.contentWindow : null;
}
function frameDocument(frame) {
	var w = frameWindow(frame);
	try { return w ? w.document : null; } catch (e) { return null; }
}
function lookup(id) {
	var el = store[id];
	if (!el) { return {missing: true}; }
	if (!el.isConnected) { return {stale: true}; }
	return {element: el};
}
function lookupFailure(r) {
	return {status: r.stale ? 'stale' : 'noElement', value: null};
}
function remember(el, newId) {
	for (var key in store) {
		if (store[key] === el) { return key; }
	}
	store[newId] = el;
	return newId;
}`, strconv.Quote(elementStore), strconv.Quote(driver.WindowObjectKey), strconv.Quote(driver.ElementObjectKey))

// buildScript wraps body in a function receiving args, which are embedded as JSON.
func buildScript(body string, args ...any) (string, error) {
	if args == nil {
		args = []any{}
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode script arguments: %w", err)
	}
	return fmt.Sprintf(`(function(args) {
%s
try {
%s
} catch (e) {
	return {status: 'error', value: String(e && e.message ? e.message : e)};
}
})(%s)`, scriptPrelude, body, data), nil
}

// runScript evaluates a command script and translates its status into an error.
func runScript(ctx context.Context, runner surface.ScriptRunner, body string, args ...any) (any, error) {
	expression, err := buildScript(body, args...)
	if err != nil {
		return nil, err
	}

	raw, err := runner.Evaluate(ctx, expression)
	if err != nil {
		return nil, err
	}

	result, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected script result of type %T", raw)
	}

	status, _ := result["status"].(string)
	switch status {
	case "ok":
		return result["value"], nil
	case "noFrame":
		return nil, ErrNoSuchFrame
	case "noElement":
		return nil, ErrNoSuchElement
	case "stale":
		return nil, ErrStaleElementReference
	case "timeout":
		return nil, ErrScriptTimeout
	case "error":
		return nil, fmt.Errorf("%w: %v", ErrJavaScript, result["value"])
	default:
		return nil, fmt.Errorf("unexpected script status %q", status)
	}
}

// toFloat accepts the numeric types script results and decoded JSON produce.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// elementRef wraps an element id the way the protocol expects.
func elementRef(id string) map[string]any {
	return map[string]any{driver.ElementObjectKey: id}
}
