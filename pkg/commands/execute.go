package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/entrhq/forge-driver/pkg/driver"
	"github.com/entrhq/forge-driver/pkg/surface"
	"github.com/google/uuid"
)

// scriptCall resolves the target window and the call arguments shared by both execute commands.
// args: frame object, function body, raw arguments, id for the first new element reference.
const scriptCall = `var win = frameWindow(args[0]), source = args[1], raw = args[2] || [], newId = args[3];
if (!win) { return {status: 'noFrame', value: null}; }
var fnArgs = [];
for (var i = 0; i < raw.length; i++) {
	var a = raw[i];
	if (a && typeof a === 'object' && typeof a[elementKey] === 'string') {
		var r = lookup(a[elementKey]);
		if (!r.element) { return lookupFailure(r); }
		fnArgs.push(r.element);
	} else {
		fnArgs.push(a);
	}
}
var issued = 0;
function wrap(v, depth) {
	if (v === undefined || v === null || typeof v === 'function' || typeof v === 'symbol') { return null; }
	if (typeof v === 'number') { return isFinite(v) ? v : null; }
	if (typeof v !== 'object') { return v; }
	if (depth > 64) { throw new Error('result is nested too deeply'); }
	if (v.nodeType === 1) {
		var ref = {};
		ref[elementKey] = remember(v, issued === 0 ? newId : newId + '-' + issued);
		issued++;
		return ref;
	}
	if (v.window === v) { return null; }
	var kind = Object.prototype.toString.call(v);
	if (Array.isArray(v) || kind === '[object NodeList]' || kind === '[object HTMLCollection]') {
		var list = [];
		for (var j = 0; j < v.length; j++) { list.push(wrap(v[j], depth + 1)); }
		return list;
	}
	if (typeof v.toJSON === 'function') { return wrap(v.toJSON(), depth + 1); }
	var obj = {};
	for (var key in v) {
		if (Object.prototype.hasOwnProperty.call(v, key)) { obj[key] = wrap(v[key], depth + 1); }
	}
	return obj;
}
`

const executeScript = scriptCall + `var result = (new win.Function(source)).apply(win, fnArgs);
return {status: 'ok', value: wrap(result, 0)};`

// executeAsyncScript appends a completion callback to the arguments. args[4] is the timeout in
// milliseconds, negative for none.
const executeAsyncScript = scriptCall + `var timeoutMs = args[4];
return new Promise(function(resolve) {
	var done = false, timer = null;
	function finish(r) {
		if (done) { return; }
		done = true;
		if (timer !== null) { win.clearTimeout(timer); }
		resolve(r);
	}
	fnArgs.push(function(value) {
		try {
			finish({status: 'ok', value: wrap(value, 0)});
		} catch (e) {
			finish({status: 'error', value: String(e && e.message ? e.message : e)});
		}
	});
	if (timeoutMs >= 0) {
		timer = win.setTimeout(function() { finish({status: 'timeout', value: null}); }, timeoutMs);
	}
	try {
		(new win.Function(source)).apply(win, fnArgs);
	} catch (e) {
		finish({status: 'error', value: String(e && e.message ? e.message : e)});
	}
});`

// asyncScriptGrace is how long past the async script timeout the caller waits for the page
// to report the timeout itself.
const asyncScriptGrace = time.Second

// ExecuteScriptInput defines the input parameters of executeScript and executeAsyncScript.
type ExecuteScriptInput struct {
	Script string `json:"script"`
	Args   []any  `json:"args"`
}

// ExecuteScriptHandler runs a function body in the focused frame. Element references in the
// arguments are resolved to DOM nodes and elements in the result, at any depth, are
// converted to references.
type ExecuteScriptHandler struct {
	runner surface.ScriptRunner
	newID  func() string
}

// NewExecuteScriptHandler creates the executeScript handler.
func NewExecuteScriptHandler(runner surface.ScriptRunner) *ExecuteScriptHandler {
	return &ExecuteScriptHandler{
		runner: runner,
		newID:  uuid.NewString,
	}
}

// Name returns the command name.
func (h *ExecuteScriptHandler) Name() string {
	return "executeScript"
}

// Execute runs the script and returns its JSON-compatible result.
func (h *ExecuteScriptHandler) Execute(ctx context.Context, env *driver.Environment, params json.RawMessage) (*Response, error) {
	input, err := decodeScriptInput(params)
	if err != nil {
		return nil, err
	}

	value, err := runScript(ctx, h.runner, executeScript, env.CreateFrameObject(), input.Script, input.Args, h.newID())
	if err != nil {
		return nil, err
	}
	return Success(value), nil
}

// ExecuteAsyncScriptHandler runs a function body that reports its result through a callback
// passed as the last argument. The async script timeout bounds the wait.
type ExecuteAsyncScriptHandler struct {
	runner surface.ScriptRunner
	newID  func() string
	grace  time.Duration
}

// NewExecuteAsyncScriptHandler creates the executeAsyncScript handler.
func NewExecuteAsyncScriptHandler(runner surface.ScriptRunner) *ExecuteAsyncScriptHandler {
	return &ExecuteAsyncScriptHandler{
		runner: runner,
		newID:  uuid.NewString,
		grace:  asyncScriptGrace,
	}
}

// Name returns the command name.
func (h *ExecuteAsyncScriptHandler) Name() string {
	return "executeAsyncScript"
}

// Execute runs the script and waits for its callback, the page-side timer or the caller's
// deadline, whichever comes first.
func (h *ExecuteAsyncScriptHandler) Execute(ctx context.Context, env *driver.Environment, params json.RawMessage) (*Response, error) {
	input, err := decodeScriptInput(params)
	if err != nil {
		return nil, err
	}

	timeout := env.AsyncScriptTimeout()
	runCtx := ctx
	if d, ok := timeout.Duration(); ok {
		if d <= time.Duration(math.MaxInt64)-h.grace {
			d += h.grace
		}
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	value, err := runScript(runCtx, h.runner, executeAsyncScript,
		env.CreateFrameObject(), input.Script, input.Args, h.newID(), timeout.Milliseconds())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, fmt.Errorf("%w: no result after %s", ErrScriptTimeout, timeout)
		}
		return nil, err
	}
	return Success(value), nil
}

func decodeScriptInput(params json.RawMessage) (ExecuteScriptInput, error) {
	var input ExecuteScriptInput
	if err := decodeParams(params, &input); err != nil {
		return input, err
	}
	if input.Script == "" {
		return input, fmt.Errorf("%w: script is required", ErrInvalidArgument)
	}
	return input, nil
}
