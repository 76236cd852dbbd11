package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/entrhq/forge-driver/pkg/driver"
	"github.com/entrhq/forge-driver/pkg/surface"
	"github.com/google/uuid"
)

// Locator strategies accepted by findElement.
const (
	ByXPath           = "xpath"
	ByCSSSelector     = "css selector"
	ByID              = "id"
	ByName            = "name"
	ByTagName         = "tag name"
	ByClassName       = "class name"
	ByLinkText        = "link text"
	ByPartialLinkText = "partial link text"
)

var locatorStrategies = map[string]bool{
	ByXPath:           true,
	ByCSSSelector:     true,
	ByID:              true,
	ByName:            true,
	ByTagName:         true,
	ByClassName:       true,
	ByLinkText:        true,
	ByPartialLinkText: true,
}

// DefaultPollInterval is how often findElement retries while the implicit wait lasts.
const DefaultPollInterval = 100 * time.Millisecond

const findElementScript = `var frame = args[0], using = args[1], value = args[2], parentId = args[3], newId = args[4];
var doc = frameDocument(frame);
if (!doc) { return {status: 'noFrame', value: null}; }
var root = doc;
if (parentId) {
	var parent = lookup(parentId);
	if (!parent.element) { return lookupFailure(parent); }
	root = parent.element;
}
var matches = [];
var filter = function(selector, test) {
	var nodes = root.querySelectorAll(selector);
	for (var i = 0; i < nodes.length; i++) {
		if (test(nodes[i])) { matches.push(nodes[i]); }
	}
};
switch (using) {
case 'xpath':
	var found = doc.evaluate(value, root, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
	for (var i = 0; i < found.snapshotLength; i++) {
		if (found.snapshotItem(i).nodeType === 1) { matches.push(found.snapshotItem(i)); }
	}
	break;
case 'css selector':
	matches = Array.prototype.slice.call(root.querySelectorAll(value));
	break;
case 'id':
	filter('[id]', function(el) { return el.id === value; });
	break;
case 'name':
	filter('[name]', function(el) { return el.getAttribute('name') === value; });
	break;
case 'tag name':
	matches = Array.prototype.slice.call(root.getElementsByTagName(value));
	break;
case 'class name':
	matches = Array.prototype.slice.call(root.getElementsByClassName(value));
	break;
case 'link text':
	filter('a', function(el) { return el.textContent.trim() === value; });
	break;
case 'partial link text':
	filter('a', function(el) { return el.textContent.indexOf(value) !== -1; });
	break;
}
if (!matches.length) { return {status: 'ok', value: null}; }
return {status: 'ok', value: remember(matches[0], newId)};`

const elementTextScript = `var r = lookup(args[0]);
if (!r.element) { return lookupFailure(r); }
var text = r.element.innerText;
if (text === undefined || text === null) { text = r.element.textContent || ''; }
return {status: 'ok', value: String(text).trim()};`

// FindElementHandler locates one element in the focused frame, polling until the
// implicit wait expires.
type FindElementHandler struct {
	runner       surface.ScriptRunner
	pollInterval time.Duration
	newID        func() string
}

// NewFindElementHandler creates the findElement handler.
func NewFindElementHandler(runner surface.ScriptRunner) *FindElementHandler {
	return &FindElementHandler{
		runner:       runner,
		pollInterval: DefaultPollInterval,
		newID:        uuid.NewString,
	}
}

// Name returns the command name.
func (h *FindElementHandler) Name() string {
	return "findElement"
}

// FindElementInput defines the input parameters.
type FindElementInput struct {
	Using string `json:"using"`
	Value string `json:"value"`

	// Parent restricts the search to descendants of a previously found element
	Parent string `json:"parent,omitempty"`
}

// Execute finds the first matching element and returns its reference.
func (h *FindElementHandler) Execute(ctx context.Context, env *driver.Environment, params json.RawMessage) (*Response, error) {
	var input FindElementInput
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	if !locatorStrategies[input.Using] {
		return nil, fmt.Errorf("%w: unsupported locator strategy %q", ErrInvalidSelector, input.Using)
	}
	if input.Value == "" {
		return nil, fmt.Errorf("%w: locator value is required", ErrInvalidSelector)
	}

	deadline := time.Now().Add(env.ImplicitWait())
	for {
		value, err := runScript(ctx, h.runner, findElementScript,
			env.CreateFrameObject(), input.Using, input.Value, input.Parent, h.newID())
		if err != nil {
			return nil, err
		}
		if id, ok := value.(string); ok && id != "" {
			return Success(elementRef(id)), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s %q", ErrNoSuchElement, input.Using, input.Value)
		}
		if err := sleep(ctx, min(h.pollInterval, remaining)); err != nil {
			return nil, err
		}
	}
}

// GetElementTextHandler returns the visible text of an element.
type GetElementTextHandler struct {
	runner surface.ScriptRunner
}

// NewGetElementTextHandler creates the getElementText handler.
func NewGetElementTextHandler(runner surface.ScriptRunner) *GetElementTextHandler {
	return &GetElementTextHandler{runner: runner}
}

// Name returns the command name.
func (h *GetElementTextHandler) Name() string {
	return "getElementText"
}

// ElementInput identifies an element by the id returned from findElement.
type ElementInput struct {
	ID string `json:"id"`
}

// Execute reads the element's text.
func (h *GetElementTextHandler) Execute(ctx context.Context, env *driver.Environment, params json.RawMessage) (*Response, error) {
	var input ElementInput
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	if input.ID == "" {
		return nil, fmt.Errorf("%w: element id is required", ErrInvalidArgument)
	}

	value, err := runScript(ctx, h.runner, elementTextScript, input.ID)
	if err != nil {
		return nil, err
	}
	text, _ := value.(string)
	return Success(text), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
