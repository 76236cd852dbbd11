package surface

import (
	"context"
	"errors"
)

// ErrNotStarted is returned by adapters used before their page exists.
var ErrNotStarted = errors.New("browser surface not started")

// ScriptRunner is the part of a surface command handlers drive directly.
type ScriptRunner interface {
	// Evaluate runs a JavaScript expression in the top-level document and returns its
	// JSON-compatible result.
	Evaluate(ctx context.Context, expression string) (any, error)

	// Navigate loads url in the surface's only window.
	Navigate(ctx context.Context, url string) error
}
