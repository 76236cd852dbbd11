package driver

import "context"

// Surface is the embedded browser an Environment observes. Implementations live in
// pkg/surface/pwsurface and pkg/surface/cdpsurface.
type Surface interface {
	// ClearCache clears the browser's HTTP cache.
	ClearCache(ctx context.Context) error

	// OnScriptNotify registers fn for every payload page script sends through the
	// notification bridge. The returned func removes the registration.
	OnScriptNotify(fn func(payload string)) (unsubscribe func())

	// OnNavigating registers fn for every top-level navigation start.
	OnNavigating(fn func()) (unsubscribe func())
}
