// Package driver holds the per-session state that WebDriver command handlers share with an
// embedded browser surface.
//
// # Architecture
//
// An Environment is bound to exactly one Surface for its whole life. Two kinds of callers
// touch it concurrently:
//
//  1. The surface raises events on its own goroutine: navigation starting and script notifications
//  2. Command handlers read and write state on worker goroutines while they execute protocol commands
//
// Every field sits behind one RWMutex and event handlers only mutate memory, so the surface's
// callback goroutine is never held up by a slow command.
//
// # Alert interception
//
// Page script cannot raise a native dialog inside the embedded surface. An injected shim replaces
// window.alert, window.confirm and window.prompt and reports each call as "<type>:<text>"
// through the surface's notification bridge. The environment treats these reports as a two-state
// toggle:
//
//	Idle    --notify-->           Blocked (type and text stored)
//	Blocked --notify-->           Idle    (fields cleared, payload ignored)
//	Blocked --ClearAlertStatus--> Idle
//	Idle    --ClearAlertStatus--> Idle
//
// A second dialog raised while the first is pending clears the state instead of queueing.
// Nested dialogs are therefore not reported.
//
// # Lifecycle
//
//	env := driver.NewEnvironment(surface, driver.WithLogger(logger))
//	detach := env.Attach(ctx)
//	defer detach()
//
// Attach starts a detached best-effort cache clear and subscribes to both surface events.
// detach removes the subscriptions so no callback reaches a discarded environment.
package driver
