package commands

import (
	"github.com/entrhq/forge-driver/pkg/surface"
)

// NewDefaultRegistry returns a registry holding every built-in handler.
func NewDefaultRegistry(runner surface.ScriptRunner, policy URLPolicy) (*Registry, error) {
	registry := NewRegistry()

	handlers := []Handler{
		// Navigation and windows
		NewGetHandler(runner, policy),
		NewSwitchToFrameHandler(runner),
		NewGetWindowHandleHandler(),
		NewGetWindowHandlesHandler(),

		// Elements and input
		NewFindElementHandler(runner),
		NewGetElementTextHandler(runner),
		NewSendKeysHandler(runner),
		NewMouseMoveToHandler(runner),
		NewExecuteScriptHandler(runner),
		NewExecuteAsyncScriptHandler(runner),

		// Session settings
		NewSetTimeoutsHandler(),
		NewImplicitlyWaitHandler(),

		// Dialogs
		NewGetAlertTextHandler(),
		NewAcceptAlertHandler(),
		NewDismissAlertHandler(),
	}

	for _, h := range handlers {
		if err := registry.Register(h); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
