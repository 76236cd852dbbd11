package commands

import (
	"context"
	"encoding/json"

	"github.com/entrhq/forge-driver/pkg/driver"
)

// GetAlertTextHandler returns the message of the pending dialog.
type GetAlertTextHandler struct{}

// NewGetAlertTextHandler creates the getAlertText handler.
func NewGetAlertTextHandler() *GetAlertTextHandler {
	return &GetAlertTextHandler{}
}

// Name returns the command name.
func (h *GetAlertTextHandler) Name() string {
	return "getAlertText"
}

// AllowedWhileBlocked implements AlertHandler.
func (h *GetAlertTextHandler) AllowedWhileBlocked() bool {
	return true
}

// Execute returns the dialog text or ErrNoAlertOpen.
func (h *GetAlertTextHandler) Execute(_ context.Context, env *driver.Environment, _ json.RawMessage) (*Response, error) {
	alert := env.Alert()
	if !alert.Blocked {
		return nil, ErrNoAlertOpen
	}
	return Success(alert.Text), nil
}

// DismissAlertHandler consumes the pending dialog. The shim already answered it inside the page,
// so accepting and dismissing differ only by name.
type DismissAlertHandler struct {
	name string
}

// NewAcceptAlertHandler creates the acceptAlert handler.
func NewAcceptAlertHandler() *DismissAlertHandler {
	return &DismissAlertHandler{name: "acceptAlert"}
}

// NewDismissAlertHandler creates the dismissAlert handler.
func NewDismissAlertHandler() *DismissAlertHandler {
	return &DismissAlertHandler{name: "dismissAlert"}
}

// Name returns the command name.
func (h *DismissAlertHandler) Name() string {
	return h.name
}

// AllowedWhileBlocked implements AlertHandler.
func (h *DismissAlertHandler) AllowedWhileBlocked() bool {
	return true
}

// Execute clears the alert state or returns ErrNoAlertOpen.
func (h *DismissAlertHandler) Execute(_ context.Context, env *driver.Environment, _ json.RawMessage) (*Response, error) {
	if !env.IsBlocked() {
		return nil, ErrNoAlertOpen
	}
	env.ClearAlertStatus()
	return Success(nil), nil
}
