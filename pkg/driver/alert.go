package driver

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedNotification is returned for a script notification without the "<type>:<text>" shape.
var ErrMalformedNotification = errors.New("malformed script notification")

// Alert types reported by the injected dialog shim.
const (
	AlertTypeAlert   = "JSAlert"
	AlertTypeConfirm = "JSConfirm"
	AlertTypePrompt  = "JSPrompt"
)

// Alert is a snapshot of the pending dialog state.
type Alert struct {
	Blocked bool
	Type    string
	Text    string
}

// ParseNotification splits a notification payload on its first colon.
// The text may itself contain colons.
func ParseNotification(payload string) (alertType, text string, err error) {
	alertType, text, ok := strings.Cut(payload, ":")
	if !ok {
		return "", "", fmt.Errorf("%w: missing ':' separator in %q", ErrMalformedNotification, payload)
	}
	return alertType, text, nil
}
