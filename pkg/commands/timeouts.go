package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"math"

	"github.com/entrhq/forge-driver/pkg/driver"
)

// Timeout types accepted by setTimeouts.
const (
	TimeoutImplicit = "implicit"
	TimeoutScript   = "script"
	TimeoutPageLoad = "page load"
)

// SetTimeoutsHandler configures one of the session timeouts.
type SetTimeoutsHandler struct{}

// NewSetTimeoutsHandler creates the setTimeouts handler.
func NewSetTimeoutsHandler() *SetTimeoutsHandler {
	return &SetTimeoutsHandler{}
}

// Name returns the command name.
func (h *SetTimeoutsHandler) Name() string {
	return "setTimeouts"
}

// SetTimeoutsInput defines the input parameters. A negative script or page load value
// clears that timeout.
type SetTimeoutsInput struct {
	Type string   `json:"type"`
	MS   *float64 `json:"ms"`
}

// Execute stores the timeout.
func (h *SetTimeoutsHandler) Execute(_ context.Context, env *driver.Environment, params json.RawMessage) (*Response, error) {
	var input SetTimeoutsInput
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	if input.MS == nil {
		return nil, fmt.Errorf("%w: ms is required", ErrInvalidArgument)
	}
	ms, err := milliseconds(*input.MS)
	if err != nil {
		return nil, err
	}

	switch input.Type {
	case TimeoutImplicit:
		if err := setImplicitWait(env, ms); err != nil {
			return nil, err
		}
	case TimeoutScript, TimeoutPageLoad:
		timeout, err := driver.TimeoutFromMilliseconds(ms)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
		}
		if input.Type == TimeoutScript {
			env.SetAsyncScriptTimeout(timeout)
		} else {
			env.SetPageLoadTimeout(timeout)
		}
	default:
		return nil, fmt.Errorf("%w: unknown timeout type %q", ErrInvalidArgument, input.Type)
	}
	return Success(nil), nil
}

// ImplicitlyWaitHandler sets the element search polling budget.
type ImplicitlyWaitHandler struct{}

// NewImplicitlyWaitHandler creates the implicitlyWait handler.
func NewImplicitlyWaitHandler() *ImplicitlyWaitHandler {
	return &ImplicitlyWaitHandler{}
}

// Name returns the command name.
func (h *ImplicitlyWaitHandler) Name() string {
	return "implicitlyWait"
}

// ImplicitlyWaitInput defines the input parameters.
type ImplicitlyWaitInput struct {
	MS float64 `json:"ms"`
}

// Execute stores the implicit wait.
func (h *ImplicitlyWaitHandler) Execute(_ context.Context, env *driver.Environment, params json.RawMessage) (*Response, error) {
	var input ImplicitlyWaitInput
	if err := decodeParams(params, &input); err != nil {
		return nil, err
	}
	ms, err := milliseconds(input.MS)
	if err != nil {
		return nil, err
	}
	if err := setImplicitWait(env, ms); err != nil {
		return nil, err
	}
	return Success(nil), nil
}

// milliseconds converts a wire number to whole milliseconds. Any negative value becomes the
// -1 sentinel; values a time.Duration cannot hold are rejected before conversion.
func milliseconds(v float64) (int64, error) {
	switch {
	case math.IsNaN(v):
		return 0, fmt.Errorf("%w: ms is not a number", ErrInvalidArgument)
	case v < 0:
		return -1, nil
	case v > float64(driver.MaxTimeoutMilliseconds):
		return 0, fmt.Errorf("%w: %v", ErrInvalidArgument, driver.ErrTimeoutOutOfRange)
	}
	return int64(v), nil
}

func setImplicitWait(env *driver.Environment, ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: implicit wait cannot be negative", ErrInvalidArgument)
	}
	d, err := driver.DurationFromMilliseconds(ms)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	if err := driver.ValidateImplicitWait(d); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	env.SetImplicitWait(d)
	return nil
}
