package pwsurface

import (
	"github.com/entrhq/forge-driver/pkg/logging"
	"github.com/entrhq/forge-driver/pkg/surface"
	"github.com/playwright-community/playwright-go"
)

// Session is a Playwright page acting as the browser surface of one automation session.
// It implements driver.Surface and surface.ScriptRunner.
type Session struct {
	// Name is the unique identifier for this session
	Name string

	// Browser is the Playwright browser instance
	Browser playwright.Browser

	// Context is the browser context (isolated session)
	Context playwright.BrowserContext

	// Page is the only window the session exposes
	Page playwright.Page

	// Headless indicates if the browser is running in headless mode
	Headless bool

	bindingName string
	logger      *logging.Logger

	notify     surface.Listeners[string]
	navigating surface.Signals
}

// SessionOptions configures a new browser session.
type SessionOptions struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the initial viewport size
	Viewport *Viewport

	// Timeout sets the default timeout for page operations (in milliseconds)
	Timeout float64

	// BindingName is the page global the dialog shim reports through
	BindingName string

	// Logger receives surface events. Defaults to a nop logger.
	Logger *logging.Logger
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// Default values for sessions
const (
	DefaultTimeout        = 30000.0 // 30 seconds in milliseconds
	DefaultViewportWidth  = 480
	DefaultViewportHeight = 800
)
