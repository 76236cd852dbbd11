// Package cdpsurface drives Chrome through chromedp as a browser surface.
//
// It speaks the DevTools protocol directly: the notification bridge is a runtime binding, the
// dialog shim is registered with Page.addScriptToEvaluateOnNewDocument, navigation starts are
// read from Network.requestWillBeSent for documents loaded into the main frame, and the
// cache is cleared with Network.clearBrowserCache.
package cdpsurface

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/entrhq/forge-driver/pkg/logging"
	"github.com/entrhq/forge-driver/pkg/surface"
)

// Options configures a chromedp surface.
type Options struct {
	// RemoteURL attaches to an already running browser's DevTools websocket.
	// Empty launches a local Chrome.
	RemoteURL string

	// Headless applies to locally launched browsers only
	Headless bool

	// Width and Height set the window size of locally launched browsers
	Width  int
	Height int

	// BindingName is the page global the dialog shim reports through
	BindingName string

	Logger *logging.Logger
}

// Surface is one Chrome tab observed through the DevTools protocol.
type Surface struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	bindingName string
	logger      *logging.Logger

	notify     surface.Listeners[string]
	navigating surface.Signals

	mu        sync.RWMutex
	mainFrame cdp.FrameID
	closeOnce sync.Once
}

// Start launches or attaches to Chrome, opens a tab and installs the binding, the dialog shim
// and the event listener. parent bounds the browser's lifetime.
func Start(parent context.Context, opts Options) (*Surface, error) {
	if opts.BindingName == "" {
		opts.BindingName = surface.DefaultBindingName
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(parent, opts.RemoteURL)
	} else {
		execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
		)
		if opts.Width > 0 && opts.Height > 0 {
			execOpts = append(execOpts, chromedp.WindowSize(opts.Width, opts.Height))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(parent, execOpts...)
	}

	ctx, cancel := chromedp.NewContext(allocCtx)
	s := &Surface{
		ctx:         ctx,
		cancel:      cancel,
		allocCancel: allocCancel,
		bindingName: opts.BindingName,
		logger:      opts.Logger,
	}

	chromedp.ListenTarget(ctx, s.handleEvent)

	shim := surface.AlertShim(opts.BindingName)
	err := chromedp.Run(ctx,
		network.Enable(),
		runtime.AddBinding(opts.BindingName),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(shim).Do(ctx)
			return err
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			s.setMainFrame(tree.Frame.ID)
			return nil
		}),
	)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to prepare browser tab: %w", err)
	}

	s.logger.Infof("chromedp surface ready (remote=%t, binding=%s)", opts.RemoteURL != "", opts.BindingName)
	return s, nil
}

// handleEvent runs on chromedp's event goroutine and must not issue commands.
func (s *Surface) handleEvent(ev interface{}) {
	switch ev := ev.(type) {
	case *runtime.EventBindingCalled:
		if ev.Name != s.bindingName {
			return
		}
		s.logger.Debugf("script notify: %q", ev.Payload)
		s.notify.Emit(ev.Payload)
	case *network.EventRequestWillBeSent:
		if ev.Type != network.ResourceTypeDocument || ev.FrameID != s.currentMainFrame() {
			return
		}
		if ev.Request != nil {
			s.logger.Debugf("navigation starting: %s", ev.Request.URL)
		}
		s.navigating.Emit()
	case *page.EventFrameNavigated:
		if ev.Frame != nil && ev.Frame.ParentID == "" {
			s.setMainFrame(ev.Frame.ID)
		}
	}
}

func (s *Surface) setMainFrame(id cdp.FrameID) {
	s.mu.Lock()
	s.mainFrame = id
	s.mu.Unlock()
}

func (s *Surface) currentMainFrame() cdp.FrameID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mainFrame
}

// run executes actions on the tab, aborting when either ctx or the tab ends.
func (s *Surface) run(ctx context.Context, actions ...chromedp.Action) error {
	if s.ctx == nil {
		return surface.ErrNotStarted
	}
	runCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// ClearCache implements driver.Surface.
func (s *Surface) ClearCache(ctx context.Context) error {
	if err := s.run(ctx, network.ClearBrowserCache()); err != nil {
		return fmt.Errorf("failed to clear browser cache: %w", err)
	}
	return nil
}

// OnScriptNotify implements driver.Surface.
func (s *Surface) OnScriptNotify(fn func(payload string)) func() {
	return s.notify.Add(fn)
}

// OnNavigating implements driver.Surface.
func (s *Surface) OnNavigating(fn func()) func() {
	return s.navigating.Add(fn)
}

// Evaluate runs expression in the main frame. A promise result is awaited and an undefined
// result is reported as nil.
func (s *Surface) Evaluate(ctx context.Context, expression string) (any, error) {
	wrapped := fmt.Sprintf("(function() { var r = (%s); return r === undefined ? null : r; })()", expression)

	var result any
	if err := s.run(ctx, chromedp.Evaluate(wrapped, &result, awaitPromise)); err != nil {
		return nil, fmt.Errorf("script evaluation failed: %w", err)
	}
	return result, nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

// Navigate loads url and waits for the load event.
func (s *Surface) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// Close closes the tab and releases the browser or the remote connection.
func (s *Surface) Close() error {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		if s.allocCancel != nil {
			s.allocCancel()
		}
	})
	return nil
}
