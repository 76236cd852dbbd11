package pwsurface

import (
	"context"
	"fmt"
	"time"

	"github.com/entrhq/forge-driver/pkg/surface"
	"github.com/playwright-community/playwright-go"
)

// installHooks wires the page events the environment observes. It runs once per session,
// before the first navigation, so the shim is present in every document.
func (s *Session) installHooks() error {
	err := s.Page.ExposeFunction(s.bindingName, func(args ...interface{}) interface{} {
		if len(args) == 0 {
			s.logger.Errorf("notification binding called without payload")
			return nil
		}
		payload, ok := args[0].(string)
		if !ok {
			payload = fmt.Sprint(args[0])
		}
		s.logger.Debugf("script notify: %q", payload)
		s.notify.Emit(payload)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to expose notification binding: %w", err)
	}

	shim := surface.AlertShim(s.bindingName)
	if err := s.Page.AddInitScript(playwright.Script{Content: playwright.String(shim)}); err != nil {
		return fmt.Errorf("failed to add dialog shim: %w", err)
	}

	s.Page.OnRequest(func(req playwright.Request) {
		if !req.IsNavigationRequest() {
			return
		}
		// Only the top-level document counts; iframe loads keep the pointer state.
		if frame := req.Frame(); frame != nil && frame.ParentFrame() != nil {
			return
		}
		s.logger.Debugf("navigation starting: %s", req.URL())
		s.navigating.Emit()
	})
	return nil
}

// ClearCache clears the HTTP cache through a CDP session. Only Chromium-based browsers
// support it; other engines return an error.
func (s *Session) ClearCache(ctx context.Context) error {
	if s.Page == nil {
		return surface.ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cdp, err := s.Context.NewCDPSession(s.Page)
	if err != nil {
		return fmt.Errorf("failed to open CDP session: %w", err)
	}
	defer func() {
		if detachErr := cdp.Detach(); detachErr != nil {
			s.logger.Debugf("detaching CDP session: %v", detachErr)
		}
	}()

	if _, err := cdp.Send("Network.clearBrowserCache", nil); err != nil {
		return fmt.Errorf("failed to clear browser cache: %w", err)
	}
	return nil
}

// OnScriptNotify implements driver.Surface.
func (s *Session) OnScriptNotify(fn func(payload string)) func() {
	return s.notify.Add(fn)
}

// OnNavigating implements driver.Surface.
func (s *Session) OnNavigating(fn func()) func() {
	return s.navigating.Add(fn)
}

type evaluation struct {
	result any
	err    error
}

// Evaluate runs expression in the page's main frame and awaits a promise result. Playwright
// cannot abort a running evaluation, so when ctx is done first Evaluate returns ctx.Err() and
// the result is discarded.
func (s *Session) Evaluate(ctx context.Context, expression string) (any, error) {
	if s.Page == nil {
		return nil, surface.ErrNotStarted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan evaluation, 1)
	go func() {
		result, err := s.Page.Evaluate(expression)
		done <- evaluation{result: result, err: err}
	}()

	select {
	case <-ctx.Done():
		s.logger.Debugf("abandoning evaluation: %v", ctx.Err())
		return nil, ctx.Err()
	case ev := <-done:
		if ev.err != nil {
			return nil, fmt.Errorf("script evaluation failed: %w", ev.err)
		}
		return ev.result, nil
	}
}

// Navigate loads url and waits for the load event. A deadline on ctx becomes the navigation timeout.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if s.Page == nil {
		return surface.ErrNotStarted
	}

	opts := playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
	}
	if deadline, ok := ctx.Deadline(); ok {
		remaining := float64(time.Until(deadline).Milliseconds())
		if remaining <= 0 {
			return context.DeadlineExceeded
		}
		opts.Timeout = &remaining
	}

	if _, err := s.Page.Goto(url, opts); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// close releases the page, context and browser, returning every error encountered.
func (s *Session) close() []error {
	var errs []error
	if s.Page != nil {
		if err := s.Page.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Context != nil {
		if err := s.Context.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if s.Browser != nil {
		if err := s.Browser.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}
