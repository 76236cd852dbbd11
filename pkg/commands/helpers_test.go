package commands

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"

	"github.com/entrhq/forge-driver/pkg/driver"
	"github.com/stretchr/testify/require"
)

// stubSurface satisfies driver.Surface without a browser.
type stubSurface struct{}

func (stubSurface) ClearCache(context.Context) error   { return nil }
func (stubSurface) OnScriptNotify(func(string)) func() { return func() {} }
func (stubSurface) OnNavigating(func()) func()         { return func() {} }

func newTestEnv() *driver.Environment {
	return driver.NewEnvironment(stubSurface{})
}

// fakeRunner records evaluated scripts and answers them through evaluate.
type fakeRunner struct {
	mu          sync.Mutex
	calls       [][]any
	navigations []string

	evaluate func(call int, args []any) (any, error)
	navigate func(ctx context.Context, url string) error
}

func (f *fakeRunner) Evaluate(_ context.Context, expression string) (any, error) {
	args := scriptArgs(expression)

	f.mu.Lock()
	f.calls = append(f.calls, args)
	call := len(f.calls)
	f.mu.Unlock()

	if f.evaluate == nil {
		return ok(nil), nil
	}
	return f.evaluate(call, args)
}

func (f *fakeRunner) Navigate(ctx context.Context, url string) error {
	f.mu.Lock()
	f.navigations = append(f.navigations, url)
	f.mu.Unlock()

	if f.navigate == nil {
		return nil
	}
	return f.navigate(ctx, url)
}

func (f *fakeRunner) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRunner) lastArgs(t *testing.T) []any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.calls, "no script was evaluated")
	return f.calls[len(f.calls)-1]
}

// scriptArgs decodes the JSON argument array embedded by buildScript.
func scriptArgs(expression string) []any {
	idx := strings.LastIndex(expression, "\n})(")
	if idx < 0 {
		return nil
	}
	raw := strings.TrimSuffix(expression[idx+len("\n})("):], ")")
	var args []any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil
	}
	return args
}

func ok(value any) map[string]any {
	return map[string]any{"status": "ok", "value": value}
}

func status(s string) map[string]any {
	return map[string]any{"status": s, "value": nil}
}

func params(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}
