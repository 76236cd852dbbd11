package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSurface records subscriptions and lets tests fire surface events by hand.
type fakeSurface struct {
	mu         sync.Mutex
	notify     map[int]func(string)
	navigating map[int]func()
	nextID     int

	clearErr   error
	clearCalls chan struct{}
	clearBlock chan struct{}
}

func newFakeSurface() *fakeSurface {
	return &fakeSurface{
		notify:     make(map[int]func(string)),
		navigating: make(map[int]func()),
		clearCalls: make(chan struct{}, 8),
	}
}

func (s *fakeSurface) ClearCache(ctx context.Context) error {
	s.clearCalls <- struct{}{}
	if s.clearBlock != nil {
		select {
		case <-s.clearBlock:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return s.clearErr
}

func (s *fakeSurface) OnScriptNotify(fn func(string)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.notify[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.notify, id)
		s.mu.Unlock()
	}
}

func (s *fakeSurface) OnNavigating(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.navigating[id] = fn
	return func() {
		s.mu.Lock()
		delete(s.navigating, id)
		s.mu.Unlock()
	}
}

func (s *fakeSurface) fireNotify(payload string) {
	s.mu.Lock()
	fns := make([]func(string), 0, len(s.notify))
	for _, fn := range s.notify {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn(payload)
	}
}

func (s *fakeSurface) fireNavigating() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.navigating))
	for _, fn := range s.navigating {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *fakeSurface) subscriberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notify) + len(s.navigating)
}

func attached(t *testing.T) (*Environment, *fakeSurface) {
	t.Helper()
	surface := newFakeSurface()
	env := NewEnvironment(surface)
	detach := env.Attach(context.Background())
	t.Cleanup(detach)
	return env, surface
}

func TestNewEnvironment_Defaults(t *testing.T) {
	surface := newFakeSurface()
	env := NewEnvironment(surface)

	assert.Same(t, surface, env.Surface())
	assert.Equal(t, time.Duration(0), env.ImplicitWait())
	assert.Equal(t, int64(-1), env.AsyncScriptTimeout().Milliseconds())
	assert.Equal(t, int64(-1), env.PageLoadTimeout().Milliseconds())
	assert.False(t, env.AsyncScriptTimeout().IsSet())
	assert.False(t, env.PageLoadTimeout().IsSet())
	assert.False(t, env.IsBlocked())
	assert.Empty(t, env.AlertType())
	assert.Empty(t, env.AlertText())
	assert.Empty(t, env.FocusedFrame())
	assert.Nil(t, env.KeyboardState())
	assert.Equal(t, defaultMouseState(), env.MouseState())
	assert.Nil(t, env.CreateFrameObject())

	// Nothing touches the surface before Attach.
	assert.Equal(t, 0, surface.subscriberCount())
	assert.Len(t, surface.clearCalls, 0)
}

func TestAttach_ClearsCacheAndSubscribes(t *testing.T) {
	env, surface := attached(t)

	select {
	case <-surface.clearCalls:
	case <-time.After(2 * time.Second):
		t.Fatal("cache clear was not started")
	}
	assert.Equal(t, 2, surface.subscriberCount())

	surface.fireNotify("JSAlert:Hello")
	assert.True(t, env.IsBlocked())
}

func TestAttach_DoesNotWaitForCacheClear(t *testing.T) {
	surface := newFakeSurface()
	surface.clearBlock = make(chan struct{})
	defer close(surface.clearBlock)

	env := NewEnvironment(surface, WithCacheClearTimeout(time.Minute))

	done := make(chan func())
	go func() { done <- env.Attach(context.Background()) }()

	select {
	case detach := <-done:
		defer detach()
	case <-time.After(2 * time.Second):
		t.Fatal("Attach blocked on the cache clear")
	}

	// Commands keep working while the clear is still pending.
	env.SetFocusedFrame("frame-1")
	assert.Equal(t, "frame-1", env.FocusedFrame())
}

func TestAttach_CacheClearFailureIsSwallowed(t *testing.T) {
	surface := newFakeSurface()
	surface.clearErr = errors.New("cache locked")
	env := NewEnvironment(surface)

	detach := env.Attach(context.Background())
	defer detach()

	select {
	case <-surface.clearCalls:
	case <-time.After(2 * time.Second):
		t.Fatal("cache clear was not started")
	}
	assert.False(t, env.IsBlocked())
	assert.Equal(t, 2, surface.subscriberCount())
}

func TestDetach_RemovesSubscriptions(t *testing.T) {
	surface := newFakeSurface()
	env := NewEnvironment(surface)

	detach := env.Attach(context.Background())
	require.Equal(t, 2, surface.subscriberCount())

	detach()
	detach()
	assert.Equal(t, 0, surface.subscriberCount())

	surface.fireNotify("JSAlert:late")
	assert.False(t, env.IsBlocked())
}

func TestAttach_Twice(t *testing.T) {
	surface := newFakeSurface()
	env := NewEnvironment(surface)

	first := env.Attach(context.Background())
	second := env.Attach(context.Background())
	assert.Equal(t, 2, surface.subscriberCount())

	second()
	assert.Equal(t, 0, surface.subscriberCount())
	first()

	// A detached environment can be attached again.
	again := env.Attach(context.Background())
	defer again()
	assert.Equal(t, 2, surface.subscriberCount())
}

func TestClose_Detaches(t *testing.T) {
	surface := newFakeSurface()
	env := NewEnvironment(surface)
	env.Attach(context.Background())

	require.NoError(t, env.Close())
	assert.Equal(t, 0, surface.subscriberCount())
	require.NoError(t, env.Close())
}

func TestScriptNotify_Toggle(t *testing.T) {
	tests := []struct {
		name   string
		first  string
		second string
		typ    string
		text   string
	}{
		{name: "alert then confirm", first: "JSAlert:Hello", second: "JSConfirm:Sure?", typ: "JSAlert", text: "Hello"},
		{name: "text with colons", first: "JSPrompt:a:b:c", second: "anything", typ: "JSPrompt", text: "a:b:c"},
		{name: "empty text", first: "JSAlert:", second: "JSAlert:", typ: "JSAlert", text: ""},
		{name: "malformed second payload", first: "JSAlert:x", second: "no separator", typ: "JSAlert", text: "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, surface := attached(t)

			surface.fireNotify(tt.first)
			alert := env.Alert()
			assert.True(t, alert.Blocked)
			assert.Equal(t, tt.typ, alert.Type)
			assert.Equal(t, tt.text, alert.Text)

			surface.fireNotify(tt.second)
			assert.Equal(t, Alert{}, env.Alert())
		})
	}
}

func TestScriptNotify_MalformedWhileIdle(t *testing.T) {
	env := NewEnvironment(newFakeSurface())

	err := env.HandleScriptNotify("JSAlert Hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedNotification)
	assert.Equal(t, Alert{}, env.Alert())
}

func TestScenario_AlertConsumedByHandler(t *testing.T) {
	env, surface := attached(t)

	surface.fireNotify("JSAlert:Hello")
	assert.True(t, env.IsBlocked())
	assert.Equal(t, "JSAlert", env.AlertType())
	assert.Equal(t, "Hello", env.AlertText())

	env.ClearAlertStatus()
	assert.False(t, env.IsBlocked())
	assert.Empty(t, env.AlertType())
	assert.Empty(t, env.AlertText())
}

func TestClearAlertStatus_Idempotent(t *testing.T) {
	env, surface := attached(t)
	surface.fireNotify("JSConfirm:Leave page?")

	env.ClearAlertStatus()
	once := env.Alert()
	env.ClearAlertStatus()
	assert.Equal(t, once, env.Alert())
	assert.Equal(t, Alert{}, env.Alert())

	// Clearing while idle is a no-op, and the next notify blocks again.
	surface.fireNotify("JSAlert:again")
	assert.True(t, env.IsBlocked())
}

func TestNavigating_ResetsMouseOnly(t *testing.T) {
	env, surface := attached(t)

	env.SetMouseState(map[string]any{
		MouseClientXYKey: map[string]any{"x": 50, "y": 60},
		MouseElementKey:  "e1",
	})
	env.SetKeyboardState(map[string]any{"shift": true})
	env.SetFocusedFrame("frame-17")
	env.SetImplicitWait(3 * time.Second)
	env.SetAsyncScriptTimeout(TimeoutOf(5 * time.Second))
	env.SetPageLoadTimeout(TimeoutOf(30 * time.Second))
	surface.fireNotify("JSAlert:pending")

	surface.fireNavigating()

	assert.Equal(t, map[string]any{
		MouseClientXYKey: map[string]any{"x": 0, "y": 0},
		MouseElementKey:  nil,
	}, env.MouseState())
	assert.Equal(t, map[string]any{"shift": true}, env.KeyboardState())
	assert.Equal(t, "frame-17", env.FocusedFrame())
	assert.Equal(t, 3*time.Second, env.ImplicitWait())
	assert.Equal(t, int64(5000), env.AsyncScriptTimeout().Milliseconds())
	assert.Equal(t, int64(30000), env.PageLoadTimeout().Milliseconds())
	assert.Equal(t, Alert{Blocked: true, Type: "JSAlert", Text: "pending"}, env.Alert())
}

func TestNavigating_ResetsArbitraryMouseState(t *testing.T) {
	env, surface := attached(t)

	env.SetMouseState(map[string]any{"button": 2, "extra": []any{1, 2}})
	surface.fireNavigating()
	assert.Equal(t, defaultMouseState(), env.MouseState())

	env.SetMouseState(nil)
	surface.fireNavigating()
	assert.Equal(t, defaultMouseState(), env.MouseState())
}

func TestCreateFrameObject(t *testing.T) {
	env := NewEnvironment(newFakeSurface())
	assert.Nil(t, env.CreateFrameObject())

	env.SetFocusedFrame("frame-17")
	frame := env.CreateFrameObject()
	assert.Equal(t, map[string]any{WindowObjectKey: "frame-17"}, frame)
	assert.Len(t, frame, 1)

	env.SetFocusedFrame("")
	assert.Nil(t, env.CreateFrameObject())
}

func TestStateMaps_AreCopied(t *testing.T) {
	env := NewEnvironment(newFakeSurface())

	in := map[string]any{
		MouseClientXYKey: map[string]any{"x": 1, "y": 2},
		MouseElementKey:  "e1",
	}
	env.SetMouseState(in)
	in[MouseElementKey] = "changed"
	in[MouseClientXYKey].(map[string]any)["x"] = 99

	out := env.MouseState()
	assert.Equal(t, "e1", out[MouseElementKey])
	assert.Equal(t, 1, out[MouseClientXYKey].(map[string]any)["x"])

	out[MouseElementKey] = "mutated"
	assert.Equal(t, "e1", env.MouseState()[MouseElementKey])

	keys := map[string]any{"pressed": []any{"a"}}
	env.SetKeyboardState(keys)
	keys["pressed"].([]any)[0] = "b"
	assert.Equal(t, []any{"a"}, env.KeyboardState()["pressed"])
}

func TestConcurrentAccess(t *testing.T) {
	env, surface := attached(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				surface.fireNotify(fmt.Sprintf("JSAlert:%d-%d", i, j))
				surface.fireNavigating()
			}
		}(i)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				env.SetMouseState(map[string]any{MouseClientXYKey: map[string]any{"x": i, "y": j}})
				env.SetFocusedFrame(fmt.Sprintf("frame-%d", j))
				env.SetImplicitWait(time.Duration(j) * time.Millisecond)
				_ = env.CreateFrameObject()
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				alert := env.Alert()
				if !alert.Blocked {
					assert.Empty(t, alert.Type)
					assert.Empty(t, alert.Text)
				}
				_ = env.MouseState()
				env.ClearAlertStatus()
			}
		}()
	}
	wg.Wait()
}
