package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/entrhq/forge-driver/pkg/commands"
	"github.com/entrhq/forge-driver/pkg/config"
	"github.com/entrhq/forge-driver/pkg/driver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubSurface struct{}

func (stubSurface) ClearCache(context.Context) error   { return nil }
func (stubSurface) OnScriptNotify(func(string)) func() { return func() {} }
func (stubSurface) OnNavigating(func()) func()         { return func() {} }

// pageStub answers findElement and getElementText scripts with fixed values.
type pageStub struct {
	visited []string
}

func (p *pageStub) Evaluate(_ context.Context, expression string) (any, error) {
	if strings.Contains(expression, "var frame = args[0], using = args[1]") {
		return map[string]any{"status": "ok", "value": "el-1"}, nil
	}
	return map[string]any{"status": "ok", "value": "Example Domain"}, nil
}

func (p *pageStub) Navigate(_ context.Context, url string) error {
	p.visited = append(p.visited, url)
	return nil
}

func TestLoadConfig_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driver.yaml")
	require.NoError(t, os.WriteFile(path, []byte("browser:\n  start_url: https://from-file.test/\n"), 0o600))

	cfg, err := loadConfig(&CLIConfig{
		ConfigFile: path,
		Engine:     "chromedp",
		RemoteURL:  "ws://127.0.0.1:9222/devtools/browser/x",
		Headed:     true,
		Verbosity:  "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, config.EngineChromedp, cfg.Browser.Engine)
	assert.Equal(t, "https://from-file.test/", cfg.Browser.StartURL)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "debug", cfg.Logging.Verbosity)

	_, err = loadConfig(&CLIConfig{Engine: "netscape"})
	assert.Error(t, err)
}

func TestBuildSequence(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Browser.StartURL = "https://example.com/"

	sequence, err := buildSequence(cfg, &CLIConfig{XPath: "//h1"})
	require.NoError(t, err)
	require.Len(t, sequence, 3)
	assert.Equal(t, "get", sequence[0].Name)
	assert.JSONEq(t, `{"url":"https://example.com/"}`, string(sequence[0].Params))
	assert.Equal(t, "findElement", sequence[1].Name)
	assert.JSONEq(t, `{"using":"xpath","value":"//h1"}`, string(sequence[1].Params))
	assert.Equal(t, "getElementText", sequence[2].Name)
	assert.Empty(t, sequence[2].Params)

	path := filepath.Join(t.TempDir(), "steps.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"name":"getWindowHandle"},{"name":"implicitlyWait","params":{"ms":10}}]`), 0o600))
	sequence, err = buildSequence(cfg, &CLIConfig{CommandsFile: path})
	require.NoError(t, err)
	require.Len(t, sequence, 2)
	assert.Equal(t, "implicitlyWait", sequence[1].Name)
}

func TestRunSequence(t *testing.T) {
	page := &pageStub{}
	env := driver.NewEnvironment(stubSurface{})
	registry, err := commands.NewDefaultRegistry(page, nil)
	require.NoError(t, err)
	dispatcher := commands.NewDispatcher(env, registry, nil)

	cfg := config.DefaultConfig()
	cfg.Browser.StartURL = "https://example.com/"
	sequence, err := buildSequence(cfg, &CLIConfig{XPath: "//h1"})
	require.NoError(t, err)
	sequence = append(sequence, Command{Name: "noSuchCommand"})

	var out bytes.Buffer
	failed := runSequence(context.Background(), dispatcher, sequence, &out)
	assert.Equal(t, 1, failed)
	assert.Equal(t, []string{"https://example.com/"}, page.visited)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 4)

	var textLine struct {
		Command  string            `json:"command"`
		Response commands.Response `json:"response"`
	}
	require.NoError(t, json.Unmarshal([]byte(lines[2]), &textLine))
	assert.Equal(t, "getElementText", textLine.Command)
	assert.Equal(t, commands.StatusSuccess, textLine.Response.Status)
	assert.Equal(t, "Example Domain", textLine.Response.Value)

	assert.Contains(t, lines[3], `"status":9`)
}

func TestNewEnvironment_Timeouts(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Timeouts.ImplicitWait = time.Second
	cfg.Timeouts.PageLoad = 30 * time.Second

	env := newEnvironment(cfg, stubSurface{}, nil)
	assert.Equal(t, time.Second, env.ImplicitWait())
	assert.Equal(t, int64(30000), env.PageLoadTimeout().Milliseconds())
	assert.False(t, env.AsyncScriptTimeout().IsSet())
}
