// Package main provides forge-driver, a command runner that drives an embedded browser
// surface through the automation environment. It loads a page, runs a scripted sequence of
// protocol commands against it and prints every response as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/forge-driver/pkg/commands"
	"github.com/entrhq/forge-driver/pkg/config"
	"github.com/entrhq/forge-driver/pkg/driver"
	"github.com/entrhq/forge-driver/pkg/logging"
	"github.com/entrhq/forge-driver/pkg/surface"
	"github.com/entrhq/forge-driver/pkg/surface/cdpsurface"
	"github.com/entrhq/forge-driver/pkg/surface/pwsurface"
)

const version = "0.1.0"

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigFile   string
	Engine       string
	URL          string
	XPath        string
	CommandsFile string
	RemoteURL    string
	Headed       bool
	Verbosity    string
	Timeout      time.Duration
	ShowVersion  bool
}

// Command is one entry of a commands file.
type Command struct {
	Name   string          `json:"name"`
	Params json.RawMessage `json:"params,omitempty"`
}

// browserSurface is what the runner needs from an engine.
type browserSurface interface {
	driver.Surface
	surface.ScriptRunner
}

func main() {
	cliConfig := parseFlags()

	if cliConfig.ShowVersion {
		fmt.Printf("forge-driver v%s\n", version)
		return
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nShutting down...")
		cancel()
	}()

	if err := run(ctx, cliConfig); err != nil {
		cancel()
		log.Printf("forge-driver failed: %v", err)
		os.Exit(1)
	}
	cancel()
}

// parseFlags parses command line flags
func parseFlags() *CLIConfig {
	cliConfig := &CLIConfig{}

	flag.StringVar(&cliConfig.ConfigFile, "config", "", "Path to configuration file (YAML)")
	flag.StringVar(&cliConfig.Engine, "engine", "", "Browser engine: playwright or chromedp (overrides config)")
	flag.StringVar(&cliConfig.URL, "url", "", "URL to load before running commands (overrides start_url)")
	flag.StringVar(&cliConfig.XPath, "xpath", "", "Find an element by XPath and print its text")
	flag.StringVar(&cliConfig.CommandsFile, "commands", "", "JSON file with a list of {\"name\", \"params\"} commands to run")
	flag.StringVar(&cliConfig.RemoteURL, "remote", "", "DevTools websocket URL of a running browser (chromedp only)")
	flag.BoolVar(&cliConfig.Headed, "headed", false, "Show the browser window")
	flag.StringVar(&cliConfig.Verbosity, "verbosity", "", "Logging verbosity: quiet, normal, verbose or debug")
	flag.DurationVar(&cliConfig.Timeout, "timeout", 2*time.Minute, "Overall run timeout")
	flag.BoolVar(&cliConfig.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "forge-driver - browser automation command runner\n\n")
		fmt.Fprintf(os.Stderr, "Usage: forge-driver [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Print the text of the first heading\n")
		fmt.Fprintf(os.Stderr, "  forge-driver -url https://example.com -xpath //h1\n\n")
		fmt.Fprintf(os.Stderr, "  # Run a command script against a remote Chrome\n")
		fmt.Fprintf(os.Stderr, "  forge-driver -engine chromedp -remote ws://127.0.0.1:9222/devtools/browser/<id> -commands steps.json\n\n")
	}

	flag.Parse()
	return cliConfig
}

func run(ctx context.Context, cliConfig *CLIConfig) error {
	cfg, err := loadConfig(cliConfig)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewLogger("driver")
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Close()
	logger.SetLevel(logging.LevelForVerbosity(cfg.Logging.Verbosity))

	if cliConfig.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cliConfig.Timeout)
		defer cancel()
	}

	sequence, err := buildSequence(cfg, cliConfig)
	if err != nil {
		return err
	}

	matcher, err := cfg.URLMatcher()
	if err != nil {
		return err
	}

	browser, closeBrowser, err := startSurface(ctx, cfg, logger.Named("surface"))
	if err != nil {
		return err
	}
	defer closeBrowser()

	env := newEnvironment(cfg, browser, logger.Named("env"))
	detach := env.Attach(ctx)
	defer detach()

	registry, err := commands.NewDefaultRegistry(browser, matcher)
	if err != nil {
		return fmt.Errorf("failed to register commands: %w", err)
	}
	dispatcher := commands.NewDispatcher(env, registry, logger.Named("commands"))

	logger.Infof("running %d commands (engine=%s, log=%s)", len(sequence), cfg.Browser.Engine, logger.LogPath())
	failed := runSequence(ctx, dispatcher, sequence, os.Stdout)

	alert := env.Alert()
	report(os.Stdout, "alertState", map[string]any{
		"blocked": alert.Blocked,
		"type":    alert.Type,
		"text":    alert.Text,
	})

	if failed > 0 {
		return fmt.Errorf("%d of %d commands failed", failed, len(sequence))
	}
	return nil
}

// loadConfig loads the configuration file and applies command-line overrides
func loadConfig(cliConfig *CLIConfig) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if cliConfig.ConfigFile != "" {
		loaded, err := config.Load(cliConfig.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if cliConfig.Engine != "" {
		cfg.Browser.Engine = config.Engine(cliConfig.Engine)
	}
	if cliConfig.RemoteURL != "" {
		cfg.Browser.RemoteURL = cliConfig.RemoteURL
	}
	if cliConfig.URL != "" {
		cfg.Browser.StartURL = cliConfig.URL
	}
	if cliConfig.Headed {
		cfg.Browser.Headless = false
	}
	if cliConfig.Verbosity != "" {
		cfg.Logging.Verbosity = cliConfig.Verbosity
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// startSurface launches the configured engine and returns it with its cleanup func.
func startSurface(ctx context.Context, cfg *config.Config, logger *logging.Logger) (browserSurface, func(), error) {
	switch cfg.Browser.Engine {
	case config.EngineChromedp:
		s, err := cdpsurface.Start(ctx, cdpsurface.Options{
			RemoteURL:   cfg.Browser.RemoteURL,
			Headless:    cfg.Browser.Headless,
			Width:       cfg.Browser.Width,
			Height:      cfg.Browser.Height,
			BindingName: cfg.Browser.BindingName,
			Logger:      logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start chromedp surface: %w", err)
		}
		return s, func() { _ = s.Close() }, nil

	default:
		manager := pwsurface.NewSessionManager()
		if err := manager.Initialize(); err != nil {
			return nil, nil, err
		}
		opts := pwsurface.SessionOptions{
			Headless:    cfg.Browser.Headless,
			BindingName: cfg.Browser.BindingName,
			Logger:      logger,
		}
		if cfg.Browser.Width > 0 && cfg.Browser.Height > 0 {
			opts.Viewport = &pwsurface.Viewport{Width: cfg.Browser.Width, Height: cfg.Browser.Height}
		}
		session, err := manager.StartSession("main", opts)
		if err != nil {
			_ = manager.Shutdown()
			return nil, nil, fmt.Errorf("failed to start playwright surface: %w", err)
		}
		return session, func() {
			if err := manager.Shutdown(); err != nil {
				logger.Warnf("shutting down playwright: %v", err)
			}
		}, nil
	}
}

// newEnvironment builds the environment with the configured initial timeouts.
func newEnvironment(cfg *config.Config, s driver.Surface, logger *logging.Logger) *driver.Environment {
	env := driver.NewEnvironment(s,
		driver.WithLogger(logger),
		driver.WithCacheClearTimeout(cfg.Browser.CacheClearTimeout),
	)
	env.SetImplicitWait(cfg.Timeouts.ImplicitWait)
	if cfg.Timeouts.AsyncScript > 0 {
		env.SetAsyncScriptTimeout(driver.TimeoutOf(cfg.Timeouts.AsyncScript))
	}
	if cfg.Timeouts.PageLoad > 0 {
		env.SetPageLoadTimeout(driver.TimeoutOf(cfg.Timeouts.PageLoad))
	}
	return env
}

// buildSequence returns the commands file contents, or a navigation followed by an optional
// XPath text lookup.
func buildSequence(cfg *config.Config, cliConfig *CLIConfig) ([]Command, error) {
	if cliConfig.CommandsFile != "" {
		data, err := os.ReadFile(cliConfig.CommandsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read commands file: %w", err)
		}
		var sequence []Command
		if err := json.Unmarshal(data, &sequence); err != nil {
			return nil, fmt.Errorf("failed to parse commands file: %w", err)
		}
		return sequence, nil
	}

	sequence := []Command{
		{Name: "get", Params: mustJSON(commands.GetInput{URL: cfg.Browser.StartURL})},
	}
	if cliConfig.XPath != "" {
		sequence = append(sequence, Command{
			Name:   "findElement",
			Params: mustJSON(commands.FindElementInput{Using: commands.ByXPath, Value: cliConfig.XPath}),
		})
		// The element id is filled in from the findElement response
		sequence = append(sequence, Command{Name: "getElementText"})
	}
	return sequence, nil
}

// runSequence executes commands in order and returns how many failed. A getElementText
// without params targets the element found by the preceding findElement.
func runSequence(ctx context.Context, dispatcher *commands.Dispatcher, sequence []Command, out io.Writer) int {
	failed := 0
	lastElement := ""
	for _, cmd := range sequence {
		if ctx.Err() != nil {
			failed++
			report(out, cmd.Name, commands.ErrorResponse(ctx.Err()))
			continue
		}

		params := cmd.Params
		if len(params) == 0 && cmd.Name == "getElementText" && lastElement != "" {
			params = mustJSON(commands.ElementInput{ID: lastElement})
		}

		resp := dispatcher.Execute(ctx, cmd.Name, params)
		if resp.Status != commands.StatusSuccess {
			failed++
		}
		if ref, ok := resp.Value.(map[string]any); ok && cmd.Name == "findElement" {
			lastElement, _ = ref[driver.ElementObjectKey].(string)
		}
		report(out, cmd.Name, resp)
	}
	return failed
}

func report(out io.Writer, name string, value any) {
	data, err := json.Marshal(map[string]any{"command": name, "response": value})
	if err != nil {
		fmt.Fprintf(out, "{\"command\": %q, \"error\": %q}\n", name, err.Error())
		return
	}
	fmt.Fprintln(out, string(data))
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("encoding %T: %v", v, err))
	}
	return data
}
