// Package main provides the Nova CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	nova "github.com/everydev1618/gonova"
	"github.com/everydev1618/gonova/internal/console"
	"github.com/everydev1618/gonova/llm"
)

var (
	version = "dev"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "run":
		runCmd(args)
	case "components":
		componentsCmd(args)
	case "validate":
		validateCmd(args)
	case "version":
		fmt.Printf("nova %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`Nova - Autonomous Agent Runtime

Usage:
  nova <command> [options]

Commands:
  run         Run an autonomous agent session
  components  List discovered components
  validate    Validate a component manifest
  version     Print version information
  help        Show this help message

Examples:
  nova run --goal "Summarize today's weather in Berlin"
  nova run --backend gemini --watch
  nova components
  nova validate ~/.nova/components/Weather.yaml

Run 'nova <command> --help' for more information on a command.`)
}

// runCmd starts the autonomous loop against a backend.
func runCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to a YAML config file")
	componentsDir := fs.String("components", "", "Component manifest directory")
	backend := fs.String("backend", "", "Backend: anthropic or gemini")
	model := fs.String("model", "", "Model name override")
	goal := fs.String("goal", "", "Initial goal handed to the agent")
	watch := fs.Bool("watch", false, "Watch the component directory for changes")
	verbose := fs.Bool("verbose", false, "Enable debug logging")

	fs.Usage = func() {
		fmt.Println(`Usage: nova run [options]

Run an autonomous agent session. Interrupts are read from stdin, one per
line; an empty line lets the agent continue on its own, and "exit" or
"quit" ends the session.

Options:`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := nova.LoadConfig(*configPath)
	if err != nil {
		fatalf("Error loading config: %v", err)
	}
	if *componentsDir != "" {
		cfg.ComponentsDir = *componentsDir
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *model != "" {
		cfg.Model = *model
	}
	if *watch {
		cfg.Watch = true
	}

	if err := nova.EnsureHome(); err != nil {
		fatalf("Error preparing home directory: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backendLLM, err := buildBackend(ctx, cfg)
	if err != nil {
		fatalf("%v", err)
	}

	registry := nova.NewRegistry(cfg.ComponentsDir,
		nova.WithEnv(nova.Env{ComponentsDir: cfg.ComponentsDir, DataDir: nova.DataDir()}),
		nova.WithNatives(nova.Builtins()...),
	)
	if cfg.Watch {
		if err := registry.Watch(ctx); err != nil {
			slog.Warn("component watcher unavailable, refreshing every cycle", "error", err)
		}
	}

	limiter := nova.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window())

	store, err := nova.NewTranscriptStore(cfg.TranscriptDB)
	if err != nil {
		fatalf("Error opening transcript store: %v", err)
	}
	defer store.Close()

	session, err := store.BeginSession(*goal)
	if err != nil {
		fatalf("Error starting session: %v", err)
	}

	printer := console.New(os.Stdout)
	orch := nova.NewOrchestrator(backendLLM, registry, limiter,
		nova.WithSystemPrompt(cfg.SystemPrompt),
		nova.WithTranscript(store, session),
		nova.WithEvents(func(e nova.Event) {
			switch e.Type {
			case nova.EventTextDelta:
				printer.Thought(e.Delta)
			case nova.EventToolStart:
				printer.Action(e.Tool, e.Args)
			case nova.EventToolEnd:
				printer.Result(e.Tool, e.Result, e.DurationMs)
			case nova.EventError:
				printer.Errorf("✘ %s", e.Err)
			case nova.EventStepDone:
				printer.Prompt()
			}
		}),
	)

	if *goal != "" {
		orch.AppendUserTurn(*goal)
		printer.Systemf("Goal: %s", *goal)
	}

	printer.Systemf("Session %s started (backend %s, components %s)",
		session[:8], cfg.Backend, cfg.ComponentsDir)
	printer.Prompt()

	controller := nova.NewController(registry, orch, nova.NewReaderInterrupts(os.Stdin),
		nova.WithContinuation(cfg.Continuation))

	err = controller.Run(ctx)
	registry.UnloadAll()

	usage := orch.Usage()
	printer.Systemf("Session ended after %d cycles (%d in / %d out tokens)",
		controller.Cycles(), usage.InputTokens, usage.OutputTokens)

	if err != nil && ctx.Err() == nil {
		fatalf("Session error: %v", err)
	}
}

// buildBackend constructs and credential-checks the configured backend.
// A bad or missing key is fatal at startup, before any loop cycle runs.
func buildBackend(ctx context.Context, cfg nova.Config) (llm.LLM, error) {
	check, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch strings.ToLower(cfg.Backend) {
	case "anthropic", "":
		opts := []llm.AnthropicOption{llm.WithAPIKey(os.Getenv("ANTHROPIC_API_KEY"))}
		if cfg.Model != "" {
			opts = append(opts, llm.WithModel(cfg.Model))
		}
		client := llm.NewAnthropic(opts...)
		if err := client.ValidateKey(check); err != nil {
			return nil, fmt.Errorf("Anthropic credential check failed (set ANTHROPIC_API_KEY): %w", err)
		}
		return client, nil

	case "gemini":
		opts := []llm.GeminiOption{llm.WithGeminiAPIKey(os.Getenv("GEMINI_API_KEY"))}
		if cfg.Model != "" {
			opts = append(opts, llm.WithGeminiModel(cfg.Model))
		}
		client := llm.NewGemini(opts...)
		if err := client.ValidateKey(check); err != nil {
			return nil, fmt.Errorf("Gemini credential check failed (set GEMINI_API_KEY): %w", err)
		}
		return client, nil

	default:
		return nil, fmt.Errorf("unknown backend %q (want anthropic or gemini)", cfg.Backend)
	}
}

// componentsCmd lists every discovered component.
func componentsCmd(args []string) {
	fs := flag.NewFlagSet("components", flag.ExitOnError)
	componentsDir := fs.String("components", nova.DefaultComponentsDir(), "Component manifest directory")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	registry := nova.NewRegistry(*componentsDir, nova.WithNatives(nova.Builtins()...))
	if err := registry.Discover(); err != nil {
		fatalf("Error discovering components: %v", err)
	}

	descs := registry.Descriptors()
	if len(descs) == 0 {
		fmt.Println("No components discovered.")
		return
	}

	for _, d := range descs {
		fmt.Printf("%-20s %-8s %s\n", d.Name, sourceLabel(d.Source), d.Description)
		for _, p := range d.Params {
			req := ""
			if p.Required || p.Default == nil {
				req = " (required)"
			}
			fmt.Printf("    %-16s %-8s %s%s\n", p.Name, p.Type, p.Description, req)
		}
	}
}

func sourceLabel(source string) string {
	if source == nova.SourceNative {
		return "native"
	}
	return filepath.Base(source)
}

// validateCmd checks a single manifest against the component contract.
func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fatalf("Error: no manifest file specified")
	}

	path := fs.Arg(0)
	if _, err := nova.ParseManifest(path); err != nil {
		fatalf("Invalid: %v", err)
	}
	fmt.Printf("Valid: %s\n", path)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
