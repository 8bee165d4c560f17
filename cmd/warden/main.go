package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"github.com/odvcencio/warden/pkg/config"
	"github.com/odvcencio/warden/pkg/logging"
	"github.com/odvcencio/warden/pkg/model"
	"github.com/odvcencio/warden/pkg/orchestrator"
	"github.com/odvcencio/warden/pkg/paths"
	"github.com/odvcencio/warden/pkg/storage"
	"github.com/odvcencio/warden/pkg/structure"
	"github.com/odvcencio/warden/pkg/telemetry"
	"github.com/odvcencio/warden/pkg/tool"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

var (
	configPath string
	rootDir    string
	modeFlag   string
	quietMode  bool
)

// Settings key for the per-project guardrail mode override.
const guardrailModeSetting = "guardrail.mode"

func main() {
	flag.StringVar(&configPath, "config", "", "path to an explicit config file")
	flag.StringVar(&rootDir, "root", ".", "codebase root the agent operates on")
	flag.StringVar(&modeFlag, "mode", "", "override guardrail mode (hard|soft)")
	flag.BoolVar(&quietMode, "quiet", false, "suppress progress output")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "version":
		fmt.Printf("warden %s (commit %s, built %s)\n", version, commit, buildDate)
	case "config":
		os.Exit(runConfig(args[1:]))
	case "audit":
		os.Exit(runAudit(args[1:]))
	case "validate":
		os.Exit(runValidate(args[1:]))
	case "run":
		os.Exit(runWorkflow(args[1:]))
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n\n", args[0])
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: warden [flags] <command>

Commands:
  run "<objective>"          execute a guarded code-modification workflow
  validate <plan.json>       score a feature plan's structure without running
  audit [run-id]             list recent runs, or the scope denials of one run
  config check               validate the effective configuration
  config set-mode <mode>     persist a per-project guardrail mode override
  version                    print version information

Flags:
`)
	flag.PrintDefaults()
}

func loadConfig() (*config.Config, error) {
	if configPath != "" {
		return config.LoadFromPath(configPath)
	}
	return config.Load()
}

func runConfig(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: warden config check | warden config set-mode <hard|soft>")
		return 2
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	switch args[0] {
	case "check":
		fmt.Printf("Configuration OK\n")
		fmt.Printf("  synthesis model: %s\n", cfg.Models.Synthesis)
		fmt.Printf("  analysis model:  %s\n", cfg.Models.Analysis)
		fmt.Printf("  guardrail mode:  %s\n", cfg.Guardrail.Mode)
		fmt.Printf("  max turns:       %d\n", cfg.Workflow.MaxTurns)
		fmt.Printf("  phase timeout:   %s\n", cfg.Workflow.PhaseTimeout)
		return 0
	case "set-mode":
		if len(args) < 2 || (args[1] != "hard" && args[1] != "soft") {
			fmt.Fprintln(os.Stderr, "Usage: warden config set-mode <hard|soft>")
			return 2
		}
		store, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening run store: %v\n", err)
			return 1
		}
		defer store.Close()
		if err := store.SetSetting(guardrailModeSetting, args[1]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		fmt.Printf("Guardrail mode override set to %s\n", args[1])
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown config subcommand %q\n", args[0])
		return 2
	}
}

// runValidate scores a feature plan from a JSON file without running the
// workflow, using the same refinement loop the orchestrator runs.
func runValidate(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: warden validate <plan.json>")
		return 2
	}
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 2
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	var plan structure.FeaturePlan
	if err := json.Unmarshal(data, &plan); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing plan: %v\n", err)
		return 1
	}
	if plan.Root == "" {
		plan.Root = rootDir
	}

	refiner := structure.NewRefiner(cfg.Structure.MaxRounds)
	refiner.CreateDirs = cfg.Structure.CreateDirs
	outcome := refiner.Refine(&plan, structure.FrameworkProfile{})

	fmt.Printf("Score: %d (%s after %d refinement round(s))\n",
		outcome.Assessment.Score, outcome.Decision, outcome.Assessment.Round)
	for _, v := range outcome.Assessment.Violations {
		fmt.Printf("  [%s] %s: %s\n", v.Severity, v.Location, v.Message)
	}
	if outcome.Decision == structure.DecisionNeedsReview {
		return 1
	}
	return 0
}

func openStore(cfg *config.Config) (*storage.Store, error) {
	dbPath := cfg.Storage.DBPath
	if dbPath == "" {
		dbPath = filepath.Join(paths.WardenStateDir(), "warden.db")
	}
	return storage.New(dbPath)
}

func runAudit(args []string) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 2
	}
	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening run store: %v\n", err)
		return 1
	}
	defer store.Close()

	if len(args) == 0 {
		runs, err := store.ListRuns(20)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		if len(runs) == 0 {
			fmt.Println("No runs recorded.")
			return 0
		}
		for _, run := range runs {
			fmt.Printf("%s  %-10s  score=%-3d  applied=%d skipped=%d  %s\n",
				run.ID, run.Phase, run.StructureScore, run.PatchesApplied, run.PatchesSkipped, run.Objective)
		}
		return 0
	}

	runID := args[0]
	run, err := store.GetRun(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Printf("Run %s\n", run.ID)
	fmt.Printf("  objective: %s\n", run.Objective)
	fmt.Printf("  phase:     %s\n", run.Phase)
	fmt.Printf("  mode:      %s\n", run.GuardrailMode)
	fmt.Printf("  patches:   %d applied, %d skipped\n", run.PatchesApplied, run.PatchesSkipped)

	denials, err := store.ListScopeDenials(runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if len(denials) == 0 {
		fmt.Println("  no scope denials")
		return 0
	}
	fmt.Printf("  scope denials:\n")
	for _, d := range denials {
		enforcement := "blocked"
		if d.Soft {
			enforcement = "soft"
		}
		fmt.Printf("    [%s/%s] %s", d.Stage, enforcement, d.Path)
		if d.Tool != "" {
			fmt.Printf(" (tool %s)", d.Tool)
		}
		fmt.Println()
	}
	return 0
}

func runWorkflow(args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Usage: warden run \"<objective>\"")
		return 2
	}
	objective := args[0]

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		return 2
	}
	if modeFlag != "" {
		cfg.Guardrail.Mode = modeFlag
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 2
		}
	}

	apiKey := os.Getenv("OPENROUTER_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "Error: set OPENROUTER_API_KEY or OPENAI_API_KEY.")
		return 2
	}
	client := model.NewClient(apiKey, os.Getenv("WARDEN_API_BASE_URL"))

	root, err := filepath.Abs(rootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	store, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing storage: %v\n", err)
		return 1
	}
	defer store.Close()

	// Persisted per-project override; the -mode flag wins when given.
	if modeFlag == "" {
		if settings, err := store.GetSettings([]string{guardrailModeSetting}); err == nil {
			if mode, ok := settings[guardrailModeSetting]; ok && mode != "" {
				cfg.Guardrail.Mode = mode
			}
		}
	}

	runID := uuid.NewString()
	logger, err := logging.NewLogger(paths.WardenLogsBaseDirForWorkdir(root), runID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
		return 1
	}
	defer logger.Close()
	if cfg.Logging.Level != "" {
		logger.SetMinLevel(logging.Level(cfg.Logging.Level))
	}

	hub := telemetry.NewHub()
	defer hub.Close()
	if !quietMode {
		go printProgress(hub)
	}

	if os.Getenv("WARDEN_TRACE") != "" {
		tp, err := telemetry.NewTracerProvider("warden")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: tracing disabled: %v\n", err)
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	controller := orchestrator.NewController(cfg, client, tool.NewRegistry(), objective, root,
		orchestrator.WithRunID(runID),
		orchestrator.WithStore(store),
		orchestrator.WithLogger(logger),
		orchestrator.WithTelemetry(hub),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	state, err := controller.Run(ctx)
	if err != nil {
		if errors.Is(err, orchestrator.ErrSynthesisBlocked) {
			fmt.Fprintf(os.Stderr, "Run %s blocked: %v\n", runID, err)
			fmt.Fprintf(os.Stderr, "Inspect the denial audit with: warden audit %s\n", runID)
			return 3
		}
		fmt.Fprintf(os.Stderr, "Run %s failed: %v\n", runID, err)
		return 1
	}

	fmt.Printf("Run %s complete\n", runID)
	fmt.Printf("  patches: %d extracted, %d skipped\n", len(state.Patches), state.SkippedCount)
	if state.Execution != nil {
		fmt.Printf("  applied: %d, failed: %d\n", state.Execution.Applied, state.Execution.Failed)
	}
	for _, warning := range state.Warnings {
		fmt.Printf("  warning: %s\n", warning)
	}
	for _, degraded := range state.Degraded {
		fmt.Printf("  degraded: %s\n", degraded)
	}
	return 0
}

// printProgress mirrors workflow telemetry to stdout so long runs show
// forward motion.
func printProgress(hub *telemetry.Hub) {
	events, unsubscribe := hub.Subscribe()
	defer unsubscribe()
	for event := range events {
		switch event.Type {
		case telemetry.EventPhaseStarted:
			fmt.Printf("→ %s\n", event.Phase)
		case telemetry.EventPhaseDegraded:
			fmt.Printf("  %s degraded\n", event.Phase)
		case telemetry.EventScopeDenied:
			fmt.Printf("  scope denial: %v\n", event.Data["path"])
		case telemetry.EventPatchApplied:
			fmt.Printf("  applied %v\n", event.Data["path"])
		case telemetry.EventWorkflowCompleted:
			fmt.Println("✓ workflow complete")
		case telemetry.EventWorkflowFailed:
			fmt.Println("✗ workflow failed")
		}
	}
}
