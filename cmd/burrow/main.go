package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hpungsan/burrow/internal/config"
	"github.com/hpungsan/burrow/internal/db"
	"github.com/hpungsan/burrow/internal/mcp"
	"github.com/hpungsan/burrow/internal/sandbox"
	"github.com/hpungsan/burrow/internal/syncer"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"write": true, "read": true, "edit": true,
	"ls": true, "glob": true, "search": true, "rm": true,
	"clear": true, "status": true,
	"exec": true, "sync": true,
	"export": true, "import": true,
	"web":  true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	// Known subcommand → CLI
	if cliCommands[arg] {
		return true
	}
	// --help or --version → CLI
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false // Default → MCP server
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   __
  / /  __ _____________ _    __
 / _ \/ // / __/ __/ _ \ |/|/ /
/_.__/\_,_/_/ /_/  \___/__,__/

  Backup-first workspace cache for sandboxed agents

  Usage: burrow <command> [options]
         burrow --help

  MCP server mode requires piped input.`)
}

// buildSandboxStack constructs the provider-backed runtime when a sandbox
// provider is configured. All three are nil when cfg.SandboxURL is empty;
// store-backed operations work either way.
func buildSandboxStack(database *sql.DB, cfg *config.Config) (*sandbox.Manager, *sandbox.Executor, *syncer.Scheduler, error) {
	if cfg.SandboxURL == "" {
		return nil, nil, nil, nil
	}

	provider, err := sandbox.NewHTTPProvider(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	mgr := sandbox.NewManager(database, provider, cfg.RestoreConcurrency)
	exec := sandbox.NewExecutor(mgr, time.Duration(cfg.CommandTimeoutSecs)*time.Second, cfg.MaxOutputBytes)
	sched := syncer.NewScheduler(database, mgr, cfg.RestoreConcurrency,
		time.Duration(cfg.SyncDebounceMs)*time.Millisecond,
		time.Duration(cfg.SyncIntervalSecs)*time.Second)

	return mgr, exec, sched, nil
}

// warnUnknownDisabled reports config entries that name tools or types that do
// not exist. Misspelled entries silently disabling nothing is worse than noise
// on stderr.
func warnUnknownDisabled(cfg *config.Config) {
	for _, name := range mcp.ValidateDisabledTools(cfg.DisabledTools) {
		fmt.Fprintf(os.Stderr, "warning: unknown tool in disabled_tools: %q\n", name)
	}
	for _, name := range mcp.ValidateDisabledTypes(cfg.DisabledTypes) {
		fmt.Fprintf(os.Stderr, "warning: unknown type in disabled_types: %q\n", name)
	}
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil, nil, nil, nil, nil)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}

	baseDir := filepath.Join(homeDir, ".burrow")

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	// Global config plus the nearest repo-local .burrow/config.json.
	startDir, err := os.Getwd()
	if err != nil {
		startDir = homeDir
	}
	cfg, err := config.LoadWithRepo(baseDir, startDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	db.ConfigurePool(database, cfg)
	warnUnknownDisabled(cfg)

	mgr, exec, sched, err := buildSandboxStack(database, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to configure sandbox provider: %v\n", err)
		os.Exit(1)
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(database, cfg, mgr, exec, sched)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'burrow --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default). The scheduler's debounce and interval loops
	// only matter for a long-lived process, so they start here and not in
	// CLI mode.
	if sched != nil {
		sched.Start(context.Background())
		defer sched.Stop()
	}
	if err := mcp.Run(database, cfg, mgr, exec, sched, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
