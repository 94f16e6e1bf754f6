package main

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/burrow/internal/config"
	"github.com/hpungsan/burrow/internal/errors"
	"github.com/hpungsan/burrow/internal/ops"
	"github.com/hpungsan/burrow/internal/sandbox"
	"github.com/hpungsan/burrow/internal/syncer"
	"github.com/hpungsan/burrow/internal/web"
)

// maxStdinBytes caps piped file content so a runaway pipe cannot balloon the
// store in one command.
const maxStdinBytes = 10 << 20

// newCLIApp creates the CLI application with all commands. mgr, exec, and
// sched are nil when no sandbox provider is configured; the store-backed
// commands work regardless.
func newCLIApp(db *sql.DB, cfg *config.Config, mgr *sandbox.Manager, exec *sandbox.Executor, sched *syncer.Scheduler) *cli.App {
	app := &cli.App{
		Name:    "burrow",
		Usage:   "Backup-first workspace cache for sandboxed agents",
		Version: Version,
		Commands: []*cli.Command{
			writeCmd(db, mgr),
			readCmd(db),
			editCmd(db, mgr),
			lsCmd(db),
			globCmd(db),
			searchCmd(db),
			rmCmd(db),
			clearCmd(db),
			statusCmd(db, mgr),
			execCmd(exec, sched),
			syncCmd(sched),
			exportCmd(db, cfg),
			importCmd(db, cfg),
			webCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// agentFlag is shared by every workspace-scoped command.
func agentFlag() *cli.StringFlag {
	return &cli.StringFlag{Name: "agent", Aliases: []string{"a"}, Value: "default", Usage: "Agent workspace name"}
}

// writeCmd creates the write command.
func writeCmd(db *sql.DB, mgr *sandbox.Manager) *cli.Command {
	return &cli.Command{
		Name:  "write",
		Usage: "Write a file to the workspace (reads content from stdin)",
		Flags: []cli.Flag{
			agentFlag(),
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Absolute file path"},
		},
		Action: func(c *cli.Context) error {
			if !stdinHasData() {
				return outputError(errors.NewInvalidRequest("content must be piped via stdin"))
			}

			content, err := readStdin(maxStdinBytes)
			if err != nil {
				return outputError(errors.NewInvalidRequest(err.Error()))
			}

			output, err := ops.Write(context.Background(), db, mgr, ops.WriteInput{
				Agent:   c.String("agent"),
				Path:    c.String("path"),
				Content: content,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// readCmd creates the read command.
func readCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "read",
		Usage: "Read a file as a numbered line window",
		Flags: []cli.Flag{
			agentFlag(),
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Absolute file path"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "First line of the window (0-based)"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 0, Usage: "Maximum lines to return"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Read(db, ops.ReadInput{
				Agent:  c.String("agent"),
				Path:   c.String("path"),
				Offset: c.Int("offset"),
				Limit:  c.Int("limit"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// editCmd creates the edit command.
func editCmd(db *sql.DB, mgr *sandbox.Manager) *cli.Command {
	return &cli.Command{
		Name:  "edit",
		Usage: "Replace a literal string in a stored file",
		Flags: []cli.Flag{
			agentFlag(),
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Absolute file path"},
			&cli.StringFlag{Name: "old", Required: true, Usage: "String to replace"},
			&cli.StringFlag{Name: "new", Usage: "Replacement string"},
			&cli.BoolFlag{Name: "all", Usage: "Replace every occurrence, not just the first"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Edit(context.Background(), db, mgr, ops.EditInput{
				Agent:      c.String("agent"),
				Path:       c.String("path"),
				Old:        c.String("old"),
				New:        c.String("new"),
				ReplaceAll: c.Bool("all"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// lsCmd creates the ls command.
func lsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "List the direct children of a workspace directory",
		Flags: []cli.Flag{
			agentFlag(),
			&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Value: "/", Usage: "Directory to list"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(db, ops.ListInput{
				Agent: c.String("agent"),
				Dir:   c.String("dir"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// globCmd creates the glob command.
func globCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "glob",
		Usage:     "Find stored files matching a glob pattern",
		ArgsUsage: "<pattern>",
		Flags: []cli.Flag{
			agentFlag(),
			&cli.StringFlag{Name: "base", Aliases: []string{"b"}, Value: "/", Usage: "Base directory for matching"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("pattern argument is required"))
			}

			output, err := ops.Glob(db, ops.GlobInput{
				Agent:    c.String("agent"),
				Pattern:  c.Args().First(),
				BasePath: c.String("base"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// searchCmd creates the search command.
func searchCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Search stored file contents for a pattern",
		ArgsUsage: "<pattern>",
		Flags: []cli.Flag{
			agentFlag(),
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Value: "/", Usage: "Directory scope"},
			&cli.StringFlag{Name: "glob", Aliases: []string{"g"}, Usage: "Filename filter pattern"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("pattern argument is required"))
			}

			output, err := ops.Search(db, ops.SearchInput{
				Agent:   c.String("agent"),
				Pattern: c.Args().First(),
				Path:    c.String("path"),
				Glob:    c.String("glob"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// rmCmd creates the rm command.
func rmCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "rm",
		Usage: "Delete a file from the workspace",
		Flags: []cli.Flag{
			agentFlag(),
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Absolute file path"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Delete(db, ops.DeleteInput{
				Agent: c.String("agent"),
				Path:  c.String("path"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// clearCmd creates the clear command.
func clearCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "clear",
		Usage: "Remove every stored file for an agent",
		Flags: []cli.Flag{
			agentFlag(),
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Clear(db, ops.ClearInput{
				Agent: c.String("agent"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// statusCmd creates the status command.
func statusCmd(db *sql.DB, mgr *sandbox.Manager) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the workspace snapshot and live sandbox state",
		Flags: []cli.Flag{
			agentFlag(),
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Status(db, mgr, ops.StatusInput{
				Agent: c.String("agent"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// execCmd creates the exec command.
func execCmd(exec *sandbox.Executor, sched *syncer.Scheduler) *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "Run a shell command in the agent's sandbox",
		ArgsUsage: "<command>",
		Flags: []cli.Flag{
			agentFlag(),
			&cli.StringFlag{Name: "cwd", Usage: "Working directory inside the sandbox"},
			&cli.IntFlag{Name: "timeout", Aliases: []string{"t"}, Usage: "Timeout in seconds"},
		},
		Action: func(c *cli.Context) error {
			if exec == nil {
				return outputError(errors.NewSandboxUnavailable("no sandbox provider configured"))
			}
			if c.NArg() < 1 {
				return outputError(errors.NewInvalidRequest("command argument is required"))
			}

			agentNorm, err := ops.ValidateAgent(c.String("agent"))
			if err != nil {
				return outputError(err)
			}

			command := strings.Join(c.Args().Slice(), " ")
			ctx := context.Background()

			output, err := exec.Execute(ctx, agentNorm, c.String("agent"), command,
				c.String("cwd"), time.Duration(c.Int("timeout"))*time.Second)
			if err != nil {
				return outputError(err)
			}

			// The process exits right after, so a debounced notification
			// would never fire. Capture synchronously instead; the command
			// result stands even if the capture fails.
			if sched != nil {
				_, _ = sched.Sync(ctx, agentNorm)
			}

			return outputJSON(output)
		},
	}
}

// syncCmd creates the sync command.
func syncCmd(sched *syncer.Scheduler) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Capture the live sandbox state into the store now",
		Flags: []cli.Flag{
			agentFlag(),
		},
		Action: func(c *cli.Context) error {
			if sched == nil {
				return outputError(errors.NewSandboxUnavailable("no sandbox provider configured"))
			}

			agentNorm, err := ops.ValidateAgent(c.String("agent"))
			if err != nil {
				return outputError(err)
			}

			output, err := sched.Sync(context.Background(), agentNorm)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export workspace files to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.burrow/exports/<agent>-<timestamp>.jsonl)"},
			&cli.StringFlag{Name: "agent", Aliases: []string{"a"}, Usage: "Filter by agent"},
		},
		Action: func(c *cli.Context) error {
			input := ops.ExportInput{
				Path: c.String("path"),
			}
			if agent := c.String("agent"); agent != "" {
				input.Agent = &agent
			}

			output, err := ops.Export(context.Background(), db, cfg, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import workspace files from a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|replace"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(db, cfg, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// webCmd creates the web command.
func webCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Serve the read-only workspace browser",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind to"},
			&cli.IntFlag{Name: "port", Value: 8787, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv); err != nil {
				return outputError(err)
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var burrowErr *errors.BurrowError
	if stderrors.As(err, &burrowErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", burrowErr.Code, burrowErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads content from stdin, erroring once it exceeds limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin content exceeds %d bytes", limit)
	}
	return strings.TrimRight(string(data), "\n"), nil
}
