package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tmccay/mstash/internal/acquire"
	"github.com/tmccay/mstash/internal/config"
	"github.com/tmccay/mstash/internal/logger"
	"github.com/tmccay/mstash/internal/mcp"
	"github.com/tmccay/mstash/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"save": true, "list": true, "users": true, "delete": true,
	"wipe": true, "export": true, "import": true,
	"config": true, "warm": true, "serve": true,
	"help": true,
}

// isCLIMode reports whether the invocation is a CLI run rather than the
// default MCP server mode.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
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
              _            _
   _ __  ___| |_ __ _ ___| |_
  | '  \(_-<  _/ _` + "`" + ` (_-<  _ \
  |_|_|_/__/\__\__,_/__/_|_|_|

  Personal offline media stash

  Usage: mstash <command> [options]
         mstash --help

  MCP server mode requires piped input.`)
}

func main() {
	// No args on an interactive terminal: banner, not an MCP server.
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before opening the store (nothing needed)
	if isHelpOrVersion() {
		cliApp := newCLIApp(nil)
		if err := cliApp.Run(os.Args); err != nil {
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

	baseDir := filepath.Join(homeDir, ".mstash")

	st, err := store.Open(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	cfg, err := config.Load(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}
	st.ConfigurePool(cfg)

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	httpClient := &http.Client{Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second}
	pipeline := acquire.New(st, acquire.NewClient(cfg.WorkerURL, httpClient, log), log)

	a := &app{
		store:    st,
		pipeline: pipeline,
		cfg:      cfg,
		log:      log,
		baseDir:  baseDir,
		version:  Version,
	}

	if isCLIMode() {
		cliApp := newCLIApp(a)
		if err := cliApp.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// An unknown argument on a terminal is a typo, not an MCP client.
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'mstash --help' for usage.\n")
		os.Exit(1)
	}
	h := mcp.NewHandlers(st, pipeline, cfg, baseDir)
	if err := mcp.Run(h, cfg, Version); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
