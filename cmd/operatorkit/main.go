// Command operatorkit wires the authorization core together for local
// operation and inspection: a doctor self-check, audit trail
// verification/export, and an end-to-end demo execution against the
// log-only reference adapters.
package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/Unclefole/operatorkit/pkg/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches subcommands; split from main for tests.
func Run(args []string, stdout, stderr io.Writer) int {
	cfg := config.Load()
	if path := os.Getenv("OPERATORKIT_PROFILE"); path != "" {
		profile, err := config.LoadProfile(path)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		profile.Apply(cfg)
	}
	logger := newLogger(cfg.LogLevel, stderr)

	if len(args) < 2 {
		usage(stderr)
		return 2
	}

	switch args[1] {
	case "doctor":
		return runDoctor(cfg, logger, stdout, stderr)
	case "audit":
		if len(args) < 3 {
			fmt.Fprintln(stderr, "Usage: operatorkit audit <verify|export|purge>")
			return 2
		}
		return runAudit(cfg, logger, args[2], args[3:], stdout, stderr)
	case "demo":
		return runDemo(cfg, logger, args[2:], stdout, stderr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	default:
		fmt.Fprintf(stderr, "unknown command %q\n", args[1])
		usage(stderr)
		return 2
	}
}

func usage(w io.Writer) {
	fmt.Fprint(w, `operatorkit - human-in-the-loop authorization core

Usage:
  operatorkit doctor                 check catalog, config and storage
  operatorkit audit verify           verify audit chain integrity
  operatorkit audit export           print the audit trail as JSON
  operatorkit audit purge --yes      wipe the audit trail (explicit)
  operatorkit demo [flags]           run one approved execution end to end
`)
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	switch strings.ToUpper(level) {
	case "DEBUG":
		lvl = slog.LevelDebug
	case "WARN":
		lvl = slog.LevelWarn
	case "ERROR":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}
