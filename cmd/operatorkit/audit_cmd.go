package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"

	"github.com/Unclefole/operatorkit/pkg/audit"
	"github.com/Unclefole/operatorkit/pkg/config"
	"github.com/Unclefole/operatorkit/pkg/store"
)

func openTrail(cfg *config.Config, logger *slog.Logger) (*audit.Trail, func(), error) {
	db, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() { _ = db.Close() }

	sink, err := store.NewSQLiteAuditSink(db)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	trail, err := audit.NewTrail(sink, cfg.AuditMaxEvents, logger)
	if err != nil {
		closeDB()
		return nil, nil, err
	}
	return trail, closeDB, nil
}

func runAudit(cfg *config.Config, logger *slog.Logger, sub string, args []string, stdout, stderr io.Writer) int {
	trail, closeDB, err := openTrail(cfg, logger)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}
	defer closeDB()

	switch sub {
	case "verify":
		if err := trail.VerifyChain(); err != nil {
			fmt.Fprintln(stderr, "audit chain FAILED:", err)
			return 1
		}
		fmt.Fprintf(stdout, "audit chain OK (%d events)\n", trail.Len())
		return 0

	case "export":
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(trail.Events()); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		return 0

	case "purge":
		fs := flag.NewFlagSet("audit purge", flag.ContinueOnError)
		fs.SetOutput(stderr)
		confirmed := fs.Bool("yes", false, "confirm the purge")
		if err := fs.Parse(args); err != nil {
			return 2
		}
		if !*confirmed {
			fmt.Fprintln(stderr, "refusing to purge without --yes")
			return 2
		}
		if err := trail.Purge(); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		fmt.Fprintln(stdout, "audit trail purged")
		return 0

	default:
		fmt.Fprintf(stderr, "unknown audit subcommand %q\n", sub)
		return 2
	}
}
