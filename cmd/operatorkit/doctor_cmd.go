package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/Unclefole/operatorkit/pkg/audit"
	"github.com/Unclefole/operatorkit/pkg/config"
	"github.com/Unclefole/operatorkit/pkg/contracts"
	"github.com/Unclefole/operatorkit/pkg/sideeffect"
	"github.com/Unclefole/operatorkit/pkg/store"
)

// runDoctor checks the invariants an operator cares about before trusting
// the core: catalog completeness, storage reachability, chain integrity.
func runDoctor(cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) int {
	failures := 0
	check := func(name string, err error) {
		if err != nil {
			failures++
			fmt.Fprintf(stdout, "  FAIL %-28s %v\n", name, err)
			return
		}
		fmt.Fprintf(stdout, "  ok   %s\n", name)
	}

	fmt.Fprintln(stdout, "operatorkit doctor")
	check("side-effect catalog", sideeffect.VerifyCatalog())

	for _, kind := range contracts.AllSideEffectKinds() {
		class, err := sideeffect.Classify(kind)
		if err != nil {
			check(string(kind), err)
			continue
		}
		fmt.Fprintf(stdout, "       %-22s write=%-5v permission=%s\n",
			kind, class.IsWrite, orNone(class.Permission))
	}

	db, err := store.Open(cfg.DatabasePath)
	check("open database", err)
	if err == nil {
		defer db.Close()
		sink, err := store.NewSQLiteAuditSink(db)
		check("audit schema", err)
		if err == nil {
			trail, err := audit.NewTrail(sink, cfg.AuditMaxEvents, logger)
			check("load audit trail", err)
			if err == nil {
				check("audit chain", trail.VerifyChain())
			}
		}
		_, err = store.NewSQLiteHistoryStore(db)
		check("history schema", err)
	}

	if failures > 0 {
		fmt.Fprintf(stderr, "doctor found %d problem(s)\n", failures)
		return 1
	}
	fmt.Fprintln(stdout, "all checks passed")
	return 0
}

func orNone(scope contracts.Scope) string {
	if scope == contracts.ScopeNone {
		return "none"
	}
	return string(scope)
}
