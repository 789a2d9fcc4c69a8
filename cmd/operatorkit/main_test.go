package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := Run(append([]string{"operatorkit"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func useTempDB(t *testing.T) {
	t.Helper()
	t.Setenv("OPERATORKIT_DB", filepath.Join(t.TempDir(), "operatorkit.db"))
	t.Setenv("OPERATORKIT_LOG_LEVEL", "ERROR")
}

func TestRun_NoArgsPrintsUsage(t *testing.T) {
	useTempDB(t)
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage")
}

func TestRun_UnknownCommand(t *testing.T) {
	useTempDB(t)
	code, _, stderr := runCLI(t, "frobnicate")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "unknown command")
}

func TestRun_Doctor(t *testing.T) {
	useTempDB(t)
	code, stdout, _ := runCLI(t, "doctor")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "side-effect catalog")
	assert.Contains(t, stdout, "all checks passed")
}

func TestRun_DemoWithoutApprovalFails(t *testing.T) {
	useTempDB(t)
	code, stdout, _ := runCLI(t, "demo")
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout, `"status": "failed"`)
	assert.Contains(t, stdout, "approval")

	// Blocked by the caller-side gate, so nothing reached the engine and
	// nothing was audited.
	code, stdout, _ = runCLI(t, "audit", "verify")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "0 events")
}

func TestRun_DemoFullyApprovedSucceeds(t *testing.T) {
	useTempDB(t)
	code, stdout, _ := runCLI(t, "demo", "--approve", "--confirm-writes")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, `"status": "success"`)

	// The demo execution landed in the audit trail.
	code, stdout, _ = runCLI(t, "audit", "verify")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "audit chain OK (1 events)")
}

func TestRun_AuditExportAndPurge(t *testing.T) {
	useTempDB(t)
	code, _, _ := runCLI(t, "demo", "--approve", "--confirm-writes")
	require.Equal(t, 0, code)

	code, stdout, _ := runCLI(t, "audit", "export")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "createReminder")

	// Purge refuses without the explicit flag.
	code, _, stderr := runCLI(t, "audit", "purge")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "--yes")

	code, stdout, _ = runCLI(t, "audit", "purge", "--yes")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "purged")

	code, stdout, _ = runCLI(t, "audit", "verify")
	assert.Equal(t, 0, code)
	assert.True(t, strings.Contains(stdout, "0 events"))
}
