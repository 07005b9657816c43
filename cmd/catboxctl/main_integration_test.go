//go:build sqlite

package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRunCommandSQLitePersistsAcrossCommands(t *testing.T) {
	workdir := chdirTemp(t)

	dbPath := filepath.Join(workdir, "catbox.db")
	if err := run(context.Background(), []string{
		"run",
		"--store", "sqlite",
		"--db-path", dbPath,
		"--run-id", "sqlite-run",
		"--seed", "11",
		"--duration", "20",
	}); err != nil {
		t.Fatalf("run command: %v", err)
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("expected sqlite db at %s: %v", dbPath, err)
	}

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"outcome",
			"--store", "sqlite",
			"--db-path", dbPath,
			"--latest",
		})
	})
	if err != nil {
		t.Fatalf("outcome command: %v", err)
	}
	if !strings.Contains(out, "run_id=sqlite-run") || !strings.Contains(out, "alive=true") {
		t.Fatalf("unexpected outcome output: %s", out)
	}

	out, err = captureStdout(func() error {
		return run(context.Background(), []string{
			"trajectory",
			"--store", "sqlite",
			"--db-path", dbPath,
			"--run-id", "sqlite-run",
			"--limit", "5",
		})
	})
	if err != nil {
		t.Fatalf("trajectory command: %v", err)
	}
	if got := strings.Count(out, "step="); got != 5 {
		t.Fatalf("expected 5 trajectory rows, got %d: %s", got, out)
	}
}

func TestResetCommandSQLiteClearsPersistedRuns(t *testing.T) {
	workdir := chdirTemp(t)

	dbPath := filepath.Join(workdir, "catbox.db")
	if err := run(context.Background(), []string{
		"run",
		"--store", "sqlite",
		"--db-path", dbPath,
		"--run-id", "reset-run",
		"--seed", "3",
		"--duration", "10",
	}); err != nil {
		t.Fatalf("run command: %v", err)
	}

	if err := run(context.Background(), []string{
		"reset",
		"--store", "sqlite",
		"--db-path", dbPath,
	}); err != nil {
		t.Fatalf("reset command: %v", err)
	}

	err := run(context.Background(), []string{
		"outcome",
		"--store", "sqlite",
		"--db-path", dbPath,
		"--run-id", "reset-run",
	})
	if err == nil || !strings.Contains(err.Error(), "outcome not found for run id: reset-run") {
		t.Fatalf("expected outcome miss after reset, got %v", err)
	}
}

func TestDeleteCommandSQLiteRemovesRun(t *testing.T) {
	workdir := chdirTemp(t)

	dbPath := filepath.Join(workdir, "catbox.db")
	if err := run(context.Background(), []string{
		"run",
		"--store", "sqlite",
		"--db-path", dbPath,
		"--run-id", "delete-run",
		"--seed", "61",
		"--duration", "10",
	}); err != nil {
		t.Fatalf("seed run command: %v", err)
	}

	out, err := captureStdout(func() error {
		return run(context.Background(), []string{
			"delete",
			"--store", "sqlite",
			"--db-path", dbPath,
			"--run-id", "delete-run",
		})
	})
	if err != nil {
		t.Fatalf("delete command: %v", err)
	}
	if !strings.Contains(out, "run deleted run_id=delete-run") {
		t.Fatalf("unexpected delete output: %s", out)
	}

	err = run(context.Background(), []string{
		"outcome",
		"--store", "sqlite",
		"--db-path", dbPath,
		"--run-id", "delete-run",
	})
	if err == nil || !strings.Contains(err.Error(), "outcome not found for run id: delete-run") {
		t.Fatalf("expected outcome miss after delete, got %v", err)
	}

	err = run(context.Background(), []string{
		"delete",
		"--store", "sqlite",
		"--db-path", dbPath,
		"--run-id", "delete-run",
	})
	if err == nil || !strings.Contains(err.Error(), "run not found: delete-run") {
		t.Fatalf("expected deleting missing run to fail, got %v", err)
	}
}
