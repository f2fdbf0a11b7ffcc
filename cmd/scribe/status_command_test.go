package main

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"scribe/internal/api"
)

func TestStatusCommandRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	submitAndWait(t, env, "memo.m4a")

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Running (PID")
	requireContains(t, out, "== Dependencies ==")
	requireContains(t, out, "== Jobs ==")
	requireContains(t, out, "Completed")

	out, _, err = runCLI(t, []string{"status", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(out), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.JobCounts["completed"] != 1 {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestStatusCommandWithoutDaemon(t *testing.T) {
	env := setupCLITestEnv(t)
	socket := filepath.Join(env.baseDir, "nobody.sock")
	out, _, err := runCLI(t, []string{"status"}, socket, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Not running")
	requireContains(t, out, "== Dependencies ==")
}
