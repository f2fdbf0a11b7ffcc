package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scribe/internal/api"
	"scribe/internal/store"
	"scribe/internal/testsupport"
)

func submitAndWait(t *testing.T, env *cliTestEnv, name string) string {
	t.Helper()
	src := filepath.Join(env.baseDir, name)
	testsupport.WriteFile(t, src, 1024)

	out, _, err := runCLI(t, []string{"submit", src, "--model", "small", "--json"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	var resp api.SubmitResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode submit output: %v\n%s", err, out)
	}
	if resp.Job.ModelSize != "small" || resp.Job.Filename != name {
		t.Fatalf("unexpected job %+v", resp.Job)
	}
	waitFor(t, "job completion", func() bool {
		job, err := env.store.GetJob(context.Background(), resp.Job.ID)
		return err == nil && job.Status == store.StatusCompleted
	})
	return resp.Job.ID
}

func TestSubmitListShowDownloadDelete(t *testing.T) {
	env := setupCLITestEnv(t)
	id := submitAndWait(t, env, "lecture.mp3")

	out, _, err := runCLI(t, []string{"list"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	requireContains(t, out, id)
	requireContains(t, out, "lecture.mp3")
	requireContains(t, out, "Completed")

	out, _, err = runCLI(t, []string{"list", "--status", "failed"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	requireContains(t, out, "No jobs found")

	out, _, err = runCLI(t, []string{"show", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "the quick brown fox")
	requireContains(t, out, "small")

	target := filepath.Join(env.baseDir, "out.txt")
	out, _, err = runCLI(t, []string{"download", id, "-o", target}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	requireContains(t, out, "Saved transcript")
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if strings.TrimSpace(string(data)) != "the quick brown fox" {
		t.Fatalf("unexpected transcript %q", data)
	}

	out, _, err = runCLI(t, []string{"download", id, "-o", "-"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("download stdout: %v", err)
	}
	requireContains(t, out, "the quick brown fox")

	out, _, err = runCLI(t, []string{"delete", id}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	requireContains(t, out, "Deleted job "+id)

	if _, _, err := runCLI(t, []string{"show", id}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected show to fail after delete")
	}
}

func TestSubmitRejectsBadInput(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"submit", filepath.Join(env.baseDir, "missing.wav")}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected missing file to fail")
	}

	src := filepath.Join(env.baseDir, "clip.wav")
	testsupport.WriteFile(t, src, 64)
	_, _, err := runCLI(t, []string{"submit", src, "--model", "enormous"}, env.socketPath, env.configPath)
	if err == nil {
		t.Fatal("expected unknown model to fail")
	}
	requireContains(t, err.Error(), "enormous")
}

func TestListRejectsUnknownStatus(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"list", "--status", "archived"}, env.socketPath, env.configPath); err == nil {
		t.Fatal("expected unknown status to fail")
	}
}

func TestQueueCommandShowsSummary(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"queue"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	requireContains(t, out, "0 waiting")
}

func TestCommandsReportMissingDaemon(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	socket := filepath.Join(t.TempDir(), "absent.sock")
	_, _, err := runCLI(t, []string{"list"}, socket, "")
	if err == nil {
		t.Fatal("expected dial failure")
	}
	requireContains(t, err.Error(), "scribe daemon")
}

func TestNormalizeStatuses(t *testing.T) {
	got := normalizeStatuses([]string{" Completed ", "", "FAILED"})
	if len(got) != 2 || got[0] != "completed" || got[1] != "failed" {
		t.Fatalf("unexpected statuses %v", got)
	}
}

func TestSubmitSummaryUsesCurrentQueuePosition(t *testing.T) {
	tests := []struct {
		name     string
		resp     api.SubmitResponse
		position string
	}{
		{
			name: "dispatched on submit",
			resp: api.SubmitResponse{Job: api.Job{ID: "a", Filename: "a.mp3", ModelSize: "base"}, Position: 1},
		},
		{
			name:     "waiting",
			resp:     api.SubmitResponse{Job: api.Job{ID: "b", Filename: "b.mp3", ModelSize: "base", QueuePosition: 2}, Position: 3},
			position: "Queue position: 2",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := submitSummary(tt.resp)
			requireContains(t, got, "Queued "+tt.resp.Job.Filename+" as job "+tt.resp.Job.ID)
			if tt.position == "" {
				if strings.Contains(got, "Queue position") {
					t.Fatalf("unexpected queue position in %q", got)
				}
				return
			}
			requireContains(t, got, tt.position)
		})
	}
}
