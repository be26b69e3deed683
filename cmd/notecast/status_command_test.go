package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notecast/internal/api"
	"notecast/internal/config"
	"notecast/internal/testsupport"
)

func TestStatusCommandReportsRunningDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, env.configPath, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "running (pid")
	requireContains(t, out, env.cfg.DatabasePath())
	requireContains(t, out, "No episodes yet")

	stdout, _, err := runCLI(t, env.configPath, "--json", "status")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var status api.DaemonStatus
	if err := json.Unmarshal([]byte(stdout), &status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.PID != os.Getpid() {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestStatusCommandWithoutDaemon(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg, "127.0.0.1:1")

	out, _, err := runCLI(t, path, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "not reachable at 127.0.0.1:1")

	_, _, err = runCLI(t, path, "notebook", "list")
	if err == nil || !strings.Contains(err.Error(), "notecast serve") {
		t.Fatalf("expected start hint, got %v", err)
	}
}

func TestAPITokenIsSentFromConfig(t *testing.T) {
	env := setupCLITestEnv(t, testsupport.WithAPIToken("s3cret"))

	if _, _, err := runCLI(t, env.configPath, "notebook", "list"); err != nil {
		t.Fatalf("notebook list with token: %v", err)
	}

	writeTestConfig(t, env.configPath, &config.Config{Paths: config.Paths{
		DataDir:  env.cfg.Paths.DataDir,
		AudioDir: env.cfg.Paths.AudioDir,
		LogDir:   env.cfg.Paths.LogDir,
	}}, env.daemon.APIAddress())
	if _, _, err := runCLI(t, env.configPath, "notebook", "list"); err == nil {
		t.Fatal("expected request without token to fail")
	}
}
