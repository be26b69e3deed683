package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"notecast/internal/config"
	"notecast/internal/daemon"
	"notecast/internal/logging"
	"notecast/internal/store"
	"notecast/internal/testsupport"
)

const testScript = `{"transcript":[` +
	`{"speaker":"Person1","dialogue":"Welcome back."},` +
	`{"speaker":"Person2","dialogue":"Today it is the quarterly report."},` +
	`{"speaker":"Person1","dialogue":"Revenue grew."},` +
	`{"speaker":"Person2","dialogue":"Hiring slowed."}]}`

type cliTestEnv struct {
	cfg        *config.Config
	store      *store.Store
	daemon     *daemon.Daemon
	gen        *testsupport.FakeGenerator
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	return setupCLITestEnvWithGenerator(t, &testsupport.FakeGenerator{Responses: []string{testScript}}, opts...)
}

// setupCLITestEnvWithGenerator starts a daemon whose text provider is gen.
// gen must be fully configured before the call.
func setupCLITestEnvWithGenerator(t *testing.T, gen *testsupport.FakeGenerator, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, opts...)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SaveTemplate(t, st, "deep_dive")

	speech := &testsupport.FakeSynthesizer{SegmentDuration: 2 * time.Minute}
	d, err := daemon.New(cfg, st, logging.NewNop(), daemon.Dependencies{Generator: gen, Speech: speech})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		d.Stop(ctx)
		d.Close()
	})

	base := testsupport.BaseDir(cfg)
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg, d.APIAddress())

	return &cliTestEnv{
		cfg:        cfg,
		store:      st,
		daemon:     d,
		gen:        gen,
		configPath: configPath,
		baseDir:    base,
	}
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(""))
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

// runJSON runs a command with --json and decodes its output into out.
func runJSON(t *testing.T, configPath string, out any, args ...string) {
	t.Helper()
	stdout, stderr, err := runCLI(t, configPath, append([]string{"--json"}, args...)...)
	if err != nil {
		t.Fatalf("%s failed: %v (stderr %q)", strings.Join(args, " "), err, stderr)
	}
	if err := json.Unmarshal([]byte(stdout), out); err != nil {
		t.Fatalf("decode %s output %q: %v", strings.Join(args, " "), stdout, err)
	}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config, apiBind string) {
	t.Helper()
	content := fmt.Sprintf(
		"[paths]\ndata_dir = %q\naudio_dir = %q\nlog_dir = %q\napi_bind = %q\napi_token = %q\n\n[llm]\napi_key = \"test\"\n\n[tts]\napi_key = \"test\"\n",
		cfg.Paths.DataDir,
		cfg.Paths.AudioDir,
		cfg.Paths.LogDir,
		apiBind,
		cfg.Paths.APIToken,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
