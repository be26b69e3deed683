package main

import (
	"path/filepath"
	"strings"
	"testing"

	"notecast/internal/testsupport"
)

func TestLogsCommandFiltersByEpisode(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, path, cfg, "127.0.0.1:1")

	testsupport.WriteFile(t, cfg.LogPath(), strings.Join([]string{
		"10:00:01 INFO daemon started",
		"10:00:02 INFO episode started episode_id=ep-1",
		"10:00:03 INFO episode started episode_id=ep-2",
		"10:00:04 INFO episode completed episode_id=ep-1",
		"",
	}, "\n"))

	out, _, err := runCLI(t, path, "logs", "--episode", "ep-1")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.Contains(out, "ep-2") || strings.Contains(out, "daemon started") {
		t.Fatalf("filter leaked other lines: %q", out)
	}
	requireContains(t, out, "episode completed episode_id=ep-1")

	out, _, err = runCLI(t, path, "logs", "-n", "1")
	if err != nil {
		t.Fatalf("logs -n 1: %v", err)
	}
	if strings.TrimSpace(out) != "10:00:04 INFO episode completed episode_id=ep-1" {
		t.Fatalf("unexpected tail %q", out)
	}
}
