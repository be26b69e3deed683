package logs_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"notecast/internal/logs"
)

func TestLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notecast.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\npartial"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, offset, err := logs.LastLines(path, 2, nil)
	if err != nil {
		t.Fatalf("LastLines failed: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != int64(len("a\nb\nc\n")) {
		t.Fatalf("expected offset before the partial line, got %d", offset)
	}

	lines, _, err = logs.LastLines(filepath.Join(t.TempDir(), "missing.log"), 5, nil)
	if err != nil || len(lines) != 0 {
		t.Fatalf("expected empty result for missing file, got %#v, %v", lines, err)
	}
}

func TestEpisodeFilter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notecast.log")
	content := "INFO episode accepted episode_id=ep1\n" +
		`{"msg":"episode completed","episode_id":"ep2"}` + "\n" +
		"INFO daemon started\n" +
		`{"msg":"episode failed","episode_id":"ep1"}` + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, _, err := logs.LastLines(path, 10, logs.EpisodeFilter("ep1"))
	if err != nil {
		t.Fatalf("LastLines failed: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines for ep1, got %#v", lines)
	}
	if logs.EpisodeFilter("  ") != nil {
		t.Fatal("expected nil filter for empty id")
	}
}

func TestFollowEmitsAppendedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notecast.log")
	if err := os.WriteFile(path, []byte("start\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}
	_, offset, err := logs.LastLines(path, 1, nil)
	if err != nil {
		t.Fatalf("LastLines failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []string
	)
	done := make(chan error, 1)
	go func() {
		done <- logs.Follow(ctx, path, offset, 20*time.Millisecond, nil, func(line string) {
			mu.Lock()
			got = append(got, line)
			mu.Unlock()
		})
	}()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	if _, err := f.WriteString("later\n"); err != nil {
		t.Fatalf("append log: %v", err)
	}
	_ = f.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		mu.Lock()
		n := len(got)
		mu.Unlock()
		if n > 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 1 || got[0] != "later" {
		t.Fatalf("unexpected follow lines: %#v", got)
	}
}
