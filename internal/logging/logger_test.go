package logging

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestLoggerWritesAboveLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "starfish.log")
	l, err := NewLogger(LevelInfo, path)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	l.Debug("hidden %d", 1)
	l.Info("relay queued %d", 3)
	l.Error("webhook failed: %s", "boom")
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if strings.Contains(out, "hidden") {
		t.Fatalf("debug line written at info level: %q", out)
	}
	if !strings.Contains(out, "[INFO] relay queued 3") || !strings.Contains(out, "[ERROR] webhook failed: boom") {
		t.Fatalf("unexpected log contents: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"debug":    LevelDebug,
		" WARN ":   LevelWarn,
		"warning":  LevelWarn,
		"error":    LevelError,
		"critical": LevelCritical,
		"":         LevelInfo,
		"verbose":  LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestGlobalHelpersWithoutLogger(t *testing.T) {
	CloseGlobalLogger()
	Info("no logger %d", 1)
	if err := CloseGlobalLogger(); err != nil {
		t.Fatalf("close without logger: %v", err)
	}
}

func TestRotateIfNeeded(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "starfish.log")
	if err := os.WriteFile(path, []byte(strings.Repeat("x", 64)), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, rotated, err := NewLogRotation(1024, 0).RotateIfNeeded(path); err != nil || rotated {
		t.Fatalf("small file rotated: %v %v", rotated, err)
	}

	newPath, rotated, err := NewLogRotation(32, time.Hour).RotateIfNeeded(path)
	if err != nil || !rotated {
		t.Fatalf("expected rotation, got %v %v", rotated, err)
	}
	if _, err := os.Stat(newPath); err != nil {
		t.Fatalf("rotated file missing: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("original file still present: %v", err)
	}
}

func TestCloseWhileLogging(t *testing.T) {
	if err := InitGlobalLogger(LevelDebug, filepath.Join(t.TempDir(), "starfish.log")); err != nil {
		t.Fatalf("init: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				Info("writer %d line %d", n, j)
			}
		}(i)
	}
	if err := CloseGlobalLogger(); err != nil {
		t.Fatalf("close: %v", err)
	}
	wg.Wait()

	if GetGlobalLogger() != nil {
		t.Fatalf("global logger still installed")
	}
	if err := CloseGlobalLogger(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

func TestLoggerCloseIsIdempotent(t *testing.T) {
	l, err := NewLogger(LevelInfo, filepath.Join(t.TempDir(), "starfish.log"))
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	l.Info("after close")
	if err := l.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}
