package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/ephyslab/sortpipe/internal/config"
)

func TestLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := &Logger{z: zap.New(core)}

	l.Info("session %s", "240315_r1503")
	l.Success("sorted %d sessions", 3)
	l.Warn("skip (exists)")
	l.Error("recording missing: %s", "trial_x")
	l.Debug("fingerprint %x", []byte{0xab})

	entries := logs.All()
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	if entries[0].Message != "session 240315_r1503" {
		t.Errorf("Info message = %q", entries[0].Message)
	}
	if entries[1].Level != zap.InfoLevel {
		t.Errorf("Success level = %v, want info", entries[1].Level)
	}
	if len(entries[1].Context) != 1 || entries[1].Context[0].Key != "status" {
		t.Errorf("Success missing status field: %v", entries[1].Context)
	}
	if entries[2].Level != zap.WarnLevel || entries[3].Level != zap.ErrorLevel || entries[4].Level != zap.DebugLevel {
		t.Errorf("unexpected levels: %v %v %v", entries[2].Level, entries[3].Level, entries[4].Level)
	}
}

func TestNew_FileSink(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.LogFile = filepath.Join(dir, "logs", "run.log")

	l, err := New(&cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hello file sink")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(cfg.LogFile)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), "hello file sink") {
		t.Errorf("log file missing entry: %q", data)
	}
	if !strings.Contains(string(data), "INFO") {
		t.Errorf("log file missing level: %q", data)
	}
}

func TestNew_DebugGating(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.ColorMode = config.ColorNever
	cfg.LogFile = filepath.Join(dir, "run.log")

	l, err := New(&cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Debug("invisible")
	l.Close()

	data, _ := os.ReadFile(cfg.LogFile)
	if strings.Contains(string(data), "invisible") {
		t.Error("debug line logged without verbose")
	}
}

func TestNewNop(t *testing.T) {
	l := NewNop()
	l.Info("discarded")
	l.Error("discarded")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
