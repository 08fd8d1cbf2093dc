package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoggerNew(t *testing.T) {
	log := New(false)
	if log == nil {
		t.Fatal("Expected logger to be created, got nil")
	}
	if log.DebugEnabled() {
		t.Error("Expected debug to be false")
	}

	logDebug := New(true)
	if !logDebug.DebugEnabled() {
		t.Error("Expected debug to be true")
	}
}

func TestLoggerNewWithFile(t *testing.T) {
	tmpDir := t.TempDir()
	logFilePath := filepath.Join(tmpDir, "migration.log")

	log, err := NewWithFile(false, logFilePath)
	if err != nil {
		t.Fatalf("Failed to create logger with file: %v", err)
	}
	if log.logFile == nil {
		t.Fatal("Expected log file to be set, got nil")
	}

	log.Info("test message")
	log.Debug("debug detail")
	if err := log.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	content, err := os.ReadFile(logFilePath)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "test message") {
		t.Error("Expected log file to contain 'test message'")
	}
	if !strings.Contains(string(content), "[DEBUG] ") || !strings.Contains(string(content), "debug detail") {
		t.Error("Expected log file to contain debug output even without debug mode")
	}
}

func TestLoggerDebugRouting(t *testing.T) {
	tests := []struct {
		name          string
		debug         bool
		wantOnConsole bool
	}{
		{"debug disabled", false, false},
		{"debug enabled", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var console, file bytes.Buffer
			log := newLogger(tt.debug, &console, &file)

			log.Debugf("poll %d", 3)

			if got := strings.Contains(console.String(), "poll 3"); got != tt.wantOnConsole {
				t.Errorf("console contains debug = %v, want %v", got, tt.wantOnConsole)
			}
			if !strings.Contains(file.String(), "poll 3") {
				t.Error("Expected file sink to always receive debug output")
			}
		})
	}
}

func TestLoggerLevels(t *testing.T) {
	var console bytes.Buffer
	log := newLogger(false, &console, nil)

	log.Info("info message")
	log.Successf("success %d", 42)
	log.Warning("warning message")
	log.Errorf("error %s", "value")

	out := console.String()
	for _, want := range []string{
		"[INFO] ", "info message",
		"[DONE] ", "success 42",
		"[WARNING] ", "warning message",
		"[ERROR] ", "error value",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected console output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestLoggerWith(t *testing.T) {
	var console bytes.Buffer
	log := newLogger(false, &console, nil)

	regional := log.With("us-ashburn-1")
	regional.Info("image created")
	regional.With("poll").Warning("still waiting")

	out := console.String()
	if !strings.Contains(out, "(us-ashburn-1) image created") {
		t.Errorf("Expected scoped message, got:\n%s", out)
	}
	if !strings.Contains(out, "(us-ashburn-1/poll) still waiting") {
		t.Errorf("Expected nested scope, got:\n%s", out)
	}
	if err := regional.Close(); err != nil {
		t.Errorf("Close() on scoped logger error = %v", err)
	}
}

func TestLoggerStep(t *testing.T) {
	var console bytes.Buffer
	log := newLogger(false, &console, nil)

	log.Step(2, 5, "Waiting for source image")

	if !strings.Contains(console.String(), "[Step 2/5] Waiting for source image") {
		t.Errorf("Unexpected step header:\n%s", console.String())
	}
}

func TestLoggerClose(t *testing.T) {
	log := New(false)
	if err := log.Close(); err != nil {
		t.Errorf("Expected Close() to succeed, got error: %v", err)
	}
}
