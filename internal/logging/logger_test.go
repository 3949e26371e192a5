package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log: %v (%s)", err, buf.String())
	}
	return entry
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, DEBUG, "test", FormatJSON)

	logger.Info("test message", "key1", "value1", "key2", 42)

	entry := decode(t, &buf)
	if entry["level"] != "info" {
		t.Errorf("Expected level info, got %v", entry["level"])
	}
	if entry["component"] != "test" {
		t.Errorf("Expected component test, got %v", entry["component"])
	}
	if entry["message"] != "test message" {
		t.Errorf("Expected message 'test message', got %v", entry["message"])
	}
	if entry["key1"] != "value1" {
		t.Errorf("Expected key1=value1, got %v", entry["key1"])
	}
	if entry["key2"] != float64(42) { // JSON numbers are float64
		t.Errorf("Expected key2=42, got %v", entry["key2"])
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, DEBUG, "test", FormatText)

	logger.Warn("warning message", "code", 500)

	output := buf.String()
	for _, want := range []string{"WRN", "warning message", "code=500", "component=test"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, WARN, "test", FormatJSON)

	logger.Debug("should not appear")
	logger.Info("should not appear")
	logger.Warn("should appear")
	logger.Error("should appear")

	output := buf.String()
	lines := strings.Split(strings.TrimSpace(output), "\n")
	if len(lines) != 2 {
		t.Errorf("Expected 2 log lines, got %d: %s", len(lines), output)
	}
}

func TestErrorIncludesCaller(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, DEBUG, "test", FormatJSON)

	logger.Error("error message")

	entry := decode(t, &buf)
	caller, _ := entry["caller"].(string)
	if !strings.Contains(caller, "logger_test.go") {
		t.Errorf("Expected caller to contain logger_test.go, got: %q", caller)
	}
}

func TestErrorValuesAreStringified(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, DEBUG, "", FormatJSON)

	logger.Warn("upstream failed", "error", errors.New("boom"))

	entry := decode(t, &buf)
	if entry["error"] != "boom" {
		t.Errorf("Expected error=boom, got %v", entry["error"])
	}
	if _, ok := entry["component"]; ok {
		t.Errorf("Expected no component field, got %v", entry["component"])
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, INFO, "parent", FormatJSON)

	child := logger.WithComponent("child")
	child.Info("child message")

	entry := decode(t, &buf)
	if entry["component"] != "child" {
		t.Errorf("Expected component 'child', got %v", entry["component"])
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]Level{
		"debug":   DEBUG,
		"WARN":    WARN,
		"warning": WARN,
		"error":   ERROR,
		"":        INFO,
		"bogus":   INFO,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %s, want %s", in, got, want)
		}
	}
}
