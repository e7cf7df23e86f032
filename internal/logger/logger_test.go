package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
)

func TestLogger_JSONShape(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "INFO").Action("dispatch").With("ride_id", "r1")

	l.Error("notify failed", errors.New("boom"), "driver_id", "d1")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	for _, key := range []string{"timestamp", "message", "action", "ride_id", "driver_id", "error"} {
		if _, ok := entry[key]; !ok {
			t.Errorf("missing key %q in %v", key, entry)
		}
	}
	if entry["message"] != "notify failed" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, "warn")
	l.Info("dropped")
	l.Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info/debug to be filtered, got %q", buf.String())
	}
	l.Warn("kept")
	if buf.Len() == 0 {
		t.Fatal("expected warn to be written")
	}
}
