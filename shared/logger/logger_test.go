// Copyright 2025 GreenChainz
// SPDX-License-Identifier: BUSL-1.1

package logger

import (
	"bytes"
	"encoding/json"
	"log"
	"strings"
	"testing"
)

func captureOutput(fn func()) string {
	var buf bytes.Buffer
	prev := log.Writer()
	flags := log.Flags()
	log.SetOutput(&buf)
	log.SetFlags(0)
	defer func() {
		log.SetOutput(prev)
		log.SetFlags(flags)
	}()
	fn()
	return buf.String()
}

func TestLogProducesValidJSON(t *testing.T) {
	l := New("gateway-test")

	out := captureOutput(func() {
		l.Info("42", "req-1", "workflow executed", map[string]interface{}{
			"workflow": "compliance-check",
		})
	})

	line := strings.TrimSpace(out)
	var entry LogEntry
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v (line: %s)", err, line)
	}

	if entry.Level != INFO {
		t.Errorf("expected level INFO, got %s", entry.Level)
	}
	if entry.Component != "gateway-test" {
		t.Errorf("expected component gateway-test, got %s", entry.Component)
	}
	if entry.UserID != "42" {
		t.Errorf("expected user_id 42, got %s", entry.UserID)
	}
	if entry.Fields["workflow"] != "compliance-check" {
		t.Errorf("expected workflow field, got %v", entry.Fields)
	}
}

func TestErrorWithErrAttachesError(t *testing.T) {
	l := New("gateway-test")

	out := captureOutput(func() {
		l.ErrorWithErr("7", "req-2", "backend call failed", errTest, nil)
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}

	if entry.Level != ERROR {
		t.Errorf("expected level ERROR, got %s", entry.Level)
	}
	if entry.Fields["error"] != "upstream unavailable" {
		t.Errorf("expected error field, got %v", entry.Fields)
	}
}

func TestInfoWithDuration(t *testing.T) {
	l := New("gateway-test")

	out := captureOutput(func() {
		l.InfoWithDuration("", "", "request complete", 12.5, nil)
	})

	var entry LogEntry
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}

	if entry.Fields["duration_ms"] != 12.5 {
		t.Errorf("expected duration_ms 12.5, got %v", entry.Fields["duration_ms"])
	}
}

var errTest = errFixed("upstream unavailable")

type errFixed string

func (e errFixed) Error() string { return string(e) }
