package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestInit_Formats(t *testing.T) {
	tests := []struct {
		format string
		want   []string
	}{
		{"text", []string{"level=INFO", "component=store", "msg=\"ledger opened\""}},
		{"json", []string{`"level":"INFO"`, `"component":"store"`, `"msg":"ledger opened"`}},
		{"", []string{"level=INFO", "component=store"}},
	}
	for _, tt := range tests {
		t.Run("format="+tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			Init(slog.LevelInfo, tt.format, &buf)
			New("store").Info("ledger opened")
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("missing %s in %s", w, buf.String())
				}
			}
		})
	}
}

func TestInit_LevelGating(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelWarn, "text", &buf)

	log := New("llm")
	log.Debug("request sent")
	log.Info("breaker closed")
	log.Warn("breaker open")

	out := buf.String()
	if strings.Contains(out, "request sent") || strings.Contains(out, "breaker closed") {
		t.Errorf("below-threshold records leaked: %s", out)
	}
	if !strings.Contains(out, "breaker open") {
		t.Errorf("warn record missing: %s", out)
	}
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "Warn": slog.LevelWarn, "error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel(verbose) should fail")
	}
}

func TestSetup(t *testing.T) {
	var buf bytes.Buffer
	if err := Setup("WARN", "json", &buf); err != nil {
		t.Fatalf("Setup: %v", err)
	}
	New("setup").Info("hidden")
	New("setup").Warn("shown")
	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, `"msg":"shown"`) {
		t.Errorf("unexpected output: %s", out)
	}

	if err := Setup("loud", "text", &buf); err == nil {
		t.Error("unknown level accepted")
	}
	if err := Setup("info", "xml", &buf); err == nil {
		t.Error("unknown format accepted")
	}
}

func TestForRun(t *testing.T) {
	var buf bytes.Buffer
	Init(slog.LevelInfo, "text", &buf)
	ForRun(New("orchestrate"), "reconciliation", "t-1").Info("run finished")
	out := buf.String()
	for _, want := range []string{"component=orchestrate", "pipeline=reconciliation", "trace_id=t-1"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in %s", want, out)
		}
	}
}
