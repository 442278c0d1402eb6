package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		"info":    zapcore.InfoLevel,
		"warn":    zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"":        zapcore.InfoLevel,
		"bogus":   zapcore.InfoLevel,
		" INFO ":  zapcore.InfoLevel,
	}
	for input, expected := range cases {
		if got := parseLevel(input); got != expected {
			t.Fatalf("parseLevel(%q) = %v, expected %v", input, got, expected)
		}
	}
}

func TestNewLoggerBuilds(t *testing.T) {
	logger, err := NewLogger("debug")
	if err != nil {
		t.Fatalf("unexpected logger error: %v", err)
	}
	if logger == nil {
		t.Fatalf("expected a logger instance")
	}
}
