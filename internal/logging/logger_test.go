// Bingelog - Personal Media Tracking and Viewing Analytics
// Copyright 2026 Bingelog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/bingelog/bingelog

package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"ERROR", zerolog.ErrorLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newLogger(Config{Level: "warn", Format: "json"}, &buf)

	l.Info().Msg("suppressed")
	l.Warn().Msg("emitted")

	out := buf.String()
	if strings.Contains(out, "suppressed") {
		t.Errorf("info message emitted despite warn level: %q", out)
	}
	if !strings.Contains(out, "emitted") {
		t.Errorf("warn message missing from output: %q", out)
	}
}

func TestPackageHelpersEmit(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))

	Trace().Msg("t")
	Debug().Msg("d")
	Info().Msg("i")
	Warn().Msg("w")
	Error().Msg("e")
	Err(errTest).Msg("wrapped")

	out := buf.String()
	for _, level := range []string{"trace", "debug", "info", "warn", "error"} {
		if !strings.Contains(out, `"level":"`+level+`"`) {
			t.Errorf("missing %s event in output: %q", level, out)
		}
	}
	if !strings.Contains(out, `"error":"boom"`) {
		t.Errorf("Err() did not attach the error: %q", out)
	}
}

var errTest = errors.New("boom")

func TestSetLoggerReplacesGlobal(t *testing.T) {
	orig := Logger()
	defer SetLogger(orig)

	var buf bytes.Buffer
	SetLogger(NewTestLogger(&buf))

	Info().Str("k", "v").Msg("hello")

	if !strings.Contains(buf.String(), `"k":"v"`) {
		t.Errorf("structured field missing: %q", buf.String())
	}
}
