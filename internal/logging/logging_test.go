package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewWithWriterLevels(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "warn", false)
	log.Info().Msg("hidden")
	log.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line should be filtered: %s", out)
	}
	if !strings.Contains(out, `"message":"shown"`) {
		t.Fatalf("expected JSON warn line, got %s", out)
	}
}

func TestNewWithWriterUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "chatty", false)
	log.Debug().Msg("debug")
	log.Info().Msg("info")

	if strings.Contains(buf.String(), `"debug"`) && strings.Contains(buf.String(), `"message":"debug"`) {
		t.Fatalf("debug should be filtered at info level")
	}
	if !strings.Contains(buf.String(), `"message":"info"`) {
		t.Fatalf("expected info line")
	}
}

func TestFingerprint(t *testing.T) {
	if got := Fingerprint("short"); got != "***" {
		t.Fatalf("short tokens must be masked, got %q", got)
	}
	got := Fingerprint("eyJhbGciOiJIUzI1NiJ9.payload.signature")
	if strings.Contains(got, "eyJ") || !strings.HasSuffix(got, "nature") {
		t.Fatalf("unexpected fingerprint %q", got)
	}
}
