package util

import (
	"testing"

	"github.com/pterm/pterm"
)

func TestParseLogLevel(t *testing.T) {
	testCases := []struct {
		in      string
		want    pterm.LogLevel
		wantErr bool
	}{
		{"", pterm.LogLevelInfo, false},
		{"trace", pterm.LogLevelTrace, false},
		{" Debug ", pterm.LogLevelDebug, false},
		{"WARN", pterm.LogLevelWarn, false},
		{"error", pterm.LogLevelError, false},
		{"verbose", 0, true},
	}

	for _, tc := range testCases {
		got, err := ParseLogLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLogLevel(%q) err = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if !tc.wantErr && got != tc.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestSetLogLevel(t *testing.T) {
	prev := pterm.DefaultLogger.Level
	t.Cleanup(func() { pterm.DefaultLogger.Level = prev })

	if err := SetLogLevel("trace"); err != nil {
		t.Fatal(err)
	}
	if pterm.DefaultLogger.Level != pterm.LogLevelTrace {
		t.Errorf("Level = %v, want trace", pterm.DefaultLogger.Level)
	}
	if err := SetLogLevel("loud"); err == nil {
		t.Error("expected an error for an unknown level")
	}
	if pterm.DefaultLogger.Level != pterm.LogLevelTrace {
		t.Error("a rejected level must leave the logger unchanged")
	}
}
