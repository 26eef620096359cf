package ingest

import (
	"encoding/json"
	"testing"
)

func TestParseReading(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   float64
		reason DropReason
		ok     bool
	}{
		{"decimal string", `"812.5"`, 812.5, "", true},
		{"negative string", `"-3.25"`, -3.25, "", true},
		{"integer string", `"21"`, 21, "", true},
		{"padded string", `" 4.0 "`, 4, "", true},
		{"exponent string", `"1e3"`, 1000, "", true},
		{"json number", `21.5`, 21.5, "", true},
		{"absent", ``, 0, DropMissingValue, false},
		{"null", `null`, 0, DropMissingValue, false},
		{"unavailable", `"unavailable"`, 0, DropSentinel, false},
		{"unknown upper", `"UNKNOWN"`, 0, DropSentinel, false},
		{"none mixed", `"None"`, 0, DropSentinel, false},
		{"empty string", `""`, 0, DropNotNumeric, false},
		{"word", `"warm"`, 0, DropNotNumeric, false},
		{"trailing garbage", `"12abc"`, 0, DropNotNumeric, false},
		{"nan", `"NaN"`, 0, DropNotNumeric, false},
		{"infinity", `"Infinity"`, 0, DropNotNumeric, false},
		{"boolean", `true`, 0, DropNotNumeric, false},
		{"object", `{"a":1}`, 0, DropNotNumeric, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, reason, ok := parseReading(json.RawMessage(tt.raw))
			if ok != tt.ok || reason != tt.reason {
				t.Fatalf("parseReading(%s) = (%v, %q, %v), want (%v, %q, %v)", tt.raw, got, reason, ok, tt.want, tt.reason, tt.ok)
			}
			if ok && got != tt.want {
				t.Errorf("parseReading(%s) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{812.5, "812.5"},
		{21, "21"},
		{-0.001, "-0.001"},
		{1e3, "1000"},
	}
	for _, tt := range tests {
		if got := formatValue(tt.in); got != tt.want {
			t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStateString(t *testing.T) {
	if StateSubscribed.String() != "SUBSCRIBED" || StateError.String() != "ERROR" {
		t.Error("unexpected state names")
	}
	if State(42).String() != "State(42)" {
		t.Errorf("State(42).String() = %q", State(42).String())
	}
}
