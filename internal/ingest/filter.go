package ingest

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// DropReason says why an event produced no telemetry row.
type DropReason string

// Drop reasons, in the order the filter applies them.
const (
	DropMissingValue DropReason = "missing_value"
	DropSentinel     DropReason = "sentinel"
	DropNotNumeric   DropReason = "not_numeric"
	DropUnrouted     DropReason = "unrouted"
	DropEnqueue      DropReason = "enqueue_failed"
)

// sentinels are state strings meaning "no data", compared case-insensitively.
var sentinels = map[string]struct{}{
	"unavailable": {},
	"unknown":     {},
	"none":        {},
}

// parseReading extracts a finite float from a raw state value.
func parseReading(raw json.RawMessage) (float64, DropReason, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, DropMissingValue, false
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return 0, DropNotNumeric, false
		}
	} else {
		text = string(raw)
	}

	text = strings.TrimSpace(text)
	if _, ok := sentinels[strings.ToLower(text)]; ok {
		return 0, DropSentinel, false
	}

	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, DropNotNumeric, false
	}
	return v, "", true
}

// formatValue renders a reading the way it is stored in the logs table.
func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
