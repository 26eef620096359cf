package sensorgroup

import "strings"

type lineKind int

const (
	lineBlank lineKind = iota
	lineAssignment
	lineHeader
	lineItem
)

// line is one classified input line.
type line struct {
	kind    lineKind
	name    string
	sensors []string
	text    string
}

// classify decides what a single trimmed line means. A line containing '='
// is an assignment even inside an open block.
func classify(raw string) line {
	s := strings.TrimSpace(raw)
	switch {
	case s == "" || strings.HasPrefix(s, "#"):
		return line{kind: lineBlank}
	case strings.Contains(s, "="):
		// Only the text between the first and second '=' is the list.
		fields := strings.Split(s, "=")
		return line{
			kind:    lineAssignment,
			name:    strings.TrimSpace(fields[0]),
			sensors: splitList(fields[1]),
		}
	case strings.HasSuffix(s, ":"):
		return line{kind: lineHeader, name: strings.TrimSpace(strings.TrimSuffix(s, ":"))}
	default:
		return line{kind: lineItem, text: stripBullet(s)}
	}
}

func splitList(list string) []string {
	var out []string
	for _, part := range strings.Split(list, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stripBullet(s string) string {
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "*") {
		s = s[1:]
	}
	return strings.TrimSpace(s)
}

// Parse reads sensor-group definition text and returns the groups in source
// order.
//
// Blank lines and '#' comments are skipped without closing an open block.
// A block is closed by the next header, the next assignment, or the end of
// input, and is dropped if it collected no sensors. Item lines outside a
// block are ignored. Parse never fails; empty input gives an empty slice.
func Parse(text string) []Definition {
	defs := []Definition{}

	var open *Definition
	closeBlock := func() {
		if open != nil && len(open.Sensors) > 0 {
			defs = append(defs, *open)
		}
		open = nil
	}

	for _, raw := range strings.Split(text, "\n") {
		l := classify(raw)
		switch l.kind {
		case lineBlank:
			continue
		case lineAssignment:
			closeBlock()
			if l.name != "" && len(l.sensors) > 0 {
				defs = append(defs, Definition{Name: l.name, Sensors: l.sensors})
			}
		case lineHeader:
			closeBlock()
			if l.name != "" {
				open = &Definition{Name: l.name}
			}
		case lineItem:
			if open != nil && l.text != "" {
				open.Sensors = append(open.Sensors, l.text)
			}
		}
	}
	closeBlock()

	return defs
}
