package sensorgroup

import (
	"regexp"
	"testing"
)

func TestVersion(t *testing.T) {
	hexRe := regexp.MustCompile(`^[0-9a-f]{32}$`)

	t.Run("order independent", func(t *testing.T) {
		if Version([]string{"b", "a"}) != Version([]string{"a", "b"}) {
			t.Error("permutation changed the version")
		}
	})

	t.Run("duplicates not collapsed", func(t *testing.T) {
		if Version([]string{"a"}) == Version([]string{"a", "a"}) {
			t.Error("duplicate id did not change the version")
		}
	})

	t.Run("composition change", func(t *testing.T) {
		if Version([]string{"a", "b"}) == Version([]string{"a", "c"}) {
			t.Error("different composition produced same version")
		}
	})

	t.Run("hex digest", func(t *testing.T) {
		v := Version([]string{"sensor.zone1_temp"})
		if !hexRe.MatchString(v) {
			t.Errorf("Version() = %q, want 32 lowercase hex chars", v)
		}
	})

	t.Run("empty list is md5 of empty string", func(t *testing.T) {
		if got := Version(nil); got != "d41d8cd98f00b204e9800998ecf8427e" {
			t.Errorf("Version(nil) = %q", got)
		}
	})

	t.Run("input not mutated", func(t *testing.T) {
		ids := []string{"c", "a", "b"}
		Version(ids)
		if ids[0] != "c" || ids[1] != "a" || ids[2] != "b" {
			t.Errorf("Version() reordered its input: %v", ids)
		}
	})
}
