package sensorgroup

import (
	"crypto/md5" //nolint:gosec // Content fingerprint, not a security boundary
	"encoding/hex"
	"slices"
	"strings"
)

// Version returns the content digest of a sensor-id list.
//
// The ids are sorted and joined with ",", then hashed with MD5, giving a
// 32-character lowercase hex string. Ordering does not affect the result;
// duplicates do.
func Version(ids []string) string {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sum := md5.Sum([]byte(strings.Join(sorted, ","))) //nolint:gosec // See import
	return hex.EncodeToString(sum[:])
}
