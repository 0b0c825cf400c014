package unified

import (
	"fmt"
	"strconv"
	"strings"
)

type formatVersion struct {
	Major int
	Minor int
	Patch int
}

func parseFormatVersion(raw string) (formatVersion, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(raw), "v")
	if trimmed == "" {
		return formatVersion{}, fmt.Errorf("empty version")
	}
	if idx := strings.IndexAny(trimmed, "-+"); idx != -1 {
		trimmed = trimmed[:idx]
	}

	parts := strings.Split(trimmed, ".")
	if len(parts) > 3 {
		return formatVersion{}, fmt.Errorf("invalid version %q", raw)
	}
	vals := []int{0, 0, 0}
	for i, part := range parts {
		val, err := strconv.Atoi(part)
		if err != nil || val < 0 {
			return formatVersion{}, fmt.Errorf("invalid version segment %q", part)
		}
		vals[i] = val
	}
	return formatVersion{Major: vals[0], Minor: vals[1], Patch: vals[2]}, nil
}

// CheckFormat reports whether a bundle written with format version raw can
// be read: the major version must match and the minor version must not be
// newer than FormatVersion.
func CheckFormat(raw string) error {
	got, err := parseFormatVersion(raw)
	if err != nil {
		return fmt.Errorf("bundle format: %w", err)
	}
	want, _ := parseFormatVersion(FormatVersion)
	if got.Major != want.Major || got.Minor > want.Minor {
		return fmt.Errorf("bundle format %s is not supported (reader is %s)", raw, FormatVersion)
	}
	return nil
}
