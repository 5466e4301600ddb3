package util

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/oszuidwest/zwfm-soundguard/internal/peripheral"
)

// hexColorPattern matches #RRGGBB color strings.
var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// IsHexColor reports whether s is a #RRGGBB color.
func IsHexColor(s string) bool {
	return hexColorPattern.MatchString(s)
}

// ParseHexColor parses a hex color string (#RRGGBB) into a pixel color.
func ParseHexColor(hex string) (peripheral.RGB, error) {
	if !IsHexColor(hex) {
		return peripheral.RGB{}, fmt.Errorf("invalid hex color %q: must be #RRGGBB", hex)
	}

	var r, g, b int
	if _, err := fmt.Sscanf(strings.TrimPrefix(hex, "#"), "%02x%02x%02x", &r, &g, &b); err != nil {
		return peripheral.RGB{}, fmt.Errorf("invalid hex color: %s", hex)
	}

	return peripheral.RGB{R: uint8(r), G: uint8(g), B: uint8(b)}, nil //nolint:gosec // Values are validated to be 0-255 by hex parsing
}

// FormatHexColor converts a pixel color to a hex color string (#RRGGBB).
func FormatHexColor(c peripheral.RGB) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
