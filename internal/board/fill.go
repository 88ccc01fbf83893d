package board

import (
	"strconv"
	"strings"
)

// ParseFill decodes the CSS-style color strings shapes carry: the fixed
// "rgba(r, g, b, a)" fills, "#RRGGBB" palette colors and the named colors.
// Unparseable strings come back opaque black.
func ParseFill(s string) (r, g, b uint8, a float64) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		parts := strings.Split(s[len("rgba("):len(s)-1], ",")
		if len(parts) != 4 {
			return 0, 0, 0, 1
		}
		vals := make([]float64, 4)
		for i, p := range parts {
			v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return 0, 0, 0, 1
			}
			vals[i] = v
		}
		return clamp8(vals[0]), clamp8(vals[1]), clamp8(vals[2]), clampA(vals[3])
	case strings.HasPrefix(s, "#") && len(s) == 7:
		v, err := strconv.ParseUint(s[1:], 16, 32)
		if err != nil {
			return 0, 0, 0, 1
		}
		return uint8(v >> 16), uint8(v >> 8 & 0xFF), uint8(v & 0xFF), 1
	case s == "white":
		return 255, 255, 255, 1
	default:
		return 0, 0, 0, 1
	}
}

func clamp8(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func clampA(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
