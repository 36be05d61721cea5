package annotation

import (
	"math"
	"strconv"
	"strings"
)

// rgba is a CSS color in 8-bit channels with alpha in [0, 1].
type rgba struct {
	R, G, B uint8
	A       float64
}

func (c rgba) equal(o rgba) bool {
	return c.R == o.R && c.G == o.G && c.B == o.B && math.Abs(c.A-o.A) < 1e-3
}

// parseColor reads hex (#rgb, #rgba, #rrggbb, #rrggbbaa) and functional
// rgb()/rgba() colors, with comma or space separated channels, percentages
// and an optional "/ alpha". Named colors are not recognized.
func parseColor(s string) (rgba, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.TrimSpace(strings.TrimSuffix(s, "!important"))

	if hex, ok := strings.CutPrefix(s, "#"); ok {
		return parseHex(hex)
	}

	var body string
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		body = s[len("rgba(") : len(s)-1]
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		body = s[len("rgb(") : len(s)-1]
	default:
		return rgba{}, false
	}

	var parts []string
	if strings.Contains(body, ",") {
		for _, p := range strings.Split(body, ",") {
			parts = append(parts, strings.TrimSpace(p))
		}
	} else {
		chans, alpha, hasAlpha := strings.Cut(body, "/")
		parts = strings.Fields(chans)
		if hasAlpha {
			parts = append(parts, strings.TrimSpace(alpha))
		}
	}
	if len(parts) != 3 && len(parts) != 4 {
		return rgba{}, false
	}

	c := rgba{A: 1}
	for i, dst := range []*uint8{&c.R, &c.G, &c.B} {
		v, ok := channel(parts[i])
		if !ok {
			return rgba{}, false
		}
		*dst = v
	}
	if len(parts) == 4 {
		a, ok := alphaValue(parts[3])
		if !ok {
			return rgba{}, false
		}
		c.A = a
	}
	return c, true
}

func parseHex(hex string) (rgba, bool) {
	switch len(hex) {
	case 3, 4:
		var b strings.Builder
		for _, r := range hex {
			b.WriteRune(r)
			b.WriteRune(r)
		}
		hex = b.String()
	case 6, 8:
	default:
		return rgba{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return rgba{}, false
	}
	if len(hex) == 6 {
		return rgba{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 1}, true
	}
	return rgba{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: float64(uint8(v)) / 255}, true
}

func channel(s string) (uint8, bool) {
	scale := 1.0
	if p, ok := strings.CutSuffix(s, "%"); ok {
		s, scale = p, 255.0/100
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	f = math.Round(math.Max(0, math.Min(255, f*scale)))
	return uint8(f), true
}

func alphaValue(s string) (float64, bool) {
	scale := 1.0
	if p, ok := strings.CutSuffix(s, "%"); ok {
		s, scale = p, 0.01
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return math.Max(0, math.Min(1, f*scale)), true
}

// withColor returns style with its color declaration set to color. Other
// declarations keep their order; an existing color is replaced in place.
func withColor(style, color string) string {
	decl := "color: " + color
	var out []string
	replaced := false
	for _, d := range strings.Split(style, ";") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		prop, _, _ := strings.Cut(d, ":")
		if strings.EqualFold(strings.TrimSpace(prop), "color") {
			if !replaced {
				out = append(out, decl)
				replaced = true
			}
			continue
		}
		out = append(out, d)
	}
	if !replaced {
		out = append(out, decl)
	}
	return strings.Join(out, "; ")
}
