package model

import (
	"fmt"
	"image/color"
	"sort"
	"strings"
)

// BackgroundKind selects how the compositor fills behind the subject.
type BackgroundKind string

const (
	BackgroundTransparent BackgroundKind = "transparent"
	BackgroundSolid       BackgroundKind = "solid"
	BackgroundCustom      BackgroundKind = "custom"
	BackgroundPreset      BackgroundKind = "preset"
)

// presetColors maps preset names to their fixed backdrop colors. Unknown
// names resolve to DefaultPresetColor instead of erroring.
var presetColors = map[string]color.NRGBA{
	"white":    {R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
	"gray":     {R: 0x80, G: 0x80, B: 0x80, A: 0xFF},
	"dark":     {R: 0x1F, G: 0x29, B: 0x37, A: 0xFF},
	"showroom": {R: 0x2D, G: 0x37, B: 0x48, A: 0xFF},
	"indoor":   {R: 0x1A, G: 0x1A, B: 0x2E, A: 0xFF},
	"outdoor":  {R: 0x87, G: 0xCE, B: 0xEB, A: 0xFF},
	"studio":   {R: 0x2D, G: 0x37, B: 0x48, A: 0xFF},
	"garage":   {R: 0x3D, G: 0x3D, B: 0x3D, A: 0xFF},
}

// DefaultPresetColor is the studio backdrop used for unrecognized presets.
var DefaultPresetColor = color.NRGBA{R: 0x2D, G: 0x37, B: 0x48, A: 0xFF}

// PresetNames lists the recognized preset backdrop names in sorted order.
func PresetNames() []string {
	names := make([]string, 0, len(presetColors))
	for name := range presetColors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackgroundSpec is an immutable description of the requested backdrop,
// constructed once from the request and resolved by the compositor.
type BackgroundSpec struct {
	Kind   BackgroundKind
	Color  color.NRGBA // solid
	URL    string      // custom
	Preset string      // preset
}

// ParseBackgroundSpec builds a BackgroundSpec from the request triple.
// An empty type means transparent. A type that is neither transparent, solid
// nor custom is treated as a preset name.
func ParseBackgroundSpec(bgType, bgColor, bgURL string) (BackgroundSpec, error) {
	switch bgType {
	case "", string(BackgroundTransparent):
		return BackgroundSpec{Kind: BackgroundTransparent}, nil
	case string(BackgroundSolid):
		if bgColor == "" {
			return BackgroundSpec{}, fmt.Errorf("background_color is required for solid backgrounds")
		}
		c, err := ParseHexColor(bgColor)
		if err != nil {
			return BackgroundSpec{}, err
		}
		return BackgroundSpec{Kind: BackgroundSolid, Color: c}, nil
	case string(BackgroundCustom):
		if bgURL == "" {
			return BackgroundSpec{}, fmt.Errorf("background_url is required for custom backgrounds")
		}
		return BackgroundSpec{Kind: BackgroundCustom, URL: bgURL}, nil
	default:
		return BackgroundSpec{Kind: BackgroundPreset, Preset: bgType}, nil
	}
}

// ResolveColor returns the concrete backdrop color for solid and preset specs.
func (s BackgroundSpec) ResolveColor() color.NRGBA {
	switch s.Kind {
	case BackgroundSolid:
		return s.Color
	case BackgroundPreset:
		if c, ok := presetColors[strings.ToLower(s.Preset)]; ok {
			return c
		}
		return DefaultPresetColor
	default:
		return DefaultPresetColor
	}
}

// Directive renders the spec as the remote API background field:
// "transparent", a hex color, or a preset name.
func (s BackgroundSpec) Directive() string {
	switch s.Kind {
	case BackgroundSolid:
		return fmt.Sprintf("#%02X%02X%02X", s.Color.R, s.Color.G, s.Color.B)
	case BackgroundPreset:
		return strings.ToLower(s.Preset)
	case BackgroundCustom:
		return s.URL
	default:
		return "transparent"
	}
}

// ParseHexColor parses "#RRGGBB" (the leading # optional) into a color.
func ParseHexColor(s string) (color.NRGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.NRGBA{}, fmt.Errorf("invalid hex color %q: %w", s, err)
	}
	return color.NRGBA{R: r, G: g, B: b, A: 0xFF}, nil
}
