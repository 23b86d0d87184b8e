package model

import (
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackgroundSpec(t *testing.T) {
	tests := []struct {
		name    string
		bgType  string
		bgColor string
		bgURL   string
		want    BackgroundKind
		wantErr bool
	}{
		{name: "empty defaults to transparent", bgType: "", want: BackgroundTransparent},
		{name: "explicit transparent", bgType: "transparent", want: BackgroundTransparent},
		{name: "solid with color", bgType: "solid", bgColor: "#112233", want: BackgroundSolid},
		{name: "solid without color", bgType: "solid", wantErr: true},
		{name: "solid with bad color", bgType: "solid", bgColor: "red", wantErr: true},
		{name: "custom with url", bgType: "custom", bgURL: "http://example.com/bg.jpg", want: BackgroundCustom},
		{name: "custom without url", bgType: "custom", wantErr: true},
		{name: "preset name", bgType: "showroom", want: BackgroundPreset},
		{name: "unknown name treated as preset", bgType: "warehouse", want: BackgroundPreset},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseBackgroundSpec(tt.bgType, tt.bgColor, tt.bgURL)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, spec.Kind)
		})
	}
}

func TestResolveColor(t *testing.T) {
	tests := []struct {
		name string
		spec BackgroundSpec
		want color.NRGBA
	}{
		{
			name: "solid returns its own color",
			spec: BackgroundSpec{Kind: BackgroundSolid, Color: color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xFF}},
			want: color.NRGBA{R: 0x11, G: 0x22, B: 0x33, A: 0xFF},
		},
		{
			name: "white preset",
			spec: BackgroundSpec{Kind: BackgroundPreset, Preset: "white"},
			want: color.NRGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF},
		},
		{
			name: "preset lookup is case insensitive",
			spec: BackgroundSpec{Kind: BackgroundPreset, Preset: "Outdoor"},
			want: color.NRGBA{R: 0x87, G: 0xCE, B: 0xEB, A: 0xFF},
		},
		{
			name: "unknown preset falls back to studio default",
			spec: BackgroundSpec{Kind: BackgroundPreset, Preset: "warehouse"},
			want: DefaultPresetColor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.spec.ResolveColor())
		})
	}
}

func TestDirective(t *testing.T) {
	solid, err := ParseBackgroundSpec("solid", "112233", "")
	require.NoError(t, err)
	assert.Equal(t, "#112233", solid.Directive())

	assert.Equal(t, "transparent", BackgroundSpec{Kind: BackgroundTransparent}.Directive())
	assert.Equal(t, "showroom", BackgroundSpec{Kind: BackgroundPreset, Preset: "Showroom"}.Directive())
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#FFCC00")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xFF, G: 0xCC, B: 0x00, A: 0xFF}, c)

	c, err = ParseHexColor("ffcc00")
	require.NoError(t, err)
	assert.Equal(t, color.NRGBA{R: 0xFF, G: 0xCC, B: 0x00, A: 0xFF}, c)

	_, err = ParseHexColor("#fff")
	assert.Error(t, err)
}
