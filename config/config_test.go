package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 1091.0, cfg.Focus.KnownCardWidthPx)
	assert.Equal(t, 100, cfg.ColorCard.HistogramBins)
	assert.Equal(t, 100, cfg.Matcher.PeakWindow)
	assert.Equal(t, 15, cfg.Template.TrimRows)
	assert.Equal(t, []string{".JPG", ".CR2"}, cfg.Batch.Extensions)
}

func TestParseOverridesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(`
focus:
  known_card_width_px: 512
matcher:
  peak_window: 64
batch:
  workers: 4
`))
	require.NoError(t, err)

	assert.Equal(t, 512.0, cfg.Focus.KnownCardWidthPx)
	assert.Equal(t, 64, cfg.Matcher.PeakWindow)
	assert.Equal(t, 4, cfg.Batch.Workers)
	// Untouched sections keep their defaults.
	assert.Equal(t, 0.072, cfg.ColorCard.MinAreaFraction)
	assert.Equal(t, 0.1, cfg.Focus.RowMarginFraction)
}

func TestParseEmptyIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "focus:\n  known_card_width: 12\n"},
		{"negative width", "focus:\n  known_card_width_px: -1\n"},
		{"inverted area band", "color_card:\n  min_area_fraction: 0.09\n  max_area_fraction: 0.08\n"},
		{"inverted aspect band", "color_card:\n  min_aspect: 1.8\n  max_aspect: 1.7\n"},
		{"zero window", "matcher:\n  peak_window: 0\n"},
		{"zero workers", "batch:\n  workers: 0\n"},
		{"threshold out of range", "color_card:\n  threshold_fraction: 1.5\n"},
		{"malformed", "focus: [1, 2\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestValidateWrapsSentinel(t *testing.T) {
	cfg := Default()
	cfg.Template.Scale = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emboss.yaml")
	require.NoError(t, os.WriteFile(path, []byte("template:\n  trim_rows: 10\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Template.TrimRows)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
