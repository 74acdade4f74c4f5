// Package config - tuning surface for the pattern quality pipeline.
//
// Every empirical constant used by the scorer lives here as a named value. The
// defaults are calibrated for one physical color card and camera setup.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig is returned when a configuration value is out of range.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete scorer configuration.
type Config struct {
	// Template selects and prepares the reference pattern.
	Template Template `json:"template" yaml:"template"`
	// ColorCard tunes the color card locator.
	ColorCard ColorCard `json:"color_card" yaml:"color_card"`
	// Focus tunes rescaling and the focus area crop.
	Focus Focus `json:"focus" yaml:"focus"`
	// Matcher tunes correlation peak extraction.
	Matcher Matcher `json:"matcher" yaml:"matcher"`
	// Image tunes input decoding.
	Image Image `json:"image" yaml:"image"`
	// Batch tunes directory processing.
	Batch Batch `json:"batch" yaml:"batch"`
}

// Template configures the embedded reference pattern.
type Template struct {
	// Version names the embedded payload to decode.
	Version string `json:"version" yaml:"version"`
	// TrimRows is removed from both the top and the bottom of the decoded bitmap.
	// It strips a border artifact of the encoding round-trip; tuned, not measured.
	TrimRows int `json:"trim_rows" yaml:"trim_rows"`
	// Scale resizes the template after trimming. 1 keeps the native size.
	Scale float64 `json:"scale" yaml:"scale"`
}

// ColorCard configures the color card locator.
type ColorCard struct {
	// HistogramBins is the number of intensity bins used to derive the threshold.
	HistogramBins int `json:"histogram_bins" yaml:"histogram_bins"`
	// ThresholdFraction places the dark threshold within the bin-centre range.
	ThresholdFraction float64 `json:"threshold_fraction" yaml:"threshold_fraction"`
	// BandFraction is the share of rows ignored at the top and at the bottom.
	BandFraction float64 `json:"band_fraction" yaml:"band_fraction"`
	// MinAreaFraction and MaxAreaFraction bound the convex area (inclusive),
	// as a share of the whole image area.
	MinAreaFraction float64 `json:"min_area_fraction" yaml:"min_area_fraction"`
	MaxAreaFraction float64 `json:"max_area_fraction" yaml:"max_area_fraction"`
	// MinAspect (exclusive) and MaxAspect (inclusive) bound bbox height/width.
	MinAspect float64 `json:"min_aspect" yaml:"min_aspect"`
	MaxAspect float64 `json:"max_aspect" yaml:"max_aspect"`
	// WidthCorrection relates convex area to physical card width:
	// width = sqrt(area * WidthCorrection).
	WidthCorrection float64 `json:"width_correction" yaml:"width_correction"`
}

// Focus configures rescaling and the focus area crop.
type Focus struct {
	// KnownCardWidthPx is the card width in pixels at the canonical resolution.
	KnownCardWidthPx float64 `json:"known_card_width_px" yaml:"known_card_width_px"`
	// RowMarginFraction is cropped from the top and bottom of the rescaled image.
	RowMarginFraction float64 `json:"row_margin_fraction" yaml:"row_margin_fraction"`
	// ColMarginFraction is cropped from the outer left/right edge.
	ColMarginFraction float64 `json:"col_margin_fraction" yaml:"col_margin_fraction"`
	// CardGapFraction, a share of the image height, separates the crop from the card.
	CardGapFraction float64 `json:"card_gap_fraction" yaml:"card_gap_fraction"`
}

// Matcher configures peak extraction.
type Matcher struct {
	// PeakWindow is the side of the square local-maximum neighborhood.
	PeakWindow int `json:"peak_window" yaml:"peak_window"`
}

// Image configures decoding of input files.
type Image struct {
	// AutoOrient applies the EXIF orientation tag when decoding.
	AutoOrient bool `json:"auto_orient" yaml:"auto_orient"`
}

// Batch configures directory processing.
type Batch struct {
	// Extensions lists scanned file suffixes, compared case-insensitively.
	Extensions []string `json:"extensions" yaml:"extensions"`
	// Workers is the number of images scored concurrently. 1 is sequential.
	Workers int `json:"workers" yaml:"workers"`
	// Output is the CSV file written after a batch run.
	Output string `json:"output" yaml:"output"`
}

// Default returns the configuration the tool was calibrated with.
func Default() Config {
	return Config{
		Template: Template{
			Version:  "20240809",
			TrimRows: 15,
			Scale:    1,
		},
		ColorCard: ColorCard{
			HistogramBins:     100,
			ThresholdFraction: 0.2,
			BandFraction:      0.1,
			MinAreaFraction:   0.072,
			MaxAreaFraction:   0.085,
			MinAspect:         1.60,
			MaxAspect:         1.70,
			WidthCorrection:   0.6,
		},
		Focus: Focus{
			KnownCardWidthPx:  1091,
			RowMarginFraction: 0.1,
			ColMarginFraction: 0.05,
			CardGapFraction:   0.05,
		},
		Matcher: Matcher{
			PeakWindow: 100,
		},
		Batch: Batch{
			Extensions: []string{".JPG", ".CR2"},
			Workers:    1,
			Output:     "results.csv",
		},
	}
}

// Load reads a YAML file on top of the defaults and validates the result.
//
// Arguments:
//   - path: The YAML file to read. Fields absent from the file keep their defaults.
//
// Returns:
//   - Config: The merged configuration.
//   - error: An error if the file cannot be read, parsed or validated.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "read config %s", path)
	}
	return Parse(data)
}

// Parse decodes YAML bytes on top of the defaults. Unknown keys are rejected so
// that a misspelled tuning constant does not silently fall back to its default.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every value is usable.
func (c Config) Validate() error {
	check := func(ok bool, format string, args ...interface{}) error {
		if ok {
			return nil
		}
		return errors.Wrapf(ErrInvalidConfig, format, args...)
	}

	cc := c.ColorCard
	f := c.Focus
	for _, err := range []error{
		check(c.Template.Version != "", "template.version is empty"),
		check(c.Template.TrimRows >= 0, "template.trim_rows %d < 0", c.Template.TrimRows),
		check(c.Template.Scale > 0, "template.scale %v <= 0", c.Template.Scale),
		check(cc.HistogramBins >= 2, "color_card.histogram_bins %d < 2", cc.HistogramBins),
		check(cc.ThresholdFraction > 0 && cc.ThresholdFraction < 1,
			"color_card.threshold_fraction %v not in (0,1)", cc.ThresholdFraction),
		check(cc.BandFraction >= 0 && cc.BandFraction < 0.5,
			"color_card.band_fraction %v not in [0,0.5)", cc.BandFraction),
		check(cc.MinAreaFraction > 0 && cc.MinAreaFraction <= cc.MaxAreaFraction && cc.MaxAreaFraction < 1,
			"color_card area band [%v,%v] invalid", cc.MinAreaFraction, cc.MaxAreaFraction),
		check(cc.MinAspect > 0 && cc.MinAspect < cc.MaxAspect,
			"color_card aspect band (%v,%v] invalid", cc.MinAspect, cc.MaxAspect),
		check(cc.WidthCorrection > 0, "color_card.width_correction %v <= 0", cc.WidthCorrection),
		check(f.KnownCardWidthPx > 0, "focus.known_card_width_px %v <= 0", f.KnownCardWidthPx),
		check(f.RowMarginFraction >= 0 && f.RowMarginFraction < 0.5,
			"focus.row_margin_fraction %v not in [0,0.5)", f.RowMarginFraction),
		check(f.ColMarginFraction >= 0 && f.ColMarginFraction < 0.5,
			"focus.col_margin_fraction %v not in [0,0.5)", f.ColMarginFraction),
		check(f.CardGapFraction >= 0, "focus.card_gap_fraction %v < 0", f.CardGapFraction),
		check(c.Matcher.PeakWindow >= 1, "matcher.peak_window %d < 1", c.Matcher.PeakWindow),
		check(len(c.Batch.Extensions) > 0, "batch.extensions is empty"),
		check(c.Batch.Workers >= 1, "batch.workers %d < 1", c.Batch.Workers),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}
