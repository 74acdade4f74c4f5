// Package matcher - correlates the reference template against a focus area and
// extracts local correlation peaks.
//
// The correlation field has the same shape as the area: field(r,c) scores the
// template centred on (r,c). The area is zero padded so that every position has
// a score. A peak is a position whose score equals the maximum of its
// PeakWindow x PeakWindow neighbourhood; plateaus yield one peak per position.
package matcher

import (
	"image"
	"image/color"
	"sort"

	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-emboss/config"
	"github.com/nvr-ai/go-emboss/images"
	"github.com/nvr-ai/go-emboss/score"
	"github.com/nvr-ai/go-emboss/templates"
)

// ErrEmptyInput is returned when the area or the template has no pixels.
var ErrEmptyInput = errors.New("empty matcher input")

// Peak is a local maximum of the correlation field.
type Peak struct {
	Row    int     `json:"row" yaml:"row"`
	Col    int     `json:"col" yaml:"col"`
	Height float32 `json:"height" yaml:"height"`
}

// PeakSet holds peaks in row-major order unless sorted.
type PeakSet []Peak

// Heights returns the peak heights in set order.
func (p PeakSet) Heights() []float32 {
	out := make([]float32, len(p))
	for i, pk := range p {
		out[i] = pk.Height
	}
	return out
}

// Sorted returns a copy ordered by height, highest first. Equal heights keep
// their relative order.
func (p PeakSet) Sorted() PeakSet {
	out := make(PeakSet, len(p))
	copy(out, p)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Height > out[j].Height })
	return out
}

// Matcher runs template correlation. It is safe for concurrent use.
type Matcher struct {
	cfg config.Matcher
}

// NewMatcher creates a Matcher with the given tuning.
func NewMatcher(cfg config.Matcher) *Matcher {
	return &Matcher{cfg: cfg}
}

// Field computes the normalized cross-correlation of tmpl centred on every
// pixel of area.
//
// Arguments:
//   - area: The CV32F focus area. It is not modified.
//   - tmpl: A CV32F template no larger than area in either axis.
//
// Returns:
//   - gocv.Mat: A CV32F Mat the size of area. The caller owns it.
//   - error: ErrEmptyInput or score.ErrInsufficientArea.
func (m *Matcher) Field(area, tmpl gocv.Mat) (gocv.Mat, error) {
	if area.Empty() || tmpl.Empty() {
		return gocv.NewMat(), ErrEmptyInput
	}
	if area.Type() != tmpl.Type() {
		return gocv.NewMat(), errors.Errorf("match: area type %v differs from template type %v", area.Type(), tmpl.Type())
	}
	th, tw := tmpl.Rows(), tmpl.Cols()
	if area.Rows() < th || area.Cols() < tw {
		return gocv.NewMat(), errors.Wrapf(score.ErrInsufficientArea,
			"area %dx%d smaller than template %dx%d", area.Cols(), area.Rows(), tw, th)
	}

	top, left := (th-1)/2, (tw-1)/2
	padded := gocv.NewMat()
	defer padded.Close()
	if err := gocv.CopyMakeBorder(area, &padded, top, th-1-top, left, tw-1-left,
		gocv.BorderConstant, color.RGBA{}); err != nil {
		return gocv.NewMat(), errors.Wrap(err, "pad area")
	}

	mask := gocv.NewMat()
	defer mask.Close()
	field := gocv.NewMat()
	if err := gocv.MatchTemplate(padded, tmpl, &field, gocv.TmCcoeffNormed, mask); err != nil {
		field.Close()
		return gocv.NewMat(), errors.Wrap(err, "match template")
	}
	return field, nil
}

// Match returns the local maxima of the correlation field in row-major order.
// NaN and infinite scores are never peaks.
func (m *Matcher) Match(area, tmpl gocv.Mat) (PeakSet, error) {
	field, err := m.Field(area, tmpl)
	if err != nil {
		return nil, err
	}
	defer field.Close()

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(m.cfg.PeakWindow, m.cfg.PeakWindow))
	defer kernel.Close()
	dilated := gocv.NewMat()
	defer dilated.Close()
	if err := gocv.Dilate(field, &dilated, kernel); err != nil {
		return nil, errors.Wrap(err, "max filter")
	}

	scores, err := images.GrayPixels(field)
	if err != nil {
		return nil, errors.Wrap(err, "field")
	}
	maxima, err := images.GrayPixels(dilated)
	if err != nil {
		return nil, errors.Wrap(err, "max filter")
	}

	cols := field.Cols()
	var peaks PeakSet
	for i, v := range scores {
		if math32.IsNaN(v) || math32.IsInf(v, 0) {
			continue
		}
		if v == maxima[i] {
			peaks = append(peaks, Peak{Row: i / cols, Col: i % cols, Height: v})
		}
	}
	return peaks, nil
}

// MatchAll matches every orientation of tmpl against area.
func (m *Matcher) MatchAll(area gocv.Mat, tmpl *templates.Template) (map[templates.Orientation]PeakSet, error) {
	out := make(map[templates.Orientation]PeakSet, len(templates.Orientations))
	for _, o := range templates.Orientations {
		oriented, err := tmpl.Oriented(o)
		if err != nil {
			return nil, err
		}
		peaks, err := m.Match(area, oriented)
		oriented.Close()
		if err != nil {
			return nil, errors.Wrapf(err, "%s template", o)
		}
		out[o] = peaks
	}
	return out, nil
}
