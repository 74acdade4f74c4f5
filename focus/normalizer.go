// Package focus - rescales a photo to the canonical card width and crops the
// region the pattern is scored on.
//
// The focus area is the widest band on one side of the color card, minus a
// margin around the card and the outer edges of the frame:
//
//	┌──────────────────────────────────────────┐
//	│               row margin                 │
//	│ ┌──────────────────────┐ gap ┌────┐ gap  │
//	│ │      focus area      │     │card│      │
//	│ └──────────────────────┘     └────┘      │
//	│               row margin                 │
//	└──────────────────────────────────────────┘
package focus

import (
	"image"
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-emboss/colorcard"
	"github.com/nvr-ai/go-emboss/config"
	"github.com/nvr-ai/go-emboss/images"
	"github.com/nvr-ai/go-emboss/score"
)

// Side tells which side of the color card the focus area lies on.
type Side int

const (
	// Left of the card.
	Left Side = iota
	// Right of the card.
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Area is the cropped, rescaled region the template is matched against.
type Area struct {
	// Mat is a CV32F copy of the focus area. The Area owns it.
	Mat gocv.Mat
	// Rect is the focus area in rescaled image coordinates.
	Rect images.Rect
	// Ratio is the scale applied to the input image.
	Ratio float64
	// Card is the excluded band around the color card, in rescaled coordinates.
	Card images.Rect
	// Side is where the focus area lies relative to the card.
	Side Side
}

// Close releases the area Mat.
func (a *Area) Close() error {
	return a.Mat.Close()
}

// Normalizer rescales images and selects the focus area. It is safe for
// concurrent use.
type Normalizer struct {
	cfg config.Focus
}

// NewNormalizer creates a Normalizer with the given tuning.
func NewNormalizer(cfg config.Focus) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// Normalize rescales gray so the card measures KnownCardWidthPx and crops the
// focus area.
//
// Arguments:
//   - gray: The CV32F image the card was located in. It is not modified.
//   - loc: The located card.
//
// Returns:
//   - *Area: The focus area. The caller owns it and must Close it.
//   - error: score.ErrInsufficientArea when no side of the card leaves room.
func (n *Normalizer) Normalize(gray gocv.Mat, loc colorcard.Location) (*Area, error) {
	if loc.EstimatedWidth <= 0 || math.IsNaN(loc.EstimatedWidth) {
		return nil, errors.Errorf("normalize: card width %v", loc.EstimatedWidth)
	}
	ratio := n.cfg.KnownCardWidthPx / loc.EstimatedWidth

	scaled, err := images.ScaleMat(gray, ratio)
	if err != nil {
		return nil, errors.Wrap(err, "normalize")
	}
	defer scaled.Close()

	size := images.MatSize(scaled)
	cx := loc.Centroid.Col * ratio

	rect, side, err := n.FocusRect(size, cx)
	if err != nil {
		return nil, err
	}

	region := scaled.Region(rect.Image())
	mat := region.Clone()
	region.Close()

	return &Area{
		Mat:   mat,
		Rect:  rect,
		Ratio: ratio,
		Card:  n.CardBand(size, cx),
		Side:  side,
	}, nil
}

// FocusRect picks the focus area for an image of the given size whose card is
// centred on column centroidCol. The wider of the two sides wins; a tie goes to
// the right.
//
// Returns:
//   - images.Rect: The focus area, never intersecting CardBand.
//   - Side: The chosen side.
//   - error: score.ErrInsufficientArea when the chosen rectangle is empty.
func (n *Normalizer) FocusRect(size image.Point, centroidCol float64) (images.Rect, Side, error) {
	h0, h1 := n.rowBounds(size.Y)
	lo, hi := n.cardEdges(size.Y, centroidCol)

	left := images.Rect{
		X1: int(float64(size.X) * n.cfg.ColMarginFraction),
		Y1: h0,
		X2: int(lo),
		Y2: h1,
	}
	right := images.Rect{
		X1: int(hi),
		Y1: h0,
		X2: int(float64(size.X) * (1 - n.cfg.ColMarginFraction)),
		Y2: h1,
	}

	rect, side := right, Right
	if left.Dx() > right.Dx() {
		rect, side = left, Left
	}
	if rect.Empty() {
		return images.Rect{}, side, errors.Wrapf(score.ErrInsufficientArea,
			"no room beside card at column %.1f in %dx%d", centroidCol, size.X, size.Y)
	}
	return rect, side, nil
}

// CardBand is the excluded band around the card, clipped to the image.
func (n *Normalizer) CardBand(size image.Point, centroidCol float64) images.Rect {
	h0, h1 := n.rowBounds(size.Y)
	lo, hi := n.cardEdges(size.Y, centroidCol)
	return images.Rect{
		X1: max(int(lo), 0),
		Y1: h0,
		X2: min(int(hi), size.X),
		Y2: h1,
	}
}

func (n *Normalizer) rowBounds(height int) (int, int) {
	h0 := int(float64(height) * n.cfg.RowMarginFraction)
	return h0, height - h0
}

// cardEdges returns the card band edges: half the known card width plus the gap
// on each side of the centroid.
func (n *Normalizer) cardEdges(height int, centroidCol float64) (float64, float64) {
	half := n.cfg.KnownCardWidthPx / 2
	gap := n.cfg.CardGapFraction * float64(height)
	return centroidCol - half - gap, centroidCol + half + gap
}
