// Package colorcard - finds the near-black reference card in a grayscale photo.
//
// The card is the darkest large object in frame and the only scale reference.
// A dark blob is accepted when its convex area and portrait aspect ratio both
// fall inside the configured bands.
//
// Pipeline Overview:
//
//	gray ──► histogram threshold ──► mask (minus top/bottom bands)
//	     ──► 8-connected labeling ──► first component passing area + aspect
//	     ──► Location{centroid, estimated width}
package colorcard

import (
	"math"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-emboss/config"
	"github.com/nvr-ai/go-emboss/images"
)

// ErrCardNotFound is returned when no component satisfies the card filters.
var ErrCardNotFound = errors.New("color card not found")

// Columns of the stats Mat filled by gocv.ConnectedComponentsWithStats.
const (
	statLeft = iota
	statTop
	statWidth
	statHeight
	statArea
)

// Point is a sub-pixel position in row/column terms.
type Point struct {
	Row float64 `json:"row" yaml:"row"`
	Col float64 `json:"col" yaml:"col"`
}

// Component describes one connected region of the dark mask.
type Component struct {
	// Label is the connected component label.
	Label int `json:"label" yaml:"label"`
	// Area is the pixel count.
	Area int `json:"area" yaml:"area"`
	// ConvexArea is the area of the convex hull of the component's pixel squares.
	ConvexArea float64 `json:"convex_area" yaml:"convex_area"`
	// BBox is the bounding box, max edges exclusive.
	BBox images.Rect `json:"bbox" yaml:"bbox"`
	// Centroid is the mean pixel position.
	Centroid Point `json:"centroid" yaml:"centroid"`
}

// Location is the accepted color card.
type Location struct {
	// Centroid of the card in image coordinates.
	Centroid Point `json:"centroid" yaml:"centroid"`
	// EstimatedWidth is the card width in pixels derived from its convex area.
	EstimatedWidth float64 `json:"estimated_width" yaml:"estimated_width"`
	// Component is the accepted region.
	Component Component `json:"component" yaml:"component"`
}

// Locator finds the color card. It holds no per-image state and is safe for
// concurrent use.
type Locator struct {
	cfg config.ColorCard
}

// NewLocator creates a Locator with the given tuning.
func NewLocator(cfg config.ColorCard) *Locator {
	return &Locator{cfg: cfg}
}

// Locate finds the color card in gray.
//
// Components are visited in raster order of their first pixel and the first one
// that passes both the convex area band and the aspect band is returned. This is
// a first match, not a best match.
//
// Arguments:
//   - gray: A single channel CV32F image. It is not modified.
//
// Returns:
//   - Location: The card centroid and estimated width.
//   - error: ErrCardNotFound when no component qualifies.
func (l *Locator) Locate(gray gocv.Mat) (Location, error) {
	if gray.Empty() {
		return Location{}, errors.Wrap(ErrCardNotFound, "empty image")
	}
	rows, cols := gray.Rows(), gray.Cols()

	pix, err := images.GrayPixels(gray)
	if err != nil {
		return Location{}, errors.Wrap(err, "locate")
	}

	threshold, ok := l.Threshold(pix)
	if !ok {
		return Location{}, errors.Wrap(ErrCardNotFound, "constant image")
	}

	mask, err := l.darkMask(pix, rows, cols, threshold)
	if err != nil {
		return Location{}, err
	}
	defer mask.Close()

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()

	n := gocv.ConnectedComponentsWithStats(mask, &labels, &stats, &centroids)
	if n <= 1 {
		return Location{}, errors.Wrap(ErrCardNotFound, "no dark regions")
	}

	labelData, err := labels.DataPtrInt32()
	if err != nil {
		return Location{}, errors.Wrap(err, "labels")
	}

	total := float64(rows * cols)
	minArea := l.cfg.MinAreaFraction * total
	maxArea := l.cfg.MaxAreaFraction * total

	stat := func(label, col int) int { return int(stats.GetIntAt(label, col)) }

	for _, label := range rasterOrder(labelData, n) {
		c := Component{
			Label: label,
			Area:  stat(label, statArea),
			BBox: images.Rect{
				X1: stat(label, statLeft),
				Y1: stat(label, statTop),
			},
			Centroid: Point{
				Row: centroids.GetDoubleAt(label, 1),
				Col: centroids.GetDoubleAt(label, 0),
			},
		}
		c.BBox.X2 = c.BBox.X1 + stat(label, statWidth)
		c.BBox.Y2 = c.BBox.Y1 + stat(label, statHeight)

		// The hull lies between the pixel count and the bbox area.
		if float64(c.Area) > maxArea || float64(c.BBox.Area()) < minArea {
			continue
		}
		aspect := float64(c.BBox.Dy()) / float64(c.BBox.Dx())
		if aspect <= l.cfg.MinAspect || aspect > l.cfg.MaxAspect {
			continue
		}

		c.ConvexArea = polygonArea(convexHull(spanCorners(componentSpans(labelData, cols, label, c.BBox))))
		if c.ConvexArea < minArea || c.ConvexArea > maxArea {
			continue
		}

		return Location{
			Centroid:       c.Centroid,
			EstimatedWidth: math.Sqrt(c.ConvexArea * l.cfg.WidthCorrection),
			Component:      c,
		}, nil
	}

	return Location{}, errors.Wrapf(ErrCardNotFound, "%d dark regions, none card shaped", n-1)
}

// Threshold returns the dark threshold for pix: the first histogram bin centre
// plus ThresholdFraction of the span to the last bin centre. ok is false for a
// constant image.
func (l *Locator) Threshold(pix []float32) (threshold float32, ok bool) {
	if len(pix) == 0 {
		return 0, false
	}
	lo, hi := pix[0], pix[0]
	for _, v := range pix[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	if hi <= lo {
		return 0, false
	}

	width := (float64(hi) - float64(lo)) / float64(l.cfg.HistogramBins)
	first := float64(lo) + width/2
	last := float64(hi) - width/2
	return float32(first + l.cfg.ThresholdFraction*(last-first)), true
}

// darkMask marks pixels strictly below threshold outside the top and bottom bands.
func (l *Locator) darkMask(pix []float32, rows, cols int, threshold float32) (gocv.Mat, error) {
	mask := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8U)
	data, err := mask.DataPtrUint8()
	if err != nil {
		mask.Close()
		return gocv.NewMat(), errors.Wrap(err, "mask")
	}

	top := int(float64(rows) * l.cfg.BandFraction)
	bottom := int(float64(rows) * (1 - l.cfg.BandFraction))
	images.Parallel(rows, func(start, end int) {
		for r := start; r < end; r++ {
			dst := data[r*cols : (r+1)*cols]
			if r < top || r >= bottom {
				for c := range dst {
					dst[c] = 0
				}
				continue
			}
			src := pix[r*cols : (r+1)*cols]
			for c, v := range src {
				if v < threshold {
					dst[c] = 255
				} else {
					dst[c] = 0
				}
			}
		}
	})
	return mask, nil
}

// rasterOrder returns foreground labels in the order their first pixel appears.
func rasterOrder(labels []int32, n int) []int {
	seen := make([]bool, n)
	seen[0] = true
	order := make([]int, 0, n-1)
	for _, v := range labels {
		if !seen[v] {
			seen[v] = true
			order = append(order, int(v))
			if len(order) == n-1 {
				break
			}
		}
	}
	return order
}

// componentSpans collects the row extents of label inside its bounding box.
func componentSpans(labels []int32, cols, label int, box images.Rect) []rowSpan {
	spans := make([]rowSpan, 0, box.Dy())
	for r := box.Y1; r < box.Y2; r++ {
		row := labels[r*cols : (r+1)*cols]
		left, right := -1, -1
		for c := box.X1; c < box.X2; c++ {
			if int(row[c]) == label {
				if left < 0 {
					left = c
				}
				right = c
			}
		}
		if left >= 0 {
			spans = append(spans, rowSpan{row: r, left: left, right: right})
		}
	}
	return spans
}
