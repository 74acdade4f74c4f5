// Package score - turns correlation peaks into a single quality score.
//
// The number of peaks kept, n_match, is the number of template-sized tiles
// that fit in the focus area once one template size is taken off each axis.
// Each orientation keeps its n_match strongest peaks; the orientation with the
// larger total wins, Mirrored on a tie, and the score is the mean of its kept
// peaks.
package score

import (
	"image"
	"sort"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/nvr-ai/go-emboss/templates"
)

// Peaks is a set of correlation peak heights.
type Peaks interface {
	Heights() []float32
}

// Result is the aggregated score of one image.
type Result struct {
	// Score is the mean height of the winning orientation's kept peaks.
	Score float64 `json:"score" yaml:"score"`
	// Orientation is the winning template orientation.
	Orientation templates.Orientation `json:"orientation" yaml:"orientation"`
	// NMatch is the number of peaks kept per orientation.
	NMatch int `json:"n_match" yaml:"n_match"`
	// Heights are the winner's kept peaks, highest first.
	Heights []float32 `json:"heights" yaml:"heights"`
	// Totals are the sums of kept peaks, indexed by orientation.
	Totals [2]float64 `json:"totals" yaml:"totals"`
}

// Aggregator reduces peaks to a score. It is stateless.
type Aggregator struct{}

// NewAggregator creates an Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// NMatch returns floor((H-th)*(W-tw) / (th*tw)) for an area and template size.
//
// Returns:
//   - int: The number of peaks to keep, at least 1.
//   - error: ErrInsufficientArea when the area is smaller than the template in
//     either axis or no tile fits.
func NMatch(area, tmpl image.Point) (int, error) {
	if tmpl.X <= 0 || tmpl.Y <= 0 {
		return 0, errors.Errorf("template size %v", tmpl)
	}
	if area.X < tmpl.X || area.Y < tmpl.Y {
		return 0, errors.Wrapf(ErrInsufficientArea, "area %v smaller than template %v", area, tmpl)
	}
	n := (area.Y - tmpl.Y) * (area.X - tmpl.X) / (tmpl.Y * tmpl.X)
	if n <= 0 {
		return 0, errors.Wrapf(ErrInsufficientArea, "area %v holds no %v tile", area, tmpl)
	}
	return n, nil
}

// Aggregate picks the stronger orientation and scores it.
//
// Arguments:
//   - normal: Peaks of the template as stored.
//   - mirrored: Peaks of the row-reversed template.
//   - area: Focus area width and height.
//   - tmpl: Template width and height.
//
// Returns:
//   - Result: The score and the winning orientation. A tie goes to Mirrored.
//   - error: ErrInsufficientArea or ErrNoPeaks.
func (a *Aggregator) Aggregate(normal, mirrored Peaks, area, tmpl image.Point) (Result, error) {
	n, err := NMatch(area, tmpl)
	if err != nil {
		return Result{}, err
	}

	kept := [2][]float64{
		topN(normal.Heights(), n),
		topN(mirrored.Heights(), n),
	}
	res := Result{NMatch: n}
	for i, k := range kept {
		res.Totals[i] = floats.Sum(k)
	}

	res.Orientation = templates.Mirrored
	if res.Totals[templates.Normal] > res.Totals[templates.Mirrored] {
		res.Orientation = templates.Normal
	}

	winner := kept[res.Orientation]
	if len(winner) == 0 {
		return Result{}, errors.Wrapf(ErrNoPeaks, "%s orientation", res.Orientation)
	}
	res.Score = stat.Mean(winner, nil)
	res.Heights = make([]float32, len(winner))
	for i, h := range winner {
		res.Heights[i] = float32(h)
	}
	return res, nil
}

// topN returns the n largest heights, highest first.
func topN(heights []float32, n int) []float64 {
	out := make([]float64, len(heights))
	for i, h := range heights {
		out[i] = float64(h)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	if len(out) > n {
		out = out[:n]
	}
	return out
}
