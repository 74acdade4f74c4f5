package score

import (
	"image"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-emboss/templates"
)

type heights []float32

func (h heights) Heights() []float32 { return h }

var tmplSize = image.Pt(341, 141)

func TestNMatch(t *testing.T) {
	tests := []struct {
		name string
		area image.Point
		want int
		err  bool
	}{
		{"canonical focus", image.Pt(2050, 1600), (1600 - 141) * (2050 - 341) / (141 * 341), false},
		{"exactly one tile", image.Pt(682, 282), 1, false},
		{"just short of one tile", image.Pt(681, 282), 0, true},
		{"same as template", tmplSize, 0, true},
		{"too narrow", image.Pt(340, 2000), 0, true},
		{"too short", image.Pt(3000, 140), 0, true},
		{"smaller in both axes", image.Pt(160, 120), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, err := NMatch(tt.area, tmplSize)
			if tt.err {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInsufficientArea))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, n)
		})
	}
}

func TestAggregatePicksStrongerOrientation(t *testing.T) {
	// Two tiles fit.
	area := image.Pt(341*3, 141*2)

	res, err := NewAggregator().Aggregate(
		heights{0.2, 0.9, 0.1, 0.8},
		heights{0.7, 0.7, 0.7},
		area, tmplSize,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NMatch)
	assert.Equal(t, templates.Normal, res.Orientation)
	assert.InDelta(t, 0.85, res.Score, 1e-6)
	assert.Equal(t, []float32{0.9, 0.8}, res.Heights)
	assert.InDelta(t, 1.7, res.Totals[templates.Normal], 1e-6)
	assert.InDelta(t, 1.4, res.Totals[templates.Mirrored], 1e-6)

	res, err = NewAggregator().Aggregate(
		heights{0.5},
		heights{0.6, 0.3, 0.1},
		area, tmplSize,
	)
	require.NoError(t, err)
	assert.Equal(t, templates.Mirrored, res.Orientation)
	assert.InDelta(t, 0.45, res.Score, 1e-6)
}

func TestAggregateTieGoesToMirrored(t *testing.T) {
	res, err := NewAggregator().Aggregate(
		heights{0.5, 0.25},
		heights{0.25, 0.5},
		image.Pt(682, 282), tmplSize,
	)
	require.NoError(t, err)
	assert.Equal(t, templates.Mirrored, res.Orientation)
	assert.InDelta(t, 0.5, res.Score, 1e-9)

	// Equal totals from lists of different length: the mean follows the winner.
	res, err = NewAggregator().Aggregate(
		heights{0.5, 0.5},
		heights{1.0},
		image.Pt(341*3, 141*2), tmplSize,
	)
	require.NoError(t, err)
	assert.Equal(t, 2, res.NMatch)
	assert.Equal(t, templates.Mirrored, res.Orientation)
	assert.InDelta(t, 1.0, res.Score, 1e-9)
	assert.Equal(t, []float32{1.0}, res.Heights)
	assert.Equal(t, res.Totals[templates.Normal], res.Totals[templates.Mirrored])
}

func TestAggregateScaleCommutative(t *testing.T) {
	normal := heights{0.61, 0.42, 0.93, 0.18, 0.77}
	mirrored := heights{0.55, 0.81, 0.12, 0.66, 0.49}
	area := image.Pt(341*3, 141*2)

	base, err := NewAggregator().Aggregate(normal, mirrored, area, tmplSize)
	require.NoError(t, err)

	for _, c := range []float32{0.5, 2, 10} {
		scale := func(h heights) heights {
			out := make(heights, len(h))
			for i, v := range h {
				out[i] = v * c
			}
			return out
		}
		res, err := NewAggregator().Aggregate(scale(normal), scale(mirrored), area, tmplSize)
		require.NoError(t, err)
		assert.Equal(t, base.Orientation, res.Orientation, "scale %v", c)
		assert.InDelta(t, base.Score*float64(c), res.Score, 1e-5)
	}
}

func TestAggregateErrors(t *testing.T) {
	_, err := NewAggregator().Aggregate(heights{0.9}, heights{0.9}, image.Pt(100, 100), tmplSize)
	assert.True(t, errors.Is(err, ErrInsufficientArea))

	// Negative extents on both axes must not multiply into a positive count.
	_, err = NewAggregator().Aggregate(heights{0.9}, heights{0.9}, image.Pt(40, 20), tmplSize)
	assert.True(t, errors.Is(err, ErrInsufficientArea))

	_, err = NewAggregator().Aggregate(heights{}, heights{}, image.Pt(2000, 1000), tmplSize)
	assert.True(t, errors.Is(err, ErrNoPeaks))
}
