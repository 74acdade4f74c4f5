package pipeline

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-emboss/colorcard"
	"github.com/nvr-ai/go-emboss/config"
	"github.com/nvr-ai/go-emboss/focus"
	"github.com/nvr-ai/go-emboss/images"
	"github.com/nvr-ai/go-emboss/profiler"
	"github.com/nvr-ai/go-emboss/score"
	"github.com/nvr-ai/go-emboss/templates"
)

const (
	background = 0.8
	cardValue  = 0.02
)

type canvas struct {
	rows, cols int
	pix        []float32
}

func newCanvas(rows, cols int) *canvas {
	c := &canvas{rows: rows, cols: cols, pix: make([]float32, rows*cols)}
	for i := range c.pix {
		c.pix[i] = background
	}
	return c
}

func (c *canvas) fill(r image.Rectangle, v float32) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			c.pix[y*c.cols+x] = v
		}
	}
}

// stamp paints the template at origin with 1 mapped to 0.9 and 0 to 0.5.
func (c *canvas) stamp(tmpl []float32, size, origin image.Point) {
	for y := 0; y < size.Y; y++ {
		for x := 0; x < size.X; x++ {
			v := float32(0.5)
			if tmpl[y*size.X+x] > 0.5 {
				v = 0.9
			}
			c.pix[(origin.Y+y)*c.cols+origin.X+x] = v
		}
	}
}

func (c *canvas) mat(t *testing.T) gocv.Mat {
	t.Helper()
	m, err := images.NewGrayMat(c.rows, c.cols, c.pix)
	require.NoError(t, err)
	return m
}

func (c *canvas) gray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, c.cols, c.rows))
	for i, v := range c.pix {
		img.Pix[i] = uint8(v*255 + 0.5)
	}
	return img
}

func loadTemplate(t *testing.T) *templates.Template {
	t.Helper()
	tmpl, err := templates.Load(config.Default().Template)
	require.NoError(t, err)
	return tmpl
}

// calibrate sets the known card width to the width located in gray, so the
// image is matched at its native scale.
func calibrate(t *testing.T, cfg *config.Config, gray gocv.Mat) {
	t.Helper()
	loc, err := colorcard.NewLocator(cfg.ColorCard).Locate(gray)
	require.NoError(t, err)
	cfg.Focus.KnownCardWidthPx = loc.EstimatedWidth
}

func TestScoreGrayEndToEnd(t *testing.T) {
	tmpl := loadTemplate(t)
	defer tmpl.Close()
	tp, err := images.GrayPixels(tmpl.Mat)
	require.NoError(t, err)

	// 533x879 card: 7.8% of the frame, aspect 1.65, centroid column 2566.
	c := newCanvas(2000, 3000)
	c.fill(image.Rect(2300, 560, 2833, 1439), cardValue)

	gray := c.mat(t)
	defer gray.Close()
	cfg := config.Default()
	calibrate(t, &cfg, gray)

	want, _, err := focus.NewNormalizer(cfg.Focus).FocusRect(images.MatSize(gray), 2566)
	require.NoError(t, err)
	require.Equal(t, images.Rect{X1: 150, Y1: 200, X2: 2200, Y2: 1800}, want)

	// Tile the focus area with stamps so every kept peak is an exact match.
	for y := want.Y1; y+tmpl.Size.Y <= want.Y2; y += tmpl.Size.Y {
		for x := want.X1; x+tmpl.Size.X <= want.X2; x += tmpl.Size.X {
			c.stamp(tp, tmpl.Size, image.Pt(x, y))
		}
	}
	gray.Close()
	gray = c.mat(t)
	before := images.ComputeMatChecksum(gray)

	prof := profiler.New(profiler.Options{})
	scorer := New(cfg, tmpl)
	scorer.SetProfiler(prof)

	res, err := scorer.ScoreGray("synthetic", gray)
	require.NoError(t, err)

	assert.Equal(t, "synthetic", res.Name)
	assert.GreaterOrEqual(t, res.Score, 0.95)
	assert.LessOrEqual(t, res.Score, 1.0+1e-4)
	assert.Equal(t, templates.Normal, res.Orientation)
	assert.Equal(t, 51, res.NMatch)
	assert.Equal(t, want, res.Focus)
	assert.InDelta(t, 1.0, res.Ratio, 1e-12)
	assert.InDelta(t, 2566, res.Card.Centroid.Col, 1)
	assert.Equal(t, before, images.ComputeMatChecksum(gray))

	for _, op := range []string{OpLocate, OpNormalize, OpMatch, OpAggregate, OpTotal} {
		s, ok := prof.Operation(op)
		require.True(t, ok, op)
		assert.Equal(t, int64(1), s.Count, op)
	}
	s, ok := prof.Metric(MetricScore)
	require.True(t, ok)
	assert.InDelta(t, res.Score, s.Mean, 1e-12)
}

// smallScene is 240x150 with a 41x68 card near the right edge.
func smallScene(withCard bool) *canvas {
	c := newCanvas(150, 240)
	if withCard {
		c.fill(image.Rect(180, 41, 221, 109), cardValue)
	}
	return c
}

func TestScoreGrayInsufficientArea(t *testing.T) {
	tmpl := loadTemplate(t)
	defer tmpl.Close()

	gray := smallScene(true).mat(t)
	defer gray.Close()
	cfg := config.Default()
	calibrate(t, &cfg, gray)

	res, err := New(cfg, tmpl).ScoreGray("tiny", gray)
	require.Error(t, err)
	assert.True(t, errors.Is(err, score.ErrInsufficientArea), "got %v", err)
	assert.True(t, IsSkippable(err))
	assert.Contains(t, err.Error(), "tiny")
	// The focus area is smaller than the template in both axes.
	assert.Less(t, res.Focus.Dx(), tmpl.Size.X)
	assert.Less(t, res.Focus.Dy(), tmpl.Size.Y)
}

func TestScoreImageCardNotFound(t *testing.T) {
	tmpl := loadTemplate(t)
	defer tmpl.Close()

	_, err := New(config.Default(), tmpl).ScoreImage("blank", smallScene(false).gray())
	require.Error(t, err)
	assert.True(t, errors.Is(err, colorcard.ErrCardNotFound))
	assert.True(t, IsSkippable(err))
}

func TestScoreImageFromGoImage(t *testing.T) {
	tmpl := loadTemplate(t)
	defer tmpl.Close()

	scene := smallScene(true)
	gray := scene.mat(t)
	defer gray.Close()
	cfg := config.Default()
	calibrate(t, &cfg, gray)

	// 8-bit quantisation keeps the card detectable; the frame is still too small.
	_, err := New(cfg, tmpl).ScoreImage("quantised", scene.gray())
	assert.True(t, errors.Is(err, score.ErrInsufficientArea), "got %v", err)
}

func TestScoreFile(t *testing.T) {
	tmpl := loadTemplate(t)
	defer tmpl.Close()
	dir := t.TempDir()

	blank := filepath.Join(dir, "blank.png")
	f, err := os.Create(blank)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, smallScene(false).gray()))
	require.NoError(t, f.Close())

	garbage := filepath.Join(dir, "IMG_0001.JPG")
	require.NoError(t, os.WriteFile(garbage, []byte("not a jpeg"), 0o644))

	scorer := New(config.Default(), tmpl)

	_, err = scorer.ScoreFile(blank)
	assert.True(t, errors.Is(err, colorcard.ErrCardNotFound), "got %v", err)

	_, err = scorer.ScoreFile(garbage)
	assert.True(t, errors.Is(err, images.ErrImageDecode), "got %v", err)
	assert.True(t, IsSkippable(err))
}

func TestIsSkippable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{errors.Wrap(colorcard.ErrCardNotFound, "a.JPG"), true},
		{errors.Wrap(score.ErrInsufficientArea, "a.JPG"), true},
		{errors.Wrap(score.ErrNoPeaks, "a.JPG"), true},
		{errors.Wrap(images.ErrImageDecode, "a.JPG"), true},
		{errors.Wrap(templates.ErrTemplateDecode, "boot"), false},
		{errors.New("disk on fire"), false},
		{nil, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsSkippable(tt.err), "%v", tt.err)
	}
}
