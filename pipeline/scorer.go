// Package pipeline - scores one photograph end to end.
//
//	decode ──► gray ──► locate card ──► normalize ──► match normal + mirrored ──► aggregate
//
// Every stage is timed under its own operation name when a profiler is attached.
package pipeline

import (
	"image"
	"time"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/nvr-ai/go-emboss/colorcard"
	"github.com/nvr-ai/go-emboss/config"
	"github.com/nvr-ai/go-emboss/focus"
	"github.com/nvr-ai/go-emboss/images"
	"github.com/nvr-ai/go-emboss/matcher"
	"github.com/nvr-ai/go-emboss/profiler"
	"github.com/nvr-ai/go-emboss/score"
	"github.com/nvr-ai/go-emboss/templates"
)

// Operation names recorded on the profiler.
const (
	OpDecode    = "decode"
	OpGray      = "grayscale"
	OpLocate    = "locate"
	OpNormalize = "normalize"
	OpMatch     = "match"
	OpAggregate = "aggregate"
	OpTotal     = "total"

	// MetricScore collects the score of every successful image.
	MetricScore = "score"
)

// Result is the outcome of scoring one image.
type Result struct {
	// Name identifies the image, usually its path.
	Name string `json:"name" yaml:"name"`
	// Score is the mean of the strongest correlation peaks.
	Score float64 `json:"score" yaml:"score"`
	// Orientation is the template variant that won.
	Orientation templates.Orientation `json:"orientation" yaml:"orientation"`
	// NMatch is the number of peaks averaged.
	NMatch int `json:"n_match" yaml:"n_match"`
	// Card is the located color card in input coordinates.
	Card colorcard.Location `json:"card" yaml:"card"`
	// Focus is the focus area in rescaled coordinates.
	Focus images.Rect `json:"focus" yaml:"focus"`
	// Ratio is the rescale factor applied before matching.
	Ratio float64 `json:"ratio" yaml:"ratio"`
	// Elapsed is the wall time spent on the image.
	Elapsed time.Duration `json:"elapsed" yaml:"elapsed"`
}

// Scorer runs the pipeline. The template is shared read-only, so one Scorer
// may score several images concurrently.
type Scorer struct {
	cfg        config.Config
	tmpl       *templates.Template
	locator    *colorcard.Locator
	normalizer *focus.Normalizer
	matcher    *matcher.Matcher
	aggregator *score.Aggregator
	prof       *profiler.Profiler
}

// New creates a Scorer. The caller keeps ownership of tmpl and must keep it open
// while the Scorer is in use.
func New(cfg config.Config, tmpl *templates.Template) *Scorer {
	return &Scorer{
		cfg:        cfg,
		tmpl:       tmpl,
		locator:    colorcard.NewLocator(cfg.ColorCard),
		normalizer: focus.NewNormalizer(cfg.Focus),
		matcher:    matcher.NewMatcher(cfg.Matcher),
		aggregator: score.NewAggregator(),
	}
}

// SetProfiler attaches a profiler that receives stage timings and scores.
// It must be called before scoring starts.
func (s *Scorer) SetProfiler(p *profiler.Profiler) {
	s.prof = p
}

// ScoreFile decodes and scores the image at path.
func (s *Scorer) ScoreFile(path string) (Result, error) {
	start := time.Now()

	done := s.prof.StartOperation(OpDecode)
	img, err := images.Load(path, images.DecodeOptions{AutoOrient: s.cfg.Image.AutoOrient})
	done()
	if err != nil {
		return Result{}, err
	}

	res, err := s.ScoreImage(path, img.Pixels)
	res.Elapsed = time.Since(start)
	return res, err
}

// ScoreImage converts img to gray and scores it.
func (s *Scorer) ScoreImage(name string, img image.Image) (Result, error) {
	start := time.Now()

	done := s.prof.StartOperation(OpGray)
	gray, err := images.GrayMat(img)
	done()
	if err != nil {
		return Result{}, errors.Wrapf(err, "%s", name)
	}
	defer gray.Close()

	res, err := s.ScoreGray(name, gray)
	res.Elapsed = time.Since(start)
	return res, err
}

// ScoreGray scores a CV32F gray image with values in [0,1].
//
// Arguments:
//   - name: Identifies the image in errors and results.
//   - gray: The image. It is not modified.
//
// Returns:
//   - Result: The score and the intermediate geometry.
//   - error: A per-image error (see IsSkippable) wrapped with name.
func (s *Scorer) ScoreGray(name string, gray gocv.Mat) (Result, error) {
	start := time.Now()
	defer s.prof.StartOperation(OpTotal)()

	res := Result{Name: name}

	done := s.prof.StartOperation(OpLocate)
	loc, err := s.locator.Locate(gray)
	done()
	if err != nil {
		return res, errors.Wrapf(err, "%s", name)
	}
	res.Card = loc

	done = s.prof.StartOperation(OpNormalize)
	area, err := s.normalizer.Normalize(gray, loc)
	done()
	if err != nil {
		return res, errors.Wrapf(err, "%s", name)
	}
	defer area.Close()
	res.Focus = area.Rect
	res.Ratio = area.Ratio

	areaSize := images.MatSize(area.Mat)
	if _, err := score.NMatch(areaSize, s.tmpl.Size); err != nil {
		return res, errors.Wrapf(err, "%s", name)
	}

	done = s.prof.StartOperation(OpMatch)
	peaks, err := s.matcher.MatchAll(area.Mat, s.tmpl)
	done()
	if err != nil {
		return res, errors.Wrapf(err, "%s", name)
	}

	done = s.prof.StartOperation(OpAggregate)
	agg, err := s.aggregator.Aggregate(peaks[templates.Normal], peaks[templates.Mirrored], areaSize, s.tmpl.Size)
	done()
	if err != nil {
		return res, errors.Wrapf(err, "%s", name)
	}

	res.Score = agg.Score
	res.Orientation = agg.Orientation
	res.NMatch = agg.NMatch
	res.Elapsed = time.Since(start)
	s.prof.RecordMetric(MetricScore, agg.Score)
	return res, nil
}

// IsSkippable reports whether err only affects the image it was returned for.
// A batch run logs such errors and moves on.
func IsSkippable(err error) bool {
	for _, target := range []error{
		colorcard.ErrCardNotFound,
		score.ErrInsufficientArea,
		score.ErrNoPeaks,
		images.ErrImageDecode,
		matcher.ErrEmptyInput,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
