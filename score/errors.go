package score

import "github.com/pkg/errors"

var (
	// ErrInsufficientArea is returned when the focus area cannot hold a single
	// template-sized tile.
	ErrInsufficientArea = errors.New("insufficient focus area")
	// ErrNoPeaks is returned when the winning orientation produced no peaks.
	ErrNoPeaks = errors.New("no correlation peaks")
)
