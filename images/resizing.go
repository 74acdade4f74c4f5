package images

import (
	"image"
	"math"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ScaleMat resizes src by ratio in both axes using bilinear interpolation.
// The output size is the rounded scaled size. A ratio of exactly 1 returns a clone.
//
// Arguments:
//   - src: The Mat to resize. It is only read.
//   - ratio: The scale factor, > 0.
//
// Returns:
//   - gocv.Mat: A new Mat owned by the caller.
//   - error: An error if ratio is invalid or the scaled image would be empty.
func ScaleMat(src gocv.Mat, ratio float64) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), errors.New("scale: empty mat")
	}
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return gocv.NewMat(), errors.Errorf("scale: invalid ratio %v", ratio)
	}
	if ratio == 1 {
		return src.Clone(), nil
	}

	size := ScaledSize(image.Pt(src.Cols(), src.Rows()), ratio)
	if size.X < 1 || size.Y < 1 {
		return gocv.NewMat(), errors.Errorf("scale: %dx%d by %v is empty", src.Cols(), src.Rows(), ratio)
	}

	dst := gocv.NewMat()
	if err := gocv.Resize(src, &dst, size, 0, 0, gocv.InterpolationLinear); err != nil {
		dst.Close()
		return gocv.NewMat(), errors.Wrap(err, "scale")
	}
	return dst, nil
}

// ScaledSize returns size multiplied by ratio, rounded to the nearest pixel.
func ScaledSize(size image.Point, ratio float64) image.Point {
	return image.Pt(
		int(math.Round(float64(size.X)*ratio)),
		int(math.Round(float64(size.Y)*ratio)),
	)
}

// ScaleImage resizes a Go image by ratio with bilinear interpolation. It is used
// on small bitmaps, where a pure Go resampler avoids a Mat round-trip.
func ScaleImage(img image.Image, ratio float64) (image.Image, error) {
	if ratio <= 0 || math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return nil, errors.Errorf("scale: invalid ratio %v", ratio)
	}
	if ratio == 1 {
		return img, nil
	}
	size := ScaledSize(img.Bounds().Size(), ratio)
	if size.X < 1 || size.Y < 1 {
		return nil, errors.Errorf("scale: %v by %v is empty", img.Bounds().Size(), ratio)
	}
	return resize.Resize(uint(size.X), uint(size.Y), img, resize.Bilinear), nil
}
