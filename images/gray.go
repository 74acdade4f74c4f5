package images

import (
	"image"
	"runtime"
	"sync"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// ITU-R BT.709 luma coefficients, as used to calibrate the scorer.
const (
	redWeight   = 0.2125
	greenWeight = 0.7154
	blueWeight  = 0.0721
)

// GrayMat converts img to a single channel CV32F Mat with intensities in [0,1].
// Colour images are reduced with BT.709 luma weights; alpha is ignored.
//
// Arguments:
//   - img: The source image. It is only read.
//
// Returns:
//   - gocv.Mat: A new Mat owned by the caller.
//   - error: An error if the image is empty.
func GrayMat(img image.Image) (gocv.Mat, error) {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width <= 0 || height <= 0 {
		return gocv.NewMat(), errors.Wrap(ErrImageDecode, "empty image")
	}

	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV32F)
	data, err := mat.DataPtrFloat32()
	if err != nil {
		mat.Close()
		return gocv.NewMat(), errors.Wrap(err, "gray buffer")
	}

	if gray, ok := img.(*image.Gray); ok {
		Parallel(height, func(start, end int) {
			for y := start; y < end; y++ {
				src := gray.Pix[y*gray.Stride : y*gray.Stride+width]
				dst := data[y*width : (y+1)*width]
				for x, v := range src {
					dst[x] = float32(v) / 255
				}
			}
		})
		return mat, nil
	}

	Parallel(height, func(start, end int) {
		for y := start; y < end; y++ {
			dst := data[y*width : (y+1)*width]
			for x := range dst {
				// RGBA returns 16-bit channels.
				r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
				luma := redWeight*float64(r) + greenWeight*float64(g) + blueWeight*float64(bl)
				dst[x] = float32(luma / 0xffff)
			}
		}
	})
	return mat, nil
}

// NewGrayMat copies pix, a row-major rows*cols buffer, into a new CV32F Mat.
func NewGrayMat(rows, cols int, pix []float32) (gocv.Mat, error) {
	if rows <= 0 || cols <= 0 || len(pix) != rows*cols {
		return gocv.NewMat(), errors.Errorf("gray mat: %d values for %dx%d", len(pix), cols, rows)
	}
	mat := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV32F)
	data, err := mat.DataPtrFloat32()
	if err != nil {
		mat.Close()
		return gocv.NewMat(), errors.Wrap(err, "gray buffer")
	}
	copy(data, pix)
	return mat, nil
}

// GrayPixels returns a row-major copy of a CV32F Mat.
func GrayPixels(m gocv.Mat) ([]float32, error) {
	if m.Empty() {
		return nil, errors.New("gray pixels: empty mat")
	}
	if m.Type() != gocv.MatTypeCV32F {
		return nil, errors.Errorf("gray pixels: mat type %v is not CV32F", m.Type())
	}
	src := m
	if !m.IsContinuous() {
		src = m.Clone()
		defer src.Close()
	}
	data, err := src.DataPtrFloat32()
	if err != nil {
		return nil, errors.Wrap(err, "gray pixels")
	}
	out := make([]float32, len(data))
	copy(out, data)
	return out, nil
}

// Parallel splits [0, dataSize) into one partition per CPU and runs fn on each.
// Small inputs run on the calling goroutine.
//
// @example
//
//	Parallel(height, func(start, end int) {
//	    for y := start; y < end; y++ {
//	        // Process row y
//	    }
//	})
func Parallel(dataSize int, fn func(partStart, partEnd int)) {
	numGoroutines := runtime.NumCPU()
	if dataSize < numGoroutines*2 {
		fn(0, dataSize)
		return
	}

	partSize := dataSize / numGoroutines

	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	for i := 0; i < numGoroutines; i++ {
		partStart := i * partSize
		partEnd := partStart + partSize
		// Last partition gets any remaining data.
		if i == numGoroutines-1 {
			partEnd = dataSize
		}
		go func(start, end int) {
			defer wg.Done()
			fn(start, end)
		}(partStart, partEnd)
	}
	wg.Wait()
}
