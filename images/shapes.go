package images

import (
	"fmt"
	"image"
)

// Rect is a lightweight pixel rectangle in row/column terms.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle). X is the column, Y the row.
	X1, Y1, X2, Y2 int
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Dx is the width.
func (r Rect) Dx() int { return r.X2 - r.X1 }

// Dy is the height.
func (r Rect) Dy() int { return r.Y2 - r.Y1 }

// Size returns width and height.
func (r Rect) Size() image.Point { return image.Pt(r.Dx(), r.Dy()) }

// Empty reports whether r has no positive area.
func (r Rect) Empty() bool { return r.X1 >= r.X2 || r.Y1 >= r.Y2 }

// Area is the pixel count, 0 for empty rectangles.
func (r Rect) Area() int {
	if r.Empty() {
		return 0
	}
	return r.Dx() * r.Dy()
}

// Overlaps reports whether r and o share at least one pixel.
func (r Rect) Overlaps(o Rect) bool {
	return !r.Empty() && !o.Empty() &&
		r.X1 < o.X2 && o.X1 < r.X2 &&
		r.Y1 < o.Y2 && o.Y1 < r.Y2
}

// In reports whether every pixel of r lies inside o.
func (r Rect) In(o Rect) bool {
	if r.Empty() {
		return true
	}
	return o.X1 <= r.X1 && r.X2 <= o.X2 && o.Y1 <= r.Y1 && r.Y2 <= o.Y2
}

func (r Rect) String() string {
	return fmt.Sprintf("[%d,%d)x[%d,%d)", r.X1, r.X2, r.Y1, r.Y2)
}

