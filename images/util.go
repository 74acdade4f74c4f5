package images

import (
	"crypto/md5"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// ComputeMatChecksum generates a deterministic checksum of a Mat's pixel bytes.
// Tests use it to prove that a stage leaves its input untouched.
//
// Example:
//
// ```go
//
//	before := ComputeMatChecksum(gray)
//	_, _ = locator.Locate(gray)
//	fmt.Println(before == ComputeMatChecksum(gray)) // true
//
// ```
func ComputeMatChecksum(mat gocv.Mat) string {
	if mat.Empty() {
		return "empty"
	}
	src := mat
	if !mat.IsContinuous() {
		src = mat.Clone()
		defer src.Close()
	}

	data, _ := src.DataPtrUint8()
	hash := md5.New()
	hash.Write(data)
	return fmt.Sprintf("%x", hash.Sum(nil))
}

// MatSize returns a Mat's width and height.
func MatSize(m gocv.Mat) image.Point {
	return image.Pt(m.Cols(), m.Rows())
}
