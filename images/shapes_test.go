package images

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRectGeometry(t *testing.T) {
	r := Rect{X1: 10, Y1: 20, X2: 40, Y2: 30}
	assert.Equal(t, 30, r.Dx())
	assert.Equal(t, 10, r.Dy())
	assert.Equal(t, 300, r.Area())
	assert.Equal(t, image.Pt(30, 10), r.Size())
	assert.False(t, r.Empty())
	assert.Equal(t, image.Rect(10, 20, 40, 30), r.Image())
	assert.Equal(t, "[10,40)x[20,30)", r.String())

	assert.True(t, Rect{15, 22, 20, 25}.In(r))
	assert.False(t, Rect{5, 22, 20, 25}.In(r))

	inverted := Rect{X1: 5, Y1: 5, X2: 1, Y2: 9}
	assert.True(t, inverted.Empty())
	assert.Equal(t, 0, inverted.Area())
	assert.False(t, inverted.Overlaps(Rect{0, 0, 10, 10}))
	assert.True(t, inverted.In(r))
}

func TestRectOverlaps(t *testing.T) {
	r := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	tests := []struct {
		name string
		o    Rect
		want bool
	}{
		{"identical", r, true},
		{"disjoint", Rect{200, 200, 300, 300}, false},
		{"touching edge", Rect{100, 0, 200, 100}, false},
		{"partial", Rect{50, 50, 150, 150}, true},
		{"contained", Rect{25, 25, 75, 75}, true},
		{"zero area", Rect{10, 10, 10, 10}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Overlaps(tt.o))
			assert.Equal(t, tt.want, tt.o.Overlaps(r))
			assert.Equal(t, !r.Image().Intersect(tt.o.Image()).Empty(), r.Overlaps(tt.o))
		})
	}
}
