package colorcard

import "sort"

type vertex struct{ x, y int }

// cross is the z component of (b-a) x (c-a).
func cross(a, b, c vertex) int {
	return (b.x-a.x)*(c.y-a.y) - (b.y-a.y)*(c.x-a.x)
}

// convexHull returns the hull of pts in counter-clockwise order, without
// collinear points. pts is reordered.
func convexHull(pts []vertex) []vertex {
	if len(pts) < 3 {
		return pts
	}
	sort.Slice(pts, func(i, j int) bool {
		if pts[i].x != pts[j].x {
			return pts[i].x < pts[j].x
		}
		return pts[i].y < pts[j].y
	})

	hull := make([]vertex, 0, 2*len(pts))
	for _, p := range pts {
		for len(hull) >= 2 && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	lower := len(hull) + 1
	for i := len(pts) - 2; i >= 0; i-- {
		p := pts[i]
		for len(hull) >= lower && cross(hull[len(hull)-2], hull[len(hull)-1], p) <= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, p)
	}
	return hull[:len(hull)-1]
}

// polygonArea is the shoelace area of a simple polygon.
func polygonArea(poly []vertex) float64 {
	if len(poly) < 3 {
		return 0
	}
	var twice int
	for i, p := range poly {
		q := poly[(i+1)%len(poly)]
		twice += p.x*q.y - q.x*p.y
	}
	if twice < 0 {
		twice = -twice
	}
	return float64(twice) / 2
}

// rowSpan is the leftmost and rightmost column a component covers in one row.
type rowSpan struct {
	row, left, right int
}

// spanCorners returns the pixel corners bounding each span. The hull of these
// corners covers every pixel square of the component, so a solid w x h block
// has hull area w*h.
func spanCorners(spans []rowSpan) []vertex {
	pts := make([]vertex, 0, 4*len(spans))
	for _, s := range spans {
		pts = append(pts,
			vertex{s.left, s.row},
			vertex{s.left, s.row + 1},
			vertex{s.right + 1, s.row},
			vertex{s.right + 1, s.row + 1},
		)
	}
	return pts
}
