package geometry

import (
	"fmt"
	"math"
)

// Point is a 2D coordinate. Whether it is expressed in percent of a canvas
// (0..100) or in absolute pixels depends on where it is used; convert with
// the explicit helpers below, never implicitly.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

func (p Point) Add(q Point) Point { return Point{p.X + q.X, p.Y + q.Y} }
func (p Point) Sub(q Point) Point { return Point{p.X - q.X, p.Y - q.Y} }
func (p Point) Mul(k float64) Point { return Point{p.X * k, p.Y * k} }
func (p Point) Len() float64 { return math.Hypot(p.X, p.Y) }
func (p Point) String() string { return fmt.Sprintf("(%.2f, %.2f)", p.X, p.Y) }
func (p Point) Near(q Point, eps float64) bool {
	return math.Abs(p.X-q.X) <= eps && math.Abs(p.Y-q.Y) <= eps
}

// Corner names one vertex of the mapping quad.
type Corner string

const (
	TopLeft     Corner = "top-left"
	TopRight    Corner = "top-right"
	BottomLeft  Corner = "bottom-left"
	BottomRight Corner = "bottom-right"
)

// Axis selects the X or Y component of a point.
type Axis string

const (
	AxisX Axis = "x"
	AxisY Axis = "y"
)

func ParseCorner(s string) (Corner, error) {
	switch Corner(s) {
	case TopLeft, TopRight, BottomLeft, BottomRight:
		return Corner(s), nil
	case "topLeft":
		return TopLeft, nil
	case "topRight":
		return TopRight, nil
	case "bottomLeft":
		return BottomLeft, nil
	case "bottomRight":
		return BottomRight, nil
	}
	return "", fmt.Errorf("unknown corner: %q", s)
}

func ParseAxis(s string) (Axis, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	}
	return "", fmt.Errorf("unknown axis: %q", s)
}

// MappingPoints are the four destination corners of the quad warp.
type MappingPoints struct {
	TopLeft     Point `yaml:"topLeft" json:"topLeft"`
	TopRight    Point `yaml:"topRight" json:"topRight"`
	BottomLeft  Point `yaml:"bottomLeft" json:"bottomLeft"`
	BottomRight Point `yaml:"bottomRight" json:"bottomRight"`
}

// DefaultMapping is used when a template carries no mapping of its own.
func DefaultMapping() MappingPoints {
	return MappingPoints{
		TopLeft:     Point{20, 20},
		TopRight:    Point{80, 20},
		BottomLeft:  Point{20, 80},
		BottomRight: Point{80, 80},
	}
}

func (m *MappingPoints) corner(c Corner) *Point {
	switch c {
	case TopLeft:
		return &m.TopLeft
	case TopRight:
		return &m.TopRight
	case BottomLeft:
		return &m.BottomLeft
	case BottomRight:
		return &m.BottomRight
	}
	return nil
}

// Set replaces one axis of one corner. Values are not clamped.
func (m *MappingPoints) Set(c Corner, a Axis, value float64) error {
	p := m.corner(c)
	if p == nil {
		return fmt.Errorf("unknown corner: %q", c)
	}
	switch a {
	case AxisX:
		p.X = value
	case AxisY:
		p.Y = value
	default:
		return fmt.Errorf("unknown axis: %q", a)
	}
	return nil
}

func (m MappingPoints) Get(c Corner) (Point, bool) {
	p := m.corner(c)
	if p == nil {
		return Point{}, false
	}
	return *p, true
}

// Corners returns the points in TL, TR, BR, BL (perimeter) order.
func (m MappingPoints) Corners() [4]Point {
	return [4]Point{m.TopLeft, m.TopRight, m.BottomRight, m.BottomLeft}
}

func (m MappingPoints) scale(sx, sy float64) MappingPoints {
	f := func(p Point) Point { return Point{p.X * sx, p.Y * sy} }
	return MappingPoints{
		TopLeft:     f(m.TopLeft),
		TopRight:    f(m.TopRight),
		BottomLeft:  f(m.BottomLeft),
		BottomRight: f(m.BottomRight),
	}
}

// ToPixels converts percent coordinates into pixels of a w x h canvas.
func (m MappingPoints) ToPixels(w, h float64) MappingPoints {
	return m.scale(w/100, h/100)
}

// ToPercent is the inverse of ToPixels.
func (m MappingPoints) ToPercent(w, h float64) MappingPoints {
	if w == 0 || h == 0 {
		return MappingPoints{}
	}
	return m.scale(100/w, 100/h)
}

// IsSimple reports whether the quad TL-TR-BR-BL does not cross itself.
func (m MappingPoints) IsSimple() bool {
	c := m.Corners()
	if segmentsIntersect(c[0], c[1], c[2], c[3]) {
		return false
	}
	return !segmentsIntersect(c[1], c[2], c[3], c[0])
}

func cross(o, a, b Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

func segmentsIntersect(p1, p2, q1, q2 Point) bool {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)
	return ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0))
}

// Bilinear interpolates over the quad with (s, t) in the unit square.
// (0,0) is TopLeft, (1,0) TopRight, (0,1) BottomLeft, (1,1) BottomRight.
func Bilinear(m MappingPoints, s, t float64) Point {
	w00 := (1 - s) * (1 - t)
	w10 := s * (1 - t)
	w01 := (1 - s) * t
	w11 := s * t
	return Point{
		X: w00*m.TopLeft.X + w10*m.TopRight.X + w01*m.BottomLeft.X + w11*m.BottomRight.X,
		Y: w00*m.TopLeft.Y + w10*m.TopRight.Y + w01*m.BottomLeft.Y + w11*m.BottomRight.Y,
	}
}
