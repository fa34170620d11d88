package geometry

import (
	"math"

	"golang.org/x/image/math/f64"
)

// DegenerateEpsilon is the smallest absolute signed area a triangle may have
// before it is treated as collinear.
const DegenerateEpsilon = 1e-10

type Triangle [3]Point

// SignedArea is positive for counter-clockwise vertices in a y-up frame.
func SignedArea(t Triangle) float64 {
	return ((t[1].X-t[0].X)*(t[2].Y-t[0].Y) - (t[2].X-t[0].X)*(t[1].Y-t[0].Y)) / 2
}

func (t Triangle) Degenerate() bool {
	return math.Abs(SignedArea(t)) < DegenerateEpsilon
}

func (t Triangle) Centroid() Point {
	return Point{(t[0].X + t[1].X + t[2].X) / 3, (t[0].Y + t[1].Y + t[2].Y) / 3}
}

// Expand pushes every vertex away from the centroid by d units.
func (t Triangle) Expand(d float64) Triangle {
	c := t.Centroid()
	var out Triangle
	for i, p := range t {
		v := p.Sub(c)
		l := v.Len()
		if l == 0 {
			out[i] = p
			continue
		}
		out[i] = p.Add(v.Mul(d / l))
	}
	return out
}

// Affine maps (x, y) to (A*x + C*y + E, B*x + D*y + F).
type Affine struct {
	A, B, C, D, E, F float64
}

func (m Affine) Apply(p Point) Point {
	return Point{
		X: m.A*p.X + m.C*p.Y + m.E,
		Y: m.B*p.X + m.D*p.Y + m.F,
	}
}

// Aff3 returns the matrix in the row-major layout used by x/image/draw.
func (m Affine) Aff3() f64.Aff3 {
	return f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F}
}

func det3(a, b, c, d, e, f, g, h, i float64) float64 {
	return a*(e*i-f*h) - b*(d*i-f*g) + c*(d*h-e*g)
}

// SolveAffine returns the unique transform taking src[k] onto dst[k] for
// k = 0..2, using Cramer's rule on the 3x3 system. ok is false when src is
// degenerate.
func SolveAffine(src, dst Triangle) (Affine, bool) {
	if src.Degenerate() {
		return Affine{}, false
	}
	x0, y0 := src[0].X, src[0].Y
	x1, y1 := src[1].X, src[1].Y
	x2, y2 := src[2].X, src[2].Y

	det := det3(x0, y0, 1, x1, y1, 1, x2, y2, 1)

	u0, u1, u2 := dst[0].X, dst[1].X, dst[2].X
	v0, v1, v2 := dst[0].Y, dst[1].Y, dst[2].Y

	return Affine{
		A: det3(u0, y0, 1, u1, y1, 1, u2, y2, 1) / det,
		C: det3(x0, u0, 1, x1, u1, 1, x2, u2, 1) / det,
		E: det3(x0, y0, u0, x1, y1, u1, x2, y2, u2) / det,
		B: det3(v0, y0, 1, v1, y1, 1, v2, y2, 1) / det,
		D: det3(x0, v0, 1, x1, v1, 1, x2, v2, 1) / det,
		F: det3(x0, y0, v0, x1, y1, v1, x2, y2, v2) / det,
	}, true
}
