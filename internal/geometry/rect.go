package geometry

import (
	"fmt"
	"image"
	"math"
)

// DefaultCropAspect is the width/height ratio of the profile crop.
const DefaultCropAspect = 2.72 / 4.33

// Rect is an axis-aligned rectangle in floating point coordinates.
type Rect struct {
	X      float64 `yaml:"x" json:"x" validate:"gte=0"`
	Y      float64 `yaml:"y" json:"y" validate:"gte=0"`
	Width  float64 `yaml:"width" json:"width" validate:"gt=0"`
	Height float64 `yaml:"height" json:"height" validate:"gt=0"`
}

func (r Rect) String() string {
	return fmt.Sprintf("[%.1f,%.1f %.1fx%.1f]", r.X, r.Y, r.Width, r.Height)
}

func (r Rect) Area() float64 {
	if r.Width <= 0 || r.Height <= 0 {
		return 0
	}
	return r.Width * r.Height
}

func (r Rect) Scale(sx, sy float64) Rect {
	return Rect{X: r.X * sx, Y: r.Y * sy, Width: r.Width * sx, Height: r.Height * sy}
}

// Percent expresses r as percentages of a w x h image.
func (r Rect) Percent(w, h float64) Rect {
	return r.Scale(100/w, 100/h)
}

func (r Rect) Intersect(o Rect) Rect {
	x0 := math.Max(r.X, o.X)
	y0 := math.Max(r.Y, o.Y)
	x1 := math.Min(r.X+r.Width, o.X+o.Width)
	y1 := math.Min(r.Y+r.Height, o.Y+o.Height)
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// IoU is the intersection-over-union of two rectangles.
func (r Rect) IoU(o Rect) float64 {
	inter := r.Intersect(o).Area()
	union := r.Area() + o.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// Image rounds r to an integer rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(
		int(math.Round(r.X)),
		int(math.Round(r.Y)),
		int(math.Round(r.X+r.Width)),
		int(math.Round(r.Y+r.Height)),
	)
}

// Clamp limits r to the [0,w] x [0,h] box.
func (r Rect) Clamp(w, h float64) Rect {
	return r.Intersect(Rect{Width: w, Height: h})
}

// CenteredAspectRect returns the largest rectangle of the given width/height
// aspect that fits centered inside a w x h image.
func CenteredAspectRect(w, h, aspect float64) Rect {
	if w <= 0 || h <= 0 || aspect <= 0 {
		return Rect{}
	}
	cw, ch := w, w/aspect
	if ch > h {
		ch = h
		cw = h * aspect
	}
	return Rect{X: (w - cw) / 2, Y: (h - ch) / 2, Width: cw, Height: ch}
}
