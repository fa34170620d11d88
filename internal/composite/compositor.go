package composite

import (
	"image"
	"image/color"
	"math"
	"reflect"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/vector"

	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/logger"
	"github.com/ivlev/mockupwarp/internal/system"
)

const (
	DefaultMeshSize     = 24
	DefaultOverlap      = 0.02
	DefaultClipExpand   = 2.0
	DefaultMarkerRadius = 6.0

	// prescaleStep rounds the scaled source size up so that small quad
	// changes during a drag keep hitting the cache.
	prescaleStep = 32
)

var DefaultMarkerColor = color.RGBA{0xef, 0x44, 0x44, 0xff}

// Compositor warps a source image into a quad of the destination surface
// through a mesh of small affine patches, then lays the template on top.
type Compositor struct {
	MeshSize     int
	Overlap      float64 // cell expansion in UV units
	ClipExpand   float64 // clip triangle growth in pixels
	Interpolator draw.Interpolator

	ShowMarkers  bool
	MarkerRadius float64
	MarkerColor  color.Color

	Log logrus.FieldLogger

	mu    sync.Mutex
	cache scaledSource
}

// scaledSource is the source reduced to about the pixel size of the quad.
type scaledSource struct {
	src image.Image
	img *image.NRGBA
}

// NewCompositor is tuned for interactive edits. Set Interpolator to
// draw.CatmullRom for a final export.
func NewCompositor() *Compositor {
	return &Compositor{
		MeshSize:     DefaultMeshSize,
		Overlap:      DefaultOverlap,
		ClipExpand:   DefaultClipExpand,
		Interpolator: draw.ApproxBiLinear,
		MarkerRadius: DefaultMarkerRadius,
		MarkerColor:  DefaultMarkerColor,
		Log:          logger.Discard(),
	}
}

// Stats describes one render pass.
type Stats struct {
	Triangles  int
	Drawn      int
	Degenerate int
	Offscreen  int
	Elapsed    time.Duration
}

// Render draws into dst and reports whether anything was rendered. A nil
// image or an empty surface makes it a no-op that leaves dst untouched.
func (c *Compositor) Render(dst *Surface, template, src image.Image, corners geometry.MappingPoints) bool {
	_, ok := c.RenderStats(dst, template, src, corners)
	return ok
}

func (c *Compositor) RenderStats(dst *Surface, template, src image.Image, corners geometry.MappingPoints) (Stats, bool) {
	var st Stats
	if dst == nil || template == nil || src == nil {
		return st, false
	}
	w, h := dst.Size()
	if w == 0 || h == 0 || src.Bounds().Empty() {
		return st, false
	}
	start := time.Now()

	frame := system.GetImage(image.Rect(0, 0, w, h))
	defer system.PutImage(frame)

	px := corners.ToPixels(float64(w), float64(h))
	scratch := system.GetImage(frame.Rect)
	defer system.PutImage(scratch)
	c.warp(frame, scratch, c.scaledSource(src, px), px, &st)
	c.overlay(frame, template)
	if c.ShowMarkers {
		c.drawMarkers(frame, px)
	}

	if !dst.commit(frame) {
		return st, false
	}
	st.Elapsed = time.Since(start)

	c.log().WithFields(logrus.Fields{
		"size":       image.Pt(w, h).String(),
		"triangles":  st.Triangles,
		"drawn":      st.Drawn,
		"degenerate": st.Degenerate,
		"offscreen":  st.Offscreen,
		"elapsed":    st.Elapsed.String(),
	}).Debug("composite rendered")
	return st, true
}

func (c *Compositor) log() logrus.FieldLogger {
	if c.Log == nil {
		return logger.Discard()
	}
	return c.Log
}

func (c *Compositor) interpolator() draw.Interpolator {
	if c.Interpolator == nil {
		return draw.ApproxBiLinear
	}
	return c.Interpolator
}

// quadExtent is the pixel size the source occupies inside the quad: the
// longer of each pair of opposite edges.
func quadExtent(px geometry.MappingPoints) (int, int) {
	w := math.Max(px.TopRight.Sub(px.TopLeft).Len(), px.BottomRight.Sub(px.BottomLeft).Len())
	h := math.Max(px.BottomLeft.Sub(px.TopLeft).Len(), px.BottomRight.Sub(px.TopRight).Len())
	return int(math.Ceil(w)), int(math.Ceil(h))
}

func roundUp(v, step int) int {
	if v < 1 {
		return step
	}
	return (v + step - 1) / step * step
}

func sameImage(a, b image.Image) bool {
	ta := reflect.TypeOf(a)
	return ta == reflect.TypeOf(b) && ta.Comparable() && a == b
}

// scaledSource shrinks src once to roughly the quad size so the mesh
// kernels sample close to 1:1. The copy is reused while the quad stays
// within a factor of two of it.
func (c *Compositor) scaledSource(src image.Image, px geometry.MappingPoints) *image.NRGBA {
	sb := src.Bounds()
	qw, qh := quadExtent(px)
	tw := min(sb.Dx(), roundUp(qw, prescaleStep))
	th := min(sb.Dy(), roundUp(qh, prescaleStep))

	c.mu.Lock()
	defer c.mu.Unlock()

	if e := c.cache; e.img != nil && sameImage(e.src, src) {
		b := e.img.Bounds()
		if b.Dx() >= tw && b.Dy() >= th && b.Dx() <= 2*tw && b.Dy() <= 2*th {
			return e.img
		}
	}

	var img *image.NRGBA
	if tw == sb.Dx() && th == sb.Dy() {
		img = imaging.Clone(src)
	} else {
		img = imaging.Resize(src, tw, th, imaging.Linear)
	}
	c.cache = scaledSource{src: src, img: img}
	c.log().WithFields(logrus.Fields{
		"source": sb.Size().String(),
		"scaled": img.Bounds().Size().String(),
	}).Debug("source rescaled for mesh")
	return img
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// warp walks the mesh row-major. Later cells overdraw earlier ones inside
// the overlap margin. scratch is a frame-sized buffer for the patches.
func (c *Compositor) warp(frame, scratch *image.RGBA, src *image.NRGBA, px geometry.MappingPoints, st *Stats) {
	n := c.MeshSize
	if n < 1 {
		n = 1
	}
	sb := src.Bounds()
	sw, sh := float64(sb.Dx()), float64(sb.Dy())
	srcAt := func(u, v float64) geometry.Point {
		return geometry.Point{X: float64(sb.Min.X) + u*sw, Y: float64(sb.Min.Y) + v*sh}
	}

	z := &vector.Rasterizer{}
	for row := 0; row < n; row++ {
		v0 := clampUnit(float64(row)/float64(n) - c.Overlap)
		v1 := clampUnit(float64(row+1)/float64(n) + c.Overlap)
		for col := 0; col < n; col++ {
			u0 := clampUnit(float64(col)/float64(n) - c.Overlap)
			u1 := clampUnit(float64(col+1)/float64(n) + c.Overlap)

			dTL := geometry.Bilinear(px, u0, v0)
			dTR := geometry.Bilinear(px, u1, v0)
			dBL := geometry.Bilinear(px, u0, v1)
			dBR := geometry.Bilinear(px, u1, v1)

			sTL, sTR := srcAt(u0, v0), srcAt(u1, v0)
			sBL, sBR := srcAt(u0, v1), srcAt(u1, v1)

			c.drawTriangle(frame, scratch, src, z,
				geometry.Triangle{sTL, sTR, sBR},
				geometry.Triangle{dTL, dTR, dBR}, st)
			c.drawTriangle(frame, scratch, src, z,
				geometry.Triangle{sTL, sBR, sBL},
				geometry.Triangle{dTL, dBR, dBL}, st)
		}
	}
}

// drawTriangle warps the source into the scratch patch without a mask,
// which keeps x/image/draw on its typed fast paths, then blends the patch
// through the clip mask.
func (c *Compositor) drawTriangle(frame, scratch *image.RGBA, src *image.NRGBA, z *vector.Rasterizer, s, d geometry.Triangle, st *Stats) {
	st.Triangles++
	m, ok := geometry.SolveAffine(s, d)
	if !ok || d.Degenerate() {
		st.Degenerate++
		return
	}

	clip := d.Expand(c.ClipExpand)
	mask, r := rasterize(z, clip[:], frame.Bounds())
	if mask == nil {
		st.Offscreen++
		return
	}

	patch := scratch.SubImage(r).(*image.RGBA)
	draw.Draw(patch, r, image.Transparent, image.Point{}, draw.Src)
	c.interpolator().Transform(patch, m.Aff3(), src, src.Bounds(), draw.Src, nil)
	draw.DrawMask(frame, r, patch, r.Min, mask, r.Min, draw.Over)
	st.Drawn++
}

// rasterize fills the polygon into an anti-aliased alpha mask covering
// its bounding box clipped to bounds.
func rasterize(z *vector.Rasterizer, poly []geometry.Point, bounds image.Rectangle) (*image.Alpha, image.Rectangle) {
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range poly {
		minX, maxX = math.Min(minX, p.X), math.Max(maxX, p.X)
		minY, maxY = math.Min(minY, p.Y), math.Max(maxY, p.Y)
	}
	r := image.Rect(
		int(math.Floor(minX)), int(math.Floor(minY)),
		int(math.Ceil(maxX)), int(math.Ceil(maxY)),
	).Intersect(bounds)
	if r.Empty() {
		return nil, r
	}

	ox, oy := float64(r.Min.X), float64(r.Min.Y)
	z.Reset(r.Dx(), r.Dy())
	z.MoveTo(float32(poly[0].X-ox), float32(poly[0].Y-oy))
	for _, p := range poly[1:] {
		z.LineTo(float32(p.X-ox), float32(p.Y-oy))
	}
	z.ClosePath()

	mask := image.NewAlpha(r)
	z.Draw(mask, r, image.Opaque, image.Point{})
	return mask, r
}

// overlay draws the template stretched over the whole frame.
func (c *Compositor) overlay(frame *image.RGBA, template image.Image) {
	tb := template.Bounds()
	if tb.Size() == frame.Rect.Size() {
		draw.Draw(frame, frame.Rect, template, tb.Min, draw.Over)
		return
	}
	c.interpolator().Scale(frame, frame.Rect, template, tb, draw.Over, nil)
}

const markerSegments = 48

func (c *Compositor) drawMarkers(frame *image.RGBA, px geometry.MappingPoints) {
	radius := c.MarkerRadius
	if radius <= 0 {
		radius = DefaultMarkerRadius
	}
	col := c.MarkerColor
	if col == nil {
		col = DefaultMarkerColor
	}
	fill := image.NewUniform(col)

	z := &vector.Rasterizer{}
	for _, p := range px.Corners() {
		r := image.Rect(
			int(math.Floor(p.X-radius)), int(math.Floor(p.Y-radius)),
			int(math.Ceil(p.X+radius)), int(math.Ceil(p.Y+radius)),
		).Intersect(frame.Rect)
		if r.Empty() {
			continue
		}
		ox, oy := float64(r.Min.X), float64(r.Min.Y)
		z.Reset(r.Dx(), r.Dy())
		for i := 0; i <= markerSegments; i++ {
			a := 2 * math.Pi * float64(i) / markerSegments
			x := float32(p.X + radius*math.Cos(a) - ox)
			y := float32(p.Y + radius*math.Sin(a) - oy)
			if i == 0 {
				z.MoveTo(x, y)
			} else {
				z.LineTo(x, y)
			}
		}
		z.ClosePath()
		z.Draw(frame, r, fill, image.Point{})
	}
}
