package composite

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"
	"time"

	"github.com/ivlev/mockupwarp/internal/geometry"
)

var (
	red   = color.RGBA{255, 0, 0, 255}
	blue  = color.RGBA{0, 0, 255, 255}
	green = color.RGBA{0, 255, 0, 255}
)

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func near(a, b color.RGBA, tol int) bool {
	d := func(x, y uint8) bool { return math.Abs(float64(x)-float64(y)) <= float64(tol) }
	return d(a.R, b.R) && d(a.G, b.G) && d(a.B, b.B) && d(a.A, b.A)
}

func fullQuad() geometry.MappingPoints {
	return geometry.MappingPoints{
		TopLeft:     geometry.Point{X: 0, Y: 0},
		TopRight:    geometry.Point{X: 100, Y: 0},
		BottomLeft:  geometry.Point{X: 0, Y: 100},
		BottomRight: geometry.Point{X: 100, Y: 100},
	}
}

func TestRenderNoOp(t *testing.T) {
	c := NewCompositor()
	tpl := image.NewRGBA(image.Rect(0, 0, 10, 10))
	src := solid(10, 10, red)

	dst := NewSurface(10, 10)
	before := dst.Snapshot()

	tests := []struct {
		name string
		dst  *Surface
		tpl  image.Image
		src  image.Image
	}{
		{"nil surface", nil, tpl, src},
		{"nil template", dst, nil, src},
		{"nil source", dst, tpl, nil},
		{"empty surface", NewSurface(0, 0), tpl, src},
		{"empty source", dst, tpl, image.NewRGBA(image.Rectangle{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if c.Render(tt.dst, tt.tpl, tt.src, geometry.DefaultMapping()) {
				t.Error("expected no-op")
			}
		})
	}
	if !bytes.Equal(before.Pix, dst.Snapshot().Pix) {
		t.Error("no-op render modified the surface")
	}
}

func TestRenderFullCoverageIsGapFree(t *testing.T) {
	c := NewCompositor()
	dst := NewSurface(120, 90)
	tpl := image.NewRGBA(image.Rect(0, 0, 120, 90)) // fully transparent

	if !c.Render(dst, tpl, solid(64, 48, red), fullQuad()) {
		t.Fatal("render skipped")
	}
	out := dst.Snapshot()
	for y := 0; y < 90; y++ {
		for x := 0; x < 120; x++ {
			p := out.RGBAAt(x, y)
			if p.A < 250 || p.R < 250 || p.G > 5 {
				t.Fatalf("pixel (%d,%d) = %v, expected opaque red", x, y, p)
			}
		}
	}
}

func TestRenderSkewedQuadInterior(t *testing.T) {
	c := NewCompositor()
	const w, h = 200, 160
	dst := NewSurface(w, h)
	tpl := image.NewRGBA(image.Rect(0, 0, w, h))
	quad := geometry.MappingPoints{
		TopLeft:     geometry.Point{X: 10, Y: 5},
		TopRight:    geometry.Point{X: 90, Y: 15},
		BottomLeft:  geometry.Point{X: 5, Y: 95},
		BottomRight: geometry.Point{X: 95, Y: 85},
	}
	st, ok := c.RenderStats(dst, tpl, solid(300, 300, red), quad)
	if !ok {
		t.Fatal("render skipped")
	}
	t.Logf("stats: %+v", st)
	if st.Triangles != 2*DefaultMeshSize*DefaultMeshSize || st.Degenerate != 0 {
		t.Errorf("unexpected stats %+v", st)
	}

	out := dst.Snapshot()
	px := quad.ToPixels(w, h)
	for s := 0.05; s < 1; s += 0.05 {
		for tt := 0.05; tt < 1; tt += 0.05 {
			p := geometry.Bilinear(px, s, tt)
			got := out.RGBAAt(int(p.X), int(p.Y))
			if got.A < 250 || got.R < 250 {
				t.Fatalf("interior (%.2f,%.2f) at %v = %v", s, tt, p, got)
			}
		}
	}
	if got := out.RGBAAt(1, h-2); got.A != 0 {
		t.Errorf("pixel outside quad painted: %v", got)
	}
}

func TestRenderIdempotent(t *testing.T) {
	c := NewCompositor()
	c.ShowMarkers = true

	src := image.NewRGBA(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			src.Set(x, y, color.RGBA{uint8(x * 4), uint8(y * 4), 128, 255})
		}
	}
	tpl := image.NewRGBA(image.Rect(0, 0, 100, 80))
	for x := 0; x < 100; x++ {
		tpl.Set(x, 0, blue)
	}
	m := geometry.MappingPoints{
		TopLeft:     geometry.Point{X: 13, Y: 11},
		TopRight:    geometry.Point{X: 26, Y: 23},
		BottomLeft:  geometry.Point{X: 12, Y: 85},
		BottomRight: geometry.Point{X: 26, Y: 79},
	}

	dst := NewSurface(100, 80)
	c.Render(dst, tpl, src, m)
	first := dst.Snapshot()
	c.Render(dst, tpl, src, m)
	second := dst.Snapshot()

	fresh := NewSurface(100, 80)
	c.Render(fresh, tpl, src, m)

	if !bytes.Equal(first.Pix, second.Pix) {
		t.Error("second render differs from first")
	}
	if !bytes.Equal(first.Pix, fresh.Snapshot().Pix) {
		t.Error("render on a fresh surface differs")
	}
}

func TestTemplateOccludesSource(t *testing.T) {
	c := NewCompositor()
	dst := NewSurface(100, 100)
	tpl := image.NewRGBA(image.Rect(0, 0, 100, 100))
	for y := 0; y < 50; y++ {
		for x := 0; x < 50; x++ {
			tpl.Set(x, y, blue)
		}
	}

	c.Render(dst, tpl, solid(10, 10, red), geometry.DefaultMapping())
	out := dst.Snapshot()

	if got := out.RGBAAt(30, 30); got != blue {
		t.Errorf("template area = %v, want blue", got)
	}
	if got := out.RGBAAt(70, 70); got.R < 250 || got.A < 250 {
		t.Errorf("quad area = %v, want red", got)
	}
	if got := out.RGBAAt(90, 90); got.A != 0 {
		t.Errorf("outside = %v, want transparent", got)
	}
}

func TestTemplateScaledToSurface(t *testing.T) {
	c := NewCompositor()
	dst := NewSurface(100, 60)
	c.Render(dst, solid(25, 15, green), solid(4, 4, red), geometry.DefaultMapping())
	out := dst.Snapshot()
	for _, p := range []image.Point{{0, 0}, {99, 59}, {50, 30}} {
		if got := out.RGBAAt(p.X, p.Y); got.G < 250 || got.R > 5 {
			t.Errorf("pixel %v = %v, want green", p, got)
		}
	}
}

func TestMarkers(t *testing.T) {
	c := NewCompositor()
	c.ShowMarkers = true
	dst := NewSurface(200, 200)
	c.Render(dst, image.NewRGBA(image.Rect(0, 0, 200, 200)), solid(8, 8, blue), geometry.DefaultMapping())

	out := dst.Snapshot()
	center := out.RGBAAt(40, 40) // top-left corner at 20%
	if !near(center, DefaultMarkerColor, 2) {
		t.Errorf("marker center = %v, want %v", center, DefaultMarkerColor)
	}
	if got := out.RGBAAt(100, 100); !near(got, blue, 2) {
		t.Errorf("quad center = %v, want blue", got)
	}
}

func TestDegenerateQuadSkipsEverything(t *testing.T) {
	c := NewCompositor()
	dst := NewSurface(50, 50)
	p := geometry.Point{X: 40, Y: 40}
	quad := geometry.MappingPoints{TopLeft: p, TopRight: p, BottomLeft: p, BottomRight: p}

	st, ok := c.RenderStats(dst, image.NewRGBA(image.Rect(0, 0, 50, 50)), solid(10, 10, red), quad)
	if !ok {
		t.Fatal("render with degenerate quad should still complete")
	}
	if st.Drawn != 0 || st.Degenerate != st.Triangles {
		t.Errorf("stats %+v", st)
	}
	for _, v := range dst.Snapshot().Pix {
		if v != 0 {
			t.Fatal("degenerate quad painted pixels")
		}
	}
}

func TestSurface(t *testing.T) {
	s := NewSurface(3, 2)
	if w, h := s.Size(); w != 3 || h != 2 {
		t.Fatalf("size %dx%d", w, h)
	}
	if s.commit(image.NewRGBA(image.Rect(0, 0, 4, 4))) {
		t.Error("commit accepted a frame of the wrong size")
	}

	frame := solid(3, 2, red)
	if !s.commit(frame) {
		t.Fatal("commit rejected a matching frame")
	}
	var buf bytes.Buffer
	if err := s.EncodePNG(&buf); err != nil {
		t.Fatal(err)
	}
	decoded, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	r, _, _, a := decoded.At(2, 1).RGBA()
	if r>>8 != 255 || a>>8 != 255 {
		t.Errorf("decoded pixel r=%d a=%d", r>>8, a>>8)
	}

	s.Clear()
	if s.Snapshot().RGBAAt(0, 0).A != 0 {
		t.Error("Clear left pixels behind")
	}

	s.Resize(-1, 5)
	if w, h := s.Size(); w != 0 || h != 5 {
		t.Errorf("resize clamp: %dx%d", w, h)
	}
}

func TestOverlapClampedToUnitSquare(t *testing.T) {
	c := NewCompositor()
	c.MeshSize = 1
	c.Overlap = 0.5
	dst := NewSurface(40, 40)
	st, ok := c.RenderStats(dst, image.NewRGBA(image.Rect(0, 0, 40, 40)), solid(10, 10, red), fullQuad())
	if !ok || st.Drawn != 2 {
		t.Fatalf("stats %+v ok=%v", st, ok)
	}
	if math.Abs(float64(dst.Snapshot().RGBAAt(20, 20).R)-255) > 5 {
		t.Error("single-cell mesh did not cover center")
	}
}

func photo(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{uint8(x), uint8(y), uint8(x ^ y), 255})
		}
	}
	return img
}

var phoneMapping = geometry.MappingPoints{
	TopLeft:     geometry.Point{X: 13, Y: 11},
	TopRight:    geometry.Point{X: 26, Y: 23},
	BottomLeft:  geometry.Point{X: 12, Y: 85},
	BottomRight: geometry.Point{X: 26, Y: 79},
}

// Редактирование углов перерисовывает кадр на каждое движение слайдера.
func TestRenderFitsInteractiveBudget(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}
	src := photo(800, 1270)
	tpl := image.NewRGBA(image.Rect(0, 0, 1080, 1920))

	tests := []struct {
		name    string
		mapping geometry.MappingPoints
	}{
		{"phone", phoneMapping},
		{"default", geometry.DefaultMapping()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCompositor()
			dst := NewSurface(1080, 1920)

			// первый рендер включает масштабирование источника
			if _, ok := c.RenderStats(dst, tpl, src, tt.mapping); !ok {
				t.Fatal("render skipped")
			}
			st, ok := c.RenderStats(dst, tpl, src, tt.mapping)
			if !ok {
				t.Fatal("render skipped")
			}
			t.Logf("stats: %+v", st)
			if st.Elapsed > 2*time.Second {
				t.Errorf("render took %v", st.Elapsed)
			}
		})
	}
}

func TestSourceScaledToQuad(t *testing.T) {
	c := NewCompositor()
	src := photo(800, 1270)
	dst := NewSurface(400, 600)
	tpl := image.NewRGBA(image.Rect(0, 0, 400, 600))

	c.Render(dst, tpl, src, phoneMapping)
	first := c.cache.img
	if first == nil {
		t.Fatal("no scaled source cached")
	}
	qw, qh := quadExtent(phoneMapping.ToPixels(400, 600))
	b := first.Bounds()
	if b.Dx() < qw || b.Dy() < qh || b.Dx() >= 800 || b.Dy() >= 1270 {
		t.Errorf("scaled source %v for quad %dx%d", b, qw, qh)
	}

	nudged := phoneMapping
	nudged.TopRight.X += 0.5
	c.Render(dst, tpl, src, nudged)
	if c.cache.img != first {
		t.Error("small edit rescaled the source")
	}

	c.Render(dst, tpl, photo(800, 1270), phoneMapping)
	if c.cache.img == first {
		t.Error("new source reused the old scaled copy")
	}

	full := NewCompositor()
	small := solid(20, 10, red)
	full.Render(NewSurface(200, 200), image.NewRGBA(image.Rect(0, 0, 200, 200)), small, fullQuad())
	if got := full.cache.img.Bounds().Size(); got != image.Pt(20, 10) {
		t.Errorf("source was upscaled to %v", got)
	}
}

func BenchmarkRender(b *testing.B) {
	c := NewCompositor()
	src := photo(800, 1270)
	tpl := image.NewRGBA(image.Rect(0, 0, 1080, 1920))
	dst := NewSurface(1080, 1920)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Render(dst, tpl, src, phoneMapping)
	}
}
