package composite

import (
	"image"
	"image/png"
	"io"
	"sync"
)

// Surface is the destination raster of a render. Readers always see either
// the previous or the next complete frame.
type Surface struct {
	mu  sync.RWMutex
	img *image.RGBA
}

func NewSurface(w, h int) *Surface {
	s := &Surface{}
	s.Resize(w, h)
	return s
}

// Resize reallocates the surface. Existing pixels are dropped.
func (s *Surface) Resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	s.mu.Lock()
	s.img = image.NewRGBA(image.Rect(0, 0, w, h))
	s.mu.Unlock()
}

func (s *Surface) Size() (int, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.img == nil {
		return 0, 0
	}
	return s.img.Rect.Dx(), s.img.Rect.Dy()
}

func (s *Surface) Clear() {
	s.mu.Lock()
	clear(s.img.Pix)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current pixels.
func (s *Surface) Snapshot() *image.RGBA {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := image.NewRGBA(s.img.Rect)
	copy(out.Pix, s.img.Pix)
	return out
}

func (s *Surface) EncodePNG(w io.Writer) error {
	return png.Encode(w, s.Snapshot())
}

// commit replaces the surface pixels with frame. frame must match the
// surface size; a surface resized mid-render keeps its new blank buffer.
func (s *Surface) commit(frame *image.RGBA) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if frame.Rect.Size() != s.img.Rect.Size() {
		return false
	}
	copy(s.img.Pix, frame.Pix)
	return true
}
