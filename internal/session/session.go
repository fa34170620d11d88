package session

import (
	"errors"
	"image"
	"io"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/ivlev/mockupwarp/internal/composite"
	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/logger"
	"github.com/ivlev/mockupwarp/internal/template"
)

// ErrNotReady is returned by operations that need a rendered frame before
// both images are loaded.
var ErrNotReady = errors.New("session not ready")

// Session is the live mapping state of one mockup. Every mutation re-renders
// synchronously into the surface.
type Session struct {
	mu sync.Mutex

	points   geometry.MappingPoints
	width    int
	height   int
	template image.Image
	source   image.Image
	rendered bool

	compositor *composite.Compositor
	surface    *composite.Surface

	// OnRender is called after each successful render with a copy of the
	// frame. It runs under the session lock and must not call back into it.
	OnRender func(frame *image.RGBA)

	Log logrus.FieldLogger
}

type Option func(*Session)

func WithCompositor(c *composite.Compositor) Option {
	return func(s *Session) { s.compositor = c }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Session) { s.Log = l }
}

func WithOnRender(fn func(*image.RGBA)) Option {
	return func(s *Session) { s.OnRender = fn }
}

func New(opts ...Option) *Session {
	s := &Session{
		points:     geometry.DefaultMapping(),
		compositor: composite.NewCompositor(),
		surface:    composite.NewSurface(0, 0),
		Log:        logger.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InitializeFromTemplate resets the points to the template mapping. A non-nil
// img also becomes the template image and fixes the canvas size.
func (s *Session) InitializeFromTemplate(tpl template.Template, img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.points = tpl.DefaultPoints()
	if img != nil {
		s.template = img
		b := img.Bounds()
		s.resize(b.Dx(), b.Dy())
	}
	s.Log.WithFields(logrus.Fields{
		"template": tpl.Name,
		"points":   s.points,
	}).Debug("session initialized")
	s.render()
}

// UpdatePoint changes one coordinate. Values are not clamped; a corner may
// leave the canvas.
func (s *Session) UpdatePoint(c geometry.Corner, a geometry.Axis, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	simple := s.points.IsSimple()
	if err := s.points.Set(c, a, value); err != nil {
		return err
	}
	s.noteShape(simple)
	s.render()
	return nil
}

// SetPoints replaces all four corners at once.
func (s *Session) SetPoints(m geometry.MappingPoints) {
	s.mu.Lock()
	defer s.mu.Unlock()
	simple := s.points.IsSimple()
	s.points = m
	s.noteShape(simple)
	s.render()
}

func (s *Session) SetCanvasSize(w, h int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resize(w, h)
	s.render()
}

func (s *Session) SetTemplateImage(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.template = img
	s.render()
}

func (s *Session) SetSourceImage(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = img
	s.render()
}

func (s *Session) Points() geometry.MappingPoints {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.points
}

func (s *Session) CanvasSize() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

// Ready reports whether both images are loaded and the canvas is non-empty.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready()
}

// Render forces a render pass and reports whether one happened.
func (s *Session) Render() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.render()
}

// Snapshot returns the last rendered frame.
func (s *Session) Snapshot() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rendered {
		return nil, ErrNotReady
	}
	return s.surface.Snapshot(), nil
}

func (s *Session) EncodePNG(w io.Writer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.rendered {
		return ErrNotReady
	}
	return s.surface.EncodePNG(w)
}

func (s *Session) resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	if w == s.width && h == s.height {
		return
	}
	s.width, s.height = w, h
	s.surface.Resize(w, h)
	s.rendered = false
}

// noteShape warns when an edit folds a simple quad over itself. Dragging an
// already crossed quad stays quiet.
func (s *Session) noteShape(wasSimple bool) {
	if wasSimple && !s.points.IsSimple() {
		s.Log.WithField("points", s.points).Warn("mapping quad crosses itself")
	}
}

func (s *Session) ready() bool {
	return s.template != nil && s.source != nil && s.width > 0 && s.height > 0
}

// render drops the last frame when an image was removed, so a stale
// composite is never served.
func (s *Session) render() bool {
	if !s.ready() {
		s.rendered = false
		return false
	}
	if !s.compositor.Render(s.surface, s.template, s.source, s.points) {
		return false
	}
	s.rendered = true
	if s.OnRender != nil {
		s.OnRender(s.surface.Snapshot())
	}
	return true
}
