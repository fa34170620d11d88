package wizard

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/logger"
	"github.com/ivlev/mockupwarp/internal/panel"
	"github.com/ivlev/mockupwarp/internal/session"
	"github.com/ivlev/mockupwarp/internal/template"
)

var (
	ErrInvalidTransition = errors.New("invalid wizard transition")
	ErrEmptyCrop         = errors.New("crop rectangle is empty")
	ErrNoTemplateImage   = errors.New("template image is required")
)

type Step int

const (
	StepTemplateSelect Step = iota
	StepUpload
	StepCrop
	StepMap
)

var stepNames = [...]string{"template-select", "upload", "crop", "map"}

func (s Step) String() string {
	if s < 0 || int(s) >= len(stepNames) {
		return fmt.Sprintf("step(%d)", int(s))
	}
	return stepNames[s]
}

func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Event is a typed transition payload.
type Event interface {
	event()
}

// SelectTemplate picks the mockup. Image is the decoded template and sizes
// the canvas.
type SelectTemplate struct {
	Template template.Template
	Image    image.Image
}

type Upload struct {
	Image image.Image
}

// Crop is in pixel coordinates of the uploaded image.
type Crop struct {
	Rect geometry.Rect
}

type Back struct{}

func (SelectTemplate) event() {}
func (Upload) event()         {}
func (Crop) event()           {}
func (Back) event()           {}

// State is a read-only view of the wizard for clients.
type State struct {
	Step      Step                   `json:"step"`
	Template  string                 `json:"template,omitempty"`
	Suggested *geometry.Rect         `json:"suggested,omitempty"`
	Detected  bool                   `json:"detected"`
	Crop      *geometry.Rect         `json:"crop,omitempty"`
	Points    geometry.MappingPoints `json:"points"`
	Width     int                    `json:"width"`
	Height    int                    `json:"height"`
	Ready     bool                   `json:"ready"`

	// Crossed is set while the corners fold the quad over itself.
	Crossed bool `json:"crossed"`
}

// Wizard drives template-select -> upload -> crop -> map. Only the map step
// touches the session.
type Wizard struct {
	mu sync.Mutex

	step     Step
	detector panel.Detector
	session  *session.Session

	tpl       *template.Template
	tplImage  image.Image
	upload    image.Image
	suggested *geometry.Rect
	detected  bool
	crop      *geometry.Rect

	Log logrus.FieldLogger
}

func New(d panel.Detector, s *session.Session) *Wizard {
	if s == nil {
		s = session.New()
	}
	return &Wizard{
		detector: d,
		session:  s,
		Log:      logger.Discard(),
	}
}

func (w *Wizard) Session() *session.Session {
	return w.session
}

func (w *Wizard) Step() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.step
}

func (w *Wizard) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := State{
		Step:      w.step,
		Suggested: w.suggested,
		Detected:  w.detected,
		Crop:      w.crop,
		Points:    w.session.Points(),
		Ready:     w.session.Ready(),
	}
	st.Crossed = !st.Points.IsSimple()
	st.Width, st.Height = w.session.CanvasSize()
	if w.tpl != nil {
		st.Template = w.tpl.Name
	}
	return st
}

// Apply runs one transition. A payload that does not belong to the current
// step returns ErrInvalidTransition and leaves the state unchanged.
func (w *Wizard) Apply(ctx context.Context, ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	from := w.step
	var err error
	switch e := ev.(type) {
	case SelectTemplate:
		err = w.selectTemplate(e)
	case Upload:
		err = w.uploadImage(ctx, e)
	case Crop:
		err = w.cropImage(e)
	case Back:
		err = w.back()
	default:
		err = fmt.Errorf("%w: unknown event %T", ErrInvalidTransition, ev)
	}
	if err != nil {
		return err
	}
	w.Log.WithFields(logrus.Fields{
		"from":  from.String(),
		"to":    w.step.String(),
		"event": fmt.Sprintf("%T", ev),
	}).Debug("wizard transition")
	return nil
}

func (w *Wizard) invalid(ev Event) error {
	return fmt.Errorf("%w: %T in step %s", ErrInvalidTransition, ev, w.step)
}

func (w *Wizard) selectTemplate(e SelectTemplate) error {
	if w.step != StepTemplateSelect {
		return w.invalid(e)
	}
	if e.Image == nil || e.Image.Bounds().Empty() {
		return fmt.Errorf("%w: %s", ErrNoTemplateImage, e.Template.Name)
	}
	tpl := e.Template
	w.tpl = &tpl
	w.tplImage = e.Image
	w.step = StepUpload
	return nil
}

func (w *Wizard) uploadImage(ctx context.Context, e Upload) error {
	if w.step != StepUpload {
		return w.invalid(e)
	}
	if e.Image == nil || e.Image.Bounds().Empty() {
		return fmt.Errorf("upload: %w", panel.ErrDecode)
	}

	b := e.Image.Bounds()
	var (
		rect     geometry.Rect
		detected bool
	)
	if w.detector != nil {
		r, ok, err := panel.SuggestCrop(ctx, w.detector, e.Image)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			// детекция не должна блокировать мастер
			w.Log.WithError(err).Warn("detection failed, using default crop")
		default:
			rect, detected = r, ok
		}
	}
	if rect.Area() <= 0 {
		rect = geometry.CenteredAspectRect(float64(b.Dx()), float64(b.Dy()), geometry.DefaultCropAspect)
		detected = false
	}

	w.upload = e.Image
	w.suggested = &rect
	w.detected = detected
	w.crop = nil
	w.step = StepCrop
	return nil
}

func (w *Wizard) cropImage(e Crop) error {
	if w.step != StepCrop {
		return w.invalid(e)
	}
	b := w.upload.Bounds()
	rect := e.Rect.Clamp(float64(b.Dx()), float64(b.Dy()))
	r := rect.Image().Add(b.Min)
	if r.Empty() {
		return ErrEmptyCrop
	}

	cropped := imaging.Crop(w.upload, r)
	w.crop = &rect
	w.step = StepMap

	w.session.InitializeFromTemplate(*w.tpl, w.tplImage)
	w.session.SetSourceImage(cropped)
	return nil
}

func (w *Wizard) back() error {
	switch w.step {
	case StepMap:
		w.step = StepCrop
		w.crop = nil
		w.session.SetSourceImage(nil)
	case StepCrop:
		w.step = StepUpload
		w.upload = nil
		w.suggested = nil
		w.detected = false
	case StepUpload:
		w.step = StepTemplateSelect
		w.tpl = nil
		w.tplImage = nil
	default:
		return w.invalid(Back{})
	}
	return nil
}

// UpdatePoint forwards a corner edit to the session. Only valid in the map
// step.
func (w *Wizard) UpdatePoint(c geometry.Corner, a geometry.Axis, value float64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepMap {
		return fmt.Errorf("%w: point update in step %s", ErrInvalidTransition, w.step)
	}
	return w.session.UpdatePoint(c, a, value)
}

func (w *Wizard) SetPoints(m geometry.MappingPoints) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step != StepMap {
		return fmt.Errorf("%w: point update in step %s", ErrInvalidTransition, w.step)
	}
	w.session.SetPoints(m)
	return nil
}
