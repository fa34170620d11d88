package wizard

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/session"
	"github.com/ivlev/mockupwarp/internal/template"
)

type stubDetector struct {
	rect *geometry.Rect
	err  error
}

func (d stubDetector) Detect(ctx context.Context, img image.Image) (*geometry.Rect, error) {
	return d.rect, d.err
}

func photo(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{uint8(x), uint8(y), 0, 255})
		}
	}
	return img
}

func frame() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, 40, 60))
}

var tpl = template.Template{
	Name: "phone",
	Mapping: &geometry.MappingPoints{
		TopLeft:     geometry.Point{X: 13, Y: 11},
		TopRight:    geometry.Point{X: 26, Y: 23},
		BottomLeft:  geometry.Point{X: 12, Y: 85},
		BottomRight: geometry.Point{X: 26, Y: 79},
	},
}

func TestHappyPath(t *testing.T) {
	ctx := context.Background()
	found := &geometry.Rect{X: 10, Y: 20, Width: 40, Height: 80}
	w := New(stubDetector{rect: found}, nil)

	if err := w.Apply(ctx, SelectTemplate{Template: tpl, Image: image.NewRGBA(image.Rect(0, 0, 400, 600))}); err != nil {
		t.Fatal(err)
	}
	if err := w.Apply(ctx, Upload{Image: photo(200, 150)}); err != nil {
		t.Fatal(err)
	}
	st := w.State()
	if st.Step != StepCrop || !st.Detected || *st.Suggested != *found {
		t.Fatalf("after upload: %+v", st)
	}

	if err := w.Apply(ctx, Crop{Rect: *st.Suggested}); err != nil {
		t.Fatal(err)
	}
	st = w.State()
	if st.Step != StepMap || !st.Ready || st.Template != "phone" {
		t.Fatalf("after crop: %+v", st)
	}
	if st.Width != 400 || st.Height != 600 {
		t.Errorf("canvas %dx%d", st.Width, st.Height)
	}
	if st.Points != *tpl.Mapping {
		t.Errorf("points %+v", st.Points)
	}
	if _, err := w.Session().Snapshot(); err != nil {
		t.Errorf("snapshot: %v", err)
	}
}

func TestUploadFallsBackToDefaultCrop(t *testing.T) {
	tests := []struct {
		name string
		det  stubDetector
	}{
		{"no detection", stubDetector{}},
		{"detector error", stubDetector{err: errors.New("boom")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := New(tt.det, nil)
			ctx := context.Background()
			if err := w.Apply(ctx, SelectTemplate{Template: tpl, Image: frame()}); err != nil {
				t.Fatal(err)
			}
			if err := w.Apply(ctx, Upload{Image: photo(433, 272)}); err != nil {
				t.Fatal(err)
			}
			st := w.State()
			want := geometry.CenteredAspectRect(433, 272, geometry.DefaultCropAspect)
			if st.Detected || st.Suggested == nil || *st.Suggested != want {
				t.Errorf("suggested %+v detected=%v, want %+v", st.Suggested, st.Detected, want)
			}
		})
	}
}

func TestInvalidTransitions(t *testing.T) {
	ctx := context.Background()
	w := New(stubDetector{}, nil)

	tests := []struct {
		name string
		ev   Event
	}{
		{"back at start", Back{}},
		{"upload before template", Upload{Image: photo(10, 10)}},
		{"crop before upload", Crop{Rect: geometry.Rect{Width: 5, Height: 5}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := w.Apply(ctx, tt.ev); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if w.Step() != StepTemplateSelect {
				t.Errorf("step changed to %s", w.Step())
			}
		})
	}

	if err := w.Apply(ctx, SelectTemplate{Template: tpl, Image: frame()}); err != nil {
		t.Fatal(err)
	}
	if err := w.Apply(ctx, SelectTemplate{Template: tpl, Image: frame()}); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second select: %v", err)
	}
}

func TestBackWalksToStart(t *testing.T) {
	ctx := context.Background()
	w := New(stubDetector{}, nil)
	w.Apply(ctx, SelectTemplate{Template: tpl, Image: image.NewRGBA(image.Rect(0, 0, 40, 60))})
	w.Apply(ctx, Upload{Image: photo(100, 100)})
	if err := w.Apply(ctx, Crop{Rect: geometry.Rect{X: 10, Y: 10, Width: 30, Height: 50}}); err != nil {
		t.Fatal(err)
	}

	for _, want := range []Step{StepCrop, StepUpload, StepTemplateSelect} {
		if err := w.Apply(ctx, Back{}); err != nil {
			t.Fatal(err)
		}
		if w.Step() != want {
			t.Fatalf("step %s, want %s", w.Step(), want)
		}
	}
	if w.Session().Ready() {
		t.Error("session still has a source image after leaving the map step")
	}
}

func TestBackFromMapDropsRenderedFrame(t *testing.T) {
	ctx := context.Background()
	w := New(stubDetector{}, nil)
	w.Apply(ctx, SelectTemplate{Template: tpl, Image: frame()})
	w.Apply(ctx, Upload{Image: photo(100, 100)})
	if err := w.Apply(ctx, Crop{Rect: geometry.Rect{X: 10, Y: 10, Width: 30, Height: 50}}); err != nil {
		t.Fatal(err)
	}
	if err := w.Session().EncodePNG(&bytes.Buffer{}); err != nil {
		t.Fatalf("map step: %v", err)
	}

	if err := w.Apply(ctx, Back{}); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := w.Session().EncodePNG(&buf); !errors.Is(err, session.ErrNotReady) {
		t.Errorf("expected ErrNotReady after Back, got %v (%d bytes)", err, buf.Len())
	}
	if _, err := w.Session().Snapshot(); !errors.Is(err, session.ErrNotReady) {
		t.Errorf("snapshot after Back: %v", err)
	}
}

func TestSelectTemplateRequiresImage(t *testing.T) {
	w := New(stubDetector{}, nil)
	if err := w.Apply(context.Background(), SelectTemplate{Template: tpl}); !errors.Is(err, ErrNoTemplateImage) {
		t.Errorf("expected ErrNoTemplateImage, got %v", err)
	}
	if w.Step() != StepTemplateSelect {
		t.Errorf("step moved to %s", w.Step())
	}
}

func TestCropValidation(t *testing.T) {
	ctx := context.Background()
	w := New(stubDetector{}, nil)
	w.Apply(ctx, SelectTemplate{Template: tpl, Image: frame()})
	w.Apply(ctx, Upload{Image: photo(50, 50)})

	if err := w.Apply(ctx, Crop{Rect: geometry.Rect{X: 60, Y: 60, Width: 10, Height: 10}}); !errors.Is(err, ErrEmptyCrop) {
		t.Errorf("expected ErrEmptyCrop, got %v", err)
	}
	if w.Step() != StepCrop {
		t.Errorf("step %s", w.Step())
	}

	// частично за границей: обрезается по изображению
	if err := w.Apply(ctx, Crop{Rect: geometry.Rect{X: 40, Y: -10, Width: 30, Height: 30}}); err != nil {
		t.Fatal(err)
	}
	st := w.State()
	if st.Crop == nil || st.Crop.Width != 10 || st.Crop.Height != 20 {
		t.Errorf("clamped crop %+v", st.Crop)
	}
}

func TestUploadRejectsEmptyImage(t *testing.T) {
	ctx := context.Background()
	w := New(stubDetector{}, nil)
	w.Apply(ctx, SelectTemplate{Template: tpl, Image: frame()})
	if err := w.Apply(ctx, Upload{}); err == nil {
		t.Error("expected error for nil image")
	}
	if w.Step() != StepUpload {
		t.Errorf("step %s", w.Step())
	}
}

func TestStepString(t *testing.T) {
	if StepMap.String() != "map" || Step(9).String() != "step(9)" {
		t.Errorf("%s %s", StepMap, Step(9))
	}
}

func TestPointUpdatesOnlyInMapStep(t *testing.T) {
	ctx := context.Background()
	w := New(stubDetector{}, nil)
	if err := w.UpdatePoint(geometry.TopLeft, geometry.AxisX, 5); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	w.Apply(ctx, SelectTemplate{Template: tpl, Image: image.NewRGBA(image.Rect(0, 0, 40, 60))})
	w.Apply(ctx, Upload{Image: photo(30, 30)})
	w.Apply(ctx, Crop{Rect: geometry.Rect{Width: 30, Height: 30}})

	if err := w.UpdatePoint(geometry.TopLeft, geometry.AxisX, 5); err != nil {
		t.Fatal(err)
	}
	if got := w.State().Points.TopLeft.X; got != 5 {
		t.Errorf("top-left x = %v", got)
	}
	if err := w.SetPoints(geometry.DefaultMapping()); err != nil {
		t.Fatal(err)
	}
	if w.State().Points != geometry.DefaultMapping() {
		t.Error("SetPoints not applied")
	}
}

func TestStateFlagsCrossedQuad(t *testing.T) {
	ctx := context.Background()
	w := New(stubDetector{}, nil)
	w.Apply(ctx, SelectTemplate{Template: tpl, Image: frame()})
	w.Apply(ctx, Upload{Image: photo(30, 30)})
	w.Apply(ctx, Crop{Rect: geometry.Rect{Width: 30, Height: 30}})
	if w.State().Crossed {
		t.Fatal("template mapping reported as crossed")
	}

	// Правый верхний угол уводим ниже правого нижнего: стороны пересекаются.
	if err := w.UpdatePoint(geometry.TopRight, geometry.AxisY, 95); err != nil {
		t.Fatal(err)
	}
	st := w.State()
	t.Logf("points %+v", st.Points)
	if !st.Crossed {
		t.Error("crossed quad not flagged")
	}
}
