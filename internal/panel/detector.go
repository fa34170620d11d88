package panel

import (
	"context"
	"image"

	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/source"
)

// ErrDecode is returned when the input bytes are not a decodable image.
var ErrDecode = source.ErrDecode

// Region is a connected foreground component of a binary mask.
type Region struct {
	Column  int `yaml:"column" json:"column"`
	Row     int `yaml:"row" json:"row"`
	Width   int `yaml:"width" json:"width"`
	Height  int `yaml:"height" json:"height"`
	Surface int `yaml:"surface" json:"surface"` // foreground pixel count
}

func (r Region) BoxArea() int {
	return r.Width * r.Height
}

// Rectangularity is the share of the bounding box covered by the region.
func (r Region) Rectangularity() float64 {
	if r.BoxArea() == 0 {
		return 0
	}
	return float64(r.Surface) / float64(r.BoxArea())
}

// Aspect is height over width.
func (r Region) Aspect() float64 {
	if r.Width == 0 {
		return 0
	}
	return float64(r.Height) / float64(r.Width)
}

func (r Region) Rect() geometry.Rect {
	return geometry.Rect{
		X:      float64(r.Column),
		Y:      float64(r.Row),
		Width:  float64(r.Width),
		Height: float64(r.Height),
	}
}

// Detector locates the left-aligned panel in an image.
//
// A nil rectangle with a nil error means nothing qualified; callers fall
// back to a default crop in that case.
type Detector interface {
	Detect(ctx context.Context, img image.Image) (*geometry.Rect, error)
}

// DetectBytes decodes data and runs d over the result.
func DetectBytes(ctx context.Context, d Detector, data []byte) (*geometry.Rect, error) {
	img, err := source.DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return d.Detect(ctx, img)
}

// SuggestCrop returns the detected rectangle, or the centered crop of the
// default aspect when detection produced nothing.
func SuggestCrop(ctx context.Context, d Detector, img image.Image) (geometry.Rect, bool, error) {
	b := img.Bounds()
	rect, err := d.Detect(ctx, img)
	if err != nil {
		return geometry.Rect{}, false, err
	}
	if rect == nil {
		return geometry.CenteredAspectRect(float64(b.Dx()), float64(b.Dy()), geometry.DefaultCropAspect), false, nil
	}
	return *rect, true, nil
}
