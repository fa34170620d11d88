package panel

import (
	"context"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/logger"
)

// NativeDetector implements the panel search in pure Go: Canny edges,
// morphological closing and connected components.
type NativeDetector struct {
	Params Params
	Log    logrus.FieldLogger
}

func NewNativeDetector(params Params) *NativeDetector {
	return &NativeDetector{Params: params, Log: logger.Discard()}
}

// working is the resized and cropped grey image plus the factors that take
// working coordinates back to the original image.
type working struct {
	gray   *image.Gray
	scaleX float64
	scaleY float64
	orig   image.Rectangle
}

func prepare(img image.Image, p Params) working {
	b := img.Bounds()
	resized := imaging.Resize(img, p.WorkingWidth, 0, imaging.Lanczos)
	rw, rh := resized.Bounds().Dx(), resized.Bounds().Dy()

	cropW := int(math.Round(float64(rw) * p.CropPercent / 100))
	if cropW < 1 {
		cropW = 1
	}
	cropped := imaging.Crop(resized, image.Rect(0, 0, cropW, rh))
	grey := imaging.Grayscale(cropped)

	gray := image.NewGray(grey.Bounds())
	for i := 0; i < len(gray.Pix); i++ {
		gray.Pix[i] = grey.Pix[i*4]
	}

	return working{
		gray:   gray,
		scaleX: float64(b.Dx()) / float64(rw),
		scaleY: float64(b.Dy()) / float64(rh),
		orig:   b,
	}
}

// toOriginal maps a working-space rectangle back onto the source image.
func (w working) toOriginal(r geometry.Rect) *geometry.Rect {
	out := r.Scale(w.scaleX, w.scaleY)
	out.X += float64(w.orig.Min.X)
	out.Y += float64(w.orig.Min.Y)
	return &out
}

// Detect runs the full pipeline. Only context cancellation produces an error.
func (d *NativeDetector) Detect(ctx context.Context, img image.Image) (*geometry.Rect, error) {
	p := d.Params
	log := d.Log
	if log == nil {
		log = logger.Discard()
	}
	if img == nil || img.Bounds().Empty() {
		return nil, nil
	}

	w := prepare(img, p)
	bounds := w.gray.Bounds()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	grey := planeFromGray(w.gray)
	if p.EnhanceContrast {
		enhanceContrast(grey, p.ContrastMethod, p.ContrastStrength, p.Gamma)
	}

	edges := canny(grey, p.LowThreshold, p.HighThreshold, p.GaussianSigma)
	edgeCount := edges.count()
	log.WithFields(logrus.Fields{
		"size":  bounds.Size().String(),
		"edges": edgeCount,
	}).Debug("edge detection done")
	if edgeCount == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	closed := closeMask(edges, p.KernelSize, p.Iterations)
	if p.FillHoles {
		closed = fillHoles(closed)
	}
	regions := findRegions(closed)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rect, how := selectRegion(regions, p, bounds.Dx(), bounds.Dy())
	log.WithFields(logrus.Fields{
		"regions": len(regions),
		"outcome": how,
	}).Debug("region selection done")
	if rect == nil {
		return nil, nil
	}
	return w.toOriginal(*rect), nil
}

const (
	outcomeMatch    = "match"
	outcomeFallback = "fallback"
	outcomeNone     = "none"
)

// selectRegion applies the acceptance filters to regions of a cropW x cropH
// working area. The largest passing surface wins. With no passing region
// and Fallback enabled, the largest region whose bounding box clears the
// area threshold is reshaped to TargetRatio, keeping its origin and height.
func selectRegion(regions []Region, p Params, cropW, cropH int) (*geometry.Rect, string) {
	minArea := float64(cropW*cropH) * p.MinAreaPercent / 100

	var best *Region
	var fallback *Region
	for i := range regions {
		r := &regions[i]
		if float64(r.BoxArea()) >= minArea {
			if fallback == nil || r.BoxArea() > fallback.BoxArea() {
				fallback = r
			}
		}
		if float64(r.Surface) < minArea ||
			r.Aspect() < p.MinAspectRatio ||
			r.Column > p.MaxColumnOffset ||
			r.Rectangularity() < p.MinRectangularity {
			continue
		}
		if best == nil || r.Surface > best.Surface {
			best = r
		}
	}

	if best != nil {
		rect := best.Rect()
		return &rect, outcomeMatch
	}
	if !p.Fallback || fallback == nil {
		return nil, outcomeNone
	}

	rect := geometry.Rect{
		X:      float64(fallback.Column),
		Y:      float64(fallback.Row),
		Height: float64(fallback.Height),
		Width:  float64(fallback.Height) * p.TargetRatio,
	}
	if rect.X+rect.Width > float64(cropW) {
		rect.Width = float64(cropW) - rect.X
	}
	return &rect, outcomeFallback
}
