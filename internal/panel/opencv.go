//go:build gocv

package panel

import (
	"context"
	"fmt"
	"image"

	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/logger"
)

// OpenCVDetector runs blur, Canny and closing through OpenCV and shares
// region extraction and scoring with the native detector.
type OpenCVDetector struct {
	Params Params
	Log    logrus.FieldLogger
}

func newOpenCVDetector(params Params) (Detector, error) {
	return &OpenCVDetector{Params: params, Log: logger.Discard()}, nil
}

func (d *OpenCVDetector) Detect(ctx context.Context, img image.Image) (*geometry.Rect, error) {
	p := d.Params
	if img == nil || img.Bounds().Empty() {
		return nil, nil
	}

	w := prepare(img, p)
	bounds := w.gray.Bounds()

	if p.EnhanceContrast {
		grey := planeFromGray(w.gray)
		enhanceContrast(grey, p.ContrastMethod, p.ContrastStrength, p.Gamma)
		for i, v := range grey.pix {
			w.gray.Pix[i] = uint8(level(v))
		}
	}

	src, err := gocv.NewMatFromBytes(bounds.Dy(), bounds.Dx(), gocv.MatTypeCV8UC1, w.gray.Pix)
	if err != nil {
		return nil, fmt.Errorf("opencv: %w", err)
	}
	defer src.Close()

	blurred := gocv.NewMat()
	defer blurred.Close()
	if p.GaussianSigma > 0 {
		k := 2*int(3*p.GaussianSigma+0.5) + 1
		gocv.GaussianBlur(src, &blurred, image.Pt(k, k), p.GaussianSigma, p.GaussianSigma, gocv.BorderDefault)
	} else {
		src.CopyTo(&blurred)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(blurred, &edges, float32(p.LowThreshold*255), float32(p.HighThreshold*255))
	if gocv.CountNonZero(edges) == 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(p.KernelSize, p.KernelSize))
	defer kernel.Close()
	for i := 0; i < p.Iterations; i++ {
		gocv.Dilate(edges, &edges, kernel)
		gocv.Erode(edges, &edges, kernel)
	}

	data := edges.ToBytes()
	m := newMask(bounds.Dx(), bounds.Dy())
	for i, v := range data {
		m.bits[i] = v > 0
	}
	if p.FillHoles {
		m = fillHoles(m)
	}

	regions := findRegions(m)
	rect, how := selectRegion(regions, p, bounds.Dx(), bounds.Dy())
	if d.Log != nil {
		d.Log.WithFields(logrus.Fields{"regions": len(regions), "outcome": how}).Debug("opencv region selection done")
	}
	if rect == nil {
		return nil, nil
	}
	return w.toOriginal(*rect), nil
}
