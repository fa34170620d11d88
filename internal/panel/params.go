package panel

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	ContrastStretch   = "stretch"
	ContrastGamma     = "gamma"
	ContrastHistogram = "histogram"
)

// Params tunes every stage of the detection pipeline. Thresholds are on a
// [0,1] grey scale.
type Params struct {
	WorkingWidth int     `yaml:"working_width" json:"working_width"`
	CropPercent  float64 `yaml:"crop_percent" json:"crop_percent"`

	EnhanceContrast  bool    `yaml:"enhance_contrast" json:"enhance_contrast"`
	ContrastMethod   string  `yaml:"contrast_method" json:"contrast_method"`
	ContrastStrength float64 `yaml:"contrast_strength" json:"contrast_strength"`
	Gamma            float64 `yaml:"gamma" json:"gamma"`

	LowThreshold  float64 `yaml:"low_threshold" json:"low_threshold"`
	HighThreshold float64 `yaml:"high_threshold" json:"high_threshold"`
	GaussianSigma float64 `yaml:"gaussian_sigma" json:"gaussian_sigma"`

	KernelSize int `yaml:"kernel_size" json:"kernel_size"`
	Iterations int `yaml:"iterations" json:"iterations"`

	// FillHoles turns closed outlines into solid regions before selection.
	FillHoles bool `yaml:"fill_holes" json:"fill_holes"`

	MinAreaPercent    float64 `yaml:"min_area_percent" json:"min_area_percent"`
	MinAspectRatio    float64 `yaml:"min_aspect_ratio" json:"min_aspect_ratio"`
	MaxColumnOffset   int     `yaml:"max_column_offset" json:"max_column_offset"`
	MinRectangularity float64 `yaml:"min_rectangularity" json:"min_rectangularity"`

	// TargetRatio is width/height of the rectangle rebuilt by the fallback.
	TargetRatio float64 `yaml:"target_ratio" json:"target_ratio"`
	Fallback    bool    `yaml:"fallback" json:"fallback"`
}

func DefaultParams() Params {
	return Params{
		WorkingWidth:      1000,
		CropPercent:       40,
		EnhanceContrast:   false,
		ContrastMethod:    ContrastStretch,
		ContrastStrength:  2.0,
		Gamma:             0.7,
		LowThreshold:      0.05,
		HighThreshold:     0.07,
		GaussianSigma:     0.1,
		KernelSize:        21,
		Iterations:        2,
		FillHoles:         true,
		MinAreaPercent:    20,
		MinAspectRatio:    1.5,
		MaxColumnOffset:   15,
		MinRectangularity: 0.85,
		TargetRatio:       0.628,
		Fallback:          true,
	}
}

var presets = map[string]func(p *Params){
	"optimized": func(p *Params) {
		p.LowThreshold, p.HighThreshold, p.GaussianSigma = 0.05, 0.07, 0.1
	},
	"ultra-sensitive": func(p *Params) {
		p.LowThreshold, p.HighThreshold, p.GaussianSigma = 0.01, 0.05, 0.1
	},
	"moderate": func(p *Params) {
		p.LowThreshold, p.HighThreshold, p.GaussianSigma = 0.1, 0.3, 0.5
	},
	"conservative": func(p *Params) {
		p.LowThreshold, p.HighThreshold, p.GaussianSigma = 1, 5, 1.0
	},
}

// Preset returns the defaults with the named edge-detection preset applied.
func Preset(name string) (Params, error) {
	p := DefaultParams()
	if name == "" {
		return p, nil
	}
	apply, ok := presets[name]
	if !ok {
		return p, fmt.Errorf("unknown preset: %s", name)
	}
	apply(&p)
	return p, nil
}

func (p Params) Validate() error {
	switch {
	case p.WorkingWidth <= 0:
		return fmt.Errorf("working width must be positive, got %d", p.WorkingWidth)
	case p.CropPercent <= 0 || p.CropPercent > 100:
		return fmt.Errorf("crop percent must be in (0,100], got %v", p.CropPercent)
	case p.LowThreshold < 0 || p.LowThreshold > p.HighThreshold:
		return fmt.Errorf("invalid thresholds: low %v, high %v", p.LowThreshold, p.HighThreshold)
	case p.GaussianSigma < 0:
		return fmt.Errorf("gaussian sigma must not be negative, got %v", p.GaussianSigma)
	case p.KernelSize < 1:
		return fmt.Errorf("kernel size must be at least 1, got %d", p.KernelSize)
	case p.Iterations < 0:
		return fmt.Errorf("iterations must not be negative, got %d", p.Iterations)
	case p.TargetRatio <= 0:
		return fmt.Errorf("target ratio must be positive, got %v", p.TargetRatio)
	}
	if p.EnhanceContrast {
		switch p.ContrastMethod {
		case ContrastStretch, ContrastHistogram:
		case ContrastGamma:
			if p.Gamma <= 0 {
				return fmt.Errorf("gamma must be positive, got %v", p.Gamma)
			}
		default:
			return fmt.Errorf("unknown contrast method: %s", p.ContrastMethod)
		}
	}
	return nil
}

// LoadParams reads a YAML parameter file on top of the defaults, so a file
// only needs to name the fields it changes.
func LoadParams(path string) (Params, error) {
	p := DefaultParams()
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse %s: %w", path, err)
	}
	return p, p.Validate()
}

func SaveParams(path string, p Params) error {
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
