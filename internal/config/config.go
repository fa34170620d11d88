package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/panel"
)

// Config drives one mockup composition from the command line.
type Config struct {
	CatalogPath  string
	Template     string
	InputPath    string
	OutputPath   string
	Preset       string
	ParamsPath   string
	Detector     string
	MeshSize     int
	Overlap      float64
	DPI          int
	ShowMarkers  bool
	ShowStats    bool
	NoDetect     bool
	Points       *geometry.MappingPoints
	BuildVersion string
}

// BatchConfig drives panel detection over a directory of images.
type BatchConfig struct {
	InputDir     string
	OutputPath   string
	Workers      int
	Preset       string
	ParamsPath   string
	Detector     string
	BuildVersion string
}

// DetectParams resolves detector parameters. A params file wins over a
// preset name.
func DetectParams(preset, path string) (panel.Params, error) {
	if path != "" {
		return panel.LoadParams(path)
	}
	return panel.Preset(preset)
}

// ParsePoints reads eight comma separated percentages in the order
// tlx,tly,trx,try,brx,bry,blx,bly.
func ParsePoints(s string) (geometry.MappingPoints, error) {
	var m geometry.MappingPoints
	parts := strings.Split(s, ",")
	if len(parts) != 8 {
		return m, fmt.Errorf("ожидается 8 чисел через запятую, получено %d", len(parts))
	}
	v := make([]float64, 8)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return m, fmt.Errorf("точка %d: %w", i/2, err)
		}
		v[i] = f
	}
	m.TopLeft = geometry.Point{X: v[0], Y: v[1]}
	m.TopRight = geometry.Point{X: v[2], Y: v[3]}
	m.BottomRight = geometry.Point{X: v[4], Y: v[5]}
	m.BottomLeft = geometry.Point{X: v[6], Y: v[7]}
	return m, nil
}
