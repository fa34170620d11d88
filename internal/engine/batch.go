package engine

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/panel"
	"github.com/ivlev/mockupwarp/internal/source"
)

// BatchResult is the detection outcome for one input.
type BatchResult struct {
	File      string         `yaml:"file"`
	Width     int            `yaml:"width,omitempty"`
	Height    int            `yaml:"height,omitempty"`
	Found     bool           `yaml:"found"`
	Rect      *geometry.Rect `yaml:"rect,omitempty"`
	Percent   *geometry.Rect `yaml:"percent,omitempty"`
	ElapsedMs int64          `yaml:"elapsed_ms"`
	Error     string         `yaml:"error,omitempty"`
}

type BatchReport struct {
	Version string        `yaml:"version"`
	Input   string        `yaml:"input"`
	Params  panel.Params  `yaml:"params"`
	Results []BatchResult `yaml:"results"`
}

// DetectBatch runs d over every input of src with at most workers
// goroutines. Per-file failures are recorded in the result, only context
// cancellation aborts the batch.
func DetectBatch(ctx context.Context, src source.Source, d panel.Detector, workers int, progress func(done, total int)) ([]BatchResult, error) {
	n := src.Len()
	results := make([]BatchResult, n)
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	done := make(chan struct{}, n)
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			results[i] = detectOne(gctx, src, d, i)
			done <- struct{}{}
			return gctx.Err()
		})
	}

	finished := make(chan struct{})
	go func() {
		count := 0
		for range done {
			count++
			if progress != nil {
				progress(count, n)
			}
		}
		close(finished)
	}()

	err := g.Wait()
	close(done)
	<-finished
	if err == nil {
		err = ctx.Err()
	}
	return results, err
}

func detectOne(ctx context.Context, src source.Source, d panel.Detector, i int) BatchResult {
	start := time.Now()
	res := BatchResult{File: src.Name(i)}

	img, err := src.Render(i, source.DefaultDPI)
	if err != nil {
		res.Error = err.Error()
		res.ElapsedMs = time.Since(start).Milliseconds()
		return res
	}
	b := img.Bounds()
	res.Width, res.Height = b.Dx(), b.Dy()

	rect, err := d.Detect(ctx, img)
	res.ElapsedMs = time.Since(start).Milliseconds()
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if rect != nil {
		pct := rect.Percent(float64(b.Dx()), float64(b.Dy()))
		res.Found = true
		res.Rect = rect
		res.Percent = &pct
	}
	return res
}

// WriteReport writes a batch report to a YAML file
func WriteReport(report *BatchReport, path string) error {
	data, err := yaml.Marshal(report)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// ReadReport reads a batch report from a YAML file
func ReadReport(path string) (*BatchReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var report BatchReport
	if err := yaml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return &report, nil
}

// Summary counts found, missing and failed inputs.
func Summary(results []BatchResult) (found, missing, failed int) {
	for _, r := range results {
		switch {
		case r.Error != "":
			failed++
		case r.Found:
			found++
		default:
			missing++
		}
	}
	return found, missing, failed
}
