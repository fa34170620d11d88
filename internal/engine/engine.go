package engine

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"github.com/ivlev/mockupwarp/internal/composite"
	"github.com/ivlev/mockupwarp/internal/config"
	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/panel"
	"github.com/ivlev/mockupwarp/internal/session"
	"github.com/ivlev/mockupwarp/internal/source"
	"github.com/ivlev/mockupwarp/internal/system"
	"github.com/ivlev/mockupwarp/internal/template"
)

const DefaultBenchmarkLog = "benchmark.log"

// MockupProject composes one photo into one template without the wizard:
// detect, crop, warp, write.
type MockupProject struct {
	Config     *config.Config
	Catalog    *template.Catalog
	Detector   panel.Detector
	Compositor *composite.Compositor

	BenchmarkLog string

	Result Result
}

// Result describes what the last Run produced.
type Result struct {
	Output   string
	Crop     geometry.Rect
	Detected bool
	Points   geometry.MappingPoints
	Width    int
	Height   int
}

func NewMockupProject(cfg *config.Config, catalog *template.Catalog, det panel.Detector, comp *composite.Compositor) *MockupProject {
	if comp == nil {
		comp = composite.NewCompositor()
	}
	return &MockupProject{
		Config:       cfg,
		Catalog:      catalog,
		Detector:     det,
		Compositor:   comp,
		BenchmarkLog: DefaultBenchmarkLog,
	}
}

func (p *MockupProject) Run() error {
	startTime := time.Now()

	tpl, err := p.Catalog.Get(p.Config.Template)
	if err != nil {
		return err
	}
	tplImg, err := p.Catalog.LoadImage(tpl)
	if err != nil {
		return fmt.Errorf("ошибка загрузки шаблона: %w", err)
	}

	photo, err := source.LoadFile(p.Config.InputPath, p.Config.DPI)
	if err != nil {
		return fmt.Errorf("ошибка загрузки фото: %w", err)
	}

	tb, pb := tplImg.Bounds(), photo.Bounds()
	fmt.Println("--- [PROJECT: MOCKUP WARP] ---")
	fmt.Printf("[*] Шаблон: %s | %dx%d\n", tpl.Name, tb.Dx(), tb.Dy())
	fmt.Printf("[*] Фото: %s | %dx%d\n", p.Config.InputPath, pb.Dx(), pb.Dy())
	fmt.Println("-----------------------------")

	// 1. Поиск панели
	detectStart := time.Now()
	rect, detected, err := p.suggestCrop(photo)
	if err != nil {
		return fmt.Errorf("ошибка детекции: %w", err)
	}
	detectTime := time.Since(detectStart)
	if detected {
		fmt.Printf("[*] Панель найдена: %s\n", rect)
	} else {
		fmt.Printf("[!] Панель не найдена, кроп по умолчанию: %s\n", rect)
	}

	r := rect.Image().Add(pb.Min).Intersect(pb)
	if r.Empty() {
		return fmt.Errorf("пустая область кропа: %s", rect)
	}
	cropped := imaging.Crop(photo, r)

	// 2. Наложение
	renderStart := time.Now()
	sess := session.New(session.WithCompositor(p.Compositor))
	sess.InitializeFromTemplate(tpl, tplImg)
	if p.Config.Points != nil {
		sess.SetPoints(*p.Config.Points)
	}
	sess.SetSourceImage(cropped)
	renderTime := time.Since(renderStart)

	if err := p.writePNG(sess); err != nil {
		return err
	}

	p.Result = Result{
		Output:   p.Config.OutputPath,
		Crop:     rect,
		Detected: detected,
		Points:   sess.Points(),
		Width:    tb.Dx(),
		Height:   tb.Dy(),
	}

	if p.Config.ShowStats {
		p.report(time.Since(startTime), detectTime, renderTime)
	}

	return nil
}

func (p *MockupProject) suggestCrop(photo image.Image) (geometry.Rect, bool, error) {
	b := photo.Bounds()
	if p.Config.NoDetect || p.Detector == nil {
		return geometry.CenteredAspectRect(float64(b.Dx()), float64(b.Dy()), geometry.DefaultCropAspect), false, nil
	}
	return panel.SuggestCrop(context.Background(), p.Detector, photo)
}

func (p *MockupProject) writePNG(sess *session.Session) error {
	if dir := filepath.Dir(p.Config.OutputPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	f, err := os.Create(p.Config.OutputPath)
	if err != nil {
		return err
	}
	if err := sess.EncodePNG(f); err != nil {
		f.Close()
		return fmt.Errorf("ошибка записи PNG: %w", err)
	}
	return f.Close()
}

func (p *MockupProject) report(total, detect, render time.Duration) {
	usage := system.SampleUsage()
	report := fmt.Sprintf(
		"--- [PERFORMANCE REPORT] ---\n"+
			"Build: %s\n"+
			"Total Time: %.3fs\n"+
			"Detection: %.3fs\n"+
			"Compositing: %.3fs\n"+
			"Mesh: %dx%d\n"+
			"Resources: %s\n"+
			"----------------------------\n",
		p.Config.BuildVersion, total.Seconds(), detect.Seconds(), render.Seconds(),
		p.Compositor.MeshSize, p.Compositor.MeshSize, usage,
	)
	fmt.Print(report)

	if p.BenchmarkLog == "" {
		return
	}
	// Логирование в файл
	logEntry := fmt.Sprintf("[%s] Build: %s | Input: %s | Template: %s | Total: %.3fs | Detect: %.3fs | Render: %.3fs | RSS: %s\n",
		time.Now().Format("2006-01-02 15:04:05"),
		p.Config.BuildVersion,
		filepath.Base(p.Config.InputPath),
		p.Config.Template,
		total.Seconds(),
		detect.Seconds(),
		render.Seconds(),
		system.HumanBytes(usage.ProcessRSS),
	)

	f, err := os.OpenFile(p.BenchmarkLog, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		f.WriteString(logEntry)
		f.Close()
	} else {
		fmt.Printf("[!] Не удалось записать %s: %v\n", p.BenchmarkLog, err)
	}
}
