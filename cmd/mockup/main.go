package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"golang.org/x/image/draw"

	"github.com/ivlev/mockupwarp/internal/composite"
	"github.com/ivlev/mockupwarp/internal/config"
	"github.com/ivlev/mockupwarp/internal/engine"
	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/logger"
	"github.com/ivlev/mockupwarp/internal/panel"
	"github.com/ivlev/mockupwarp/internal/source"
	"github.com/ivlev/mockupwarp/internal/system"
	"github.com/ivlev/mockupwarp/internal/template"
)

// Задается при сборке: -ldflags "-X main.buildVersion=..."
var buildVersion = "dev"

func main() {
	// Создаем нужные директории, если их нет
	dirs := []string{"input/photos", "output"}
	for _, d := range dirs {
		os.MkdirAll(d, 0755)
	}

	catalogPtr := flag.String("catalog", "templates/catalog.yaml", "Путь к каталогу шаблонов (YAML)")
	templatePtr := flag.String("template", "", "Имя шаблона из каталога")
	listPtr := flag.Bool("list", false, "Показать шаблоны каталога и выйти")
	inputPtr := flag.String("input", "", "Путь к фото или PDF (по умолчанию: самый свежий файл в input/photos/)")
	outputPtr := flag.String("output", "", "Путь к PNG (если пусто, генерируется автоматически в output/)")
	detectorPtr := flag.String("detector", "native", "Детектор панели: native, opencv")
	presetPtr := flag.String("preset", "", "Пресет детектора: optimized, ultra-sensitive, moderate, conservative")
	paramsPtr := flag.String("params", "", "YAML с параметрами детектора (важнее -preset)")
	noDetectPtr := flag.Bool("no-detect", false, "Не искать панель, кроп по центру")
	pointsPtr := flag.String("points", "", "Углы в процентах: tlx,tly,trx,try,brx,bry,blx,bly")
	meshPtr := flag.Int("mesh", composite.DefaultMeshSize, "Размер сетки деформации")
	overlapPtr := flag.Float64("overlap", composite.DefaultOverlap, "Перекрытие ячеек сетки (доля UV)")
	markersPtr := flag.Bool("markers", false, "Рисовать маркеры углов")
	dpiPtr := flag.Int("dpi", source.DefaultDPI, "DPI для PDF")
	statsPtr := flag.Bool("stats", false, "Отчет о производительности и запись в benchmark.log")

	flag.Parse()

	catalog, err := template.LoadCatalog(*catalogPtr)
	if err != nil {
		log.Fatalf("[-] Ошибка загрузки каталога: %v", err)
	}

	if *listPtr {
		for _, t := range catalog.List() {
			fmt.Printf("%-20s %s\n", t.Name, catalog.ImagePath(t))
		}
		return
	}

	if *templatePtr == "" {
		log.Fatalf("[-] Ошибка: укажите -template (список: -list)")
	}

	inputPath := *inputPtr
	if inputPath == "" {
		latest, err := system.FindLatestFile("input/photos", func(path string) bool {
			return source.IsImagePath(path) || source.IsPDFPath(path)
		})
		if err != nil {
			log.Fatalf("[-] Ошибка: %v. Положите фото в input/photos/", err)
		}
		inputPath = latest
		fmt.Printf("[*] Выбран файл: %s\n", inputPath)
	}

	outputPath := *outputPtr
	if outputPath == "" {
		outputPath = system.OutputName("output", inputPath, ".png")
	}

	var points *geometry.MappingPoints
	if *pointsPtr != "" {
		m, err := config.ParsePoints(*pointsPtr)
		if err != nil {
			log.Fatalf("[-] Ошибка в -points: %v", err)
		}
		points = &m
	}

	cfg := &config.Config{
		CatalogPath:  *catalogPtr,
		Template:     *templatePtr,
		InputPath:    inputPath,
		OutputPath:   outputPath,
		Preset:       *presetPtr,
		ParamsPath:   *paramsPtr,
		Detector:     *detectorPtr,
		MeshSize:     *meshPtr,
		Overlap:      *overlapPtr,
		DPI:          *dpiPtr,
		ShowMarkers:  *markersPtr,
		ShowStats:    *statsPtr,
		NoDetect:     *noDetectPtr,
		Points:       points,
		BuildVersion: buildVersion,
	}

	// Инициализируем зависимости
	params, err := config.DetectParams(cfg.Preset, cfg.ParamsPath)
	if err != nil {
		log.Fatalf("[-] Ошибка параметров детектора: %v", err)
	}
	det, err := panel.NewDetector(cfg.Detector, params)
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации детектора: %v", err)
	}

	comp := composite.NewCompositor()
	comp.MeshSize = cfg.MeshSize
	comp.Overlap = cfg.Overlap
	comp.ShowMarkers = cfg.ShowMarkers
	// Итоговый экспорт: качество важнее скорости
	comp.Interpolator = draw.CatmullRom
	if cfg.ShowStats {
		comp.Log = logger.NewLogger()
	}

	project := engine.NewMockupProject(cfg, catalog, det, comp)
	if err := project.Run(); err != nil {
		log.Fatalf("[-] Ошибка проекта: %v", err)
	}

	fmt.Printf("[+++] Успех! Результат: %s\n", project.Result.Output)
}
