package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ivlev/mockupwarp/internal/config"
	"github.com/ivlev/mockupwarp/internal/engine"
	"github.com/ivlev/mockupwarp/internal/panel"
	"github.com/ivlev/mockupwarp/internal/source"
)

var buildVersion = "dev"

func main() {
	inputPtr := flag.String("input", "input/photos", "Папка с фото или PDF")
	outputPtr := flag.String("output", "output/panels.yaml", "Куда записать отчет (YAML)")
	workersPtr := flag.Int("workers", runtime.NumCPU(), "Потоки")
	detectorPtr := flag.String("detector", "native", "Детектор панели: native, opencv")
	presetPtr := flag.String("preset", "", "Пресет детектора: optimized, ultra-sensitive, moderate, conservative")
	paramsPtr := flag.String("params", "", "YAML с параметрами детектора (важнее -preset)")
	dumpPtr := flag.String("dump-params", "", "Сохранить итоговые параметры в YAML и выйти")

	flag.Parse()

	cfg := config.BatchConfig{
		InputDir:     *inputPtr,
		OutputPath:   *outputPtr,
		Workers:      *workersPtr,
		Preset:       *presetPtr,
		ParamsPath:   *paramsPtr,
		Detector:     *detectorPtr,
		BuildVersion: buildVersion,
	}

	params, err := config.DetectParams(cfg.Preset, cfg.ParamsPath)
	if err != nil {
		log.Fatalf("[-] Ошибка параметров детектора: %v", err)
	}
	if *dumpPtr != "" {
		if err := panel.SaveParams(*dumpPtr, params); err != nil {
			log.Fatalf("[-] Ошибка записи параметров: %v", err)
		}
		fmt.Printf("[+] Параметры сохранены: %s\n", *dumpPtr)
		return
	}

	det, err := panel.NewDetector(cfg.Detector, params)
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации детектора: %v", err)
	}

	src, err := source.Open(cfg.InputDir)
	if err != nil {
		log.Fatalf("[-] Ошибка инициализации источника: %v", err)
	}
	defer src.Close()

	if src.Len() == 0 {
		log.Fatalf("[-] Ошибка: в %s нет изображений", cfg.InputDir)
	}
	fmt.Printf("[*] Файлов: %d | Потоков: %d | Детектор: %s\n", src.Len(), cfg.Workers, cfg.Detector)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	results, err := engine.DetectBatch(ctx, src, det, cfg.Workers, func(done, total int) {
		fmt.Printf("\r[>] Обработано: %d/%d", done, total)
	})
	fmt.Println()
	if err != nil {
		log.Printf("[!] Обработка прервана: %v", err)
	}

	report := &engine.BatchReport{
		Version: cfg.BuildVersion,
		Input:   cfg.InputDir,
		Params:  params,
		Results: results,
	}
	if err := os.MkdirAll(filepath.Dir(cfg.OutputPath), 0755); err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
	if err := engine.WriteReport(report, cfg.OutputPath); err != nil {
		log.Fatalf("[-] Ошибка записи отчета: %v", err)
	}

	found, missing, failed := engine.Summary(results)
	fmt.Printf("[*] Найдено: %d | Не найдено: %d | Ошибок: %d | Время: %.2fs\n",
		found, missing, failed, time.Since(start).Seconds())
	fmt.Printf("[+++] Успех! Отчет: %s\n", cfg.OutputPath)
}
