package system

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Usage is a point-in-time view of the host and of this process.
type Usage struct {
	CPUPercent    float64
	ProcessRSS    uint64
	HostUsedRatio float64
	HostTotal     uint64
}

// SampleUsage collects Usage. Fields that cannot be read stay zero.
func SampleUsage() Usage {
	var u Usage
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		u.CPUPercent = pct[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		u.HostTotal = vm.Total
		u.HostUsedRatio = vm.UsedPercent / 100
	}
	if p, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := p.MemoryInfo(); err == nil {
			u.ProcessRSS = mi.RSS
		}
	}
	return u
}

func (u Usage) String() string {
	return fmt.Sprintf("CPU %.1f%% | RSS %s | Host RAM %.0f%% of %s",
		u.CPUPercent, HumanBytes(u.ProcessRSS), u.HostUsedRatio*100, HumanBytes(u.HostTotal))
}

func HumanBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

// FindLatestFile returns the most recently modified file in dir whose
// extension is accepted by match.
func FindLatestFile(dir string, match func(path string) bool) (string, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}

	var latestFile string
	var latestTime time.Time

	for _, f := range files {
		if f.IsDir() || !match(f.Name()) {
			continue
		}
		info, err := f.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(latestTime) {
			latestTime = info.ModTime()
			latestFile = filepath.Join(dir, f.Name())
		}
	}

	if latestFile == "" {
		return "", fmt.Errorf("в папке %s не найдено подходящих файлов", dir)
	}

	return latestFile, nil
}

// OutputName builds "<base>_<timestamp><ext>" inside dir.
func OutputName(dir, input, ext string) string {
	base := filepath.Base(input)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.ReplaceAll(name, " ", "_")
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(dir, fmt.Sprintf("%s_%s%s", name, timestamp, ext))
}
