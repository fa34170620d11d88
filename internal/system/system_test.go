package system

import (
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestImagePoolReuseIsCleared(t *testing.T) {
	p := NewImagePool()
	img := p.Get(image.Rect(0, 0, 8, 4))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	p.Put(img)

	again := p.Get(image.Rect(10, 10, 18, 14))
	if again.Rect != image.Rect(10, 10, 18, 14) {
		t.Errorf("rect = %v", again.Rect)
	}
	for i, v := range again.Pix {
		if v != 0 {
			t.Fatalf("pix[%d] = %d, want cleared buffer", i, v)
		}
	}
}

func TestImagePoolIgnoresSubImages(t *testing.T) {
	p := NewImagePool()
	parent := image.NewRGBA(image.Rect(0, 0, 10, 10))
	sub := parent.SubImage(image.Rect(2, 2, 4, 4)).(*image.RGBA)
	p.Put(sub) // must not panic or poison the pool

	got := p.Get(image.Rect(0, 0, 2, 2))
	if len(got.Pix) != 2*2*4 {
		t.Errorf("len(Pix) = %d, want 16", len(got.Pix))
	}
}

func TestFindLatestFile(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.png")
	fresh := filepath.Join(dir, "fresh.png")
	other := filepath.Join(dir, "notes.txt")
	for _, p := range []string{old, fresh, other} {
		if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-time.Hour)
	os.Chtimes(old, past, past)
	future := time.Now().Add(time.Hour)
	os.Chtimes(other, future, future)

	got, err := FindLatestFile(dir, func(p string) bool { return strings.HasSuffix(p, ".png") })
	if err != nil {
		t.Fatal(err)
	}
	if got != fresh {
		t.Errorf("got %s, want %s", got, fresh)
	}

	if _, err := FindLatestFile(dir, func(string) bool { return false }); err == nil {
		t.Error("expected error when nothing matches")
	}
}

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		n    uint64
		want string
	}{
		{512, "512 B"},
		{2048, "2.0 KiB"},
		{5 * 1024 * 1024, "5.0 MiB"},
	}
	for _, tt := range tests {
		if got := HumanBytes(tt.n); got != tt.want {
			t.Errorf("HumanBytes(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestSampleUsage(t *testing.T) {
	u := SampleUsage()
	t.Logf("usage: %s", u)
	if u.HostTotal == 0 {
		t.Skip("host memory not readable here")
	}
}
