package source

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestDecodeBytes(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, 7, 3))); err != nil {
		t.Fatal(err)
	}

	img, err := DecodeBytes(buf.Bytes())
	if err != nil {
		t.Fatalf("DecodeBytes: %v", err)
	}
	if img.Bounds().Dx() != 7 || img.Bounds().Dy() != 3 {
		t.Errorf("unexpected bounds %v", img.Bounds())
	}
}

func TestDecodeGarbage(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"text", []byte("definitely not an image")},
		{"truncated png", []byte("\x89PNG\r\n\x1a\n\x00\x00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeBytes(tt.data)
			if !errors.Is(err, ErrDecode) {
				t.Errorf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestImageSourceDirectory(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "b.png"), 4, 2)
	writePNG(t, filepath.Join(dir, "a.png"), 3, 5)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	src, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer src.Close()

	if src.Len() != 2 {
		t.Fatalf("Len = %d, want 2", src.Len())
	}
	if src.Name(0) != "a.png" {
		t.Errorf("Name(0) = %q, want a.png", src.Name(0))
	}
	w, h, err := src.Size(0)
	if err != nil || w != 3 || h != 5 {
		t.Errorf("Size(0) = %d x %d, %v", w, h, err)
	}
	img, err := src.Render(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 4 {
		t.Errorf("Render(1) width = %d, want 4", img.Bounds().Dx())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "one.png")
	writePNG(t, path, 10, 20)
	img, err := LoadFile(path, 0)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dy() != 20 {
		t.Errorf("height = %d, want 20", img.Bounds().Dy())
	}
}
