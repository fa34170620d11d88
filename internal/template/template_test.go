package template

import (
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/ivlev/mockupwarp/internal/geometry"
)

const catalogYAML = `templates:
  - name: phone
    image: phone.png
    mapping:
      topLeft: {x: 13, y: 11}
      topRight: {x: 26, y: 23}
      bottomLeft: {x: 12, y: 85}
      bottomRight: {x: 26, y: 79}
  - name: billboard
    image: missing.png
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	f, err := os.Create(filepath.Join(dir, "phone.png"))
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, 400, 600))); err != nil {
		t.Fatal(err)
	}
	f.Close()

	path := filepath.Join(dir, "catalog.yaml")
	if err := os.WriteFile(path, []byte(catalogYAML), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCatalog(t *testing.T) {
	c, err := LoadCatalog(writeCatalog(t))
	if err != nil {
		t.Fatal(err)
	}

	list := c.List()
	if len(list) != 2 || list[0].Name != "billboard" {
		t.Fatalf("unexpected list %+v", list)
	}

	phone, err := c.Get("phone")
	if err != nil {
		t.Fatal(err)
	}
	pts := phone.DefaultPoints()
	if pts.TopLeft != (geometry.Point{X: 13, Y: 11}) || pts.BottomRight != (geometry.Point{X: 26, Y: 79}) {
		t.Errorf("mapping not loaded: %+v", pts)
	}

	billboard, _ := c.Get("billboard")
	if billboard.DefaultPoints() != geometry.DefaultMapping() {
		t.Error("template without mapping should use the default")
	}

	img, err := c.LoadImage(phone)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 400 || img.Bounds().Dy() != 600 {
		t.Errorf("image bounds %v", img.Bounds())
	}
	again, _ := c.LoadImage(phone)
	if again != img {
		t.Error("second load should be served from cache")
	}

	if _, err := c.LoadImage(billboard); err == nil {
		t.Error("expected error for missing image")
	}
}

func TestCatalogErrors(t *testing.T) {
	c, err := NewCatalog("", []Template{{Name: "a"}})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Get("b"); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("expected ErrTemplateNotFound, got %v", err)
	}

	if _, err := NewCatalog("", []Template{{Name: "a"}, {Name: "a"}}); err == nil {
		t.Error("expected duplicate name error")
	}
	if _, err := NewCatalog("", []Template{{Image: "x.png"}}); err == nil {
		t.Error("expected missing name error")
	}
}
