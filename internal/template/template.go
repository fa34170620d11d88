package template

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/mockupwarp/internal/geometry"
	"github.com/ivlev/mockupwarp/internal/source"
)

var ErrTemplateNotFound = errors.New("template not found")

// Template is one mockup background. Mapping, when set, seeds the quad.
type Template struct {
	Name    string                  `yaml:"name" json:"name"`
	Image   string                  `yaml:"image" json:"image"`
	Mapping *geometry.MappingPoints `yaml:"mapping,omitempty" json:"mapping,omitempty"`
}

// DefaultPoints returns the template mapping or the global default.
func (t Template) DefaultPoints() geometry.MappingPoints {
	if t.Mapping != nil {
		return *t.Mapping
	}
	return geometry.DefaultMapping()
}

type catalogFile struct {
	Templates []Template `yaml:"templates"`
}

// Catalog is the read-only set of templates. Decoded images are cached.
type Catalog struct {
	dir       string
	templates []Template
	byName    map[string]int

	mu     sync.Mutex
	images map[string]image.Image
}

// LoadCatalog reads a YAML catalog. Relative image paths resolve against
// the catalog directory.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return NewCatalog(filepath.Dir(path), f.Templates)
}

func NewCatalog(dir string, templates []Template) (*Catalog, error) {
	c := &Catalog{
		dir:       dir,
		templates: make([]Template, 0, len(templates)),
		byName:    make(map[string]int, len(templates)),
		images:    make(map[string]image.Image),
	}
	for _, t := range templates {
		if t.Name == "" {
			return nil, fmt.Errorf("template without a name (image %q)", t.Image)
		}
		if _, dup := c.byName[t.Name]; dup {
			return nil, fmt.Errorf("duplicate template name: %s", t.Name)
		}
		c.byName[t.Name] = len(c.templates)
		c.templates = append(c.templates, t)
	}
	return c, nil
}

func (c *Catalog) List() []Template {
	out := make([]Template, len(c.templates))
	copy(out, c.templates)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (c *Catalog) Get(name string) (Template, error) {
	i, ok := c.byName[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return c.templates[i], nil
}

func (c *Catalog) ImagePath(t Template) string {
	if filepath.IsAbs(t.Image) {
		return t.Image
	}
	return filepath.Join(c.dir, t.Image)
}

// LoadImage decodes the template image once and serves later calls from
// memory.
func (c *Catalog) LoadImage(t Template) (image.Image, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if img, ok := c.images[t.Name]; ok {
		return img, nil
	}
	img, err := source.LoadFile(c.ImagePath(t), source.DefaultDPI)
	if err != nil {
		return nil, fmt.Errorf("template %s: %w", t.Name, err)
	}
	c.images[t.Name] = img
	return img, nil
}
