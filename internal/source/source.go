package source

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/gen2brain/go-fitz"
)

// DefaultDPI is used when a PDF page is rasterized without an explicit DPI.
const DefaultDPI = 150

// Source is an ordered set of rasterizable inputs: the pages of a PDF or
// the images of a directory.
type Source interface {
	Len() int
	Name(index int) string
	Size(index int) (width, height int, err error)
	Render(index int, dpi int) (image.Image, error)
	Close() error
}

// Open picks the source implementation from the path.
func Open(path string) (Source, error) {
	if IsPDFPath(path) {
		return NewPDFSource(path)
	}
	return NewImageSource(path)
}

// LoadFile returns the first image of path: the decoded file, or page one
// of a PDF rendered at dpi.
func LoadFile(path string, dpi int) (image.Image, error) {
	src, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	if src.Len() == 0 {
		return nil, fmt.Errorf("%s: no pages or images", path)
	}
	return src.Render(0, dpi)
}

// IsPDFPath reports whether path names a PDF document.
func IsPDFPath(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// PDFSource rasterizes PDF pages with MuPDF.
type PDFSource struct {
	doc  *fitz.Document
	path string
}

func NewPDFSource(path string) (*PDFSource, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDecode, path, err)
	}
	return &PDFSource{doc: doc, path: path}, nil
}

func (s *PDFSource) Len() int {
	return s.doc.NumPage()
}

func (s *PDFSource) Name(index int) string {
	base := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	return fmt.Sprintf("%s_p%03d", base, index+1)
}

func (s *PDFSource) Size(index int) (int, int, error) {
	rect, err := s.doc.Bound(index)
	if err != nil {
		return 0, 0, err
	}
	return rect.Dx(), rect.Dy(), nil
}

// Render opens its own document handle so pages can be rendered from
// several goroutines.
func (s *PDFSource) Render(index int, dpi int) (image.Image, error) {
	if dpi <= 0 {
		dpi = DefaultDPI
	}
	doc, err := fitz.New(s.path)
	if err != nil {
		return nil, err
	}
	defer doc.Close()
	return doc.ImageDPI(index, float64(dpi))
}

func (s *PDFSource) Close() error {
	return s.doc.Close()
}
