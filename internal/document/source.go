// Package document reads page text from PDF files and assembles page ranges into new PDFs.
package document

import (
	"errors"
	"fmt"
	"os"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"
)

// ErrNoText is returned by PageText when the document could be counted but not parsed for text.
var ErrNoText = errors.New("text extraction unavailable")

// Source is an opened, read-only document.
type Source interface {
	PageCount() int
	PageText(index int) (string, error)
	Close() error
}

// Opener opens the document at path.
type Opener func(path string) (Source, error)

// PDF is a Source backed by github.com/ledongthuc/pdf.
type PDF struct {
	path   string
	file   *os.File
	reader *pdf.Reader
	pages  int
}

// Open opens a PDF for text extraction. When the text reader cannot parse the file but pdfcpu
// can still count its pages, the document opens with every page reporting ErrNoText.
func Open(path string) (*PDF, error) {
	return open(path, nil)
}

// NewOpener returns an Opener that logs text-reader fallbacks to logger.
func NewOpener(logger *zap.Logger) Opener {
	return func(path string) (Source, error) {
		doc, err := open(path, logger)
		if err != nil {
			return nil, err
		}
		return doc, nil
	}
}

func open(path string, logger *zap.Logger) (*PDF, error) {
	f, r, err := openReader(path)
	if err == nil {
		return &PDF{path: path, file: f, reader: r, pages: r.NumPage()}, nil
	}
	n, countErr := api.PageCountFile(path)
	if countErr != nil {
		return nil, fmt.Errorf("open PDF %s: %w", path, err)
	}
	if logger != nil {
		logger.Warn("text reader failed, pages will have no text", zap.String("path", path), zap.Int("pages", n), zap.Error(err))
	}
	return &PDF{path: path, pages: n}, nil
}

func openReader(path string) (f *os.File, r *pdf.Reader, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("parse PDF: %v", p)
		}
	}()
	return pdf.Open(path)
}

// Path returns the file the document was opened from.
func (d *PDF) Path() string {
	return d.path
}

// PageCount returns the number of pages.
func (d *PDF) PageCount() int {
	return d.pages
}

// PageText returns the plain text of the page at the 0-based index.
// The underlying parser panics on some malformed content streams; that is reported as an error.
func (d *PDF) PageText(index int) (text string, err error) {
	if d.reader == nil {
		return "", ErrNoText
	}
	if index < 0 || index >= d.pages {
		return "", fmt.Errorf("page index %d out of range [0,%d)", index, d.pages)
	}
	defer func() {
		if p := recover(); p != nil {
			text, err = "", fmt.Errorf("extract page %d: %v", index+1, p)
		}
	}()
	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return "", nil
	}
	text, err = page.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("extract page %d: %w", index+1, err)
	}
	return text, nil
}

// Close releases the underlying file.
func (d *PDF) Close() error {
	if d.file == nil {
		return nil
	}
	return d.file.Close()
}
