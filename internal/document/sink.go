package document

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Sink writes new documents made of pages of a source document.
type Sink interface {
	// WritePages writes the 0-based pages of src, in the given order, to dst.
	WritePages(ctx context.Context, src string, pages []int, dst string) error
	// CopyFile writes an exact copy of src to dst.
	CopyFile(ctx context.Context, src, dst string) error
}

// Writer is a Sink backed by pdfcpu. Page content is carried over as-is.
type Writer struct {
	conf *model.Configuration
}

// NewWriter returns a Writer using pdfcpu's default configuration with relaxed validation.
func NewWriter() *Writer {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return &Writer{conf: conf}
}

// WritePages implements Sink. pages must be in increasing order.
func (w *Writer) WritePages(ctx context.Context, src string, pages []int, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(pages) == 0 {
		return fmt.Errorf("write %s: no pages selected", dst)
	}
	for i := 1; i < len(pages); i++ {
		if pages[i] <= pages[i-1] {
			return fmt.Errorf("write %s: pages must be increasing, got %v", dst, pages)
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := api.TrimFile(src, dst, PageSelection(pages), w.conf); err != nil {
		return fmt.Errorf("write %s: %w", dst, err)
	}
	return nil
}

// CopyFile implements Sink.
func (w *Writer) CopyFile(ctx context.Context, src, dst string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	same, err := samePath(src, dst)
	if err != nil {
		return err
	}
	if same {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return out.Close()
}

func samePath(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, err
	}
	return filepath.Clean(absA) == filepath.Clean(absB), nil
}

// PageSelection converts increasing 0-based page indices into pdfcpu's 1-based selection
// syntax, collapsing consecutive pages into ranges ("2-4").
func PageSelection(pages []int) []string {
	var sel []string
	for i := 0; i < len(pages); {
		j := i
		for j+1 < len(pages) && pages[j+1] == pages[j]+1 {
			j++
		}
		if i == j {
			sel = append(sel, strconv.Itoa(pages[i]+1))
		} else {
			sel = append(sel, strconv.Itoa(pages[i]+1)+"-"+strconv.Itoa(pages[j]+1))
		}
		i = j + 1
	}
	return sel
}
