package document

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/pagesplit/internal/document/pdftest"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var samplePages = []string{
	"Cover sheet",
	"Name (Last, First, Middle)\nDoe, John\nStudent No. 1234-56789",
	"Transcript continued",
	"Name (Last, First, Middle)\nSmith, Jane\nStudent No. 2345-67890",
}

func TestOpen_pageText(t *testing.T) {
	path := pdftest.Write(t, t.TempDir(), "sample.pdf", samplePages)
	doc, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer doc.Close()

	if doc.PageCount() != len(samplePages) {
		t.Fatalf("PageCount() = %d, want %d", doc.PageCount(), len(samplePages))
	}
	if doc.Path() != path {
		t.Errorf("Path() = %q", doc.Path())
	}
	text, err := doc.PageText(1)
	if err != nil {
		t.Fatalf("PageText(1): %v", err)
	}
	if !strings.Contains(text, "1234-56789") || !strings.Contains(text, "Doe, John") {
		t.Errorf("PageText(1) = %q", text)
	}
	if _, err := doc.PageText(len(samplePages)); err == nil {
		t.Error("PageText past the end should fail")
	}
}

func TestOpen_invalidInput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.pdf")
	if err := os.WriteFile(path, []byte("This is not a PDF"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("expected error for invalid PDF")
	}
	if _, err := Open(filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPDF_noReader(t *testing.T) {
	doc := &PDF{path: "x.pdf", pages: 2}
	if _, err := doc.PageText(0); !errors.Is(err, ErrNoText) {
		t.Errorf("PageText() error = %v, want ErrNoText", err)
	}
	if err := doc.Close(); err != nil {
		t.Errorf("Close() = %v", err)
	}
}

func TestPageSelection(t *testing.T) {
	tests := []struct {
		pages []int
		want  []string
	}{
		{[]int{0}, []string{"1"}},
		{[]int{1, 2, 3}, []string{"2-4"}},
		{[]int{0, 2, 3, 7}, []string{"1", "3-4", "8"}},
		{nil, nil},
	}
	for _, tt := range tests {
		if got := PageSelection(tt.pages); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("PageSelection(%v) = %v, want %v", tt.pages, got, tt.want)
		}
	}
}

func TestWriter_WritePages(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "sample.pdf", samplePages)
	dst := filepath.Join(dir, "out", "1234-56789.pdf")

	w := NewWriter()
	if err := w.WritePages(context.Background(), src, []int{1, 2}, dst); err != nil {
		t.Fatalf("WritePages: %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		t.Fatalf("PageCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("output has %d pages, want 2", n)
	}

	out, err := Open(dst)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Close()
	first, _ := out.PageText(0)
	second, _ := out.PageText(1)
	if !strings.Contains(first, "1234-56789") {
		t.Errorf("first page = %q, want the Doe overview", first)
	}
	if !strings.Contains(second, "Transcript continued") {
		t.Errorf("second page = %q, want the continuation page", second)
	}
}

func TestWriter_WritePages_invalidSelection(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "sample.pdf", samplePages)
	w := NewWriter()
	if err := w.WritePages(context.Background(), src, nil, filepath.Join(dir, "a.pdf")); err == nil {
		t.Error("empty selection should fail")
	}
	if err := w.WritePages(context.Background(), src, []int{2, 1}, filepath.Join(dir, "b.pdf")); err == nil {
		t.Error("decreasing selection should fail")
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.WritePages(ctx, src, []int{0}, filepath.Join(dir, "c.pdf")); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: got %v", err)
	}
}

func TestWriter_CopyFile(t *testing.T) {
	dir := t.TempDir()
	src := pdftest.Write(t, dir, "sample.pdf", samplePages)
	dst := filepath.Join(dir, "out", "sample.pdf")
	w := NewWriter()
	if err := w.CopyFile(context.Background(), src, dst); err != nil {
		t.Fatal(err)
	}
	want, _ := os.ReadFile(src)
	got, _ := os.ReadFile(dst)
	if !bytes.Equal(got, want) {
		t.Error("copy differs from the input")
	}
	// Copying onto itself leaves the file intact.
	if err := w.CopyFile(context.Background(), src, src); err != nil {
		t.Fatal(err)
	}
	again, _ := os.ReadFile(src)
	if !bytes.Equal(again, want) {
		t.Error("self copy changed the input")
	}
}
