// Package bundle describes or packages the files produced by a split run.
package bundle

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/pagesplit/internal/models"
	"github.com/xuri/excelize/v2"
)

// Header is the first row of tabular records.
var Header = []string{"Identifier", "Name", "File"}

// Record is one row of a tabular record.
type Record struct {
	Identifier string
	Name       string
	File       string
}

func (r Record) row() []string {
	return []string{r.Identifier, r.Name, r.File}
}

// Records returns one row per output in run order. File is the published URL when present.
func Records(outputs []models.OutputFile) []Record {
	records := make([]Record, 0, len(outputs))
	for _, o := range outputs {
		records = append(records, Record{
			Identifier: o.Segment.Identifier,
			Name:       o.Segment.Name,
			File:       o.Location(),
		})
	}
	return records
}

// FileName returns the bundle file name for a run, e.g. output_1a2b3c4d.csv.
func FileName(mode, runID string) string {
	prefix := runID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return fmt.Sprintf("output_%s.%s", prefix, mode)
}

// Write produces the bundle for mode ("csv", "zip" or "xlsx") in dir and returns its path.
func Write(mode, dir, runID string, outputs []models.OutputFile) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create bundle directory: %w", err)
	}
	path := filepath.Join(dir, FileName(mode, runID))
	var err error
	switch mode {
	case "csv":
		err = WriteCSV(path, Records(outputs))
	case "xlsx":
		err = WriteXLSX(path, Records(outputs))
	case "zip":
		files := make([]string, 0, len(outputs))
		for _, o := range outputs {
			files = append(files, o.Path)
		}
		err = WriteZip(path, files)
	default:
		return "", fmt.Errorf("unknown bundle mode %q", mode)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteCSV writes the header and records as CSV.
func WriteCSV(path string, records []Record) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	w := csv.NewWriter(f)
	_ = w.Write(Header)
	for _, r := range records {
		_ = w.Write(r.row())
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return f.Close()
}

// WriteXLSX writes the header and records to the first sheet of a workbook.
func WriteXLSX(path string, records []Record) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	rows := [][]string{Header}
	for _, r := range records {
		rows = append(rows, r.row())
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("write xlsx row %d: %w", i+1, err)
		}
	}
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}

// WriteZip writes a deflated archive of files, each stored under its base name.
// A path listed more than once is archived once.
func WriteZip(path string, files []string) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	zw := zip.NewWriter(out)
	seen := make(map[string]bool, len(files))
	for _, file := range files {
		if seen[file] {
			continue
		}
		seen[file] = true
		if err := addFile(zw, file); err != nil {
			zw.Close()
			out.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		return fmt.Errorf("finish zip: %w", err)
	}
	return out.Close()
}

func addFile(zw *zip.Writer, file string) error {
	in, err := os.Open(file)
	if err != nil {
		return fmt.Errorf("open %s: %w", file, err)
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	hdr, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	hdr.Name = filepath.Base(file)
	hdr.Method = zip.Deflate
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("add %s: %w", hdr.Name, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("add %s: %w", hdr.Name, err)
	}
	return nil
}
