package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/pagesplit/internal/models"
)

func sampleRun() *models.RunResult {
	return &models.RunResult{
		ID:           "run-1",
		InputPath:    "/in/report.pdf",
		PageCount:    5,
		DroppedPages: 1,
		Outputs: []models.OutputFile{
			{Segment: models.Segment{StartPage: 1, EndPage: 2, Identifier: "1234-56789", Name: "Doe, John"}, Path: "/out/1234-56789.pdf"},
			{Segment: models.Segment{StartPage: 3, EndPage: 3, Identifier: "2345-67890", Name: "Smith, Jane"}, Path: "/out/2345-67890.pdf", URL: "https://x/2345-67890.pdf"},
		},
		BundlePath: "/out/output_run-1.csv",
		CreatedAt:  time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestWriteRunResult_text(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRunResult(&buf, sampleRun(), OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, sub := range []string{"Run run-1: 5 page(s), 2 output file(s)", "1 leading page(s) skipped", "2-3", "1234-56789", "Doe, John", "https://x/2345-67890.pdf", "Bundle: /out/output_run-1.csv"} {
		if !strings.Contains(out, sub) {
			t.Errorf("text output missing %q:\n%s", sub, out)
		}
	}
}

func TestWriteRunResult_textUnmatched(t *testing.T) {
	run := &models.RunResult{ID: "r", PageCount: 2, Outputs: []models.OutputFile{
		{Segment: models.Segment{StartPage: 0, EndPage: 1}, Path: "/out/report.pdf"},
	}}
	var buf bytes.Buffer
	if err := WriteRunResult(&buf, run, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "1-2") || !strings.Contains(buf.String(), "/out/report.pdf") {
		t.Errorf("unexpected output:\n%s", buf.String())
	}
}

func TestWriteRunResult_JSON(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRunResult(&buf, sampleRun(), OutputJSON); err != nil {
		t.Fatal(err)
	}
	var decoded models.RunResult
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.ID != "run-1" || len(decoded.Outputs) != 2 || decoded.Outputs[1].URL != "https://x/2345-67890.pdf" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteRuns(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteRuns(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No runs recorded") {
		t.Errorf("empty list output = %q", buf.String())
	}

	buf.Reset()
	if err := WriteRuns(&buf, nil, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("empty JSON list = %q, want []", buf.String())
	}

	buf.Reset()
	if err := WriteRuns(&buf, []*models.RunResult{sampleRun()}, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "run-1") || !strings.Contains(buf.String(), "/in/report.pdf") {
		t.Errorf("list output:\n%s", buf.String())
	}
}

func TestParseOutputFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"", OutputText, false},
		{"text", OutputText, false},
		{"json", OutputJSON, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		got, err := ParseOutputFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestProgress(t *testing.T) {
	var buf bytes.Buffer
	p := Progress(&buf)
	p("3 Pages found")
	p("Match found: 1234-56789 - Doe, John")
	want := "3 Pages found\nMatch found: 1234-56789 - Doe, John\n"
	if buf.String() != want {
		t.Errorf("progress = %q, want %q", buf.String(), want)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		name   string
		s      string
		maxLen int
		want   string
	}{
		{"empty", "", 5, ""},
		{"short", "hi", 5, "hi"},
		{"exact", "hello", 5, "hello"},
		{"long", "hello world", 5, "hello..."},
		{"maxLen zero", "ab", 0, "ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Truncate(tt.s, tt.maxLen); got != tt.want {
				t.Errorf("Truncate(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
			}
		})
	}
}
