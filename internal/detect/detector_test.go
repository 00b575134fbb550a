package detect

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/hyperjump/pagesplit/internal/models"
)

type memorySource struct {
	pages []string
	fail  map[int]bool
	reads int
}

func (m *memorySource) PageCount() int { return len(m.pages) }

func (m *memorySource) PageText(i int) (string, error) {
	m.reads++
	if m.fail[i] {
		return "", errors.New("extraction failed")
	}
	return m.pages[i], nil
}

func overviewPage(id, name string) string {
	return "Report\nName (Last, First, Middle)\n  " + name + "  \nStudent No. " + id + "\n"
}

func TestNew_invalidPatterns(t *testing.T) {
	tests := []struct {
		name      string
		patterns  Patterns
		wantField string
	}{
		{"unbalanced identifier", Patterns{Identifier: `(\d{4}`, Name: DefaultNamePattern}, "identifier"},
		{"unbalanced name", Patterns{Identifier: DefaultIdentifierPattern, Name: `Name (.*`}, "name"},
		{"name without group", Patterns{Identifier: DefaultIdentifierPattern, Name: `Name: \w+`}, "name"},
		{"name with two groups", Patterns{Identifier: DefaultIdentifierPattern, Name: `(\w+), (\w+)`}, "name"},
		{"empty identifier", Patterns{Name: DefaultNamePattern}, "identifier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := New(tt.patterns)
			if err == nil {
				t.Fatalf("New() = %v, want error", d)
			}
			var pe *PatternError
			if !errors.As(err, &pe) {
				t.Fatalf("error %v is not a *PatternError", err)
			}
			if pe.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", pe.Field, tt.wantField)
			}
			if !strings.Contains(err.Error(), pe.Pattern) {
				t.Errorf("error %q should contain the pattern text", err.Error())
			}
		})
	}
}

func TestNew_invalidPatternScansNothing(t *testing.T) {
	src := &memorySource{pages: []string{overviewPage("1234-56789", "Doe, John")}}
	if _, err := New(Patterns{Identifier: `[`, Name: DefaultNamePattern}); err == nil {
		t.Fatal("expected error")
	}
	if src.reads != 0 {
		t.Errorf("no page should be read, got %d reads", src.reads)
	}
}

func TestDetect_twoPeople(t *testing.T) {
	d, err := New(DefaultPatterns())
	if err != nil {
		t.Fatal(err)
	}
	src := &memorySource{pages: []string{
		overviewPage("1234-56789", "Doe, John"),
		overviewPage("2345-67890", "Smith, Jane"),
	}}
	got := d.Detect(src)
	want := []models.MatchPoint{
		{PageIndex: 0, Identifier: "1234-56789", Name: "Doe, John"},
		{PageIndex: 1, Identifier: "2345-67890", Name: "Smith, Jane"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Detect() = %+v, want %+v", got, want)
	}
}

func TestDetect_partialMatchesSkipped(t *testing.T) {
	d, err := New(DefaultPatterns())
	if err != nil {
		t.Fatal(err)
	}
	src := &memorySource{pages: []string{
		"cover page 1234-56789 without overview",
		"Name (Last, First, Middle) Nobody Student No. but no number",
		overviewPage("9999-00000", "Roe, Richard"),
		"continuation page",
	}}
	got := d.Detect(src)
	if len(got) != 1 {
		t.Fatalf("got %d match points, want 1: %+v", len(got), got)
	}
	if got[0].PageIndex != 2 || got[0].Identifier != "9999-00000" || got[0].Name != "Roe, Richard" {
		t.Errorf("unexpected match point %+v", got[0])
	}
}

func TestDetect_extractionFailureIsEmptyText(t *testing.T) {
	d, err := New(DefaultPatterns())
	if err != nil {
		t.Fatal(err)
	}
	src := &memorySource{
		pages: []string{overviewPage("1111-11111", "A, B"), overviewPage("2222-22222", "C, D")},
		fail:  map[int]bool{0: true},
	}
	got := d.Detect(src)
	if len(got) != 1 || got[0].PageIndex != 1 {
		t.Errorf("Detect() = %+v, want only page 1", got)
	}
}

func TestDetect_firstOccurrenceWins(t *testing.T) {
	d, err := New(DefaultPatterns())
	if err != nil {
		t.Fatal(err)
	}
	text := overviewPage("1234-56789", "Doe, John") + overviewPage("9876-54321", "Other, Person")
	mp, ok := d.Match(0, text)
	if !ok {
		t.Fatal("expected match")
	}
	if mp.Identifier != "1234-56789" || mp.Name != "Doe, John" {
		t.Errorf("Match() = %+v", mp)
	}
}

func TestDetect_customPatterns(t *testing.T) {
	d, err := New(Patterns{Identifier: `EMP-\d+`, Name: `Employee:\s*([^\n]+)`})
	if err != nil {
		t.Fatal(err)
	}
	src := &memorySource{pages: []string{"Employee: Ada Lovelace\nID EMP-42", "no match"}}
	got := d.Detect(src)
	want := []models.MatchPoint{{PageIndex: 0, Identifier: "EMP-42", Name: "Ada Lovelace"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Detect() = %+v, want %+v", got, want)
	}
}

func TestDetect_idempotent(t *testing.T) {
	d, err := New(DefaultPatterns())
	if err != nil {
		t.Fatal(err)
	}
	src := &memorySource{pages: []string{
		"cover",
		overviewPage("1234-56789", "Doe, John"),
		"more",
		overviewPage("1234-56789", "Doe, John"),
	}}
	first := d.Detect(src)
	second := d.Detect(src)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("runs differ: %+v vs %+v", first, second)
	}
	if len(first) != 2 {
		t.Errorf("duplicate identifiers should each produce a match point, got %d", len(first))
	}
}

func TestDetect_progress(t *testing.T) {
	var lines []string
	d, err := New(DefaultPatterns(), WithProgress(func(msg string) { lines = append(lines, msg) }))
	if err != nil {
		t.Fatal(err)
	}
	src := &memorySource{pages: []string{overviewPage("1234-56789", "Doe, John"), "nothing"}}
	withProgress := d.Detect(src)

	quiet, _ := New(DefaultPatterns())
	if !reflect.DeepEqual(withProgress, quiet.Detect(src)) {
		t.Error("progress must not change the result")
	}
	want := []string{"2 Pages found", "Match found: 1234-56789 - Doe, John"}
	if !reflect.DeepEqual(lines, want) {
		t.Errorf("progress = %q, want %q", lines, want)
	}
}
