package models

import (
	"reflect"
	"testing"
)

func TestSegment_Pages(t *testing.T) {
	tests := []struct {
		name string
		seg  Segment
		want []int
	}{
		{"single page", Segment{StartPage: 3, EndPage: 3}, []int{3}},
		{"range", Segment{StartPage: 1, EndPage: 4}, []int{1, 2, 3, 4}},
		{"empty", Segment{StartPage: 2, EndPage: 1}, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.seg.Pages()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Pages() = %v, want %v", got, tt.want)
			}
			if tt.seg.Len() != len(tt.want) {
				t.Errorf("Len() = %d, want %d", tt.seg.Len(), len(tt.want))
			}
		})
	}
}

func TestSegment_Matched(t *testing.T) {
	if (Segment{StartPage: 0, EndPage: 1}).Matched() {
		t.Error("segment without identifier should not be matched")
	}
	if !(Segment{Identifier: "1234-56789"}).Matched() {
		t.Error("segment with identifier should be matched")
	}
}

func TestOutputFile_Location(t *testing.T) {
	o := OutputFile{Path: "/out/a.pdf"}
	if o.Location() != "/out/a.pdf" {
		t.Errorf("Location() = %q", o.Location())
	}
	o.URL = "https://example.com/a.pdf"
	if o.Location() != o.URL {
		t.Errorf("Location() = %q, want URL", o.Location())
	}
}
