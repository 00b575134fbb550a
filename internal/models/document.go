// Package models defines core data structures for match points, segments, and split runs.
package models

import "time"

// ProgressFunc receives one human-readable progress line. Progress is observational only.
type ProgressFunc func(msg string)

// Page is one page of a source document. Index is 0-based; user-visible numbering is Index+1.
type Page struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// MatchPoint marks a page where both the identifier and the name pattern matched.
type MatchPoint struct {
	PageIndex  int    `json:"page_index"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

// Segment is a contiguous, inclusive page range assigned to one MatchPoint, or the whole
// document when nothing matched (Identifier and Name are then empty).
type Segment struct {
	StartPage  int    `json:"start_page"`
	EndPage    int    `json:"end_page"`
	Identifier string `json:"identifier"`
	Name       string `json:"name"`
}

// Matched reports whether the segment was produced from a MatchPoint.
func (s Segment) Matched() bool {
	return s.Identifier != ""
}

// Len returns the number of pages in the segment.
func (s Segment) Len() int {
	if s.EndPage < s.StartPage {
		return 0
	}
	return s.EndPage - s.StartPage + 1
}

// Pages returns the 0-based page indices of the segment in document order.
func (s Segment) Pages() []int {
	pages := make([]int, 0, s.Len())
	for p := s.StartPage; p <= s.EndPage; p++ {
		pages = append(pages, p)
	}
	return pages
}

// OutputFile is one produced sub-document.
type OutputFile struct {
	Segment Segment `json:"segment"`
	Path    string  `json:"path"`
	// URL is set when the file was published to a remote destination.
	URL string `json:"url,omitempty"`
}

// Location returns the published URL when present, otherwise the local path.
func (o OutputFile) Location() string {
	if o.URL != "" {
		return o.URL
	}
	return o.Path
}

// RunResult describes a completed split run.
type RunResult struct {
	ID           string       `json:"id" db:"id"`
	InputPath    string       `json:"input_path" db:"input_path"`
	InputDigest  string       `json:"input_digest,omitempty" db:"input_digest"`
	PageCount    int          `json:"page_count" db:"page_count"`
	DroppedPages int          `json:"dropped_pages" db:"dropped_pages"`
	Outputs      []OutputFile `json:"outputs"`
	BundlePath   string       `json:"bundle_path,omitempty" db:"bundle_path"`
	BundleURL    string       `json:"bundle_url,omitempty" db:"bundle_url"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
}

// Segments returns the segments of all outputs in run order.
func (r *RunResult) Segments() []Segment {
	segs := make([]Segment, 0, len(r.Outputs))
	for _, o := range r.Outputs {
		segs = append(segs, o.Segment)
	}
	return segs
}
