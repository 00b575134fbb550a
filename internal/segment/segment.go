// Package segment partitions a document's pages into per-person ranges.
package segment

import (
	"errors"
	"fmt"

	"github.com/hyperjump/pagesplit/internal/models"
)

var (
	// ErrEmptyDocument is returned for a document with no pages.
	ErrEmptyDocument = errors.New("document has no pages")
	// ErrUnorderedMatchPoints is returned when match points are not strictly increasing by page,
	// including two match points on the same page.
	ErrUnorderedMatchPoints = errors.New("match points are not in strictly increasing page order")
	// ErrPageOutOfRange is returned when a match point lies outside the document.
	ErrPageOutOfRange = errors.New("match point page out of range")
)

// Build converts match points into contiguous segments.
//
// With no match points the whole document becomes one unnamed segment. Otherwise segment i
// runs from points[i].PageIndex up to the page before points[i+1], and the last segment runs to
// the end of the document. Pages before the first match point belong to no segment.
func Build(pageCount int, points []models.MatchPoint) ([]models.Segment, error) {
	if pageCount <= 0 {
		return nil, ErrEmptyDocument
	}
	if len(points) == 0 {
		return []models.Segment{{StartPage: 0, EndPage: pageCount - 1}}, nil
	}
	if err := validate(pageCount, points); err != nil {
		return nil, err
	}

	segments := make([]models.Segment, 0, len(points))
	for i, mp := range points {
		end := pageCount - 1
		if i+1 < len(points) {
			end = points[i+1].PageIndex - 1
		}
		segments = append(segments, models.Segment{
			StartPage:  mp.PageIndex,
			EndPage:    end,
			Identifier: mp.Identifier,
			Name:       mp.Name,
		})
	}
	return segments, nil
}

func validate(pageCount int, points []models.MatchPoint) error {
	prev := -1
	for i, mp := range points {
		if mp.PageIndex < 0 || mp.PageIndex >= pageCount {
			return fmt.Errorf("%w: match point %d on page index %d of %d", ErrPageOutOfRange, i, mp.PageIndex, pageCount)
		}
		if mp.PageIndex <= prev {
			return fmt.Errorf("%w: match point %d on page index %d follows page index %d", ErrUnorderedMatchPoints, i, mp.PageIndex, prev)
		}
		prev = mp.PageIndex
	}
	return nil
}

// Dropped returns how many leading pages precede the first match point.
func Dropped(points []models.MatchPoint) int {
	if len(points) == 0 {
		return 0
	}
	return points[0].PageIndex
}
