// Package detect finds the pages of a document that start a new person's section.
package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hyperjump/pagesplit/internal/models"
	"go.uber.org/zap"
)

const (
	// DefaultIdentifierPattern matches a student number such as 1234-56789.
	DefaultIdentifierPattern = `\b\d{4}-\d{5}\b`
	// DefaultNamePattern captures the name printed between the overview labels.
	DefaultNamePattern = `Name \(Last, First, Middle\)(.*?)Student No\.`
)

// Patterns holds the two page matchers. The identifier pattern needs no capture group;
// the name pattern must have exactly one, whose trimmed content is the name.
type Patterns struct {
	Identifier string `yaml:"identifier" json:"identifier"`
	Name       string `yaml:"name" json:"name"`
}

// DefaultPatterns returns the student-number and overview-name patterns.
func DefaultPatterns() Patterns {
	return Patterns{Identifier: DefaultIdentifierPattern, Name: DefaultNamePattern}
}

// PatternError reports a pattern that cannot be used for detection.
type PatternError struct {
	Field   string // "identifier" or "name"
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid %s pattern %q: %v", e.Field, e.Pattern, e.Err)
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// Source is the read side of a document as seen by the detector.
type Source interface {
	PageCount() int
	PageText(index int) (string, error)
}

// Detector scans pages for match points. It holds no state between calls to Detect.
type Detector struct {
	identifier *regexp.Regexp
	name       *regexp.Regexp
	progress   models.ProgressFunc
	logger     *zap.Logger
}

// Option configures a Detector.
type Option func(*Detector)

// WithProgress sets the receiver of page-count and match notifications.
func WithProgress(fn models.ProgressFunc) Option {
	return func(d *Detector) { d.progress = fn }
}

// WithLogger sets a logger for per-page debug output.
func WithLogger(l *zap.Logger) Option {
	return func(d *Detector) { d.logger = l }
}

// New compiles both patterns. The name pattern is compiled in dot-matches-newline mode
// so the name block may span lines. A malformed pattern returns a *PatternError.
func New(p Patterns, opts ...Option) (*Detector, error) {
	if p.Identifier == "" {
		return nil, &PatternError{Field: "identifier", Pattern: p.Identifier, Err: fmt.Errorf("pattern is empty")}
	}
	if p.Name == "" {
		return nil, &PatternError{Field: "name", Pattern: p.Name, Err: fmt.Errorf("pattern is empty")}
	}
	idRe, err := regexp.Compile(p.Identifier)
	if err != nil {
		return nil, &PatternError{Field: "identifier", Pattern: p.Identifier, Err: err}
	}
	nameRe, err := regexp.Compile("(?s)" + p.Name)
	if err != nil {
		return nil, &PatternError{Field: "name", Pattern: p.Name, Err: err}
	}
	if n := nameRe.NumSubexp(); n != 1 {
		return nil, &PatternError{Field: "name", Pattern: p.Name, Err: fmt.Errorf("want exactly 1 capture group, got %d", n)}
	}
	d := &Detector{identifier: idRe, name: nameRe}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Detect scans every page in order and returns the match points in encounter order.
// A page whose text cannot be extracted is treated as empty.
func (d *Detector) Detect(src Source) []models.MatchPoint {
	count := src.PageCount()
	d.notify(fmt.Sprintf("%d Pages found", count))

	var points []models.MatchPoint
	for i := 0; i < count; i++ {
		text, err := src.PageText(i)
		if err != nil {
			if d.logger != nil {
				d.logger.Debug("page text unavailable, treating as empty", zap.Int("page", i+1), zap.Error(err))
			}
			text = ""
		}
		mp, ok := d.Match(i, text)
		if !ok {
			continue
		}
		points = append(points, mp)
		d.notify(fmt.Sprintf("Match found: %s - %s", mp.Identifier, mp.Name))
	}
	return points
}

// Match applies both patterns to one page's text. It reports false unless both match.
// An identifier pattern that matches only the empty string counts as no match.
func (d *Detector) Match(pageIndex int, text string) (models.MatchPoint, bool) {
	id := d.identifier.FindString(text)
	if id == "" {
		return models.MatchPoint{}, false
	}
	sub := d.name.FindStringSubmatch(text)
	if sub == nil {
		return models.MatchPoint{}, false
	}
	return models.MatchPoint{
		PageIndex:  pageIndex,
		Identifier: id,
		Name:       strings.TrimSpace(sub[1]),
	}, true
}

func (d *Detector) notify(msg string) {
	if d.progress != nil {
		d.progress(msg)
	}
}
