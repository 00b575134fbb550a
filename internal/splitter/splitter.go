// Package splitter runs the full split: detect match points, build segments, write one document
// per segment, then optionally publish, bundle and record the run.
package splitter

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/pagesplit/internal/bundle"
	"github.com/hyperjump/pagesplit/internal/config"
	"github.com/hyperjump/pagesplit/internal/detect"
	"github.com/hyperjump/pagesplit/internal/document"
	"github.com/hyperjump/pagesplit/internal/fileid"
	"github.com/hyperjump/pagesplit/internal/models"
	"github.com/hyperjump/pagesplit/internal/publish"
	"github.com/hyperjump/pagesplit/internal/segment"
	"github.com/hyperjump/pagesplit/internal/storage"
	"go.uber.org/zap"
)

// ErrDuplicateOutput is returned under the fail policy when two segments map to one file.
var ErrDuplicateOutput = errors.New("duplicate output file")

// Options controls where and how outputs are produced.
type Options struct {
	OutputDir   string
	Bundle      string // config.BundleCSV, config.BundleZip or config.BundleXLSX
	Duplicates  string // config.DuplicatesOverwrite or config.DuplicatesFail
	RemoveLocal bool   // delete local outputs once published
}

// OptionsFromConfig builds Options from the output and remote sections of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		OutputDir:   cfg.Output.Directory,
		Bundle:      cfg.Output.Bundle,
		Duplicates:  cfg.Output.Duplicates,
		RemoveLocal: cfg.Remote.Enabled() && cfg.Remote.RemoveLocal,
	}
}

// Splitter runs split jobs. Runs are serialised because they share the output directory.
type Splitter struct {
	detector  *detect.Detector
	opts      Options
	open      document.Opener
	sink      document.Sink
	publisher publish.Publisher
	store     storage.Storage
	progress  models.ProgressFunc
	logger    *zap.Logger
	newID     func() string
	mu        sync.Mutex
}

// Option configures a Splitter.
type Option func(*Splitter)

// WithOpener replaces the document source.
func WithOpener(open document.Opener) Option {
	return func(s *Splitter) { s.open = open }
}

// WithSink replaces the document sink.
func WithSink(sink document.Sink) Option {
	return func(s *Splitter) { s.sink = sink }
}

// WithPublisher enables publishing of outputs and bundles.
func WithPublisher(p publish.Publisher) Option {
	return func(s *Splitter) { s.publisher = p }
}

// WithStorage enables run history.
func WithStorage(store storage.Storage) Option {
	return func(s *Splitter) { s.store = store }
}

// WithProgress sets the receiver of user-facing progress lines.
func WithProgress(fn models.ProgressFunc) Option {
	return func(s *Splitter) { s.progress = fn }
}

// WithLogger sets a logger for diagnostics.
func WithLogger(l *zap.Logger) Option {
	return func(s *Splitter) { s.logger = l }
}

// WithIDGenerator replaces the run ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(s *Splitter) { s.newID = fn }
}

// RunOption overrides Options for a single run.
type RunOption func(*Options)

// WithBundle selects the bundle mode for one run.
func WithBundle(mode string) RunOption {
	return func(o *Options) {
		if mode != "" {
			o.Bundle = mode
		}
	}
}

// New returns a Splitter using det for detection.
func New(det *detect.Detector, opts Options, options ...Option) *Splitter {
	s := &Splitter{detector: det, opts: opts}
	for _, opt := range options {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.open == nil {
		s.open = document.NewOpener(s.logger)
	}
	if s.sink == nil {
		s.sink = document.NewWriter()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.opts.Bundle == "" {
		s.opts.Bundle = config.BundleCSV
	}
	if s.opts.Duplicates == "" {
		s.opts.Duplicates = config.DuplicatesOverwrite
	}
	return s
}

// Run splits the document at inputPath. Any collaborator failure aborts the run; files
// already written stay on disk.
func (s *Splitter) Run(ctx context.Context, inputPath string, overrides ...RunOption) (*models.RunResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(overrides) > 0 {
		saved := s.opts
		for _, o := range overrides {
			o(&s.opts)
		}
		defer func() { s.opts = saved }()
	}
	start := time.Now()
	s.notify("Starting job…")

	src, err := s.open(inputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", segment.ErrEmptyDocument, inputPath, err)
	}
	defer src.Close()

	points := s.detector.Detect(src)
	segments, err := segment.Build(src.PageCount(), points)
	if err != nil {
		return nil, fmt.Errorf("segment %s: %w", inputPath, err)
	}

	run := &models.RunResult{
		ID:           s.newID(),
		InputPath:    inputPath,
		PageCount:    src.PageCount(),
		DroppedPages: segment.Dropped(points),
	}
	if digest, err := fileid.Digest(inputPath); err == nil {
		run.InputDigest = digest
	} else {
		s.logger.Warn("input digest unavailable", zap.String("path", inputPath), zap.Error(err))
	}
	if run.DroppedPages > 0 {
		s.notify(fmt.Sprintf("Skipping %d page(s) before the first match", run.DroppedPages))
	}

	run.Outputs, err = s.writeOutputs(ctx, inputPath, segments)
	if err != nil {
		return nil, err
	}
	if s.publisher != nil {
		s.notify("Uploading output files")
		if err := s.publishOutputs(ctx, run.Outputs); err != nil {
			return nil, err
		}
	}
	if err := s.writeBundle(ctx, run); err != nil {
		return nil, err
	}
	if s.opts.RemoveLocal && s.publisher != nil {
		s.removeLocal(inputPath, run.Outputs)
	}

	run.CreatedAt = time.Now()
	if s.store != nil {
		if err := s.store.CreateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("record run: %w", err)
		}
	}
	s.logger.Info("split finished",
		zap.String("run_id", run.ID),
		zap.String("input", inputPath),
		zap.Int("pages", run.PageCount),
		zap.Int("outputs", len(run.Outputs)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return run, nil
}

func (s *Splitter) writeOutputs(ctx context.Context, inputPath string, segments []models.Segment) ([]models.OutputFile, error) {
	if err := os.MkdirAll(s.opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	ext := filepath.Ext(inputPath)
	if ext == "" {
		ext = ".pdf"
	}

	owner := make(map[string]string, len(segments))
	outputs := make([]models.OutputFile, 0, len(segments))
	for _, seg := range segments {
		if !seg.Matched() {
			dst := filepath.Join(s.opts.OutputDir, filepath.Base(inputPath))
			s.notify(fmt.Sprintf("No matches found; copying entire file to %s", dst))
			if err := s.sink.CopyFile(ctx, inputPath, dst); err != nil {
				return nil, fmt.Errorf("copy document: %w", err)
			}
			outputs = append(outputs, models.OutputFile{Segment: seg, Path: dst})
			continue
		}

		dst := filepath.Join(s.opts.OutputDir, OutputName(seg.Identifier, ext))
		if prev, ok := owner[dst]; ok {
			if s.opts.Duplicates == config.DuplicatesFail {
				return nil, fmt.Errorf("%w: %s (identifier %s already written)", ErrDuplicateOutput, dst, prev)
			}
			s.logger.Warn("overwriting output of duplicate identifier", zap.String("path", dst), zap.String("identifier", seg.Identifier))
		}
		owner[dst] = seg.Identifier

		s.notify(fmt.Sprintf("Creating separate PDF for: %s", seg.Identifier))
		if err := s.sink.WritePages(ctx, inputPath, seg.Pages(), dst); err != nil {
			return nil, fmt.Errorf("write segment %s: %w", seg.Identifier, err)
		}
		outputs = append(outputs, models.OutputFile{Segment: seg, Path: dst})
	}
	return outputs, nil
}

func (s *Splitter) publishOutputs(ctx context.Context, outputs []models.OutputFile) error {
	for i := range outputs {
		s.notify(fmt.Sprintf("Uploading: %s", filepath.Base(outputs[i].Path)))
		url, err := s.publisher.Publish(ctx, outputs[i].Path)
		if err != nil {
			return fmt.Errorf("publish %s: %w", outputs[i].Path, err)
		}
		outputs[i].URL = url
	}
	return nil
}

func (s *Splitter) writeBundle(ctx context.Context, run *models.RunResult) error {
	if s.opts.Bundle == config.BundleZip {
		s.notify("Preparing Zip File")
	}
	path, err := bundle.Write(s.opts.Bundle, s.opts.OutputDir, run.ID, run.Outputs)
	if err != nil {
		return fmt.Errorf("write %s bundle: %w", s.opts.Bundle, err)
	}
	run.BundlePath = path
	label := strings.ToUpper(s.opts.Bundle)
	if s.opts.Bundle == config.BundleZip {
		label = "Zip"
	}
	if s.publisher == nil {
		s.notify(fmt.Sprintf("%s written to: %s", label, path))
		return nil
	}
	s.notify(fmt.Sprintf("Uploading bundle: %s", filepath.Base(path)))
	url, err := s.publisher.Publish(ctx, path)
	if err != nil {
		return fmt.Errorf("publish bundle: %w", err)
	}
	run.BundleURL = url
	s.notify(fmt.Sprintf("Success! You can download your %s file here: %s", label, url))
	return nil
}

// removeLocal deletes published outputs. The input is never removed, even when the
// pass-through output resolves to the input file itself.
func (s *Splitter) removeLocal(inputPath string, outputs []models.OutputFile) {
	seen := make(map[string]bool, len(outputs))
	if abs, err := filepath.Abs(inputPath); err == nil {
		seen[abs] = true
	}
	for _, o := range outputs {
		abs, err := filepath.Abs(o.Path)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if err := os.Remove(o.Path); err != nil {
			s.logger.Debug("remove local output failed", zap.String("path", o.Path), zap.Error(err))
		}
	}
}

func (s *Splitter) notify(msg string) {
	if s.progress != nil {
		s.progress(msg)
	}
}

// OutputName returns the file name for an identifier: the identifier plus ext, with path
// separators replaced so the file stays inside the output directory.
func OutputName(identifier, ext string) string {
	name := strings.NewReplacer("/", "_", `\`, "_").Replace(identifier)
	if name == "." || name == ".." {
		name = strings.Repeat("_", len(name))
	}
	return name + ext
}
