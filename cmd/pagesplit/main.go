// Package main is the pagesplit CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hyperjump/pagesplit/internal/cli"
	"github.com/hyperjump/pagesplit/internal/config"
	"github.com/hyperjump/pagesplit/internal/detect"
	"github.com/hyperjump/pagesplit/internal/fileid"
	"github.com/hyperjump/pagesplit/internal/models"
	"github.com/hyperjump/pagesplit/internal/publish"
	"github.com/hyperjump/pagesplit/internal/server"
	"github.com/hyperjump/pagesplit/internal/splitter"
	"github.com/hyperjump/pagesplit/internal/storage"
	"github.com/hyperjump/pagesplit/internal/watcher"
	"github.com/hyperjump/pagesplit/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/pagesplit/config.yaml"
	localConfigName   = "pagesplit.yaml"
)

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		return
	}
	var err error
	switch command := os.Args[1]; command {
	case "split":
		err = runSplit(os.Args[2:], os.Stdout)
	case "watch":
		err = runWatch(os.Args[2:])
	case "server":
		err = runServer(os.Args[2:])
	case "history":
		err = runHistory(os.Args[2:], os.Stdout)
	case "status":
		err = runStatus(os.Args[2:], os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("pagesplit version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// loadConfig loads path. When path is the default and does not exist, ./pagesplit.yaml is
// tried, then the built-in defaults relative to the working directory. The returned path is
// the file actually loaded, or "" for built-in defaults.
func loadConfig(path string) (*config.Config, string, error) {
	if path != defaultConfigPath {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	if _, err := os.Stat(path); err == nil {
		cfg, err := config.Load(path)
		return cfg, path, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, "", err
	}
	local := filepath.Join(cwd, localConfigName)
	if _, err := os.Stat(local); err == nil {
		cfg, err := config.Load(local)
		return cfg, local, err
	}
	return config.Default(cwd), "", nil
}

// splitFlags are the overrides shared by split, watch and server.
type splitFlags struct {
	configPath   string
	outputDir    string
	bundle       string
	remote       string
	remoteDriver string
	removeLocal  bool
	idPattern    string
	namePattern  string
	duplicates   string
	noHistory    bool
	debug        bool
}

func (f *splitFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.configPath, "config", defaultConfigPath, "config file path")
	fs.StringVar(&f.outputDir, "output-dir", "", "output directory")
	fs.StringVar(&f.outputDir, "o", "", "output directory (shorthand)")
	fs.StringVar(&f.bundle, "as", "", "bundle produced files as csv, zip or xlsx")
	fs.StringVar(&f.remote, "remote", "", "remote destination, e.g. remote:folder or gs://bucket/path")
	fs.StringVar(&f.remote, "rclone", "", "rclone remote destination (same as -remote with -remote-driver rclone)")
	fs.StringVar(&f.remoteDriver, "remote-driver", "", "remote driver: rclone or afs")
	fs.BoolVar(&f.removeLocal, "remove-local", false, "delete local outputs after upload")
	fs.StringVar(&f.idPattern, "id-pattern", "", "identifier regular expression")
	fs.StringVar(&f.idPattern, "sn-pattern", "", "identifier regular expression (alias)")
	fs.StringVar(&f.namePattern, "name-pattern", "", "name regular expression with one capture group")
	fs.StringVar(&f.namePattern, "overview-pattern", "", "name regular expression (alias)")
	fs.StringVar(&f.duplicates, "duplicates", "", "duplicate identifier policy: overwrite or fail")
	fs.BoolVar(&f.noHistory, "no-history", false, "do not record the run in history")
	fs.BoolVar(&f.debug, "debug", false, "enable debug logging")
}

// apply copies explicitly set flags over cfg and validates the result.
func (f *splitFlags) apply(fs *flag.FlagSet, cfg *config.Config) error {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "output-dir", "o":
			cfg.Output.Directory = f.outputDir
		case "as":
			cfg.Output.Bundle = f.bundle
		case "remote":
			cfg.Remote.Destination = f.remote
		case "rclone":
			cfg.Remote.Destination = f.remote
			cfg.Remote.Driver = config.DriverRclone
		case "remote-driver":
			cfg.Remote.Driver = f.remoteDriver
		case "remove-local":
			cfg.Remote.RemoveLocal = f.removeLocal
		case "id-pattern", "sn-pattern":
			cfg.Patterns.Identifier = f.idPattern
		case "name-pattern", "overview-pattern":
			cfg.Patterns.Name = f.namePattern
		case "duplicates":
			cfg.Output.Duplicates = f.duplicates
		case "no-history":
			cfg.Storage.Disabled = f.noHistory
		case "debug":
			cfg.Debug = cfg.Debug || f.debug
		}
	})
	return cfg.Validate()
}

// app holds the components a split needs.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    storage.Storage
	splitter *splitter.Splitter
}

func (a *app) Close() {
	if a.store != nil {
		_ = a.store.Close()
	}
	_ = a.logger.Sync()
}

// newApp compiles the patterns before anything touches the disk, so an invalid pattern
// fails without scanning a page.
func newApp(cfg *config.Config, progress models.ProgressFunc) (*app, error) {
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	det, err := detect.New(cfg.DetectPatterns(), detect.WithProgress(progress), detect.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	pub, err := publish.New(&cfg.Remote, logger)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	opts := []splitter.Option{
		splitter.WithLogger(logger),
		splitter.WithProgress(progress),
	}
	if pub != nil {
		opts = append(opts, splitter.WithPublisher(pub))
	}
	if !cfg.Storage.Disabled && cfg.Storage.DatabasePath != "" {
		store, err := openStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, err
		}
		a.store = store
		opts = append(opts, splitter.WithStorage(store))
	}
	a.splitter = splitter.New(det, splitter.OptionsFromConfig(cfg), opts...)
	return a, nil
}

func openStorage(path string) (storage.Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("open run history: %w", err)
	}
	return store, nil
}

func runSplit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("split", flag.ContinueOnError)
	var f splitFlags
	f.register(fs)
	var input, output string
	fs.StringVar(&input, "input", "", "input PDF path")
	fs.StringVar(&input, "i", "", "input PDF path (shorthand)")
	fs.StringVar(&output, "output", "text", "summary format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pagesplit split [flags] <input.pdf>\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" && fs.NArg() > 0 {
		input = fs.Arg(0)
	}
	if input == "" {
		fs.Usage()
		return errors.New("input PDF is required")
	}
	format, err := cli.ParseOutputFormat(output)
	if err != nil {
		return err
	}

	cfg, resolved, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	if err := f.apply(fs, cfg); err != nil {
		return err
	}
	progress := cli.Progress(stdout)
	if format == cli.OutputJSON {
		progress = cli.Progress(io.Discard)
	}
	a, err := newApp(cfg, progress)
	if err != nil {
		return err
	}
	defer a.Close()
	a.logger.Debug("config loaded", zap.String("config_path", resolved), zap.String("output_dir", cfg.Output.Directory))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	run, err := a.splitter.Run(ctx, input)
	if err != nil {
		return err
	}
	return cli.WriteRunResult(stdout, run, format)
}

func runWatch(args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	var f splitFlags
	f.register(fs)
	recursive := fs.Bool("recursive", false, "also watch subdirectories")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pagesplit watch [flags] [directory...]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, resolved, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	if err := f.apply(fs, cfg); err != nil {
		return err
	}
	dirs := append(cfg.Watch.Directories, fs.Args()...)
	if len(dirs) == 0 {
		fs.Usage()
		return errors.New("no directory to watch (pass one or set watch.directories)")
	}
	isRecursive := cfg.Watch.RecursiveOrDefault() || *recursive

	a, err := newApp(cfg, cli.StdoutProgress)
	if err != nil {
		return err
	}
	defer a.Close()
	a.logger.Info("config loaded", zap.String("config_path", resolved), zap.Strings("directories", dirs))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	w := newInboxWatcher(ctx, a, dirs, isRecursive)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	w.ScanExisting()
	<-ctx.Done()
	a.logger.Info("Shutting down...")
	w.Stop()
	return nil
}

// newInboxWatcher returns a watcher that splits every new PDF in dirs, skipping inputs whose
// content was already split according to run history.
func newInboxWatcher(ctx context.Context, a *app, dirs []string, recursive bool) *watcher.Watcher {
	handle := func(path string) {
		if ctx.Err() != nil {
			return
		}
		if a.store != nil {
			if digest, err := fileid.Digest(path); err == nil {
				seen, err := a.store.HasDigest(ctx, digest)
				if err == nil && seen {
					a.logger.Info("skipping already split file", zap.String("path", path))
					return
				}
			}
		}
		if _, err := a.splitter.Run(ctx, path); err != nil {
			a.logger.Error("split failed", zap.String("path", path), zap.Error(err))
		}
	}
	return watcher.New(dirs, handle,
		watcher.WithRecursive(recursive),
		watcher.WithExclude(a.cfg.Output.Directory),
		watcher.WithLogger(a.logger),
	)
}

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	var f splitFlags
	f.register(fs)
	host := fs.String("host", "", "listen host (default from config)")
	port := fs.Int("port", 0, "listen port (default from config)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, resolved, err := loadConfig(f.configPath)
	if err != nil {
		return err
	}
	if err := f.apply(fs, cfg); err != nil {
		return err
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}

	a, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()
	a.logger.Info("config loaded", zap.String("config_path", resolved), zap.Bool("debug", cfg.Debug))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	w := newInboxWatcher(ctx, a, cfg.Watch.Directories, cfg.Watch.RecursiveOrDefault())
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	go w.ScanExisting()

	srv := server.NewServer(a.splitter, a.store, cfg,
		server.WithLogger(a.logger),
		server.WithWatch(w, resolved),
	)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}
	a.logger.Info("Shutting down...")
	w.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func runHistory(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	limit := fs.Int("limit", 20, "number of runs to show")
	offset := fs.Int("offset", 0, "number of runs to skip")
	output := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pagesplit history [flags] [run-id]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	format, err := cli.ParseOutputFormat(*output)
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if cfg.Storage.Disabled || cfg.Storage.DatabasePath == "" {
		return errors.New("run history is disabled in the config")
	}
	store, err := openStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := context.Background()
	if fs.NArg() > 0 {
		run, err := store.GetRun(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return cli.WriteRunResult(stdout, run, format)
	}
	runs, err := store.ListRuns(ctx, *offset, *limit)
	if err != nil {
		return err
	}
	return cli.WriteRuns(stdout, runs, format)
}

func runStatus(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, resolved, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	if resolved == "" {
		resolved = "(built-in defaults)"
	}
	fmt.Fprintf(stdout, "Config:      %s\n", resolved)
	fmt.Fprintf(stdout, "Output dir:  %s (bundle %s, duplicates %s)\n", cfg.Output.Directory, cfg.Output.Bundle, cfg.Output.Duplicates)
	if cfg.Remote.Enabled() {
		fmt.Fprintf(stdout, "Remote:      %s via %s\n", cfg.Remote.Destination, cfg.Remote.Driver)
	} else {
		fmt.Fprintf(stdout, "Remote:      disabled\n")
	}
	if n, err := storage.DiskUsageBytes(cfg.Output.Directory, cfg.Storage.DatabasePath); err == nil {
		fmt.Fprintf(stdout, "Disk usage:  %d bytes\n", n)
	}
	if cfg.Storage.Disabled || cfg.Storage.DatabasePath == "" {
		fmt.Fprintf(stdout, "History:     disabled\n")
		return nil
	}
	if _, err := os.Stat(cfg.Storage.DatabasePath); err != nil {
		fmt.Fprintf(stdout, "History:     no runs recorded yet\n")
		return nil
	}
	store, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return err
	}
	defer store.Close()
	ctx := context.Background()
	runs, err := store.CountRuns(ctx)
	if err != nil {
		return err
	}
	outputs, err := store.CountOutputs(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "History:     %d run(s), %d output file(s) in %s\n", runs, outputs, cfg.Storage.DatabasePath)
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `pagesplit - Split a PDF into one document per detected person

Usage:
  pagesplit split [flags] <input.pdf>   Split a PDF (also -input/-i)
  pagesplit watch [flags] [dir...]      Split PDFs as they arrive in inbox directories
  pagesplit server [flags]              Start the HTTP API
  pagesplit history [flags] [run-id]    List recorded runs or show one
  pagesplit status [flags]              Show configuration and history totals
  pagesplit version                     Show version
  pagesplit help                        Show this help

Split Flags:
  -i, -input string          Input PDF path
  -o, -output-dir string     Output directory (default: output)
  -as string                 Bundle as csv, zip or xlsx (default: csv)
  -remote string             Publish destination; empty disables publishing
  -rclone string             rclone destination (e.g. remote:folder)
  -remote-driver string      rclone or afs (default: rclone)
  -remove-local              Delete local outputs after upload
  -sn-pattern string         Identifier regular expression (also -id-pattern)
  -overview-pattern string   Name regular expression with one group (also -name-pattern)
  -duplicates string         overwrite or fail (default: overwrite)
  -output string             Summary format: text or json
  -no-history                Do not record the run
  -config string             Config file path (default: /usr/local/etc/pagesplit/config.yaml)
  -debug                     Enable debug logging

Examples:
  pagesplit split -i transcripts.pdf -o out
  pagesplit split -as zip -rclone gdrive:grades transcripts.pdf
  pagesplit watch -recursive ~/scans/inbox
  pagesplit server -port 9000`)
}
