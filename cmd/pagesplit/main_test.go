package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperjump/pagesplit/internal/config"
	"github.com/hyperjump/pagesplit/internal/detect"
	"github.com/hyperjump/pagesplit/internal/document/pdftest"
	"github.com/hyperjump/pagesplit/internal/models"
)

func overviewPage(id, name string) string {
	return "Name (Last, First, Middle)\n" + name + "\nStudent No. " + id
}

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit path", func(t *testing.T) {
		dir := t.TempDir()
		path := writeConfig(t, dir, "output:\n  bundle: zip\n")
		cfg, resolved, err := loadConfig(path)
		if err != nil {
			t.Fatal(err)
		}
		if resolved != path || cfg.Output.Bundle != config.BundleZip {
			t.Errorf("resolved = %q bundle = %q", resolved, cfg.Output.Bundle)
		}
		if cfg.Output.Directory != filepath.Join(dir, "output") {
			t.Errorf("output dir = %q, want relative to config dir", cfg.Output.Directory)
		}
	})

	t.Run("explicit path missing", func(t *testing.T) {
		if _, _, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
			t.Error("expected error for a missing explicit config")
		}
	})

	t.Run("default falls back to local file", func(t *testing.T) {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			t.Skip("system config present")
		}
		dir := t.TempDir()
		chdir(t, dir)
		if err := os.WriteFile(filepath.Join(dir, localConfigName), []byte("output:\n  duplicates: fail\n"), 0644); err != nil {
			t.Fatal(err)
		}
		cfg, resolved, err := loadConfig(defaultConfigPath)
		if err != nil {
			t.Fatal(err)
		}
		if filepath.Base(resolved) != localConfigName || cfg.Output.Duplicates != config.DuplicatesFail {
			t.Errorf("resolved = %q duplicates = %q", resolved, cfg.Output.Duplicates)
		}
	})

	t.Run("default falls back to built-in", func(t *testing.T) {
		if _, err := os.Stat(defaultConfigPath); err == nil {
			t.Skip("system config present")
		}
		dir := t.TempDir()
		chdir(t, dir)
		cfg, resolved, err := loadConfig(defaultConfigPath)
		if err != nil {
			t.Fatal(err)
		}
		if resolved != "" || cfg.Patterns.Identifier != detect.DefaultIdentifierPattern {
			t.Errorf("resolved = %q cfg = %+v", resolved, cfg.Patterns)
		}
		wd, _ := os.Getwd()
		if cfg.Output.Directory != filepath.Join(wd, "output") {
			t.Errorf("output dir = %q", cfg.Output.Directory)
		}
	})
}

func TestSplitFlags_apply(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(*config.Config) bool
		wantErr bool
	}{
		{"as zip", []string{"-as", "zip"}, func(c *config.Config) bool { return c.Output.Bundle == config.BundleZip }, false},
		{"short output dir", []string{"-o", "/tmp/out"}, func(c *config.Config) bool { return c.Output.Directory == "/tmp/out" }, false},
		{"rclone alias", []string{"-rclone", "gdrive:grades"}, func(c *config.Config) bool {
			return c.Remote.Destination == "gdrive:grades" && c.Remote.Driver == config.DriverRclone
		}, false},
		{"afs remote", []string{"-remote", "gs://bucket/x", "-remote-driver", "afs"}, func(c *config.Config) bool {
			return c.Remote.Enabled() && c.Remote.Driver == config.DriverAFS
		}, false},
		{"pattern aliases", []string{"-sn-pattern", `\d+`, "-overview-pattern", `N:(.*)`}, func(c *config.Config) bool {
			return c.Patterns.Identifier == `\d+` && c.Patterns.Name == `N:(.*)`
		}, false},
		{"no history", []string{"-no-history"}, func(c *config.Config) bool { return c.Storage.Disabled }, false},
		{"unset flags keep config", nil, func(c *config.Config) bool { return c.Output.Bundle == config.BundleCSV }, false},
		{"bad bundle", []string{"-as", "tar"}, nil, true},
		{"bad duplicates", []string{"-duplicates", "keep"}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			var f splitFlags
			f.register(fs)
			if err := fs.Parse(tt.args); err != nil {
				t.Fatal(err)
			}
			cfg := config.Default(t.TempDir())
			err := f.apply(fs, cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("apply() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil && !tt.check(cfg) {
				t.Errorf("config after %v: %+v", tt.args, cfg)
			}
		})
	}
}

func TestRunSplit_endToEnd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "storage:\n  database_path: ./history.db\n")
	input := pdftest.Write(t, dir, "transcripts.pdf", []string{
		"Cover",
		overviewPage("1234-56789", "Doe, John"),
		overviewPage("2345-67890", "Smith, Jane"),
		"Grades continued",
	})
	out := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	if err := runSplit([]string{"-config", cfgPath, "-o", out, "-i", input}, &stdout); err != nil {
		t.Fatal(err)
	}
	text := stdout.String()
	for _, want := range []string{"4 Pages found", "Match found: 1234-56789 - Doe, John", "Match found: 2345-67890 - Smith, Jane", "CSV written to:"} {
		if !strings.Contains(text, want) {
			t.Errorf("stdout missing %q:\n%s", want, text)
		}
	}
	for _, name := range []string{"1234-56789.pdf", "2345-67890.pdf"} {
		if _, err := os.Stat(filepath.Join(out, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}

	stdout.Reset()
	if err := runHistory([]string{"-config", cfgPath, "-output", "json"}, &stdout); err != nil {
		t.Fatal(err)
	}
	var runs []models.RunResult
	if err := json.Unmarshal(stdout.Bytes(), &runs); err != nil {
		t.Fatalf("history output: %v\n%s", err, stdout.String())
	}
	if len(runs) != 1 || runs[0].PageCount != 4 {
		t.Errorf("history = %+v", runs)
	}

	stdout.Reset()
	if err := runStatus([]string{"-config", cfgPath}, &stdout); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout.String(), "1 run(s), 2 output file(s)") {
		t.Errorf("status:\n%s", stdout.String())
	}
}

func TestRunSplit_invalidPatternFailsBeforeScanning(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "storage:\n  disabled: true\n")
	input := pdftest.Write(t, dir, "in.pdf", []string{"page"})
	out := filepath.Join(dir, "out")

	var stdout bytes.Buffer
	err := runSplit([]string{"-config", cfgPath, "-o", out, "-name-pattern", "no group", input}, &stdout)
	var perr *detect.PatternError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *detect.PatternError", err)
	}
	if strings.Contains(stdout.String(), "Pages found") {
		t.Error("no page should be scanned")
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("output directory should not be created")
	}
}

func TestRunSplit_missingInput(t *testing.T) {
	var stdout bytes.Buffer
	if err := runSplit([]string{"-config", writeConfig(t, t.TempDir(), "")}, &stdout); err == nil {
		t.Error("expected error without input")
	}
}

// chdir changes the working directory for the duration of the test
// (equivalent of testing.T.Chdir, which requires Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
