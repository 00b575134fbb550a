package config

import "github.com/hyperjump/pagesplit/internal/detect"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Patterns.Identifier == "" {
		cfg.Patterns.Identifier = detect.DefaultIdentifierPattern
	}
	if cfg.Patterns.Name == "" {
		cfg.Patterns.Name = detect.DefaultNamePattern
	}
	if cfg.Output.Directory == "" {
		cfg.Output.Directory = "output"
	}
	if cfg.Output.Bundle == "" {
		cfg.Output.Bundle = BundleCSV
	}
	if cfg.Output.Duplicates == "" {
		cfg.Output.Duplicates = DuplicatesOverwrite
	}
	if cfg.Remote.Driver == "" {
		cfg.Remote.Driver = DriverRclone
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "~/.pagesplit/history.db"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}
}
