// Package core contains the business logic for prdflow: the completion
// detector, the run loop manager, the archiver, and configuration.
package core

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds every tunable the core components read. Loaded once at
// startup; nothing depends on live reload.
type Config struct {
	Categories       []string
	StoreFile        string
	ArchiveDir       string
	ProgressFile     string
	CompletionToken  string
	PollInterval     time.Duration
	WaitTimeout      time.Duration
	RetentionDays    int
	AssistantCommand string
	AssistantArgs    []string
}

// DefaultConfig returns the configuration used when no .prdflow.yaml exists.
func DefaultConfig() *Config {
	return &Config{
		Categories:       []string{"ui", "server", "data", "infra", "test", "docs"},
		StoreFile:        "prd.json",
		ArchiveDir:       "archives",
		ProgressFile:     "progress.log",
		CompletionToken:  "IMPLEMENTATION COMPLETE",
		PollInterval:     5 * time.Second,
		WaitTimeout:      5 * time.Minute,
		RetentionDays:    90,
		AssistantCommand: "claude",
		AssistantArgs:    nil,
	}
}

// LoadConfig reads .prdflow.yaml from basePath using Viper. Missing file
// returns the defaults; a malformed file is an error.
func LoadConfig(basePath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName(".prdflow")
	v.SetConfigType("yaml")
	v.AddConfigPath(basePath)

	v.SetDefault("categories", cfg.Categories)
	v.SetDefault("store.file", cfg.StoreFile)
	v.SetDefault("store.archive_dir", cfg.ArchiveDir)
	v.SetDefault("progress.file", cfg.ProgressFile)
	v.SetDefault("progress.completion_token", cfg.CompletionToken)
	v.SetDefault("loop.poll_interval", cfg.PollInterval)
	v.SetDefault("loop.wait_timeout", cfg.WaitTimeout)
	v.SetDefault("archive.retention_days", cfg.RetentionDays)
	v.SetDefault("assistant.command", cfg.AssistantCommand)
	v.SetDefault("assistant.args", cfg.AssistantArgs)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .prdflow.yaml: %w", err)
	}

	cfg.Categories = v.GetStringSlice("categories")
	cfg.StoreFile = v.GetString("store.file")
	cfg.ArchiveDir = v.GetString("store.archive_dir")
	cfg.ProgressFile = v.GetString("progress.file")
	cfg.CompletionToken = v.GetString("progress.completion_token")
	cfg.PollInterval = v.GetDuration("loop.poll_interval")
	cfg.WaitTimeout = v.GetDuration("loop.wait_timeout")
	cfg.AssistantCommand = v.GetString("assistant.command")
	cfg.AssistantArgs = v.GetStringSlice("assistant.args")

	// IsSet distinguishes "not set" (default 90) from an explicit 0, which
	// disables archive cleanup.
	if v.IsSet("archive.retention_days") {
		cfg.RetentionDays = v.GetInt("archive.retention_days")
	}

	return cfg, nil
}

// configFileYAML mirrors the .prdflow.yaml layout for WriteDefaultConfig.
type configFileYAML struct {
	Categories []string `yaml:"categories"`
	Store      struct {
		File       string `yaml:"file"`
		ArchiveDir string `yaml:"archive_dir"`
	} `yaml:"store"`
	Progress struct {
		File            string `yaml:"file"`
		CompletionToken string `yaml:"completion_token"`
	} `yaml:"progress"`
	Loop struct {
		PollInterval string `yaml:"poll_interval"`
		WaitTimeout  string `yaml:"wait_timeout"`
	} `yaml:"loop"`
	Archive struct {
		RetentionDays int `yaml:"retention_days"`
	} `yaml:"archive"`
	Assistant struct {
		Command string   `yaml:"command"`
		Args    []string `yaml:"args,omitempty"`
	} `yaml:"assistant"`
}

// WriteDefaultConfig writes a .prdflow.yaml with the default settings to
// basePath and returns its path. Fails if the file already exists.
func WriteDefaultConfig(basePath string) (string, error) {
	path := filepath.Join(basePath, ".prdflow.yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("config file %s already exists", path)
	}

	cfg := DefaultConfig()
	var out configFileYAML
	out.Categories = cfg.Categories
	out.Store.File = cfg.StoreFile
	out.Store.ArchiveDir = cfg.ArchiveDir
	out.Progress.File = cfg.ProgressFile
	out.Progress.CompletionToken = cfg.CompletionToken
	out.Loop.PollInterval = cfg.PollInterval.String()
	out.Loop.WaitTimeout = cfg.WaitTimeout.String()
	out.Archive.RetentionDays = cfg.RetentionDays
	out.Assistant.Command = cfg.AssistantCommand
	out.Assistant.Args = cfg.AssistantArgs

	data, err := yaml.Marshal(&out)
	if err != nil {
		return "", fmt.Errorf("marshalling default config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
