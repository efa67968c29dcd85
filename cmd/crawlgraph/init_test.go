package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/nao1215/crawlgraph/internal/config"
)

func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != config.DefaultConfigFile {
			t.Errorf("expected default %q, got %q", config.DefaultConfigFile, flag.DefValue)
		}
	})

	t.Run("has force flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("force")
		if flag == nil {
			t.Fatal("expected force flag")
		}
		if flag.Shorthand != "f" {
			t.Errorf("expected shorthand 'f', got %q", flag.Shorthand)
		}
	})
}

func runInit(t *testing.T, args ...string) error {
	t.Helper()
	cmd := NewInitCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates config file", func(t *testing.T) {
		t.Parallel()
		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)

		if err := runInit(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		for _, section := range []string{"database:", "fetch:", "frontier:", "worker:"} {
			if !strings.Contains(string(content), section) {
				t.Errorf("expected config to contain %q", section)
			}
		}
	})

	t.Run("fails if file exists without force", func(t *testing.T) {
		t.Parallel()
		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		err := runInit(t, "-o", outputPath)
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected 'already exists' error, got %v", err)
		}
	})

	t.Run("overwrites file with force flag", func(t *testing.T) {
		t.Parallel()
		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		if err := runInit(t, "-o", outputPath, "-f"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(content) == "existing" {
			t.Error("expected file to be overwritten")
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()
		outputPath := filepath.Join(t.TempDir(), "a", "b", "config.yaml")

		if err := runInit(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(outputPath); err != nil {
			t.Errorf("expected config file in nested directory: %v", err)
		}
	})

	t.Run("file has owner-only permissions", func(t *testing.T) {
		t.Parallel()
		if runtime.GOOS == "windows" {
			t.Skip("skipping permission test on Windows")
		}
		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)

		if err := runInit(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		info, err := os.Stat(outputPath)
		if err != nil {
			t.Fatalf("failed to stat file: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("expected permissions 0600, got %o", perm)
		}
	})
}

// TestConfigTemplate checks that the written template loads back into a
// valid configuration equal to the defaults.
func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	if err := runInit(t, "-o", outputPath); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := config.Load(outputPath)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("template does not validate: %v", err)
	}

	defaults := config.NewConfig()
	if cfg.Driver != defaults.Driver {
		t.Errorf("Driver = %q, want %q", cfg.Driver, defaults.Driver)
	}
	if cfg.Timeout != defaults.Timeout {
		t.Errorf("Timeout = %v, want %v", cfg.Timeout, defaults.Timeout)
	}
	if cfg.MaxTasks != defaults.MaxTasks {
		t.Errorf("MaxTasks = %d, want %d", cfg.MaxTasks, defaults.MaxTasks)
	}
	if cfg.PickInterval != defaults.PickInterval {
		t.Errorf("PickInterval = %v, want %v", cfg.PickInterval, defaults.PickInterval)
	}
	if cfg.UserAgent != defaults.UserAgent {
		t.Errorf("UserAgent = %q, want %q", cfg.UserAgent, defaults.UserAgent)
	}
	if len(cfg.Territoires) != 0 || len(cfg.Sites) != 0 {
		t.Error("expected the commented examples to stay inactive")
	}
}
