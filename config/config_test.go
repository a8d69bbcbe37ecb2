package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test output defaults
	if cfg.Output.Path != "a.out" {
		t.Errorf("Expected Path=a.out, got %s", cfg.Output.Path)
	}
	if cfg.Output.TextStart != 0x10000 {
		t.Errorf("Expected TextStart=0x10000, got %#x", cfg.Output.TextStart)
	}
	if cfg.Output.MaxIterations != 64 {
		t.Errorf("Expected MaxIterations=64, got %d", cfg.Output.MaxIterations)
	}

	// Test relax defaults
	if !cfg.Relax.GP || !cfg.Relax.Pseudo || !cfg.Relax.Compressed {
		t.Error("Expected every relaxation enabled by default")
	}

	// Test diagnostics defaults
	if cfg.Diagnostics.ContextLines != 3 {
		t.Errorf("Expected ContextLines=3, got %d", cfg.Diagnostics.ContextLines)
	}

	// Test dump defaults
	if cfg.Dump.BytesPerLine != 16 {
		t.Errorf("Expected BytesPerLine=16, got %d", cfg.Dump.BytesPerLine)
	}
	if cfg.Dump.NumberFormat != "hex" {
		t.Errorf("Expected NumberFormat=hex, got %s", cfg.Dump.NumberFormat)
	}
}

func TestGetConfigPath(t *testing.T) {
	path := GetConfigPath()

	if path == "" {
		t.Error("GetConfigPath returned empty string")
	}

	if filepath.Base(path) != "config.toml" {
		t.Errorf("Expected path to end with config.toml, got %s", path)
	}

	switch runtime.GOOS {
	case "windows":
		if !filepath.IsAbs(path) && path != "config.toml" {
			t.Errorf("Expected absolute path on Windows, got %s", path)
		}

	case "darwin", "linux":
		dir := filepath.Dir(path)
		if filepath.Base(dir) != "asmld" && path != "config.toml" {
			t.Errorf("Expected path in asmld directory or fallback, got %s", path)
		}
	}
}

func TestSaveAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "test_config.toml")

	cfg := DefaultConfig()
	cfg.Output.Path = "build/out.elf"
	cfg.Output.TextStart = 0x20000
	cfg.Relax.Compressed = false
	cfg.Diagnostics.ColorOutput = false

	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("Config file was not created")
	}

	loaded, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if loaded.Output.Path != "build/out.elf" {
		t.Errorf("Expected Path=build/out.elf, got %s", loaded.Output.Path)
	}
	if loaded.Output.TextStart != 0x20000 {
		t.Errorf("Expected TextStart=0x20000, got %#x", loaded.Output.TextStart)
	}
	if loaded.Relax.Compressed {
		t.Error("Expected Compressed=false")
	}
	if loaded.Diagnostics.ColorOutput {
		t.Error("Expected ColorOutput=false")
	}
}

func TestLoadNonExistent(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "nonexistent.toml")

	cfg, err := LoadFrom(configPath)
	if err != nil {
		t.Fatalf("LoadFrom should not error on non-existent file: %v", err)
	}

	if cfg.Output.TextStart != 0x10000 {
		t.Error("Expected default config when file doesn't exist")
	}
}

func TestLoadInvalidTOML(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "invalid.toml")

	invalidTOML := `
[output]
text_start = "not a number"  # Invalid: should be uint32
`
	if err := os.WriteFile(configPath, []byte(invalidTOML), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	_, err := LoadFrom(configPath)
	if err == nil {
		t.Error("Expected error when loading invalid TOML")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "subdir1", "subdir2", "config.toml")

	cfg := DefaultConfig()
	if err := cfg.SaveTo(configPath); err != nil {
		t.Fatalf("Failed to save config: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("Config file was not created")
	}

	dir := filepath.Dir(configPath)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		t.Error("Parent directories were not created")
	}
}
