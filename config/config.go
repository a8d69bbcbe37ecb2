package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/BurntSushi/toml"
)

// Config represents the assembler's persistent configuration
type Config struct {
	// Output settings
	Output struct {
		Path       string `toml:"path"`
		TextStart  uint32 `toml:"text_start"`
		MaxIterations int `toml:"max_iterations"`
	} `toml:"output"`

	// Relax settings
	Relax struct {
		GP         bool `toml:"gp"`
		Pseudo     bool `toml:"pseudo"`
		Compressed bool `toml:"compressed"`
	} `toml:"relax"`

	// Diagnostics settings
	Diagnostics struct {
		ColorOutput   bool `toml:"color_output"`
		ContextLines  int  `toml:"context_lines"`
		Verbose       bool `toml:"verbose"`
	} `toml:"diagnostics"`

	// Dump settings
	Dump struct {
		BytesPerLine int    `toml:"bytes_per_line"`
		NumberFormat string `toml:"number_format"` // hex, dec, both
	} `toml:"dump"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Output defaults
	cfg.Output.Path = "a.out"
	cfg.Output.TextStart = 0x10000
	cfg.Output.MaxIterations = 64

	// Relax defaults: every relaxation enabled
	cfg.Relax.GP = true
	cfg.Relax.Pseudo = true
	cfg.Relax.Compressed = true

	// Diagnostics defaults
	cfg.Diagnostics.ColorOutput = true
	cfg.Diagnostics.ContextLines = 3
	cfg.Diagnostics.Verbose = false

	// Dump defaults
	cfg.Dump.BytesPerLine = 16
	cfg.Dump.NumberFormat = "hex"

	return cfg
}

// GetConfigPath returns the platform-specific config file path
func GetConfigPath() string {
	var configDir string

	switch runtime.GOOS {
	case "windows":
		// Windows: %APPDATA%\asmld\config.toml
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		configDir = filepath.Join(configDir, "asmld")

	case "darwin", "linux":
		// macOS/Linux: ~/.config/asmld/config.toml
		homeDir, err := os.UserHomeDir()
		if err != nil {
			// Fallback to current directory
			return "config.toml"
		}
		configDir = filepath.Join(homeDir, ".config", "asmld")

	default:
		// Unknown platform: use current directory
		return "config.toml"
	}

	// Ensure directory exists
	if err := os.MkdirAll(configDir, 0750); err != nil {
		// If we can't create the directory, fall back to current directory
		return "config.toml"
	}

	return filepath.Join(configDir, "config.toml")
}

// Load loads configuration from the default config file
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from the specified file
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read and parse config file
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Save saves configuration to the default config file
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo saves configuration to the specified file
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Create file
	f, err := os.Create(path) // #nosec G304 -- user config file path
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close config file: %w", closeErr)
		}
	}()

	// Encode to TOML
	encoder := toml.NewEncoder(f)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
