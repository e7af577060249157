// Package config loads application configuration from an optional YAML
// file with environment-variable overrides. Read-only after load.
package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scanledger/scanledger/constants"
)

// Config holds all application configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Raster   RasterConfig   `yaml:"raster"`
	Extract  ExtractConfig  `yaml:"extract"`
	Parse    ParseConfig    `yaml:"parse"`
	Store    StoreConfig    `yaml:"store"`
	Optimize OptimizeConfig `yaml:"optimize"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// SourceConfig holds input-folder configuration.
type SourceConfig struct {
	Root        string   `yaml:"root"`
	AllowedExts []string `yaml:"allowed_extensions"`
	MaxFileSize int64    `yaml:"max_file_size"` // bytes
}

// RasterConfig holds PDF rasterization configuration.
type RasterConfig struct {
	DPI      int `yaml:"dpi"`
	MaxPages int `yaml:"max_pages"`
	Workers  int `yaml:"workers"`
}

// ExtractConfig holds extraction-strategy configuration.
type ExtractConfig struct {
	CallTimeout   time.Duration `yaml:"call_timeout"`
	GeminiModel   string        `yaml:"gemini_model"`
	GeminiAPIKey  string        `yaml:"gemini_api_key"`
	Tesseract     string        `yaml:"tesseract"`
	TesseractLang string        `yaml:"tesseract_lang"`
	TessdataDir   string        `yaml:"tessdata_dir"`
}

// ParseConfig holds field-parsing configuration.
type ParseConfig struct {
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
}

// StoreConfig holds record-store configuration.
type StoreConfig struct {
	DSN string `yaml:"dsn"`
}

// OptimizeConfig holds adaptive-concurrency configuration.
type OptimizeConfig struct {
	MinWorkers int           `yaml:"min_workers"`
	MaxWorkers int           `yaml:"max_workers"`
	Level      string        `yaml:"level"` // conservative | balanced | aggressive
	CacheTTL   time.Duration `yaml:"cache_ttl"`
}

// MetricsConfig holds the metrics endpoint configuration for watch mode.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the YAML file at path (if non-empty), then applies
// environment-variable overrides on top of defaults.
func Load(path string) (*Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Source: SourceConfig{
			Root:        "./receipts",
			AllowedExts: defaultExtensions(),
			MaxFileSize: 50 << 20,
		},
		Raster: RasterConfig{
			DPI:      300,
			MaxPages: 10,
			Workers:  4,
		},
		Extract: ExtractConfig{
			CallTimeout:   60 * time.Second,
			GeminiModel:   "gemini-2.5-flash",
			Tesseract:     "tesseract",
			TesseractLang: "jpn+eng",
		},
		Parse: ParseConfig{
			ConfidenceThreshold: 0.5,
		},
		Store: StoreConfig{
			DSN: "./scanledger.db",
		},
		Optimize: OptimizeConfig{
			MinWorkers: 1,
			MaxWorkers: 8,
			Level:      "balanced",
			CacheTTL:   10 * time.Minute,
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

func (c *Config) applyEnv() {
	c.Source.Root = getEnv("SCANLEDGER_SOURCE_ROOT", c.Source.Root)
	c.Source.MaxFileSize = getEnvAsInt64("SCANLEDGER_MAX_FILE_SIZE", c.Source.MaxFileSize)
	c.Raster.DPI = getEnvAsInt("SCANLEDGER_DPI", c.Raster.DPI)
	c.Raster.MaxPages = getEnvAsInt("SCANLEDGER_MAX_PAGES", c.Raster.MaxPages)
	c.Extract.CallTimeout = getEnvAsDuration("SCANLEDGER_CALL_TIMEOUT", c.Extract.CallTimeout)
	c.Extract.GeminiModel = getEnv("GEMINI_MODEL", c.Extract.GeminiModel)
	c.Extract.GeminiAPIKey = getEnv("GEMINI_API_KEY", c.Extract.GeminiAPIKey)
	c.Extract.Tesseract = getEnv("TESSERACT_BIN", c.Extract.Tesseract)
	c.Extract.TesseractLang = getEnv("TESSERACT_LANG", c.Extract.TesseractLang)
	c.Extract.TessdataDir = getEnv("TESSDATA_PREFIX", c.Extract.TessdataDir)
	c.Parse.ConfidenceThreshold = getEnvAsFloat("SCANLEDGER_CONFIDENCE_THRESHOLD", c.Parse.ConfidenceThreshold)
	c.Store.DSN = getEnv("SCANLEDGER_DB", c.Store.DSN)
	c.Optimize.MinWorkers = getEnvAsInt("SCANLEDGER_MIN_WORKERS", c.Optimize.MinWorkers)
	c.Optimize.MaxWorkers = getEnvAsInt("SCANLEDGER_MAX_WORKERS", c.Optimize.MaxWorkers)
	c.Optimize.Level = getEnv("SCANLEDGER_OPT_LEVEL", c.Optimize.Level)
	c.Metrics.Addr = getEnv("SCANLEDGER_METRICS_ADDR", c.Metrics.Addr)
}

// Validate checks the loaded configuration for values the pipeline
// cannot run with.
func (c *Config) Validate() error {
	if c.Source.Root == "" {
		return fmt.Errorf("source.root is required")
	}
	if c.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required")
	}
	if c.Raster.DPI <= 0 {
		return fmt.Errorf("raster.dpi must be positive, got %d", c.Raster.DPI)
	}
	if c.Raster.MaxPages <= 0 {
		return fmt.Errorf("raster.max_pages must be positive, got %d", c.Raster.MaxPages)
	}
	if c.Optimize.MinWorkers < 1 {
		return fmt.Errorf("optimize.min_workers must be at least 1, got %d", c.Optimize.MinWorkers)
	}
	if c.Optimize.MaxWorkers < c.Optimize.MinWorkers {
		return fmt.Errorf("optimize.max_workers %d below min_workers %d",
			c.Optimize.MaxWorkers, c.Optimize.MinWorkers)
	}
	if c.Parse.ConfidenceThreshold < 0 || c.Parse.ConfidenceThreshold > 1 {
		return fmt.Errorf("parse.confidence_threshold must be in [0,1], got %g",
			c.Parse.ConfidenceThreshold)
	}
	switch c.Optimize.Level {
	case "conservative", "balanced", "aggressive":
	default:
		return fmt.Errorf("optimize.level must be conservative, balanced, or aggressive, got %q",
			c.Optimize.Level)
	}
	return nil
}

func defaultExtensions() []string {
	exts := make([]string, 0, len(constants.AllowedExtensions))
	for ext := range constants.AllowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
