// =============================================================================
// Sales Normalizer - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration files.
// It handles both the main application configuration and vendor-specific
// configurations.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): Global application settings
//   2. Vendor Configs (configs/*.yaml): Per-vendor file matching and overrides
//
// ARCHITECTURE:
//   A vendor config never describes header layout. Layout lives with the
//   vendor strategy in code; the YAML only binds file names to a strategy and
//   overrides currency, file-name date pattern and cell cleanup.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is the directory scanned for vendor spreadsheets.
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// OutputDir receives skip reports, record exports and run logs.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// InputArchiveDir is where inputs are moved after a successful batch.
	// Default: "./input_archive"
	InputArchiveDir string `yaml:"input_archive_dir"`

	// ConfigsDir is the directory containing vendor configurations.
	// Default: "./configs"
	ConfigsDir string `yaml:"configs_dir"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat selects the slog handler: "text" or "json".
	// Default: "text"
	LogFormat string `yaml:"log_format"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency is the maximum number of files processed at once.
	// Default: 4
	MaxConcurrency int `yaml:"max_concurrency"`

	// ContinueOnError keeps processing remaining files after a failure.
	// Default: true
	ContinueOnError *bool `yaml:"continue_on_error"`

	// =========================================================================
	// CURRENCY SETTINGS
	// =========================================================================

	// CanonicalCurrency is the currency every SalesAmount is expressed in.
	// Default: "EUR"
	CanonicalCurrency string `yaml:"canonical_currency"`

	// CurrencyRates maps an ISO code to the multiplier into the canonical
	// currency. Example: GBP: 1.17
	CurrencyRates map[string]float64 `yaml:"currency_rates"`

	// =========================================================================
	// CATALOG & STORAGE
	// =========================================================================

	// CatalogFile is an optional .xlsx with EAN and Name columns.
	CatalogFile string `yaml:"catalog_file"`

	// DatabaseURL is the PostgreSQL connection string for the storage sink.
	// DATABASE_URL in the environment takes precedence.
	DatabaseURL string `yaml:"database_url"`

	// ExportXML additionally writes each batch as an XML document next to
	// the records export.
	ExportXML bool `yaml:"export_xml"`

	// Server configures the HTTP upload endpoint.
	Server ServerConfig `yaml:"server"`
}

// ServerConfig holds settings for the serve command.
type ServerConfig struct {
	// Addr is the listen address. Default: ":8080"
	Addr string `yaml:"addr"`

	// MaxUploadMB caps the multipart body. Default: 32
	MaxUploadMB int64 `yaml:"max_upload_mb"`
}

// KeepGoing reports whether a failed file should stop the run.
func (c *MainConfig) KeepGoing() bool {
	return c.ContinueOnError == nil || *c.ContinueOnError
}

// =============================================================================
// VENDOR CONFIGURATION STRUCTURE
// =============================================================================

// VendorConfig binds a family of input files to a registered vendor strategy.
type VendorConfig struct {
	// VendorID names the registered strategy, e.g. "meridian".
	VendorID string `yaml:"vendor_id"`

	// ResellerID is stamped on every record of the vendor's files.
	// Default: the vendor id
	ResellerID string `yaml:"reseller_id,omitempty"`

	// FileMatchingPatterns is a list of glob patterns matched against the
	// file's base name. Examples: "Meridian*.xlsx", "NH_*.csv"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// Currency overrides the strategy's declared currency.
	Currency string `yaml:"currency,omitempty"`

	// FilenameDatePattern overrides the strategy's file-name period regex.
	// It must contain the named groups "year" and "month".
	FilenameDatePattern string `yaml:"filename_date_pattern,omitempty"`

	// SheetName selects a workbook sheet. Default: the first sheet.
	SheetName string `yaml:"sheet_name,omitempty"`

	// CSVSettings applies when the input is a .csv file.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// CleanupRules are applied to raw product cells before normalization.
	CleanupRules []CleanupRule `yaml:"cleanup_rules"`

	// source is the file the config was loaded from.
	source string
}

// Source returns the path the config was loaded from.
func (v *VendorConfig) Source() string { return v.source }

// Matches reports whether fileName matches any of the configured globs.
func (v *VendorConfig) Matches(fileName string) bool {
	base := filepath.Base(fileName)
	for _, pattern := range v.FileMatchingPatterns {
		matched, err := filepath.Match(pattern, base)
		if err != nil {
			// Invalid pattern, skip it.
			continue
		}
		if matched {
			return true
		}
	}
	return false
}

// =============================================================================
// CSV SETTINGS STRUCTURE
// =============================================================================

// CSVSettings contains settings for parsing CSV exports.
type CSVSettings struct {
	// Delimiter separates fields. Common values: ",", ";", "\t"
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding of the file. Supported: "UTF-8", "Windows-1252", "ISO-8859-1"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// =============================================================================
// CLEANUP RULE STRUCTURE
// =============================================================================

// Raw product fields a cleanup rule can target.
const (
	FieldEAN      = "ean"
	FieldName     = "name"
	FieldQuantity = "quantity"
	FieldAmount   = "amount"
)

// CleanupRule is an ordered list of actions for one raw field.
type CleanupRule struct {
	// Field is one of "ean", "name", "quantity", "amount".
	Field string `yaml:"field"`

	// Actions are applied in order.
	Actions []CleanupAction `yaml:"actions"`
}

// CleanupAction defines a single cell cleanup step.
type CleanupAction struct {
	// Type is one of:
	//   - "trim"
	//   - "replace"              : Find -> Value
	//   - "regex_replace"        : Find (regexp) -> Value
	//   - "extract_digits"
	//   - "remove_leading_zeros"
	//   - "normalize_whitespace"
	//   - "lookup"               : LookupTable, unmatched values unchanged
	//   - "if_empty_use_default" : Value
	Type string `yaml:"type"`

	Value string `yaml:"value"`

	Find string `yaml:"find,omitempty"`

	LookupTable map[string]string `yaml:"lookup_table,omitempty"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct.
//   - An error if the file cannot be read, parsed or validated.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg, err := ParseMainConfig(data)
	if err != nil {
		return nil, err
	}

	// Create any missing working directories.
	for _, dir := range []string{cfg.InputDir, cfg.OutputDir, cfg.InputArchiveDir, cfg.ConfigsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return cfg, nil
}

// ParseMainConfig parses, defaults and validates a main config document.
func ParseMainConfig(data []byte) (*MainConfig, error) {
	var cfg MainConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyMainConfigDefaults(&cfg)

	if err := validateMainConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// applyMainConfigDefaults sets default values for any unset configuration options.
func applyMainConfigDefaults(cfg *MainConfig) {
	if cfg.InputDir == "" {
		cfg.InputDir = "./input"
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = "./output"
	}
	if cfg.InputArchiveDir == "" {
		cfg.InputArchiveDir = "./input_archive"
	}
	if cfg.ConfigsDir == "" {
		cfg.ConfigsDir = "./configs"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 4
	}
	if cfg.CanonicalCurrency == "" {
		cfg.CanonicalCurrency = "EUR"
	}
	cfg.CanonicalCurrency = strings.ToUpper(cfg.CanonicalCurrency)
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.MaxUploadMB <= 0 {
		cfg.Server.MaxUploadMB = 32
	}
	if env := os.Getenv("DATABASE_URL"); env != "" {
		cfg.DatabaseURL = env
	}
}

// validateMainConfig validates the main configuration.
func validateMainConfig(cfg *MainConfig) error {
	switch cfg.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", cfg.LogFormat)
	}
	for code, rate := range cfg.CurrencyRates {
		if rate <= 0 {
			return fmt.Errorf("currency_rates[%s] must be positive, got %v", code, rate)
		}
	}
	return nil
}

// LoadVendorConfigs loads all vendor configurations from a directory.
//
// PARAMETERS:
//   - configsDir: The directory containing vendor configuration files.
//
// RETURNS:
//   - The configurations ordered by file name, so matching is deterministic.
//   - An error if the directory cannot be read or any file cannot be parsed.
func LoadVendorConfigs(configsDir string) ([]*VendorConfig, error) {
	files, err := filepath.Glob(filepath.Join(configsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}

	// Also check for .yml extension.
	ymlFiles, err := filepath.Glob(filepath.Join(configsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}
	files = append(files, ymlFiles...)
	sort.Strings(files)

	configs := make([]*VendorConfig, 0, len(files))
	for _, file := range files {
		cfg, err := loadVendorConfig(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}
		configs = append(configs, cfg)
	}

	return configs, nil
}

// loadVendorConfig loads a single vendor configuration file.
func loadVendorConfig(filePath string) (*VendorConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	cfg, err := ParseVendorConfig(data)
	if err != nil {
		return nil, err
	}
	cfg.source = filePath
	return cfg, nil
}

// ParseVendorConfig parses and defaults a vendor config document.
func ParseVendorConfig(data []byte) (*VendorConfig, error) {
	var cfg VendorConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}
	if strings.TrimSpace(cfg.VendorID) == "" {
		return nil, fmt.Errorf("vendor_id is required")
	}

	applyVendorConfigDefaults(&cfg)

	for _, rule := range cfg.CleanupRules {
		switch rule.Field {
		case FieldEAN, FieldName, FieldQuantity, FieldAmount:
		default:
			return nil, fmt.Errorf("cleanup rule targets unknown field %q", rule.Field)
		}
	}
	return &cfg, nil
}

// applyVendorConfigDefaults sets default values for vendor configuration.
func applyVendorConfigDefaults(cfg *VendorConfig) {
	cfg.VendorID = strings.ToLower(strings.TrimSpace(cfg.VendorID))
	cfg.Currency = strings.ToUpper(strings.TrimSpace(cfg.Currency))
	cfg.ResellerID = strings.TrimSpace(cfg.ResellerID)
	if cfg.ResellerID == "" {
		cfg.ResellerID = cfg.VendorID
	}

	if cfg.CSVSettings.Delimiter == "" {
		cfg.CSVSettings.Delimiter = ","
	}
	if cfg.CSVSettings.Encoding == "" {
		cfg.CSVSettings.Encoding = "UTF-8"
	}
}

// MatchVendorConfig returns the first config whose patterns match fileName,
// or nil.
func MatchVendorConfig(fileName string, configs []*VendorConfig) *VendorConfig {
	for _, cfg := range configs {
		if cfg.Matches(fileName) {
			return cfg
		}
	}
	return nil
}
