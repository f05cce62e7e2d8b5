package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseMainConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	cfg, err := ParseMainConfig([]byte("currency_rates:\n  GBP: 1.17\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.InputDir != "./input" || cfg.OutputDir != "./output" || cfg.ConfigsDir != "./configs" {
		t.Errorf("dirs = %q %q %q", cfg.InputDir, cfg.OutputDir, cfg.ConfigsDir)
	}
	if cfg.CanonicalCurrency != "EUR" {
		t.Errorf("canonical = %q", cfg.CanonicalCurrency)
	}
	if cfg.MaxConcurrency != 4 || cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("processing defaults = %d %q %q", cfg.MaxConcurrency, cfg.LogLevel, cfg.LogFormat)
	}
	if cfg.Server.Addr != ":8080" || cfg.Server.MaxUploadMB != 32 {
		t.Errorf("server = %+v", cfg.Server)
	}
	if !cfg.KeepGoing() {
		t.Error("continue_on_error should default to true")
	}
	if cfg.CurrencyRates["GBP"] != 1.17 {
		t.Errorf("rates = %v", cfg.CurrencyRates)
	}
}

func TestParseMainConfigEnvOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env/db")

	cfg, err := ParseMainConfig([]byte("database_url: postgres://file/db\ncontinue_on_error: false\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DatabaseURL != "postgres://env/db" {
		t.Errorf("database_url = %q", cfg.DatabaseURL)
	}
	if cfg.KeepGoing() {
		t.Error("explicit continue_on_error: false ignored")
	}
}

func TestParseMainConfigRejects(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	tests := map[string]string{
		"zero rate":     "currency_rates:\n  SEK: 0\n",
		"negative rate": "currency_rates:\n  SEK: -0.1\n",
		"log format":    "log_format: xml\n",
		"bad yaml":      "input_dir: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseMainConfig([]byte(doc)); err == nil {
				t.Errorf("accepted %q", doc)
			}
		})
	}
}

func TestParseVendorConfig(t *testing.T) {
	doc := `
vendor_id: " Meridian "
file_matching_patterns: ["Meridian*.xlsx"]
currency: gbp
cleanup_rules:
  - field: ean
    actions:
      - type: extract_digits
`
	cfg, err := ParseVendorConfig([]byte(doc))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.VendorID != "meridian" || cfg.ResellerID != "meridian" {
		t.Errorf("ids = %q %q", cfg.VendorID, cfg.ResellerID)
	}
	if cfg.Currency != "GBP" {
		t.Errorf("currency = %q", cfg.Currency)
	}
	if cfg.CSVSettings.Delimiter != "," || cfg.CSVSettings.Encoding != "UTF-8" {
		t.Errorf("csv defaults = %+v", cfg.CSVSettings)
	}
	if len(cfg.CleanupRules) != 1 || cfg.CleanupRules[0].Actions[0].Type != "extract_digits" {
		t.Errorf("cleanup = %+v", cfg.CleanupRules)
	}

	cfg, err = ParseVendorConfig([]byte("vendor_id: linden\nreseller_id: r-42\n"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ResellerID != "r-42" {
		t.Errorf("reseller = %q", cfg.ResellerID)
	}
}

func TestParseVendorConfigRejects(t *testing.T) {
	for name, doc := range map[string]string{
		"no vendor":     "file_matching_patterns: ['*.csv']\n",
		"unknown field": "vendor_id: linden\ncleanup_rules:\n  - field: price\n",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseVendorConfig([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadVendorConfigsAndMatch(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("b_nordhavn.yml", "vendor_id: nordhavn\nfile_matching_patterns: ['NH_*.csv']\n")
	write("a_meridian.yaml", "vendor_id: meridian\nfile_matching_patterns: ['Meridian*.xlsx']\n")
	write("notes.txt", "ignored")

	configs, err := LoadVendorConfigs(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(configs) != 2 || configs[0].VendorID != "meridian" || configs[1].VendorID != "nordhavn" {
		t.Fatalf("configs = %+v", configs)
	}
	if configs[0].Source() != filepath.Join(dir, "a_meridian.yaml") {
		t.Errorf("source = %q", configs[0].Source())
	}

	if got := MatchVendorConfig("/in/NH_2024-03.csv", configs); got == nil || got.VendorID != "nordhavn" {
		t.Errorf("match = %+v", got)
	}
	if got := MatchVendorConfig("unknown.xlsx", configs); got != nil {
		t.Errorf("unexpected match %+v", got)
	}
}
