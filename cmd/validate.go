// =============================================================================
// Sales Normalizer - Validate Command
// =============================================================================
//
// This file defines the 'validate' command, which checks the configuration
// without touching any input file.
//
// CHECKS PER VENDOR CONFIG:
//   - vendor_id names a registered strategy
//   - the effective currency has a rate
//   - the effective filename date pattern compiles with year/month groups
//   - every cleanup rule is well formed
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-normalizer/internal/catalog"
	"github.com/ginjaninja78/sales-normalizer/internal/config"
	"github.com/ginjaninja78/sales-normalizer/internal/normalize"
	"github.com/ginjaninja78/sales-normalizer/internal/report"
	"github.com/ginjaninja78/sales-normalizer/internal/vendor"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration files without processing",
	Long: `Validate loads the main configuration and every vendor configuration and
checks that each one can be used: the vendor strategy exists, its currency
can be converted, its filename date pattern compiles and its cleanup rules
are valid. The catalog workbook is loaded when one is configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate()
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate() error {
	mainConfig, vendorConfigs, err := loadConfig()
	if err != nil {
		return err
	}

	rates, err := newRates(mainConfig)
	if err != nil {
		return fmt.Errorf("invalid currency rates: %w", err)
	}

	table := report.NewTable("Config", "Vendor", "Currency", "Status")
	failed := 0
	for _, vcfg := range vendorConfigs {
		problems := checkVendorConfig(vcfg, rates)
		status := "ok"
		if len(problems) > 0 {
			failed++
			status = strings.Join(problems, "; ")
		}
		table.AddRow(filepath.Base(vcfg.Source()), vcfg.VendorID, effectiveCurrency(vcfg), status)
	}
	if err := table.Render(os.Stdout); err != nil {
		return err
	}

	if mainConfig.CatalogFile != "" {
		cat, conflicts, err := catalog.Load(mainConfig.CatalogFile)
		if err != nil {
			failed++
			fmt.Printf("\nCatalog: %v\n", err)
		} else {
			fmt.Printf("\nCatalog: %d products, %d duplicate names\n", cat.Len(), len(conflicts))
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d configuration problem(s) found", failed)
	}
	fmt.Printf("\n%d vendor configuration(s) valid\n", len(vendorConfigs))
	return nil
}

// checkVendorConfig returns the problems that keep vcfg from being used.
func checkVendorConfig(vcfg *config.VendorConfig, rates normalize.RateTable) []string {
	var problems []string

	proc, err := vendor.Get(vcfg.VendorID)
	if err != nil {
		return []string{fmt.Sprintf("%v (registered: %s)", err, strings.Join(vendor.IDs(), ", "))}
	}
	profile := proc.Profile()

	if len(vcfg.FileMatchingPatterns) == 0 {
		problems = append(problems, "no file_matching_patterns")
	}
	for _, p := range vcfg.FileMatchingPatterns {
		if _, err := filepath.Match(p, ""); err != nil {
			problems = append(problems, fmt.Sprintf("bad pattern %q", p))
		}
	}

	currency := vcfg.Currency
	if currency == "" {
		currency = profile.Currency
	}
	if _, err := rates.Rate(currency); err != nil {
		problems = append(problems, err.Error())
	}

	pattern := vcfg.FilenameDatePattern
	if pattern == "" {
		pattern = profile.FilenameDatePattern
	}
	if pattern != "" {
		if _, err := normalize.CompileFilenamePattern(pattern); err != nil {
			problems = append(problems, err.Error())
		}
	}

	if _, err := normalize.NewCleaner(vcfg.CleanupRules); err != nil {
		problems = append(problems, err.Error())
	}
	return problems
}

func effectiveCurrency(vcfg *config.VendorConfig) string {
	if vcfg.Currency != "" {
		return vcfg.Currency
	}
	if proc, err := vendor.Get(vcfg.VendorID); err == nil {
		return proc.Profile().Currency
	}
	return "?"
}
