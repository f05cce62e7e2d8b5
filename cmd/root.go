// =============================================================================
// Sales Normalizer - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI and the setup shared
// by its subcommands.
//
// COBRA CLI STRUCTURE:
//   rootCmd (normalizer)
//   ├── processCmd  (normalizer process)
//   ├── validateCmd (normalizer validate)
//   ├── vendorsCmd  (normalizer vendors)
//   ├── serveCmd    (normalizer serve)
//   └── versionCmd  (normalizer version)
//
// CONFIGURATION:
//   1. .env is loaded when present (DATABASE_URL and friends)
//   2. The main config is read from --config
//   3. Logging is set up from the main config (--verbose forces debug)
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-normalizer/internal/catalog"
	"github.com/ginjaninja78/sales-normalizer/internal/config"
	"github.com/ginjaninja78/sales-normalizer/internal/converter"
	"github.com/ginjaninja78/sales-normalizer/internal/logging"
	"github.com/ginjaninja78/sales-normalizer/internal/normalize"
	"github.com/ginjaninja78/sales-normalizer/internal/storage"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "normalizer",
	Short: "Sales Normalizer - Turn reseller sales spreadsheets into canonical sale records",
	Long: `Sales Normalizer reads the monthly sales spreadsheets resellers send in
their own layouts and turns them into one canonical sale record per product,
store and month.

Key Features:
  - One strategy per vendor layout (single-row and paired-row sheets)
  - Multi-row, merged-cell header resolution
  - Amounts converted into one canonical currency
  - Itemized skip report for every row that produced no record
  - PostgreSQL storage sink and HTTP upload endpoint

Example Usage:
  normalizer process                    # Process all files in the input directory
  normalizer process --dry-run          # Normalize and report without storing
  normalizer validate                   # Validate configuration without processing
  normalizer serve                      # Accept uploads over HTTP`,

	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// A missing .env is normal; the environment is used as-is.
		_ = godotenv.Load()
	},

	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the main configuration file",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// =============================================================================
// SHARED SETUP
// =============================================================================

// loadConfig loads the main and vendor configurations and sets up logging.
func loadConfig() (*config.MainConfig, []*config.VendorConfig, error) {
	mainConfig, err := config.LoadMainConfig(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load main config: %w", err)
	}

	level := mainConfig.LogLevel
	if verbose {
		level = "debug"
	}
	logging.Setup(level, mainConfig.LogFormat)

	vendorConfigs, err := config.LoadVendorConfigs(mainConfig.ConfigsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load vendor configs: %w", err)
	}

	slog.Debug("configuration loaded",
		"config", cfgFile,
		"vendor_configs", len(vendorConfigs),
		"canonical_currency", mainConfig.CanonicalCurrency,
	)
	return mainConfig, vendorConfigs, nil
}

// openStore connects the storage sink. It returns nil when no database is
// configured.
func openStore(ctx context.Context, mainConfig *config.MainConfig) (*storage.Store, error) {
	if mainConfig.DatabaseURL == "" {
		return nil, nil
	}
	store, err := storage.Open(ctx, mainConfig.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, err
	}
	slog.Info("connected to database")
	return store, nil
}

// newRates builds the currency table from the main config.
func newRates(mainConfig *config.MainConfig) (*normalize.StaticRates, error) {
	return normalize.NewStaticRates(mainConfig.CanonicalCurrency, mainConfig.CurrencyRates)
}

// newEngine builds the Engine. The catalog workbook wins over the database
// products table; with neither, every invalid EAN is a lookup miss.
func newEngine(mainConfig *config.MainConfig, store *storage.Store) (*converter.Engine, error) {
	rates, err := newRates(mainConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid currency rates: %w", err)
	}

	var lookup normalize.CatalogLookup
	switch {
	case mainConfig.CatalogFile != "":
		cat, conflicts, err := catalog.Load(mainConfig.CatalogFile)
		if err != nil {
			return nil, err
		}
		for _, c := range conflicts {
			slog.Warn("duplicate catalog name, keeping first EAN",
				"name", c.Name, "kept", c.Kept, "ignored", c.Ignored, "row", c.Row)
		}
		slog.Info("catalog loaded", "file", mainConfig.CatalogFile, "products", cat.Len())
		lookup = cat
	case store != nil:
		lookup = store.Catalog()
	}

	return converter.NewEngine(rates, lookup), nil
}
