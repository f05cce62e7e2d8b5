// =============================================================================
// Sales Normalizer - Process Command
// =============================================================================
//
// This file defines the 'process' command, which runs every vendor file in
// the input directory through the normalization pipeline.
//
// COMMAND USAGE:
//   normalizer process [flags]
//
// FLAGS:
//   --dry-run     : Normalize and write reports, but neither store nor archive
//   --file        : Process only this file
//   --vendor      : Process only files matched to this vendor
//   --reseller-id : Override the reseller id of every processed file
//   --month/--year: Sale period for every processed file (both or neither)
//
// PROCESSING PIPELINE:
//   1. Load configuration files
//   2. Discover input files in the input directory
//   3. Match each file to a vendor configuration
//   4. For each file (at most max_concurrency at once):
//      a. Load the sheet (.xlsx, .xlsm or .csv)
//      b. Resolve the header layout and walk the rows
//      c. Store the batch
//      d. Write the skip report and the records export
//      e. Archive the input
//   5. Print the results table and write the run summary
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-normalizer/internal/config"
	"github.com/ginjaninja78/sales-normalizer/internal/converter"
	"github.com/ginjaninja78/sales-normalizer/internal/normalize"
	"github.com/ginjaninja78/sales-normalizer/internal/report"
	"github.com/ginjaninja78/sales-normalizer/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

// dryRun normalizes without storing or archiving.
var dryRun bool

// filePath is the path to a specific file to process.
var filePath string

// vendorFilter limits processing to one vendor id.
var vendorFilter string

// resellerID overrides the vendor config's reseller id.
var resellerID string

// periodMonth and periodYear are the optional user-supplied sale period.
var periodMonth, periodYear int

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

// processCmd represents the 'process' command.
var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Normalize vendor sales files",
	Long: `The process command scans the input directory for vendor spreadsheets,
matches them to a vendor configuration, and normalizes each into canonical
sale records.

Files are processed concurrently up to max_concurrency. Unless
continue_on_error is false, a failing file does not stop the others.

On success:
  - The batch is written to the database (when database_url is set)
  - A skip report (.xlsx) and a records export (.csv) go to the output directory
  - The original file is moved to the input archive

On a rejected sheet:
  - Nothing is stored and the original file stays in the input directory`,

	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runProcess(ctx)
	},
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().BoolVar(
		&dryRun,
		"dry-run",
		false,
		"Normalize and write reports without storing or archiving",
	)

	processCmd.Flags().StringVar(
		&filePath,
		"file",
		"",
		"Path to a specific file to process",
	)

	processCmd.Flags().StringVar(
		&vendorFilter,
		"vendor",
		"",
		"Process only files for a specific vendor id",
	)

	processCmd.Flags().StringVar(
		&resellerID,
		"reseller-id",
		"",
		"Reseller id stamped on every record (default: from the vendor config)",
	)

	processCmd.Flags().IntVar(&periodMonth, "month", 0, "Sale month (1-12), used with --year")
	processCmd.Flags().IntVar(&periodYear, "year", 0, "Sale year, used with --month")
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

// runProcess orchestrates one processing run.
func runProcess(ctx context.Context) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD CONFIGURATION
	// =========================================================================

	fmt.Println("=== Sales Normalizer ===")
	fmt.Println("Loading configuration...")

	mainConfig, vendorConfigs, err := loadConfig()
	if err != nil {
		return err
	}

	period, err := periodFromFlags()
	if err != nil {
		return err
	}

	rates, err := newRates(mainConfig)
	if err != nil {
		return fmt.Errorf("invalid currency rates: %w", err)
	}
	for _, vcfg := range vendorConfigs {
		if problems := checkVendorConfig(vcfg, rates); len(problems) > 0 {
			return fmt.Errorf("vendor config %s: %v", vcfg.Source(), problems)
		}
	}

	fmt.Printf("Loaded %d vendor configuration(s)\n", len(vendorConfigs))

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	fm := utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir, mainConfig.InputArchiveDir)
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	var inputFiles []string
	if filePath != "" {
		inputFiles = []string{filePath}
	} else {
		inputFiles, err = fm.DiscoverInputFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}

	if len(inputFiles) == 0 {
		fmt.Println("No vendor files found in the input directory.")
		return nil
	}

	fmt.Printf("Found %d file(s) to process\n", len(inputFiles))

	// =========================================================================
	// STEP 3: CONNECT SINK AND BUILD ENGINE
	// =========================================================================

	// The database also serves catalog lookups, so it is opened on a dry run
	// too; only the sink is withheld.
	store, err := openStore(ctx, mainConfig)
	if err != nil {
		return err
	}
	var sink converter.Sink
	if store != nil {
		defer store.Close()
		if !dryRun {
			sink = store
		}
	}

	engine, err := newEngine(mainConfig, store)
	if err != nil {
		return err
	}

	// =========================================================================
	// STEP 4: PROCESS FILES CONCURRENTLY
	// =========================================================================

	fmt.Println("Processing files...")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	sem := make(chan struct{}, mainConfig.MaxConcurrency)
	results := make(chan converter.Result, len(inputFiles))

	for _, file := range inputFiles {
		vcfg := config.MatchVendorConfig(filepath.Base(file), vendorConfigs)
		if vcfg == nil {
			if vendorFilter != "" {
				continue
			}
			results <- converter.Result{
				FilePath:  file,
				Error:     fmt.Errorf("no matching vendor configuration found"),
				ErrorType: converter.ErrorTypeLoad,
			}
			continue
		}
		if vendorFilter != "" && vcfg.VendorID != vendorFilter {
			slog.Debug("skipping file for other vendor", "file", file, "vendor", vcfg.VendorID)
			continue
		}

		wg.Add(1)
		go func(path string, vcfg *config.VendorConfig) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results <- converter.Result{FilePath: path, VendorID: vcfg.VendorID, Error: ctx.Err(), ErrorType: converter.ErrorTypeNormalize}
				return
			}

			result := converter.New(path, vcfg, engine, converter.Options{
				ResellerID: resellerID,
				Period:     period,
				DryRun:     dryRun,
				Sink:       sink,
				Files:      fm,
				ExportXML:  mainConfig.ExportXML,
			}).Run(ctx)

			if !result.Success && !mainConfig.KeepGoing() {
				cancel()
			}
			results <- result
		}(file, vcfg)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	// =========================================================================
	// STEP 5: COLLECT RESULTS AND GENERATE SUMMARY
	// =========================================================================

	summary := utils.ProcessingSummary{StartTime: startTime}
	table := report.NewTable("File", "Vendor", "Records", "Skips", "Status")

	for result := range results {
		name := filepath.Base(result.FilePath)
		summary.TotalFiles++
		summary.TotalRows += result.Stats.RowsSeen
		summary.TotalSkips += result.Stats.Skips

		if result.Success {
			summary.SuccessfulFiles++
			summary.TotalRecords += result.Stats.RecordsEmitted
			summary.ProcessedFiles = append(summary.ProcessedFiles, utils.ProcessedFileInfo{
				InputFile:   name,
				Vendor:      result.VendorID,
				UploadID:    result.UploadID,
				ReportFile:  result.ReportFile,
				RecordsFile: result.RecordsFile,
				ArchivePath: result.ArchivePath,
				Rows:        result.Stats.RowsSeen,
				Records:     result.Stats.RecordsEmitted,
				Skips:       result.Stats.Skips,
				ProcessTime: result.Stats.ProcessingTime,
			})
			table.AddRow(name, result.VendorID,
				strconv.Itoa(result.Stats.RecordsEmitted), strconv.Itoa(result.Stats.Skips), "ok")
			continue
		}

		summary.FailedFiles++
		summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{
			InputFile:    name,
			ErrorMessage: result.Error.Error(),
			ErrorType:    result.ErrorType,
		})
		table.AddRow(name, result.VendorID, "-", strconv.Itoa(result.Stats.Skips), result.ErrorType+": "+result.Error.Error())
	}
	summary.EndTime = time.Now()

	fmt.Println()
	if err := table.Render(os.Stdout); err != nil {
		return err
	}

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:     %d\n", summary.TotalFiles)
	fmt.Printf("Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Printf("Errors:          %d\n", summary.FailedFiles)
	fmt.Printf("Records:         %d\n", summary.TotalRecords)
	fmt.Printf("Time elapsed:    %s\n", summary.EndTime.Sub(startTime).Round(time.Millisecond))
	if dryRun {
		fmt.Println("Dry run: nothing stored, no input archived.")
	}

	summaryPath, err := utils.WriteSummaryLog(summary, mainConfig.OutputDir)
	if err != nil {
		slog.Warn("failed to write run summary", "error", err)
	} else {
		fmt.Printf("Summary:         %s\n", summaryPath)
	}

	if summary.FailedFiles > 0 {
		return fmt.Errorf("%d file(s) failed", summary.FailedFiles)
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// periodFromFlags returns the --month/--year period, or nil when neither is set.
func periodFromFlags() (*normalize.Period, error) {
	if periodMonth == 0 && periodYear == 0 {
		return nil, nil
	}
	if periodMonth == 0 || periodYear == 0 {
		return nil, fmt.Errorf("--month and --year must be given together")
	}
	p := &normalize.Period{Year: periodYear, Month: periodMonth}
	if !p.Valid() {
		return nil, fmt.Errorf("invalid sale period %s", p)
	}
	return p, nil
}
