// =============================================================================
// Sales Normalizer - Vendors Command
// =============================================================================
//
// This file defines the 'vendors' command, which lists the registered vendor
// strategies and the layout each one expects.
//
// =============================================================================

package cmd

import (
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-normalizer/internal/report"
	"github.com/ginjaninja78/sales-normalizer/internal/vendor"
)

var vendorsCmd = &cobra.Command{
	Use:   "vendors",
	Short: "List the registered vendor layouts",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := report.NewTable("ID", "Name", "Pattern", "Header Rows", "Currency", "Stores")
		for _, p := range vendor.All() {
			prof := p.Profile()
			stores := "any"
			switch {
			case prof.Layout.StoreRow < 0:
				stores = prof.Layout.ImplicitStore
			case len(prof.Layout.KnownStores) > 0:
				stores = strings.Join(prof.Layout.KnownStores, ", ")
			}
			table.AddRow(prof.ID, prof.DisplayName, string(prof.Pattern),
				strconv.Itoa(prof.HeaderRows), prof.Currency, stores)
		}
		return table.Render(os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(vendorsCmd)
}
