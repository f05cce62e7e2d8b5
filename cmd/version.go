// =============================================================================
// Sales Normalizer - Version Command
// =============================================================================
//
// COMMAND USAGE:
//   normalizer version
//
// OUTPUT:
//   Sales Normalizer 1.0.0 (abc1234, built 2024-01-01)
//   Go:      go1.24.0 linux/amd64
//   Vendors: castellan, linden, meridian, nordhavn
//
// =============================================================================

package cmd

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/sales-normalizer/internal/vendor"
)

// Build information, set with ldflags:
//
//	go build -ldflags "-X github.com/ginjaninja78/sales-normalizer/cmd.Version=1.0.0 \
//	  -X github.com/ginjaninja78/sales-normalizer/cmd.Commit=$(git rev-parse --short HEAD) \
//	  -X github.com/ginjaninja78/sales-normalizer/cmd.BuildDate=$(date +%F)"
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display the application version",
	Long:  `Display the application version, build information and the vendor layouts compiled in.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Sales Normalizer %s (%s, built %s)\n", Version, Commit, BuildDate)
		fmt.Printf("Go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		fmt.Printf("Vendors: %s\n", strings.Join(vendor.IDs(), ", "))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
