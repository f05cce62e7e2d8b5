// =============================================================================
// Sales Normalizer - Main Entry Point
// =============================================================================
//
// This is the main entry point for the Sales Normalizer CLI application.
// It initializes the Cobra CLI framework and delegates command execution to
// the cmd package.
//
// USAGE:
//   normalizer process       - Normalize all vendor files in the input directory
//   normalizer validate      - Validate configuration files without processing
//   normalizer vendors       - List the registered vendor layouts
//   normalizer serve         - Accept vendor files over HTTP
//   normalizer version       - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Core business logic (not for external import)
//   - pkg/           : Shared file utilities
//   - configs/       : Vendor-specific YAML configurations
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/sales-normalizer/cmd"
)

// main is the entry point of the application.
func main() {
	cmd.Execute()
}
