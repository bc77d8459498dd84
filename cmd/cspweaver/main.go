// Command cspweaver renders Content-Security-Policy header values from a
// YAML policy configuration.
package main

import (
	"fmt"
	"os"
)

// Build info set at build time via -ldflags.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
