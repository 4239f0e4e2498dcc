// Command kborchestrator runs the knowledge base orchestration service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Version is set via ldflags at build time.
	Version = "dev"

	configPath string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "kborchestrator",
	Short:   "Multi-tenant knowledge base orchestration service",
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "directory containing kborchestrator.yaml (optional)")
	rootCmd.AddCommand(serveCmd)
}
