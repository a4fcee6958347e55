package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sujitmandava/chronicle/internal/cli"
)

var rootCmd = &cobra.Command{
	Use:   "chronicled",
	Short: "Chronicle incremental indexing and retrieval service",
	Long:  "chronicled serves the chronicle document indexing, retrieval, and prompting API",
}

func main() {
	rootCmd.AddCommand(cli.ServeCmd())

	// Default to serve when invoked without a subcommand
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
