package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codegraph",
	Short: "Codegraph - versioned code graph storage with an agentic query layer",
	Long: `Codegraph stores a versioned property graph of a codebase alongside
an incremental vector index, and exposes both through a fixed catalogue
of read-only tools that an LLM-driven orchestrator can call to answer
structural and semantic questions about the code.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(toolCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(configCmd)
}
