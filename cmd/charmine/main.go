// Command charmine runs the relationship-discovery engine: an HTTP server
// exposing the conversation pipeline, plus utility subcommands for
// one-shot extraction and version info.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "charmine",
	Short: "Relationship discovery engine",
	Long: `charmine discovers relationships between named entities: a
deterministic co-occurrence extractor for one-shot text analysis, and a
multi-role model conversation pipeline for deeper discovery over stored
entities.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./charmine.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
