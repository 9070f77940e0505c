package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Fasthei/charmine/config"
	"github.com/Fasthei/charmine/extract"
)

var (
	extractNames []string
	extractJSON  bool
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Run deterministic relationship extraction over a text",
	Long: `Reads text from the given file (or stdin when omitted) and emits the
relationships found between the named entities by windowed co-occurrence
and keyword classification.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(extractNames) < 2 {
			return fmt.Errorf("at least two --name values are required")
		}

		var text []byte
		var err error
		if len(args) == 1 {
			text, err = os.ReadFile(args[0])
		} else {
			text, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		extractor := extract.NewExtractor(func(o *extract.Options) {
			o.CoOccurWindow = cfg.CoOccurWindow
			o.KeywordWindow = cfg.KeywordWindow
		})
		rels := extractor.Extract(extractNames, string(text))

		if extractJSON {
			return json.NewEncoder(cmd.OutOrStdout()).Encode(rels)
		}
		if len(rels) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "no relationships found")
			return nil
		}
		for _, r := range rels {
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s  [%s %.1f]  %s\n", r.Source, r.Target, r.Type, r.Confidence, r.Description)
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringArrayVar(&extractNames, "name", nil, "entity name to pair (repeat at least twice)")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(extractCmd)
}
