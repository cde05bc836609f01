package handlers

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"watchtrail/internal/logger"
	"watchtrail/internal/parser"
)

// NewParseCmd creates the parse command, which turns a Takeout export into records JSON
func NewParseCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "parse <watch-history.html>",
		Short: "Extract watch records from a Google Takeout export",
		Long: `Parse a Google Takeout watch-history.html file into a JSON array of
records with service, video title and URL, channel name and URL, and the
timestamp as displayed in the export.

Examples:
  # Print records to stdout
  watchtrail parse watch-history.html

  # Save records for a later cluster run
  watchtrail parse watch-history.html -o data/records.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")
	return cmd
}

func runParse(cmd *cobra.Command, input, output string) error {
	records, err := parser.NewParser().ParseTakeoutFile(input)
	if err != nil {
		return err
	}
	logger.Info("Parsed watch history", "file", input, "records", len(records))

	if output == "" {
		return parser.WriteRecords(cmd.OutOrStdout(), records)
	}

	if err := os.MkdirAll(filepath.Dir(output), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", output, err)
	}
	defer f.Close()

	if err := parser.WriteRecords(f, records); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved %d records to %s\n", len(records), output)
	return nil
}
