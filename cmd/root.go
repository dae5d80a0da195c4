package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kayz/fable/internal/logger"
)

var (
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "fable",
	Short: "fable prompt assembly runtime",
	Long: `fable assembles the exact message sequence sent to an LLM endpoint
for a conversational agent channel: preset segments, keyword-activated
worldbook lore, macro expansion and regex rewrites, in four inspectable
stages.

Commands:
  fable build      Assemble a channel's prompt and print stages/payload
  fable preset     Import or validate preset files
  fable channel    Bind a channel to a preset
  fable macro      Read and write macro variables
  fable web        Run the debug inspection server`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info",
		"Log level: trace, debug, info, warn, error, fatal")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
