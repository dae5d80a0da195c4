package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kayz/fable/internal/config"
	"github.com/kayz/fable/internal/persist"
	"github.com/kayz/fable/internal/prompt"
	"github.com/kayz/fable/internal/service"
)

var (
	buildChannelID        string
	buildFormat           string
	buildViewpoint        string
	buildIncludeSummary   bool
	buildUnsummarizedOnly bool
	buildStagesOnly       bool
	buildOutputPath       string
	buildRecord           bool
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Assemble a channel's prompt through the four pipeline stages",
	RunE: func(cmd *cobra.Command, args []string) error {
		if buildChannelID == "" {
			return fmt.Errorf("--channel is required")
		}

		pipeline, store, err := openPipeline()
		if err != nil {
			return err
		}
		defer store.Close()

		out, err := pipeline.Build(service.BuildOptions{
			ChannelID:        buildChannelID,
			Format:           buildFormat,
			Viewpoint:        buildViewpoint,
			IncludeSummary:   buildIncludeSummary,
			UnsummarizedOnly: buildUnsummarizedOnly,
			Record:           buildRecord,
		})
		if err != nil {
			if out == nil {
				return err
			}
			// Stages survive a render failure; print them before failing.
			fmt.Fprintf(os.Stderr, "render failed: %v\n", err)
			buildStagesOnly = true
		}

		var payload any = out
		if buildStagesOnly {
			payload = out.Stages
		}
		data, merr := json.MarshalIndent(payload, "", "  ")
		if merr != nil {
			return fmt.Errorf("marshal output: %w", merr)
		}

		if buildOutputPath == "" {
			fmt.Println(string(data))
		} else if werr := os.WriteFile(buildOutputPath, data, 0644); werr != nil {
			return fmt.Errorf("write output: %w", werr)
		}
		return err
	},
}

// openPipeline loads config and opens the store-backed pipeline.
func openPipeline() (*service.Pipeline, *persist.Store, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return service.NewPipeline(cfg.Pipeline, store, &prompt.Activator{}), store, nil
}

func openStore(cfg *config.Config) (*persist.Store, error) {
	path := cfg.Pipeline.SQLitePath
	if path == "" {
		path = ".fable.db"
	}
	store, err := persist.NewStore(path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

func init() {
	buildCmd.Flags().StringVar(&buildChannelID, "channel", "", "Channel ID to assemble for")
	buildCmd.Flags().StringVar(&buildFormat, "format", "", "Output format: openai, anthropic, gemini, tagged, text")
	buildCmd.Flags().StringVar(&buildViewpoint, "view", "", "Viewpoint: model or user")
	buildCmd.Flags().BoolVar(&buildIncludeSummary, "include-summary", false, "Insert summary blocks at the summary marker")
	buildCmd.Flags().BoolVar(&buildUnsummarizedOnly, "unsummarized-only", false, "Exclude history already folded into summaries")
	buildCmd.Flags().BoolVar(&buildStagesOnly, "stages", false, "Print only the four stage snapshots")
	buildCmd.Flags().StringVar(&buildOutputPath, "output", "", "Write output to file (default: stdout)")
	buildCmd.Flags().BoolVar(&buildRecord, "record", false, "Write an audit record for this run")
	rootCmd.AddCommand(buildCmd)
}
