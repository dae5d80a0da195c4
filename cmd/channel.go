package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kayz/fable/internal/config"
	"github.com/kayz/fable/internal/persist"
)

var (
	channelPreset   string
	channelCharName string
	channelUserName string
	channelPrefill  string
)

var channelCmd = &cobra.Command{
	Use:   "channel",
	Short: "Bind channels to presets",
}

var channelSetCmd = &cobra.Command{
	Use:   "set <channel-id>",
	Short: "Create or update a channel binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if channelPreset == "" {
			return fmt.Errorf("--preset is required")
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		return store.UpsertChannel(persist.Channel{
			ID:       args[0],
			Preset:   channelPreset,
			CharName: channelCharName,
			UserName: channelUserName,
			Prefill:  channelPrefill,
		})
	},
}

var channelShowCmd = &cobra.Command{
	Use:   "show <channel-id>",
	Short: "Print a channel binding",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		ch, err := store.GetChannel(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("channel: %s\npreset: %s\nchar: %s\nuser: %s\nprefill: %q\n",
			ch.ID, ch.Preset, ch.CharName, ch.UserName, ch.Prefill)
		return nil
	},
}

func init() {
	channelSetCmd.Flags().StringVar(&channelPreset, "preset", "", "Preset name to bind")
	channelSetCmd.Flags().StringVar(&channelCharName, "char", "", "Character name for {{char}}")
	channelSetCmd.Flags().StringVar(&channelUserName, "user", "", "User name for {{user}}")
	channelSetCmd.Flags().StringVar(&channelPrefill, "prefill", "", "Assistant prefill override")
	channelCmd.AddCommand(channelSetCmd)
	channelCmd.AddCommand(channelShowCmd)
	rootCmd.AddCommand(channelCmd)
}
