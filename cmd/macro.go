package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kayz/fable/internal/config"
	"github.com/kayz/fable/internal/prompt"
)

var (
	macroScope   string
	macroChannel string
)

var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "Read and write macro variables",
}

// macroScopeArgs resolves the --scope/--channel flags into store keys.
func macroScopeArgs() (scope, channelID string, err error) {
	s, ok := prompt.ParseMacroScope(macroScope)
	if !ok {
		return "", "", fmt.Errorf("invalid scope %q: must be global or channel", macroScope)
	}
	if s == prompt.ScopeChannel && macroChannel == "" {
		return "", "", fmt.Errorf("--channel is required for channel scope")
	}
	if s == prompt.ScopeGlobal {
		macroChannel = ""
	}
	return string(s), macroChannel, nil
}

var macroGetCmd = &cobra.Command{
	Use:   "get <name>",
	Short: "Print one macro value",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, channelID, err := macroScopeArgs()
		if err != nil {
			return err
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

		value, ok, err := store.GetMacro(scope, channelID, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("macro %s not set in %s scope", args[0], scope)
		}
		fmt.Println(value)
		return nil
	},
}

var macroSetCmd = &cobra.Command{
	Use:   "set <name> <value>",
	Short: "Create or replace one macro",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, channelID, err := macroScopeArgs()
		if err != nil {
			return err
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

		return store.SetMacro(scope, channelID, args[0], args[1])
	},
}

var macroListCmd = &cobra.Command{
	Use:   "list",
	Short: "List macros in a scope",
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, channelID, err := macroScopeArgs()
		if err != nil {
			return err
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

		macros, err := store.ListMacros(scope, channelID)
		if err != nil {
			return err
		}
		for _, m := range macros {
			fmt.Printf("%s=%s\n", m.Name, m.Value)
		}
		return nil
	},
}

func init() {
	macroCmd.PersistentFlags().StringVar(&macroScope, "scope", "global", "Macro scope: global or channel")
	macroCmd.PersistentFlags().StringVar(&macroChannel, "channel", "", "Channel ID for channel scope")
	macroCmd.AddCommand(macroGetCmd)
	macroCmd.AddCommand(macroSetCmd)
	macroCmd.AddCommand(macroListCmd)
	rootCmd.AddCommand(macroCmd)
}
