package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/kayz/fable/internal/config"
	"github.com/kayz/fable/internal/preset"
)

var (
	presetImportName string
)

var presetCmd = &cobra.Command{
	Use:   "preset",
	Short: "Import or validate preset files",
}

var presetImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Normalize an external preset file into the presets directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read preset: %w", err)
		}
		res, err := preset.Normalize(data)
		if err != nil {
			return err
		}

		name := presetImportName
		if name == "" {
			name = res.Preset.Name
		}
		if name == "" {
			base := filepath.Base(args[0])
			name = base[:len(base)-len(filepath.Ext(base))]
		}
		res.Preset.Name = name

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		dir := cfg.Pipeline.PresetsDir
		if dir == "" {
			dir = "presets"
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create presets dir: %w", err)
		}

		out, err := preset.Encode(res)
		if err != nil {
			return fmt.Errorf("encode preset: %w", err)
		}
		path := filepath.Join(dir, name+".json")
		if err := os.WriteFile(path, out, 0644); err != nil {
			return fmt.Errorf("write preset: %w", err)
		}

		fmt.Printf("Imported preset %q: %d segments, %d worldbook entries, %d scripts -> %s\n",
			name, len(res.Preset.Segments), len(res.Preset.Worldbook), len(res.Preset.Scripts), path)
		return nil
	},
}

var presetValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Check that a preset file normalizes cleanly",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read preset: %w", err)
		}
		res, err := preset.Normalize(data)
		if err != nil {
			return err
		}
		fmt.Printf("OK: %d segments, %d worldbook entries, %d scripts\n",
			len(res.Preset.Segments), len(res.Preset.Worldbook), len(res.Preset.Scripts))
		return nil
	},
}

func init() {
	presetImportCmd.Flags().StringVar(&presetImportName, "name", "", "Preset name (default: name from file)")
	presetCmd.AddCommand(presetImportCmd)
	presetCmd.AddCommand(presetValidateCmd)
	rootCmd.AddCommand(presetCmd)
}
