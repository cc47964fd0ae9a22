package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sketchd/internal/config"
	"sketchd/internal/schemavalidation"
)

// NewConfigCmd creates the config command group.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			as, err := cmd.Flags().GetString("as")
			if err != nil {
				return err
			}
			loader, cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			data, err := config.Encode(cfg, "."+as)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "# loaded from %s\n", loader.Path())
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().String("as", "toml", "Output encoding: toml, json or yaml")
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Init writes the default configuration. The encoding follows the file
extension (.toml, .json, .yaml).

Examples:
  sketchctl config init
  sketchctl config init -o ./sketchd.yaml -f`,
		Args: cobra.NoArgs,
		RunE: runConfigInitCmd,
	}
	cmd.Flags().StringP("output", "o", "", "Output path (default: user config directory)")
	cmd.Flags().Bool("force", false, "Overwrite an existing file")
	return cmd
}

func runConfigInitCmd(cmd *cobra.Command, _ []string) error {
	path, err := cmd.Flags().GetString("output")
	if err != nil {
		return err
	}
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}
	if path == "" {
		path = config.ConfigPath()
	}

	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
		}
	}

	if err := config.SaveConfig(config.DefaultConfig(), path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}

// NewSchemaCmd creates the schema command.
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [name]",
		Short: "List or print the JSON Schemas inputs are validated against",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if len(args) == 0 {
				names, err := schemavalidation.Names()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(out, n)
				}
				return nil
			}

			name := args[0]
			if filepath.Ext(name) == "" {
				name += ".schema.json"
			}
			data, err := schemavalidation.Raw(name)
			if err != nil {
				return err
			}
			_, err = out.Write(data)
			return err
		},
	}
}
