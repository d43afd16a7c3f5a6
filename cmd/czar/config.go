package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/provingground-moe/qserv-sub000/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration utilities",
}

var configExampleFormat string

var configExampleCmd = &cobra.Command{
	Use:   "example",
	Short: "Print a starting configuration file with every documented default",
	RunE: func(cmd *cobra.Command, args []string) error {
		var out string
		var err error
		switch configExampleFormat {
		case "toml", "":
			out, err = config.MarshalDefaultsTOML()
		case "yaml":
			out, err = config.MarshalDefaultsYAML()
		default:
			return fmt.Errorf("config example: unknown --format %q (want toml or yaml)", configExampleFormat)
		}
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	},
}

func init() {
	configExampleCmd.Flags().StringVar(&configExampleFormat, "format", "toml", "output format: toml or yaml")
	configCmd.AddCommand(configExampleCmd)
}
