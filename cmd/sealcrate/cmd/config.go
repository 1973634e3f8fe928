package cmd

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmelville/sealcrate/internal/configs"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(os.Stderr, "# %s\n", cfgPath)
		return toml.NewEncoder(os.Stdout).Encode(settings)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := os.Stat(cfgPath); err == nil {
			return fmt.Errorf("config file already exists at %s", cfgPath)
		}
		defaults, err := configs.Default()
		if err != nil {
			return err
		}
		if err := configs.Save(cfgPath, defaults); err != nil {
			return err
		}
		fmt.Printf("%s Wrote default config to %s\n", color.GreenString("✓"), cfgPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
}
