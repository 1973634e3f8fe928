package cmd

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmelville/sealcrate/crate"
)

var initName string

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a new crate directory with a metadata file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) == 1 {
			dir = args[0]
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating crate directory: %w", err)
		}

		c := crate.New(crate.WithLogger(logger))
		if initName != "" {
			root, ok := c.Dereference(crate.RootID)
			if ok {
				root.Set("name", initName)
			}
		}
		if err := c.Write(cmd.Context(), dir); err != nil {
			return err
		}

		fmt.Printf("%s Initialized crate in %s\n", color.GreenString("✓"), color.YellowString(dir))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().StringVar(&initName, "name", "", "Name for the root dataset")
}
