package cmd

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmelville/sealcrate/crate"
)

var inspectPassphrase bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <crate-dir>",
	Short: "Summarize a crate's public graph and encrypted section",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kr, closeStore, err := openKeyring()
		if err != nil {
			return err
		}
		defer closeStore()

		passphrase, err := maybePassphrase(inspectPassphrase)
		if err != nil {
			return err
		}
		opts, err := crateOptions(kr, passphrase)
		if err != nil {
			return err
		}

		c, err := crate.Read(cmd.Context(), args[0], opts...)
		if err != nil {
			return err
		}

		fmt.Printf("%s %v\n", color.CyanString("Context:"), c.Context())
		fmt.Printf("%s\n", color.CyanString("Entities:"))
		for _, e := range c.Entities() {
			fmt.Printf("  %s  %s\n", color.YellowString(e.ID), strings.Join(e.Types(), ", "))
		}

		recovered := c.EncryptedEntities()
		if len(recovered) == 0 {
			fmt.Printf("%s none readable with the local keys\n", color.CyanString("Sensitive entities:"))
			printDiscarded(c.DiscardedBlocks())
			return nil
		}
		fmt.Printf("%s\n", color.CyanString("Sensitive entities:"))
		for _, e := range recovered {
			audience := ""
			if e.Recipients != nil {
				audience = fmt.Sprintf("  [for %s]", e.Recipients.Key())
			}
			fmt.Printf("  %s  %s%s\n", color.GreenString(e.ID), strings.Join(e.Types(), ", "), audience)
		}
		printDiscarded(c.DiscardedBlocks())
		return nil
	},
}

// printDiscarded reports blocks the local keys could not open. They are
// listed by recipient key so the holder knows which audiences were dropped.
func printDiscarded(keys []string) {
	if len(keys) == 0 {
		return
	}
	fmt.Printf("%s %d block(s) not recoverable here\n",
		color.CyanString("Discarded:"), len(keys))
	for _, key := range keys {
		fmt.Printf("  %s\n", color.RedString(key))
	}
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().BoolVar(&inspectPassphrase, "passphrase", false, "Prompt for a passphrase for locked private keys")
}
