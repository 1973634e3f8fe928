package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmelville/sealcrate/crate"
)

var (
	encryptIDs        []string
	encryptTo         []string
	encryptPassphrase bool
)

var encryptCmd = &cobra.Command{
	Use:   "encrypt <crate-dir>",
	Short: "Mark crate entities as sensitive and re-save the crate",
	Long: `Move the named entities out of the public metadata graph and into the
crate's encrypted section. With --to the entities are encrypted for the given
fingerprints; otherwise their recipients relation or the configured default
recipients decide who can read them.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(encryptIDs) == 0 {
			return fmt.Errorf("at least one --id is required")
		}

		kr, closeStore, err := openKeyring()
		if err != nil {
			return err
		}
		defer closeStore()

		passphrase, err := maybePassphrase(encryptPassphrase)
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
		for _, id := range encryptIDs {
			if _, err := c.Encrypt(id, encryptTo...); err != nil {
				return err
			}
		}

		s, cleanup := startSpinner("Encrypting crate metadata...")
		err = c.Write(cmd.Context(), args[0])
		if err != nil {
			s.FinalMSG = color.RedString("✗") + " Encryption failed\n"
			cleanup()
			return err
		}
		s.FinalMSG = fmt.Sprintf("%s Encrypted %d entities\n", color.GreenString("✓"), len(encryptIDs))
		cleanup()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encryptCmd)
	encryptCmd.Flags().StringSliceVar(&encryptIDs, "id", nil, "Entity identifier to encrypt (repeatable)")
	encryptCmd.Flags().StringSliceVar(&encryptTo, "to", nil, "Recipient fingerprint (repeatable)")
	encryptCmd.Flags().BoolVar(&encryptPassphrase, "passphrase", false, "Prompt for a passphrase for locked private keys")
}
