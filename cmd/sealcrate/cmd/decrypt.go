package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmelville/sealcrate/crate"
)

var (
	decryptPassphrase bool
	decryptOut        string
)

var decryptCmd = &cobra.Command{
	Use:   "decrypt <crate-dir>",
	Short: "Print the sensitive entities the local keys can recover",
	Long: `Load a crate, open every encrypted block a local private key matches, and
print the recovered entities as JSON. Blocks encrypted for other recipients
are skipped. The crate on disk is not modified.

With --out, the recovered entities are merged back into the public graph and
the resulting plaintext metadata document is written to the given file.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kr, closeStore, err := openKeyring()
		if err != nil {
			return err
		}
		defer closeStore()

		passphrase, err := maybePassphrase(decryptPassphrase)
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

		recovered := c.EncryptedEntities()

		if decryptOut != "" {
			for _, e := range recovered {
				if _, err := c.Decrypt(e.ID); err != nil {
					return err
				}
			}
			data, err := c.Marshal(cmd.Context())
			if err != nil {
				return err
			}
			if err := os.WriteFile(decryptOut, data, 0644); err != nil {
				return fmt.Errorf("writing %s: %w", decryptOut, err)
			}
			fmt.Printf("%s Wrote plaintext metadata with %d recovered entities to %s\n",
				color.GreenString("✓"), len(recovered), decryptOut)
			return nil
		}

		objs := make([]map[string]any, 0, len(recovered))
		for _, e := range recovered {
			obj := make(map[string]any, len(e.Properties)+1)
			obj["@id"] = e.ID
			for k, v := range e.Properties {
				obj[k] = v
			}
			objs = append(objs, obj)
		}

		out, err := json.MarshalIndent(objs, "", "  ")
		if err != nil {
			return fmt.Errorf("rendering entities: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(decryptCmd)
	decryptCmd.Flags().BoolVar(&decryptPassphrase, "passphrase", false, "Prompt for a passphrase for locked private keys")
	decryptCmd.Flags().StringVar(&decryptOut, "out", "", "Write the merged plaintext metadata document to this file")
}
