package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmelville/sealcrate/keyring"
)

var (
	keygenName    string
	keygenEmail   string
	keygenComment string
	keygenBits    int
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new encryption key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		kr, closeStore, err := openKeyring()
		if err != nil {
			return err
		}
		defer closeStore()

		s, cleanup := startSpinner("Generating key pair...")
		info, err := kr.Generate(cmd.Context(), keygenName, keygenComment, keygenEmail,
			keyring.WithKeyBits(keygenBits))
		if err != nil {
			s.FinalMSG = color.RedString("✗") + " Key generation failed\n"
			cleanup()
			return err
		}
		s.FinalMSG = color.GreenString("✓") + " Generated key for " + info.PrimaryUID() + "\n"
		cleanup()

		fmt.Printf("  Fingerprint: %s\n", color.YellowString(info.Fingerprint))
		fmt.Printf("  Algorithm:   %s (%d bits)\n", info.Algorithm, keygenBits)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
	keygenCmd.Flags().StringVar(&keygenName, "name", "", "Holder name for the key UID")
	keygenCmd.Flags().StringVar(&keygenEmail, "email", "", "Holder email for the key UID")
	keygenCmd.Flags().StringVar(&keygenComment, "comment", "", "Optional UID comment")
	keygenCmd.Flags().IntVar(&keygenBits, "bits", 3072, "RSA key size in bits")
	_ = keygenCmd.MarkFlagRequired("name")
	_ = keygenCmd.MarkFlagRequired("email")
}
