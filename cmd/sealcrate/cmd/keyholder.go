package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jmelville/sealcrate/crate"
)

var (
	keyholderFingerprint string
	keyholderID          string
	keyholderServer      string
)

var keyholderCmd = &cobra.Command{
	Use:   "keyholder <crate-dir>",
	Short: "Add a keyholder entity for a stored key to a crate",
	Long: `Describe the holder of a local key as a contact point entity inside the
crate, so sensitive entities can name them in their recipients relation.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kr, closeStore, err := openKeyring()
		if err != nil {
			return err
		}
		defer closeStore()

		info, err := kr.Info(cmd.Context(), keyholderFingerprint)
		if err != nil {
			return err
		}

		var khOpts []crate.KeyholderOption
		if keyholderID != "" {
			khOpts = append(khOpts, crate.WithKeyholderID(keyholderID))
		}
		server := keyholderServer
		if server == "" {
			server = settings.Keyserver
		}
		if server != "" {
			khOpts = append(khOpts, crate.WithKeyserver(server))
		}
		kh, err := crate.NewKeyholder(*info, khOpts...)
		if err != nil {
			return err
		}

		opts, err := crateOptions(kr, nil)
		if err != nil {
			return err
		}
		c, err := crate.Read(cmd.Context(), args[0], opts...)
		if err != nil {
			return err
		}
		c.Add(&kh.Entity)
		if err := c.Write(cmd.Context(), args[0]); err != nil {
			return err
		}

		fmt.Printf("%s Added keyholder %s (%s)\n",
			color.GreenString("✓"), color.YellowString(kh.ID), info.PrimaryUID())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keyholderCmd)
	keyholderCmd.Flags().StringVar(&keyholderFingerprint, "fingerprint", "", "Fingerprint of the stored key")
	keyholderCmd.Flags().StringVar(&keyholderID, "id", "", "Explicit entity identifier for the keyholder")
	keyholderCmd.Flags().StringVar(&keyholderServer, "keyserver", "", "Keyserver recorded on the entity (overrides config)")
	_ = keyholderCmd.MarkFlagRequired("fingerprint")
}
