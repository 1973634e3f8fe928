package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	exportPrivate bool
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage the local key database",
	RunE: func(cmd *cobra.Command, args []string) error {
		kr, closeStore, err := openKeyring()
		if err != nil {
			return err
		}
		defer closeStore()

		infos, err := kr.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(infos) == 0 {
			fmt.Println("No keys in the database. Generate one with " + color.YellowString("sealcrate keygen") + ".")
			return nil
		}

		for _, info := range infos {
			marker := color.CyanString("pub")
			if info.HasPrivate {
				marker = color.GreenString("sec")
			}
			fmt.Printf("%s  %s  %s\n", marker, color.YellowString(info.Fingerprint), info.Algorithm)
			for _, uid := range info.UIDs {
				fmt.Printf("     %s\n", uid)
			}
		}
		return nil
	},
}

var keysExportCmd = &cobra.Command{
	Use:   "export <fingerprint>",
	Short: "Write a key's armored block to stdout",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kr, closeStore, err := openKeyring()
		if err != nil {
			return err
		}
		defer closeStore()

		var armored string
		if exportPrivate {
			armored, err = kr.ExportPrivate(cmd.Context(), args[0])
		} else {
			armored, err = kr.ExportPublic(cmd.Context(), args[0])
		}
		if err != nil {
			return err
		}
		fmt.Println(strings.TrimRight(armored, "\n"))
		return nil
	},
}

var keysImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import armored keys from a file or stdin",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var data []byte
		var err error
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("reading key data: %w", err)
		}

		kr, closeStore, err := openKeyring()
		if err != nil {
			return err
		}
		defer closeStore()

		infos, err := kr.ImportArmored(cmd.Context(), string(data))
		if err != nil {
			return err
		}
		for _, info := range infos {
			kind := "public key"
			if info.HasPrivate {
				kind = "private key"
			}
			fmt.Printf("%s Imported %s %s (%s)\n",
				color.GreenString("✓"), kind, color.YellowString(info.Fingerprint), info.PrimaryUID())
		}
		return nil
	},
}

var keysDeleteCmd = &cobra.Command{
	Use:   "delete <fingerprint>",
	Short: "Remove a key from the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kr, closeStore, err := openKeyring()
		if err != nil {
			return err
		}
		defer closeStore()

		if err := kr.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("%s Deleted %s\n", color.GreenString("✓"), color.YellowString(args[0]))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keysCmd)
	keysCmd.AddCommand(keysExportCmd)
	keysCmd.AddCommand(keysImportCmd)
	keysCmd.AddCommand(keysDeleteCmd)
	keysExportCmd.Flags().BoolVar(&exportPrivate, "private", false, "Export the private key block instead of the public one")
}
