package cmd

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jmelville/sealcrate/internal/configs"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var (
	cfgPath     string
	keyringPath string
	verbose     bool

	settings *configs.Settings
	logger   = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "sealcrate",
	Short: "sealcrate manages crates with selectively encrypted metadata",
	Long: `Create, inspect and share research object crates whose sensitive metadata
entities are encrypted for named recipients while the rest of the graph stays
readable. Complete documentation is available at
https://github.com/jmelville/sealcrate`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger.SetOutput(os.Stderr)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.WarnLevel)
		}

		if cfgPath == "" {
			p, err := configs.DefaultPath()
			if err != nil {
				return err
			}
			cfgPath = p
		}
		s, err := configs.Load(cfgPath)
		if err != nil {
			return err
		}
		settings = s
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "Path to the TOML config file")
	rootCmd.PersistentFlags().StringVar(&keyringPath, "keyring", "", "Path to the key database (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}
