package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/awnumar/memguard"
	"github.com/briandowns/spinner"
	"golang.org/x/term"

	"github.com/jmelville/sealcrate/crate"
	"github.com/jmelville/sealcrate/keyring"
	bboltstore "github.com/jmelville/sealcrate/keyring/bbolt"
	"github.com/jmelville/sealcrate/seal"
	"github.com/jmelville/sealcrate/seal/gpg"
	"github.com/jmelville/sealcrate/seal/pgp"
)

// openKeyring opens the key database named by the --keyring flag or the
// config file, creating its directory on first use.
func openKeyring() (*keyring.Keyring, func(), error) {
	path := keyringPath
	if path == "" {
		path = settings.KeyringPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, nil, fmt.Errorf("creating key database directory: %w", err)
	}

	store, err := bboltstore.NewStoreFromFile(path, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("opening key database %s: %w", path, err)
	}
	return keyring.New(store), func() { store.Close() }, nil
}

// buildCodec assembles the encryption backend selected in the config.
func buildCodec(kr *keyring.Keyring, passphrase *memguard.Enclave) (seal.Codec, error) {
	switch settings.Codec {
	case "", "pgp":
		var opts []pgp.Option
		if passphrase != nil {
			opts = append(opts, pgp.WithPassphrase(passphrase))
		}
		return pgp.New(kr, opts...), nil
	case "gpg":
		var opts []gpg.Option
		if settings.GPGBinary != "" {
			opts = append(opts, gpg.WithBinary(settings.GPGBinary))
		}
		if settings.GPGHome != "" {
			opts = append(opts, gpg.WithHomeDir(settings.GPGHome))
		}
		return gpg.New(opts...), nil
	default:
		return nil, fmt.Errorf("unknown codec %q in config", settings.Codec)
	}
}

// crateOptions builds the standard options for loading or creating a crate.
func crateOptions(kr *keyring.Keyring, passphrase *memguard.Enclave) ([]crate.Option, error) {
	codec, err := buildCodec(kr, passphrase)
	if err != nil {
		return nil, err
	}
	opts := []crate.Option{crate.WithCodec(codec), crate.WithLogger(logger)}
	if len(settings.DefaultRecipients) > 0 {
		set, err := crate.NewRecipientSet(settings.DefaultRecipients...)
		if err != nil {
			return nil, fmt.Errorf("default_recipients in config: %w", err)
		}
		opts = append(opts, crate.WithDefaultRecipients(set))
	}
	return opts, nil
}

// readPassphrase prompts for a passphrase without echoing input.
func readPassphrase(prompt string) (*memguard.Enclave, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("cannot read passphrase: stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, prompt)
	passphrase, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	return memguard.NewEnclave(passphrase), nil
}

// maybePassphrase prompts only when the command was run with --passphrase.
func maybePassphrase(flag bool) (*memguard.Enclave, error) {
	if !flag {
		return nil, nil
	}
	return readPassphrase("Passphrase: ")
}

// startSpinner shows a progress spinner unless verbose logging is on.
// The returned cleanup stops the spinner and prints its final message.
func startSpinner(message string) (*spinner.Spinner, func()) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	_ = s.Color("cyan")

	if !verbose {
		s.Start()
	}
	cleanup := func() {
		finalMsg := s.FinalMSG
		s.FinalMSG = ""
		if !verbose {
			s.Stop()
		}
		if finalMsg != "" {
			fmt.Print(finalMsg)
		}
	}
	return s, cleanup
}
