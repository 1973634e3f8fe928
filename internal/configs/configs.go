// Package configs loads and persists the CLI's TOML configuration.
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

const appDir = "sealcrate"

// Settings is the on-disk CLI configuration.
type Settings struct {
	// KeyringPath is the bbolt database holding local keys.
	KeyringPath string `toml:"keyring_path"`

	// Codec selects the encryption backend: "pgp" uses the built-in keyring,
	// "gpg" shells out to an external GPG installation.
	Codec string `toml:"codec"`

	// Keyserver, when set, is recorded on generated keyholder entities so
	// readers know where to fetch public keys.
	Keyserver string `toml:"keyserver"`

	// DefaultRecipients seed the crate-level recipient set for entities that
	// do not declare their own.
	DefaultRecipients []string `toml:"default_recipients"`

	// GPGBinary and GPGHome configure the gpg codec.
	GPGBinary string `toml:"gpg_binary"`
	GPGHome   string `toml:"gpg_home"`
}

// DefaultPath returns the per-user config file path.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolving config directory: %w", err)
	}
	return filepath.Join(dir, appDir, "config.toml"), nil
}

// DefaultKeyringPath returns the per-user key database path.
func DefaultKeyringPath() (string, error) {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		dir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dir, appDir, "keys.db"), nil
}

// Default returns the settings used when no config file exists.
func Default() (*Settings, error) {
	keyringPath, err := DefaultKeyringPath()
	if err != nil {
		return nil, err
	}
	return &Settings{KeyringPath: keyringPath, Codec: "pgp"}, nil
}

// Load reads the settings file at path, filling unset fields from defaults.
// A missing file yields the defaults.
func Load(path string) (*Settings, error) {
	s, err := Default()
	if err != nil {
		return nil, err
	}
	if err := LoadTOML(path, s); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return s, nil
}

// Save writes the settings to path, creating parent directories as needed.
func Save(path string, s *Settings) error {
	if err := SaveTOML(path, s); err != nil {
		return fmt.Errorf("saving config %s: %w", path, err)
	}
	return nil
}

// SaveTOML saves a struct to a TOML file.
func SaveTOML(filePath string, data any) error {
	if err := os.MkdirAll(filepath.Dir(filePath), 0700); err != nil {
		return err
	}

	file, err := os.Create(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return toml.NewEncoder(file).Encode(data)
}

// LoadTOML loads a TOML file into a struct.
func LoadTOML(filePath string, data any) error {
	_, err := toml.DecodeFile(filePath, data)
	return err
}
