package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ruteri/pgp-seed-backup/interfaces"
	"gopkg.in/yaml.v3"
)

// Config is the keyringctl configuration file.
type Config struct {
	DataDir    string                         `yaml:"data_dir"`
	Derivation interfaces.KeyDerivationConfig `yaml:"derivation"`
	Server     ServerConfig                   `yaml:"server"`
}

// ServerConfig locates the backup server, either directly or through SRV records.
type ServerConfig struct {
	URL        string `yaml:"url"`
	SRV        string `yaml:"srv"`
	Nameserver string `yaml:"nameserver"`
	Scheme     string `yaml:"scheme"`
}

func defaultConfig() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return Config{
		DataDir: filepath.Join(home, ".keyringctl"),
		Derivation: interfaces.KeyDerivationConfig{
			SeedPhraseLength: 24,
			SpecialIdentities: interfaces.SpecialIdentities{
				interfaces.RoleBackup: "backup@localhost",
			},
		},
	}
}

// loadConfig reads path over the defaults. A missing file is not an error
// unless required is set.
func loadConfig(path string, required bool) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !required {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("could not read config: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return cfg, fmt.Errorf("%w: config %s: %w", interfaces.ErrMalformedInput, path, err)
	}

	if fileCfg.DataDir != "" {
		cfg.DataDir = fileCfg.DataDir
	}
	if fileCfg.Derivation.SeedPhraseLength != 0 {
		cfg.Derivation.SeedPhraseLength = fileCfg.Derivation.SeedPhraseLength
	}
	if len(fileCfg.Derivation.SpecialIdentities) > 0 {
		cfg.Derivation.SpecialIdentities = fileCfg.Derivation.SpecialIdentities
	}
	cfg.Server = fileCfg.Server

	return cfg, cfg.Derivation.Validate()
}

func (c Config) storePath() string {
	return filepath.Join(c.DataDir, "keyring.db")
}
