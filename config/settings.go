package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// LoadFileConfig reads config.toml, writing the commented template first when
// the file does not exist yet.
func LoadFileConfig() (*FileConfig, error) {
	cfg := DefaultFileConfig()
	configPath := GetConfigFilePath()

	if !FileExists(configPath) {
		if err := CreateDefaultConfig(); err != nil {
			return nil, fmt.Errorf("failed to create config: %w", err)
		}
		return cfg, nil
	}

	if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

func SaveFileConfig(cfg *FileConfig) error {
	if err := EnsureDir(GetConfigDir()); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(GetConfigFilePath(), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}

func CreateDefaultConfig() error {
	if err := EnsureDir(GetConfigDir()); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	configPath := GetConfigFilePath()
	if FileExists(configPath) {
		return nil
	}

	if err := os.WriteFile(configPath, []byte(GenerateConfigTemplate()), 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
