package main

import (
	"fmt"
	"os"

	"github.com/repaircore/repaircore/pkg/config"
)

// loadConfig loads the configuration from file, auto-generating if needed.
func loadConfig() (*config.Config, error) {
	configPath := cfgFile
	if configPath == "" {
		configPath = "config.yaml"
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Printf("⚠️  Config file not found, creating default configuration at: %s\n", configPath)
		fmt.Println("   You can edit this file to customize settings (sandbox images, reporting directory, etc.)")
		fmt.Println()

		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
	}
	return cfg, nil
}
