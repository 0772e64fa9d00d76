// config.go - Configuration management for the solvency tool
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"solvency/internal/prover"
)

// Config represents the application configuration
type Config struct {
	// Circuit capacities
	HiddenAssets      int `json:"hidden_assets"`
	HiddenLiabilities int `json:"hidden_liabilities"`
	RateSlots         int `json:"rate_slots"`

	// File paths
	KeyDir      string `json:"key_dir"`
	LedgerPath  string `json:"ledger_path"`
	AccountPath string `json:"account_path"`
	AuditPath   string `json:"audit_path"`
	PublicPath  string `json:"public_path"`

	// Logging
	LogLevel string `json:"log_level"`
	LogFile  string `json:"log_file"`

	// Performance
	MaxConcurrency      int `json:"max_concurrency"`
	ProveTimeoutSeconds int `json:"prove_timeout_seconds"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	shape := prover.DefaultShape()
	return &Config{
		HiddenAssets:        shape.HiddenAssets,
		HiddenLiabilities:   shape.HiddenLiabilities,
		RateSlots:           shape.Rates,
		KeyDir:              "keys",
		LedgerPath:          "ledger.json",
		AccountPath:         "account.cbor",
		AuditPath:           "audit.cbor",
		PublicPath:          "public.json",
		LogLevel:            "info",
		LogFile:             "",
		MaxConcurrency:      4,
		ProveTimeoutSeconds: 300,
	}
}

// LoadConfig loads configuration from file or creates default
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); err == nil {
		file, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer file.Close()

		config := DefaultConfig()
		if err := json.NewDecoder(file).Decode(config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
		return config, nil
	}

	config := DefaultConfig()
	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save default config: %w", err)
	}
	return config, nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := c.Shape().Validate(); err != nil {
		return err
	}
	if c.KeyDir == "" {
		return fmt.Errorf("key_dir must be set")
	}
	if c.LedgerPath == "" || c.AccountPath == "" || c.AuditPath == "" || c.PublicPath == "" {
		return fmt.Errorf("ledger_path, account_path, audit_path and public_path must be set")
	}
	if c.MaxConcurrency <= 0 {
		return fmt.Errorf("max_concurrency must be positive")
	}
	if c.ProveTimeoutSeconds <= 0 {
		return fmt.Errorf("prove_timeout_seconds must be positive")
	}
	return nil
}

// Shape returns the circuit capacities.
func (c *Config) Shape() prover.Shape {
	return prover.Shape{
		HiddenAssets:      c.HiddenAssets,
		HiddenLiabilities: c.HiddenLiabilities,
		Rates:             c.RateSlots,
	}
}

// ProveTimeout is the prove deadline as a duration.
func (c *Config) ProveTimeout() time.Duration {
	return time.Duration(c.ProveTimeoutSeconds) * time.Second
}
