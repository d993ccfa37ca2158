// Package common provides shared utilities for the trial CLI commands:
// key loading, YAML configuration and logger construction.
package common

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/crypto"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/protocol"
	"github.com/JakobNicolas/Privacy-Preserving-Clinical-Trial-Management/trial"
)

// LoadOrGenerateSigningKey loads an Ed25519 private key from a hex string,
// or generates a new key pair if hexKey is empty.
func LoadOrGenerateSigningKey(hexKey string) (crypto.PrivateKey, error) {
	if hexKey != "" {
		keyBytes, err := hex.DecodeString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid hex: %w", err)
		}
		return crypto.NewPrivateKeyFromBytes(keyBytes), nil
	}
	_, privKey, err := crypto.GenerateKeyPair()
	return privKey, err
}

// TrialSettings is the YAML shape of the protocol parameters. Durations
// are strings so config files can say "720h" rather than nanoseconds.
type TrialSettings struct {
	PhaseDuration         string `yaml:"phase_duration"`
	DesignatedWeek        int    `yaml:"designated_week"`
	MinOracleSignatures   int    `yaml:"min_oracle_signatures"`
	SignificanceThreshold uint64 `yaml:"significance_threshold"`
}

// ToTrialConfig converts the YAML settings into a protocol TrialConfig,
// starting from defaults and overriding only the fields that are set.
func (s *TrialSettings) ToTrialConfig() (*protocol.TrialConfig, error) {
	cfg := protocol.DefaultTrialConfig()
	if s == nil {
		return cfg, nil
	}
	if s.PhaseDuration != "" {
		d, err := time.ParseDuration(s.PhaseDuration)
		if err != nil {
			return nil, fmt.Errorf("invalid phase_duration: %w", err)
		}
		cfg.PhaseDuration = d
	}
	if s.DesignatedWeek != 0 {
		cfg.DesignatedWeek = s.DesignatedWeek
	}
	if s.MinOracleSignatures != 0 {
		cfg.MinOracleSignatures = s.MinOracleSignatures
	}
	if s.SignificanceThreshold != 0 {
		cfg.SignificanceThreshold = s.SignificanceThreshold
	}
	return cfg, nil
}

// OracleSettings configures the embedded oracle and the trusted
// verification keys.
type OracleSettings struct {
	// Embedded runs an in-process oracle against the trial vault, exposing
	// /oracle/fulfill. Useful for development and simulation runs.
	Embedded bool `yaml:"embedded"`

	// SigningKey is the embedded oracle's hex-encoded Ed25519 private key;
	// generated if empty.
	SigningKey string `yaml:"signing_key"`

	// TrustedKeys are additional hex-encoded verification keys registered
	// in the ledger, for external oracles.
	TrustedKeys []string `yaml:"trusted_keys"`
}

// Config is the triald YAML configuration.
type Config struct {
	HTTPAddr    string                `yaml:"http_addr"`
	AdminToken  string                `yaml:"admin_token"`
	Coordinator string                `yaml:"coordinator"`
	EnablePprof bool                  `yaml:"enable_pprof"`
	Trial       *TrialSettings        `yaml:"trial"`
	Oracle      OracleSettings        `yaml:"oracle"`
	Postgres    *trial.PostgresConfig `yaml:"postgres"`
}

// DefaultConfig returns a development configuration: local listener,
// embedded oracle, no persistence.
func DefaultConfig() *Config {
	return &Config{
		HTTPAddr:    ":8080",
		Coordinator: "coordinator",
		Oracle:      OracleSettings{Embedded: true},
	}
}

// LoadConfig reads a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

// TrustedOracleKeys decodes the configured verification keys.
func (c *Config) TrustedOracleKeys() ([]crypto.PublicKey, error) {
	keys := make([]crypto.PublicKey, 0, len(c.Oracle.TrustedKeys))
	for _, hexKey := range c.Oracle.TrustedKeys {
		pk, err := crypto.NewPublicKeyFromString(hexKey)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted oracle key %q: %w", hexKey, err)
		}
		keys = append(keys, pk)
	}
	return keys, nil
}

// NewLogger builds the service's structured logger.
func NewLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
