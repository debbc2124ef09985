// Package config is the explicit configuration struct the Pipeline
// Controller passes to every stage. All values come from environment
// variables (a configuration *file* layer is an external collaborator,
// out of the core's scope per spec.md §1) via envconfig, in the
// teacher's style of separating required, security-sensitive values
// from defaultable ones.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config is shared, read-only, and handed to each stage explicitly —
// no stage reaches for a package-level global (spec.md §9, "Global
// state. None required.").
type Config struct {
	// Stage 1
	UTXOCSVPath string `envconfig:"UTXO_CSV_PATH" required:"true"`

	// Store
	DatabasePath string `envconfig:"DATABASE_PATH" default:"p2ms.db"`

	// Batching
	BatchSize int `envconfig:"BATCH_SIZE" default:"500"`

	// Stage 2 Node Client
	NodeHost        string `envconfig:"BTC_RPC_HOST" default:"localhost:8332"`
	NodeUser        string `envconfig:"BTC_RPC_USER" required:"true"`
	NodePass        string `envconfig:"BTC_RPC_PASS" required:"true"`
	NodeTimeoutSec  int    `envconfig:"BTC_RPC_TIMEOUT_SECONDS" default:"60"`
	NodeMaxRetries  int    `envconfig:"BTC_RPC_MAX_RETRIES" default:"10"`
	NodeConcurrency int    `envconfig:"BTC_RPC_CONCURRENCY" default:"8"`

	// Stage 3
	CounterpartyTier2             bool `envconfig:"COUNTERPARTY_TIER2_ENABLED" default:"false"`
	StampsRequireDecodedSignature bool `envconfig:"STAMPS_REQUIRE_DECODED_SIGNATURE" default:"false"`

	// Decoded artifact output (thin collaborator, spec.md §6)
	DecodedArtifactDir string `envconfig:"DECODED_ARTIFACT_DIR" default:"output_data/decoded"`
	WriteArtifacts     bool   `envconfig:"WRITE_ARTIFACTS" default:"false"`

	// Status API (ambient, §6 of SPEC_FULL.md)
	StatusAPIPort string `envconfig:"STATUS_API_PORT" default:"5340"`
}

// Load populates a Config from the environment, mirroring the
// teacher's requireEnv/getEnvOrDefault split but generalized to a
// single struct via envconfig's `required`/`default` tags.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("P2MS", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.NodeConcurrency < 1 || cfg.NodeConcurrency > 32 {
		return nil, fmt.Errorf("config: BTC_RPC_CONCURRENCY must be in [1,32], got %d", cfg.NodeConcurrency)
	}
	return &cfg, nil
}
