package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	DatabaseURL string // PLENUM_DATABASE_URL (required)
	HTTPAddr    string // PLENUM_HTTP_ADDR (default ":8080")
	NATSURL     string // PLENUM_NATS_URL (optional, empty = no events)
	AuthToken   string // PLENUM_AUTH_TOKEN (optional, empty = auth disabled)
	IdentityURL string // PLENUM_IDENTITY_URL (optional, empty = no attribution lookups)

	// Ledger settings
	RPCURL           string        // PLENUM_RPC_URL (required)
	ContractAddress  string        // PLENUM_CONTRACT_ADDRESS (required)
	ChainID          int64         // PLENUM_CHAIN_ID (default 1337)
	AdminKeystore    string        // PLENUM_ADMIN_KEYSTORE (optional; path to a keystore file)
	AdminPassphrase  string        // PLENUM_ADMIN_PASSPHRASE (passphrase for the admin keystore)
	GasMarginPercent uint64        // PLENUM_GAS_MARGIN_PERCENT (default 10)
	ConfirmTimeout   time.Duration // PLENUM_CONFIRM_TIMEOUT (default 90s)

	// Snapshot settings
	SnapshotInterval   time.Duration // PLENUM_SNAPSHOT_INTERVAL (default 0 = disabled)
	SnapshotS3Bucket   string        // PLENUM_SNAPSHOT_S3_BUCKET (enables S3 when set)
	SnapshotS3Endpoint string        // PLENUM_SNAPSHOT_S3_ENDPOINT (custom endpoint for MinIO)
	SnapshotS3Region   string        // PLENUM_SNAPSHOT_S3_REGION (default "us-east-1")
	SnapshotS3Key      string        // PLENUM_SNAPSHOT_S3_KEY (default "plenum/snapshot.jsonl")
}

func Load() (*Config, error) {
	c := &Config{
		DatabaseURL:        os.Getenv("PLENUM_DATABASE_URL"),
		HTTPAddr:           envOrDefault("PLENUM_HTTP_ADDR", ":8080"),
		NATSURL:            os.Getenv("PLENUM_NATS_URL"),
		AuthToken:          os.Getenv("PLENUM_AUTH_TOKEN"),
		IdentityURL:        os.Getenv("PLENUM_IDENTITY_URL"),
		RPCURL:             os.Getenv("PLENUM_RPC_URL"),
		ContractAddress:    os.Getenv("PLENUM_CONTRACT_ADDRESS"),
		AdminKeystore:      os.Getenv("PLENUM_ADMIN_KEYSTORE"),
		AdminPassphrase:    os.Getenv("PLENUM_ADMIN_PASSPHRASE"),
		SnapshotS3Bucket:   os.Getenv("PLENUM_SNAPSHOT_S3_BUCKET"),
		SnapshotS3Endpoint: os.Getenv("PLENUM_SNAPSHOT_S3_ENDPOINT"),
		SnapshotS3Region:   envOrDefault("PLENUM_SNAPSHOT_S3_REGION", "us-east-1"),
		SnapshotS3Key:      envOrDefault("PLENUM_SNAPSHOT_S3_KEY", "plenum/snapshot.jsonl"),
	}
	if c.DatabaseURL == "" {
		return nil, fmt.Errorf("PLENUM_DATABASE_URL is required")
	}
	if c.RPCURL == "" {
		return nil, fmt.Errorf("PLENUM_RPC_URL is required")
	}
	if c.ContractAddress == "" {
		return nil, fmt.Errorf("PLENUM_CONTRACT_ADDRESS is required")
	}

	var err error
	if c.ChainID, err = envInt64("PLENUM_CHAIN_ID", 1337); err != nil {
		return nil, err
	}
	if c.GasMarginPercent, err = envUint64("PLENUM_GAS_MARGIN_PERCENT", 10); err != nil {
		return nil, err
	}
	if c.ConfirmTimeout, err = envDuration("PLENUM_CONFIRM_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	if c.SnapshotInterval, err = envDuration("PLENUM_SNAPSHOT_INTERVAL", 0); err != nil {
		return nil, err
	}

	return c, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt64(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envUint64(key string, fallback uint64) (uint64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
