package config

import (
	"encoding/base64"
	"fmt"
	"time"
)

const (
	DefaultTokenTTL    = 7 * 24 * time.Hour
	DefaultRoomName    = "General"
	minSigningKeyBytes = 16
)

type Config struct {
	DatabaseDSN    string
	ServerAddr     string
	SigningKey     []byte
	AllowedOrigins []string
	TokenTTL       time.Duration
	DefaultRoom    string
}

func decodeSigningSecret(base64Secret string) ([]byte, error) {
	if base64Secret == "" {
		return nil, fmt.Errorf("empty secret")
	}
	return base64.StdEncoding.DecodeString(base64Secret)
}

// NewConfig validates the runtime settings. A zero tokenTTL or empty
// defaultRoom falls back to the package defaults.
func NewConfig(serverAddr, databaseDSN, base64Secret string, allowedOrigins []string, tokenTTL time.Duration, defaultRoom string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}
	if base64Secret == "" {
		return nil, fmt.Errorf("signing secret cannot be empty")
	}
	if tokenTTL < 0 {
		return nil, fmt.Errorf("token ttl cannot be negative")
	}

	signingKey, err := decodeSigningSecret(base64Secret)
	if err != nil {
		return nil, fmt.Errorf("decode signing secret: %w", err)
	}
	if len(signingKey) < minSigningKeyBytes {
		return nil, fmt.Errorf("signing secret must be at least %d bytes", minSigningKeyBytes)
	}

	if tokenTTL == 0 {
		tokenTTL = DefaultTokenTTL
	}
	if defaultRoom == "" {
		defaultRoom = DefaultRoomName
	}

	return &Config{
		DatabaseDSN:    databaseDSN,
		ServerAddr:     serverAddr,
		SigningKey:     signingKey,
		AllowedOrigins: allowedOrigins,
		TokenTTL:       tokenTTL,
		DefaultRoom:    defaultRoom,
	}, nil
}
