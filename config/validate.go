// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bitfsorg/libwit-go/utxo"
	"github.com/bitfsorg/libwit-go/wit"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if _, err := wit.ParseNetwork(cfg.Network); err != nil {
		return ErrInvalidNetwork
	}

	if cfg.RPCURL != "" {
		if err := validateURL(cfg.RPCURL); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRPCURL, err)
		}
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if _, err := utxo.ParseStrategy(cfg.Strategy); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidStrategy, err)
	}

	if cfg.PollInterval <= 0 || cfg.PollTimeout <= 0 || cfg.ConfirmTimeout <= 0 {
		return ErrInvalidDuration
	}
	if cfg.PollTimeout > cfg.PollInterval {
		return fmt.Errorf("%w: poll timeout %s exceeds interval %s", ErrInvalidDuration, cfg.PollTimeout, cfg.PollInterval)
	}

	if cfg.ReceiptTTL <= 0 || cfg.ReceiptCacheSize <= 0 {
		return ErrInvalidRetention
	}

	return nil
}

// validateURL checks that raw is an absolute http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
