// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the settings of a transmitter process.
type Config struct {
	DataDir  string
	Network  string
	LogLevel string
	LogFile  string // empty logs to stderr
	RPCURL   string // empty resolves from environment or network preset
	Strategy string // utxo selection strategy name

	PollInterval   time.Duration
	PollTimeout    time.Duration
	ConfirmTimeout time.Duration

	ReceiptTTL       time.Duration
	ReceiptCacheSize int
}

// DefaultDataDir returns ~/.libwit, or .libwit if the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".libwit"
	}
	return filepath.Join(home, ".libwit")
}

// DefaultConfig returns a configuration with every field set to its default.
func DefaultConfig() Config {
	return Config{
		DataDir:          DefaultDataDir(),
		Network:          "mainnet",
		LogLevel:         "info",
		Strategy:         "slim-fit",
		PollInterval:     10 * time.Second,
		PollTimeout:      5 * time.Second,
		ConfirmTimeout:   600 * time.Second,
		ReceiptTTL:       time.Hour,
		ReceiptCacheSize: 10_000,
	}
}

// ConfigPath returns the configuration file path inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

// ReceiptsPath returns the receipt database path inside dataDir.
func ReceiptsPath(dataDir string) string {
	return filepath.Join(dataDir, "receipts.db")
}

// LoadConfig reads a `key = value` file on top of DefaultConfig. Blank lines
// and lines starting with # are skipped; unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := parseKeyValue(line)
		if !ok {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits on the first '='.
func parseKeyValue(line string) (key, value string, ok bool) {
	key, value, ok = strings.Cut(line, "=")
	if !ok {
		return "", "", false
	}
	return strings.ToLower(strings.TrimSpace(key)), strings.TrimSpace(value), true
}

func (c *Config) set(key, value string) error {
	var err error
	switch key {
	case "datadir":
		c.DataDir = value
	case "network":
		c.Network = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "rpcurl":
		c.RPCURL = value
	case "strategy":
		c.Strategy = value
	case "pollinterval":
		c.PollInterval, err = time.ParseDuration(value)
	case "polltimeout":
		c.PollTimeout, err = time.ParseDuration(value)
	case "confirmtimeout":
		c.ConfirmTimeout, err = time.ParseDuration(value)
	case "receiptttl":
		c.ReceiptTTL, err = time.ParseDuration(value)
	case "receiptcachesize":
		c.ReceiptCacheSize, err = strconv.Atoi(value)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// SaveConfig writes cfg to path, creating parent directories as needed.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var b strings.Builder
	b.WriteString("# libwit configuration\n\n")
	fmt.Fprintf(&b, "datadir = %s\n", cfg.DataDir)
	fmt.Fprintf(&b, "network = %s\n", cfg.Network)
	fmt.Fprintf(&b, "loglevel = %s\n", cfg.LogLevel)
	fmt.Fprintf(&b, "logfile = %s\n", cfg.LogFile)
	fmt.Fprintf(&b, "rpcurl = %s\n", cfg.RPCURL)
	fmt.Fprintf(&b, "strategy = %s\n", cfg.Strategy)
	b.WriteString("\n# confirmation polling\n")
	fmt.Fprintf(&b, "pollinterval = %s\n", cfg.PollInterval)
	fmt.Fprintf(&b, "polltimeout = %s\n", cfg.PollTimeout)
	fmt.Fprintf(&b, "confirmtimeout = %s\n", cfg.ConfirmTimeout)
	b.WriteString("\n# receipt retention\n")
	fmt.Fprintf(&b, "receiptttl = %s\n", cfg.ReceiptTTL)
	fmt.Fprintf(&b, "receiptcachesize = %d\n", cfg.ReceiptCacheSize)

	if err := os.WriteFile(path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}
