package network

import (
	"fmt"

	"github.com/bitfsorg/libwit-go/wit"
)

// Environment variables read by ResolveConfig.
const (
	EnvRPCURL  = "WIT_RPC_URL"
	EnvRPCUser = "WIT_RPC_USER"
	EnvRPCPass = "WIT_RPC_PASS"
)

// RPCConfig describes how to reach a node's JSON-RPC endpoint.
type RPCConfig struct {
	URL      string      `json:"url"`
	User     string      `json:"user"`
	Password string      `json:"password"`
	Network  wit.Network `json:"network"`
}

// Presets are the endpoints assumed when nothing else is configured. Mainnet
// has none.
var Presets = map[wit.Network]RPCConfig{
	wit.Testnet: {URL: "http://localhost:21339"},
}

// ConfigFromEnv picks the RPC settings out of env.
func ConfigFromEnv(env map[string]string) RPCConfig {
	return RPCConfig{
		URL:      env[EnvRPCURL],
		User:     env[EnvRPCUser],
		Password: env[EnvRPCPass],
	}
}

// overlay returns c with every non-empty field of o applied.
func (c RPCConfig) overlay(o RPCConfig) RPCConfig {
	if o.URL != "" {
		c.URL = o.URL
	}
	if o.User != "" {
		c.User = o.User
	}
	if o.Password != "" {
		c.Password = o.Password
	}
	return c
}

// ResolveConfig layers the preset for n, then env, then flags, later layers
// winning field by field. It fails when no layer names a URL.
func ResolveConfig(flags *RPCConfig, env map[string]string, n wit.Network) (*RPCConfig, error) {
	if _, err := wit.ParseNetwork(string(n)); err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}
	cfg := Presets[n].overlay(ConfigFromEnv(env))
	if flags != nil {
		cfg = cfg.overlay(*flags)
	}
	cfg.Network = n
	if cfg.URL == "" {
		return nil, fmt.Errorf("network: no RPC endpoint for %s (set --rpc-url or %s)", n, EnvRPCURL)
	}
	return &cfg, nil
}
