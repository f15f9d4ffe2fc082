package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitfsorg/libwit-go/wit"
)

func TestPresets(t *testing.T) {
	preset, ok := Presets[wit.Testnet]
	require.True(t, ok)
	assert.Equal(t, "http://localhost:21339", preset.URL)

	_, ok = Presets[wit.Mainnet]
	assert.False(t, ok, "mainnet needs an explicit endpoint")
}

func TestResolveConfig(t *testing.T) {
	tests := []struct {
		name    string
		flags   *RPCConfig
		env     map[string]string
		network wit.Network
		want    RPCConfig
		wantErr bool
	}{
		{
			name:    "preset",
			network: wit.Testnet,
			want:    RPCConfig{URL: "http://localhost:21339", Network: wit.Testnet},
		},
		{
			name:    "env over preset",
			env:     map[string]string{EnvRPCURL: "http://env-node:21338", EnvRPCPass: "envpass"},
			network: wit.Testnet,
			want:    RPCConfig{URL: "http://env-node:21338", Password: "envpass", Network: wit.Testnet},
		},
		{
			name:    "flags over env",
			flags:   &RPCConfig{URL: "http://custom:9999", User: "me", Password: "secret"},
			env:     map[string]string{EnvRPCURL: "http://env:1", EnvRPCUser: "envuser"},
			network: wit.Testnet,
			want:    RPCConfig{URL: "http://custom:9999", User: "me", Password: "secret", Network: wit.Testnet},
		},
		{
			name:    "flags fill gaps only",
			flags:   &RPCConfig{User: "flaguser"},
			env:     map[string]string{EnvRPCURL: "http://node:21338"},
			network: wit.Mainnet,
			want:    RPCConfig{URL: "http://node:21338", User: "flaguser", Network: wit.Mainnet},
		},
		{
			name:    "mainnet unconfigured",
			network: wit.Mainnet,
			wantErr: true,
		},
		{
			name:    "unknown network",
			env:     map[string]string{EnvRPCURL: "http://node:21338"},
			network: "regtest",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ResolveConfig(tt.flags, tt.env, tt.network)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), string(tt.network))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, *cfg)
		})
	}
}

func TestResolveConfigDoesNotMutatePresets(t *testing.T) {
	_, err := ResolveConfig(&RPCConfig{URL: "http://other:1"}, nil, wit.Testnet)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:21339", Presets[wit.Testnet].URL)
}
