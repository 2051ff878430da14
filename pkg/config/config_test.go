package config

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBindFlagsDefaults(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	load := BindFlags(flags)
	require.NoError(t, flags.Parse(nil))

	cfg, err := load()
	require.NoError(t, err)
	assert.Equal(t, Default().Namespace, cfg.Namespace)
	assert.Equal(t, Default().BenchPeers, cfg.BenchPeers)
}

func TestBindFlagsOverridesFromArgs(t *testing.T) {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	load := BindFlags(flags)
	require.NoError(t, flags.Parse([]string{"--namespace=custom", "--bench-peers=8"}))

	cfg, err := load()
	require.NoError(t, err)
	assert.Equal(t, "custom", cfg.Namespace)
	assert.Equal(t, 8, cfg.BenchPeers)
}
