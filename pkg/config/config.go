// Package config binds kbusd's runtime settings through
// github.com/spf13/viper, grounded on sa6mwa-lockd/cmd/lockd's
// BindPFlag/BindEnv/GetX pattern: every setting is a flag and a KBUS_*
// environment variable. A flag set on the command line wins over the
// environment, which wins over the built-in default; no config file is
// read.
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "KBUS"

// Config holds the settings cmd/kbusd needs to stand up a bus and its HTTP
// surface. Persisted config files and namespace-as-path semantics are
// explicitly out of scope (spec.md §6); this only configures the demo
// daemon around the core.
type Config struct {
	Namespace    string        `mapstructure:"namespace"`
	LogLevel     string        `mapstructure:"log_level"`
	ListenAddr   string        `mapstructure:"listen_addr"`
	BenchPeers   int           `mapstructure:"bench_peers"`
	BenchMsgs    int           `mapstructure:"bench_messages"`
	DrainTimeout time.Duration `mapstructure:"drain_timeout"`
}

// Default returns the built-in defaults, overridden by BindFlags/viper at
// load time.
func Default() Config {
	return Config{
		Namespace:    "default",
		LogLevel:     "info",
		ListenAddr:   ":9090",
		BenchPeers:   4,
		BenchMsgs:    16,
		DrainTimeout: 5 * time.Second,
	}
}

// BindFlags registers cfg's fields as flags on flags, binds
// each to the matching KBUS_* environment variable, and returns a Load
// function that must be called once flags have been parsed (i.e. from a
// cobra command's RunE) to materialize the final, precedence-resolved
// Config.
func BindFlags(flags *pflag.FlagSet) func() (Config, error) {
	def := Default()

	flags.String("namespace", def.Namespace, "bus namespace name")
	flags.String("log-level", def.LogLevel, "zerolog level (debug, info, warn, error)")
	flags.String("listen-addr", def.ListenAddr, "address the /metrics HTTP endpoint listens on")
	flags.Int("bench-peers", def.BenchPeers, "number of peers the bench scenario connects")
	flags.Int("bench-messages", def.BenchMsgs, "number of messages the bench sender multicasts to the other peers")
	flags.Duration("drain-timeout", def.DrainTimeout, "grace period for the /metrics HTTP server to shut down; peer disconnect drains are not bounded by it")

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, name := range []string{"namespace", "log-level", "listen-addr", "bench-peers", "bench-messages", "drain-timeout"} {
		_ = v.BindPFlag(name, flags.Lookup(name))
	}

	return func() (Config, error) {
		return Config{
			Namespace:    v.GetString("namespace"),
			LogLevel:     v.GetString("log-level"),
			ListenAddr:   v.GetString("listen-addr"),
			BenchPeers:   v.GetInt("bench-peers"),
			BenchMsgs:    v.GetInt("bench-messages"),
			DrainTimeout: v.GetDuration("drain-timeout"),
		}, nil
	}
}
