package main

import (
	"os"

	"github.com/cuemby/agency/pkg/env"
	"gopkg.in/yaml.v3"
)

// scenarioConfig is the on-disk shape of the optional --config file: the
// handful of env.Params fields a scenario might reasonably want to override
// without a recompile (whether to stand up the metrics endpoint, and where).
type scenarioConfig struct {
	MessageTracing bool   `yaml:"message_tracing"`
	MetricsAddr    string `yaml:"metrics_addr"`
}

// loadEnvParams reads --config, if set, and folds it into a fresh env.Params.
// With no flag given it returns the zero value, so every scenario runs with
// metrics disabled by default.
func loadEnvParams(cmd cobraFlagGetter) (env.Params, error) {
	path, _ := cmd.GetString("config")
	if path == "" {
		return env.Params{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return env.Params{}, err
	}
	var cfg scenarioConfig
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return env.Params{}, err
	}
	return env.Params{
		MessageTracing: cfg.MessageTracing,
		MetricsAddr:    cfg.MetricsAddr,
	}, nil
}

// cobraFlagGetter is the subset of *pflag.FlagSet / *cobra.Command that
// loadEnvParams needs, kept narrow so callers can pass cmd.Flags() directly.
type cobraFlagGetter interface {
	GetString(name string) (string, error)
}
