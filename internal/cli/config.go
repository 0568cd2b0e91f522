package cli

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment variables that override config keys,
// e.g. MARBLES_MAX_TICKS.
const EnvPrefix = "MARBLES"

// configKeys maps config file keys to the flags that override them. Flags
// that a command does not define are skipped.
var configKeys = map[string]string{
	"format":      "format",
	"verbose":     "verbose",
	"max_ticks":   "max-ticks",
	"max_actions": "max-actions",
	"error_match": "error-match",
	"db":          "db",
}

// loadConfig layers flags over environment over the config file over flag
// defaults, and writes the result back into opts.
//
// Without --config, ./marbles.yaml (or .yml, .json, .toml) is read when it
// exists; an explicit --config file must exist.
func loadConfig(v *viper.Viper, flags *pflag.FlagSet, opts *RootOptions) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "read config %s", opts.ConfigFile)
		}
	} else {
		v.SetConfigName("marbles")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return errors.Wrap(err, "read config")
			}
		}
	}

	for key, name := range configKeys {
		f := flags.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.Wrapf(err, "bind flag --%s", name)
		}
	}

	opts.Format = v.GetString("format")
	opts.Verbose = v.GetBool("verbose")
	opts.ErrorMatch = v.GetString("error_match")
	opts.Database = v.GetString("db")

	// Malformed values are an error, not 0.
	if raw := v.GetString("max_ticks"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return errors.Wrapf(err, "max_ticks %q", raw)
		}
		opts.MaxTicks = n
	}
	if raw := v.GetString("max_actions"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return errors.Wrapf(err, "max_actions %q", raw)
		}
		opts.MaxActions = n
	}
	return nil
}
