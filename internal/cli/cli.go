// Package cli holds the small amount of plumbing shared by the price and
// risk commands: term-sheet loading, logging setup, runtime-tuning overrides,
// and a uniform exit-code mapping from the engine's error taxonomy (spec §6:
// "exit 0 on success, 2 on validation error, 1 on runtime error").
package cli

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"github.com/meenmo/autocallpricer/config"
	"github.com/meenmo/autocallpricer/errs"
	"github.com/meenmo/autocallpricer/termsheet"
)

// InitLogging wires zerolog to a human-readable console writer on stderr,
// in the teacher's pv-data-derived style.
func InitLogging() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// LoadRuntimeConfig reads tuning overrides (grid resolution, memory ceiling,
// worker count, correlation tolerances) from cfgFile if set, else from
// $HOME/.autocallpricer.toml if present, layering over config.DefaultConfig.
// Environment variables prefixed AUTOCALLPRICER_ (for example
// AUTOCALLPRICER_MAX_WORKERS) are always consulted and take precedence over
// the file's values. Any key that neither the file nor the environment sets
// keeps its default. Absence of a config file is not an error.
func LoadRuntimeConfig(cfgFile string) {
	v := viper.New()
	v.SetEnvPrefix("AUTOCALLPRICER")
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(home)
		v.SetConfigType("toml")
		v.SetConfigName(".autocallpricer")
	}

	cfg := config.DefaultConfig
	if err := v.ReadInConfig(); err == nil {
		log.Info().Str("config_file", v.ConfigFileUsed()).Msg("using runtime config overrides")
	}

	if v.IsSet("grid_steps_per_year") {
		cfg.GridStepsPerYear = v.GetInt("grid_steps_per_year")
	}
	if v.IsSet("memory_ceiling_bytes") {
		cfg.MemoryCeilingBytes = v.GetInt64("memory_ceiling_bytes")
	}
	if v.IsSet("max_workers") {
		cfg.MaxWorkers = v.GetInt("max_workers")
	}
	if v.IsSet("correlation_eigen_floor") {
		cfg.CorrelationEigenFloor = v.GetFloat64("correlation_eigen_floor")
	}
	if v.IsSet("correlation_psd_tolerance") {
		cfg.CorrelationPSDTolerance = v.GetFloat64("correlation_psd_tolerance")
	}
	config.Set(cfg)
}

// LoadTermSheet reads and parses the term sheet at path, logging any
// validation warnings (near-PSD correlation projection, etc.) rather than
// dropping them.
func LoadTermSheet(path string) (termsheet.TermSheet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return termsheet.TermSheet{}, err
	}
	ts, warnings, err := termsheet.Parse(data)
	for _, w := range warnings {
		log.Warn().Str("term_sheet", path).Msg(w)
	}
	if err != nil {
		return termsheet.TermSheet{}, err
	}
	return ts, nil
}

// ExitCode maps an engine error to the CLI exit code contract: 0 success
// (never reached here), 2 for a validation failure the caller can fix, 1
// for everything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if errs.Is(err, errs.InvalidSchema) || errs.Is(err, errs.InvalidDate) {
		return 2
	}
	return 1
}
