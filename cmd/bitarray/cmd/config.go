// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package cmd

import (
	"strconv"
	"strings"

	"github.com/grailbio/bitarray/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Flag names. Each is also read from the environment as
// BITARRAY_<NAME>, dashes replaced by underscores, and from the
// configuration file.
const (
	configFile  = "config"
	logLevel    = "log"
	seed        = "seed"
	size        = "size"
	density     = "density"
	densities   = "densities"
	tolerance   = "tolerance"
	draws       = "draws"
	parallelism = "parallelism"
	workers     = "workers"
	rounds      = "rounds"
)

// Config holds the settings shared by all subcommands.
type Config struct {
	Log         log.Level
	Seed        uint64
	Size        int
	Density     float64
	Densities   []float64
	Tolerance   float64
	Draws       int
	Parallelism int
	Workers     int
	Rounds      int

	viper *viper.Viper
	flags *pflag.FlagSet
}

// NewConfig returns a Config with its flags registered but not yet
// parsed.
func NewConfig() *Config {
	v := viper.New()
	v.SetEnvPrefix("bitarray")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	flags := new(pflag.FlagSet)
	flags.String(configFile, "", "path to a YAML or JSON configuration file")
	flags.String(logLevel, "info", "log level: off, error, info or debug")
	flags.Uint64(seed, 1, "random seed")
	flags.Int(size, 1<<24, "bit array size in bits")
	flags.Float64(density, 0.3, "target density of live bits")
	flags.StringSlice(densities, []string{"0.1", "0.5", "0.9"}, "target densities to calibrate")
	flags.Float64(tolerance, 0.01, "acceptable distance from the target density")
	flags.Int(draws, 1<<14, "words drawn per calibrated density")
	flags.Int(parallelism, 0, "maximum number of parallel fragments (0 for GOMAXPROCS)")
	flags.Int(workers, 8, "number of contending goroutines")
	flags.Int(rounds, 1001, "rounds of updates per contending goroutine")

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}
	return &Config{viper: v, flags: flags}
}

// MustViperize adds the flag set to the Cobra command. The command
// shares the flags, and hence their Viper bindings, with c.
func (c *Config) MustViperize(cmd *cobra.Command) {
	cmd.PersistentFlags().AddFlagSet(c.flags)
}

// Init loads the configuration file, if any, and resolves every
// setting from flags, environment and file, in that order of
// precedence.
func (c *Config) Init() error {
	if file := c.viper.GetString(configFile); file != "" {
		c.viper.SetConfigFile(file)
		if err := c.viper.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading configuration file %s", file)
		}
	}
	var err error
	if c.Log, err = log.ParseLevel(c.viper.GetString(logLevel)); err != nil {
		return errors.Wrap(err, "parsing log level")
	}
	c.Seed = c.viper.GetUint64(seed)
	c.Size = c.viper.GetInt(size)
	c.Density = c.viper.GetFloat64(density)
	c.Tolerance = c.viper.GetFloat64(tolerance)
	c.Draws = c.viper.GetInt(draws)
	c.Parallelism = c.viper.GetInt(parallelism)
	c.Workers = c.viper.GetInt(workers)
	c.Rounds = c.viper.GetInt(rounds)
	if c.Densities, err = parseDensities(c.viper.GetStringSlice(densities)); err != nil {
		return err
	}
	return c.validate()
}

func (c *Config) validate() error {
	switch {
	case c.Size <= 0:
		return errors.Errorf("--%s must be positive, got %d", size, c.Size)
	case c.Draws <= 0:
		return errors.Errorf("--%s must be positive, got %d", draws, c.Draws)
	case c.Parallelism < 0:
		return errors.Errorf("--%s must not be negative, got %d", parallelism, c.Parallelism)
	case c.Workers <= 0:
		return errors.Errorf("--%s must be positive, got %d", workers, c.Workers)
	case c.Rounds <= 0:
		return errors.Errorf("--%s must be positive, got %d", rounds, c.Rounds)
	}
	return nil
}

// parseDensities accepts a list of densities, each element possibly
// holding several comma- or space-separated values, as an environment
// variable does.
func parseDensities(list []string) ([]float64, error) {
	var out []float64
	for _, elem := range list {
		for _, field := range strings.FieldsFunc(elem, func(r rune) bool { return r == ',' || r == ' ' }) {
			d, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, errors.Wrapf(err, "parsing --%s", densities)
			}
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, errors.Errorf("--%s must list at least one density", densities)
	}
	return out, nil
}
