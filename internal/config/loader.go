package config

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader handles loading configuration from files and command-line
// arguments. Flags that were set explicitly override file values.
type Loader struct{}

// ErrHelpRequested is returned when the user requests help via --help.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load parses command-line arguments and an optional configuration file
// to produce a Config.
func (Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand()
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	if len(args) == 0 && configPath == "" {
		displayHelp(cmd)
		return nil, ErrHelpRequested
	}

	cfg := defaults()
	cfg.ConfigFile = configPath

	if configPath != "" {
		cfgViper := viper.New()
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
		if err := cfgViper.Unmarshal(cfg); err != nil {
			return nil, err
		}
	}

	applyFlagOverrides(cfg, flagSet)

	cfg.TargetURL = strings.TrimSpace(cfg.TargetURL)
	cfg.SessionCode = strings.TrimSpace(cfg.SessionCode)
	cfg.RosterPath = strings.TrimSpace(cfg.RosterPath)

	return cfg, nil
}

// defaults mirrors the flag defaults so config-file-only runs get the
// same baseline.
func defaults() *Config {
	return &Config{
		Bots:             5,
		BatchSize:        10,
		BatchDelay:       time.Second,
		JoinRate:         10,
		QuestionDelay:    2500 * time.Millisecond,
		AnswerTimeout:    20 * time.Second,
		StartTimeout:     5 * time.Minute,
		GracePeriod:      3 * time.Second,
		HandshakeTimeout: 15 * time.Second,
		AccuracyMin:      0.6,
		AccuracyMax:      0.9,
		ThinkMin:         time.Second,
		ThinkMax:         4 * time.Second,
		Tracing:          TracingConfig{Protocol: "grpc"},
	}
}

// applyFlagOverrides copies every explicitly set flag onto cfg, letting
// the command line win over the config file.
func applyFlagOverrides(cfg *Config, flags *pflag.FlagSet) {
	flags.Visit(func(f *pflag.Flag) {
		switch f.Name {
		case "target":
			cfg.TargetURL, _ = flags.GetString(f.Name)
		case "session":
			cfg.SessionCode, _ = flags.GetString(f.Name)
		case "bots":
			cfg.Bots, _ = flags.GetInt(f.Name)
		case "batch-size":
			cfg.BatchSize, _ = flags.GetInt(f.Name)
		case "batch-delay":
			cfg.BatchDelay, _ = flags.GetDuration(f.Name)
		case "join-rate":
			cfg.JoinRate, _ = flags.GetInt(f.Name)
		case "question-delay":
			cfg.QuestionDelay, _ = flags.GetDuration(f.Name)
		case "answer-timeout":
			cfg.AnswerTimeout, _ = flags.GetDuration(f.Name)
		case "start-timeout":
			cfg.StartTimeout, _ = flags.GetDuration(f.Name)
		case "grace-period":
			cfg.GracePeriod, _ = flags.GetDuration(f.Name)
		case "handshake-timeout":
			cfg.HandshakeTimeout, _ = flags.GetDuration(f.Name)
		case "accuracy-min":
			cfg.AccuracyMin, _ = flags.GetFloat64(f.Name)
		case "accuracy-max":
			cfg.AccuracyMax, _ = flags.GetFloat64(f.Name)
		case "think-min":
			cfg.ThinkMin, _ = flags.GetDuration(f.Name)
		case "think-max":
			cfg.ThinkMax, _ = flags.GetDuration(f.Name)
		case "seed":
			cfg.Seed, _ = flags.GetInt64(f.Name)
		case "roster-path":
			cfg.RosterPath, _ = flags.GetString(f.Name)
		case "roster-type":
			cfg.RosterType, _ = flags.GetString(f.Name)
		case "json-output":
			cfg.JSONOutput, _ = flags.GetBool(f.Name)
		case "dashboard":
			cfg.Dashboard, _ = flags.GetBool(f.Name)
		case "log-errors":
			cfg.LogErrors, _ = flags.GetBool(f.Name)
		case "tracing-endpoint":
			cfg.Tracing.Endpoint, _ = flags.GetString(f.Name)
		case "tracing-protocol":
			cfg.Tracing.Protocol, _ = flags.GetString(f.Name)
		case "tracing-insecure":
			cfg.Tracing.Insecure, _ = flags.GetBool(f.Name)
		}
	})
}
