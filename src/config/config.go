// Package config loads the venue's startup configuration via
// spf13/viper: SetConfigFile + AutomaticEnv + ReadInConfig, with
// defaults applied in code rather than assumed present in the file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"matchcore/src/latency"
	"matchcore/src/stp"
)

// Config is the fully-resolved startup configuration for one process.
type Config struct {
	STPMode       stp.Mode
	Thresholds    latency.Thresholds
	AuditSinks    []string // subset of {"file", "database"}
	Products      []string
	AuditFilePath string
	ListenAddr    string
}

// Load reads configPath (if non-empty) plus environment overrides and
// returns a fully-defaulted Config. Every key also has a MATCHCORE_
// prefixed environment variable equivalent via AutomaticEnv, e.g.
// MATCHCORE_STP_MODE overrides stp.mode.
func Load(configPath string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MATCHCORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("stp.mode", string(stp.DefaultMode))
	v.SetDefault("latency.threshold.e2e_ns", latency.DefaultThresholds.E2ENanos)
	v.SetDefault("latency.threshold.matching_ns", latency.DefaultThresholds.MatchingNanos)
	v.SetDefault("latency.threshold.audit_ns", latency.DefaultThresholds.AuditNanos)
	v.SetDefault("audit.sinks", []string{"file"})
	v.SetDefault("audit.file_path", "audit.log")
	v.SetDefault("products", []string{"AAPL", "MSFT", "GOOG", "TSLA", "AMZN"})
	v.SetDefault("server.listen_addr", ":8080")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	mode := stp.Mode(v.GetString("stp.mode"))
	switch mode {
	case stp.Allow, stp.CancelIncoming, stp.CancelResting, stp.CancelBoth:
	default:
		return Config{}, fmt.Errorf("config: invalid stp.mode %q", mode)
	}

	return Config{
		STPMode: mode,
		Thresholds: latency.Thresholds{
			E2ENanos:      v.GetInt64("latency.threshold.e2e_ns"),
			MatchingNanos: v.GetInt64("latency.threshold.matching_ns"),
			AuditNanos:    v.GetInt64("latency.threshold.audit_ns"),
		},
		AuditSinks:    v.GetStringSlice("audit.sinks"),
		Products:      v.GetStringSlice("products"),
		AuditFilePath: v.GetString("audit.file_path"),
		ListenAddr:    v.GetString("server.listen_addr"),
	}, nil
}
