// Package config builds engine and parser configurations from CLI inputs.
package config

import (
	"github.com/shopspring/decimal"

	"finsoft-matching-engine/internal/anomaly"
	"finsoft-matching-engine/internal/matching"
	"finsoft-matching-engine/internal/parsers"
)

// MatchingOptions carries the CLI threshold overrides. Negative values
// mean "keep the default".
type MatchingOptions struct {
	DateWindowDays          int
	AutoThreshold           int
	SuggestionThreshold     int
	AnomalyAmountThreshold  float64
	PartialPaymentTolerance float64
}

// CreateMatchingConfig applies CLI overrides onto the engine defaults.
func CreateMatchingConfig(opts MatchingOptions) *matching.Config {
	cfg := matching.DefaultConfig()

	if opts.DateWindowDays >= 0 {
		cfg.DateWindowDays = opts.DateWindowDays
	}
	if opts.AutoThreshold >= 0 {
		cfg.AutoThreshold = opts.AutoThreshold
	}
	if opts.SuggestionThreshold >= 0 {
		cfg.SuggestionThreshold = opts.SuggestionThreshold
	}
	if opts.AnomalyAmountThreshold >= 0 {
		cfg.AnomalyAmountThreshold = decimal.NewFromFloat(opts.AnomalyAmountThreshold)
	}
	if opts.PartialPaymentTolerance >= 0 {
		cfg.PartialPaymentTolerance = opts.PartialPaymentTolerance
	}

	return cfg
}

// CreateParseConfig returns the CSV parsing options used by the CLI.
// Delimiter auto-detection stays on: French exports split between comma
// and semicolon layouts.
func CreateParseConfig() *parsers.ParseConfig {
	return parsers.DefaultParseConfig()
}

// CreateDetectorConfig returns the anomaly detector defaults. Tenant
// tuning happens through a config file when provided.
func CreateDetectorConfig() *anomaly.Config {
	return anomaly.DefaultConfig()
}
