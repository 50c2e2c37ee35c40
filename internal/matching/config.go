// Package matching implements the bank-reconciliation matching engine:
// a multi-criteria weighted scoring algorithm that pairs bank transactions
// against outstanding supplier invoices.
//
// The engine scores every (invoice, expense transaction) pair on five
// criteria - amount, date, supplier name, invoice number, and learned
// supplier history - then assigns pairs greedily best-first under a
// one-to-one constraint and partitions the outcome into automatic matches,
// suggestions for human review, and unmatched leftovers.
//
// Everything in this package is pure computation over in-memory snapshots:
// no I/O, no shared state, safe to invoke concurrently for independent
// tenants. Persistence of accepted matches and of supplier-history updates
// is the caller's responsibility.
//
// Example usage:
//
//	config := matching.DefaultConfig()
//	engine := matching.NewEngine(config)
//	result := engine.Match(invoices, transactions, histories)
//	for _, m := range result.AutoMatched {
//		// persist rapprochement row, then confirm:
//		updated := matching.UpdateSupplierHistory(histories,
//			m.Invoice.Fournisseur, m.Transaction.Description, m.Transaction.Amount)
//		_ = updated
//	}
package matching

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Config holds the thresholds consumed by every matching run. All
// threshold comparisons operate on the normalized 0-100 score.
type Config struct {
	// DateWindowDays is the maximum day difference for the date criterion;
	// beyond it the date score is forced to 0 regardless of tier.
	DateWindowDays int `json:"date_window_days"`

	// AmountTolerancePct is informational only: the amount scorer uses its
	// own tiered thresholds. Kept for reporting and anomaly tolerance.
	AmountTolerancePct float64 `json:"amount_tolerance_pct"`

	// AutoThreshold is the minimum normalized score for automatic matching.
	AutoThreshold int `json:"auto_threshold"`

	// SuggestionThreshold is the minimum normalized score for a pair to be
	// retained as a candidate at all.
	SuggestionThreshold int `json:"suggestion_threshold"`

	// AnomalyAmountThreshold flags any transaction above this absolute
	// amount as abnormally high.
	AnomalyAmountThreshold decimal.Decimal `json:"anomaly_amount_threshold"`

	// PartialPaymentTolerance is the percentage margin under 100% coverage
	// below which a transaction is considered a potential partial payment.
	PartialPaymentTolerance float64 `json:"partial_payment_tolerance"`
}

// DefaultConfig returns the production default thresholds.
func DefaultConfig() *Config {
	return &Config{
		DateWindowDays:          7,
		AmountTolerancePct:      2,
		AutoThreshold:           85,
		SuggestionThreshold:     50,
		AnomalyAmountThreshold:  decimal.NewFromInt(500),
		PartialPaymentTolerance: 5,
	}
}

// Validate checks the configuration once at construction. The engine
// trusts a validated config and performs no further checks per run.
func (c *Config) Validate() error {
	if c.DateWindowDays < 0 {
		return fmt.Errorf("date window days cannot be negative: %d", c.DateWindowDays)
	}

	if c.AmountTolerancePct < 0 || c.AmountTolerancePct > 100 {
		return fmt.Errorf("amount tolerance percent must be between 0 and 100: %f", c.AmountTolerancePct)
	}

	if c.AutoThreshold < 0 || c.AutoThreshold > 100 {
		return fmt.Errorf("auto threshold must be between 0 and 100: %d", c.AutoThreshold)
	}

	if c.SuggestionThreshold < 0 || c.SuggestionThreshold > 100 {
		return fmt.Errorf("suggestion threshold must be between 0 and 100: %d", c.SuggestionThreshold)
	}

	if c.SuggestionThreshold > c.AutoThreshold {
		return fmt.Errorf("suggestion threshold (%d) cannot exceed auto threshold (%d)",
			c.SuggestionThreshold, c.AutoThreshold)
	}

	if c.AnomalyAmountThreshold.IsNegative() {
		return fmt.Errorf("anomaly amount threshold cannot be negative: %s", c.AnomalyAmountThreshold.String())
	}

	if c.PartialPaymentTolerance < 0 || c.PartialPaymentTolerance >= 100 {
		return fmt.Errorf("partial payment tolerance must be in [0, 100): %f", c.PartialPaymentTolerance)
	}

	return nil
}

// Clone creates a copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}

	clone := *c
	return &clone
}

// String returns a human-readable description of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{DateWindow: %dd, Auto: %d, Suggestion: %d, AnomalyAmount: %s, PartialTolerance: %.1f%%}",
		c.DateWindowDays, c.AutoThreshold, c.SuggestionThreshold,
		c.AnomalyAmountThreshold.String(), c.PartialPaymentTolerance)
}
