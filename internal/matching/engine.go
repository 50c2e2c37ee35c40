package matching

import (
	"context"
	"sort"

	"finsoft-matching-engine/internal/models"
	pkgerrors "finsoft-matching-engine/pkg/errors"
	"finsoft-matching-engine/pkg/logger"
)

// MatchType classifies how confident the engine is in a pairing.
type MatchType string

const (
	// MatchAuto marks pairings at or above the auto threshold.
	MatchAuto MatchType = "auto"
	// MatchSuggested marks pairings between the suggestion and auto
	// thresholds that need human review.
	MatchSuggested MatchType = "suggestion"
	// MatchManual marks pairings created by a human, never by the engine.
	MatchManual MatchType = "manuel"
)

// MatchSuggestion pairs one invoice with one transaction, with the score
// that justified the pairing and optional partial-payment context.
// Confidence duplicates Score.Total for report consumers.
type MatchSuggestion struct {
	Invoice        *models.Invoice     `json:"facture"`
	Transaction    *models.Transaction `json:"transaction"`
	Score          MatchScore          `json:"score"`
	Type           MatchType           `json:"type"`
	Confidence     int                 `json:"confidence"`
	PartialPayment *PartialPaymentInfo `json:"partial_payment,omitempty"`
}

// MatchingResult is the complete output of one matching run.
type MatchingResult struct {
	AutoMatched           []*MatchSuggestion    `json:"auto_matched"`
	Suggestions           []*MatchSuggestion    `json:"suggestions"`
	UnmatchedInvoices     []*models.Invoice     `json:"unmatched_factures"`
	UnmatchedTransactions []*models.Transaction `json:"unmatched_transactions"`
}

// Summary returns aggregate counts for logging and reports.
func (r *MatchingResult) Summary() map[string]interface{} {
	return map[string]interface{}{
		"auto_matched":           len(r.AutoMatched),
		"suggestions":            len(r.Suggestions),
		"unmatched_invoices":     len(r.UnmatchedInvoices),
		"unmatched_transactions": len(r.UnmatchedTransactions),
	}
}

// Engine runs the scoring and assignment pipeline over a batch of
// invoices and transactions.
type Engine struct {
	config *Config
	logger logger.Logger
}

// NewEngine validates the configuration and builds an engine. A nil
// config falls back to defaults.
func NewEngine(cfg *Config, log logger.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Engine{
		config: cfg,
		logger: log.WithComponent("matching_engine"),
	}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() *Config {
	return e.config.Clone()
}

// candidate is one scored invoice/transaction pair awaiting assignment.
type candidate struct {
	invoice     *models.Invoice
	transaction *models.Transaction
	score       MatchScore
}

// Match scores every invoice against every expense transaction, keeps
// pairs at or above the suggestion threshold, and resolves them into a
// one-to-one assignment greedily by descending score. Ties break on
// invoice ID, then transaction ID, so a run is fully deterministic.
func (e *Engine) Match(ctx context.Context, invoices []*models.Invoice, transactions []*models.Transaction, histories []*models.SupplierHistory) (*MatchingResult, error) {
	expenses := make([]*models.Transaction, 0, len(transactions))
	for _, tx := range transactions {
		if tx.IsExpense() {
			expenses = append(expenses, tx)
		}
	}

	e.logger.WithFields(logger.Fields{
		"invoices":     len(invoices),
		"transactions": len(transactions),
		"expenses":     len(expenses),
		"histories":    len(histories),
	}).Info("Starting matching run")

	candidates := make([]candidate, 0, len(invoices))
	for _, inv := range invoices {
		select {
		case <-ctx.Done():
			return nil, pkgerrors.MatchingError(pkgerrors.CodeMatchingFailed, "match", ctx.Err())
		default:
		}

		for _, tx := range expenses {
			score := CalculateSmartScore(inv, tx, histories, e.config)
			if score.Total >= e.config.SuggestionThreshold {
				candidates = append(candidates, candidate{invoice: inv, transaction: tx, score: score})
			}
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score.Total != candidates[j].score.Total {
			return candidates[i].score.Total > candidates[j].score.Total
		}
		if candidates[i].invoice.ID != candidates[j].invoice.ID {
			return candidates[i].invoice.ID < candidates[j].invoice.ID
		}
		return candidates[i].transaction.ID < candidates[j].transaction.ID
	})

	usedInvoices := make(map[string]bool, len(invoices))
	usedTransactions := make(map[string]bool, len(expenses))
	result := &MatchingResult{
		AutoMatched: []*MatchSuggestion{},
		Suggestions: []*MatchSuggestion{},
	}

	for i := range candidates {
		c := &candidates[i]
		if usedInvoices[c.invoice.ID] || usedTransactions[c.transaction.ID] {
			continue
		}
		usedInvoices[c.invoice.ID] = true
		usedTransactions[c.transaction.ID] = true

		suggestion := &MatchSuggestion{
			Invoice:     c.invoice,
			Transaction: c.transaction,
			Score:       c.score,
			Confidence:  c.score.Total,
		}

		if c.score.Total >= e.config.AutoThreshold {
			suggestion.Type = MatchAuto
			result.AutoMatched = append(result.AutoMatched, suggestion)
			continue
		}

		suggestion.Type = MatchSuggested
		suggestion.PartialPayment = detectPartialPayment(c.invoice, c.transaction, expenses, e.config)
		result.Suggestions = append(result.Suggestions, suggestion)
	}

	result.UnmatchedInvoices = make([]*models.Invoice, 0)
	for _, inv := range invoices {
		if !usedInvoices[inv.ID] {
			result.UnmatchedInvoices = append(result.UnmatchedInvoices, inv)
		}
	}
	result.UnmatchedTransactions = make([]*models.Transaction, 0)
	for _, tx := range expenses {
		if !usedTransactions[tx.ID] {
			result.UnmatchedTransactions = append(result.UnmatchedTransactions, tx)
		}
	}

	e.logger.WithFields(logger.Fields(result.Summary())).Info("Matching run complete")

	return result, nil
}
