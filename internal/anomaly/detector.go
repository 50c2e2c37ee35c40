// Package anomaly flags bookkeeping inconsistencies in a batch of
// invoices, bank transactions and a completed matching run. Detection is
// a read-only secondary pass: it never blocks or alters matching output,
// and every rule contributes its findings independently.
package anomaly

import (
	"fmt"
	"math"
	"sort"

	"github.com/agnivade/levenshtein"
	"github.com/shopspring/decimal"

	"finsoft-matching-engine/internal/matching"
	"finsoft-matching-engine/internal/models"
	"finsoft-matching-engine/pkg/logger"
)

// Kind identifies one of the fixed anomaly rules. The French tags are the
// stable wire values consumed by dashboards.
type Kind string

const (
	KindDuplicateTransaction      Kind = "doublon_transaction"
	KindDuplicateInvoice          Kind = "doublon_facture"
	KindTransactionWithoutInvoice Kind = "transaction_sans_facture"
	KindInvoiceWithoutTransaction Kind = "facture_sans_transaction"
	KindTVADiscrepancy            Kind = "ecart_tva"
	KindAmountDiscrepancy         Kind = "ecart_montant"
	KindIncoherentDate            Kind = "date_incoherente"
	KindHighAmount                Kind = "montant_eleve"
)

// Severity grades how urgently an anomaly needs attention.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Status tracks an anomaly's lifecycle once persisted. The detector only
// ever emits open anomalies; resolution happens in the caller's workflow.
type Status string

const (
	StatusOpen     Status = "ouverte"
	StatusResolved Status = "resolue"
	StatusIgnored  Status = "ignoree"
)

// Anomaly is one detected inconsistency. TransactionID and FactureID link
// back to the offending records when the rule concerns specific rows.
type Anomaly struct {
	Kind           Kind             `json:"type"`
	Severity       Severity         `json:"severite"`
	Description    string           `json:"description"`
	TransactionID  string           `json:"transaction_id,omitempty"`
	FactureID      string           `json:"facture_id,omitempty"`
	Montant        *decimal.Decimal `json:"montant,omitempty"`
	MontantAttendu *decimal.Decimal `json:"montant_attendu,omitempty"`
	Ecart          *decimal.Decimal `json:"ecart,omitempty"`
}

// Stats aggregates anomaly counts by severity.
type Stats struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}

// Result is the output of one detection pass.
type Result struct {
	Anomalies []*Anomaly `json:"anomalies"`
	Stats     Stats      `json:"stats"`
}

// Config tunes the rules whose thresholds are tenant policy rather than
// fixed behavior.
type Config struct {
	// DuplicateInvoiceWindowDays bounds how far apart two invoices can be
	// dated and still count as duplicates of the same charge.
	DuplicateInvoiceWindowDays int `json:"duplicate_invoice_window_days"`

	// DuplicateInvoiceTolerancePct is the maximum relative amount
	// difference between two invoices considered duplicates.
	DuplicateInvoiceTolerancePct float64 `json:"duplicate_invoice_tolerance_pct"`

	// SupplierDistanceMax is the maximum edit distance between two
	// normalized supplier names still treated as the same supplier.
	SupplierDistanceMax int `json:"supplier_distance_max"`

	// PaymentLeadMaxDays is how many days a transaction may precede its
	// invoice's date before the pairing is flagged as incoherent.
	PaymentLeadMaxDays int `json:"payment_lead_max_days"`
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() *Config {
	return &Config{
		DuplicateInvoiceWindowDays:   30,
		DuplicateInvoiceTolerancePct: 1.0,
		SupplierDistanceMax:          2,
		PaymentLeadMaxDays:           30,
	}
}

// Validate checks the configuration ranges.
func (c *Config) Validate() error {
	if c.DuplicateInvoiceWindowDays < 0 {
		return fmt.Errorf("duplicate invoice window cannot be negative: %d", c.DuplicateInvoiceWindowDays)
	}
	if c.DuplicateInvoiceTolerancePct < 0 || c.DuplicateInvoiceTolerancePct > 100 {
		return fmt.Errorf("duplicate invoice tolerance must be between 0 and 100: %f", c.DuplicateInvoiceTolerancePct)
	}
	if c.SupplierDistanceMax < 0 {
		return fmt.Errorf("supplier distance cannot be negative: %d", c.SupplierDistanceMax)
	}
	if c.PaymentLeadMaxDays < 0 {
		return fmt.Errorf("payment lead cannot be negative: %d", c.PaymentLeadMaxDays)
	}
	return nil
}

// Detector runs all anomaly rules over one batch.
type Detector struct {
	config   *Config
	matchCfg *matching.Config
	logger   logger.Logger
}

// NewDetector builds a detector. Nil configs fall back to defaults.
func NewDetector(cfg *Config, matchCfg *matching.Config, log logger.Logger) (*Detector, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if matchCfg == nil {
		matchCfg = matching.DefaultConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Detector{
		config:   cfg,
		matchCfg: matchCfg,
		logger:   log.WithComponent("anomaly_detector"),
	}, nil
}

// Detect runs every rule and returns the aggregated findings. The
// matching result may be nil, in which case the rules that depend on it
// are skipped.
func (d *Detector) Detect(invoices []*models.Invoice, transactions []*models.Transaction, matchResult *matching.MatchingResult) *Result {
	var anomalies []*Anomaly

	anomalies = append(anomalies, d.duplicateTransactions(transactions)...)
	anomalies = append(anomalies, d.duplicateInvoices(invoices)...)
	anomalies = append(anomalies, d.missingTVACodes(transactions)...)
	anomalies = append(anomalies, d.highAmounts(transactions)...)

	if matchResult != nil {
		anomalies = append(anomalies, d.unmatchedTransactions(matchResult)...)
		anomalies = append(anomalies, d.unmatchedInvoices(matchResult)...)
		anomalies = append(anomalies, d.amountDiscrepancies(matchResult)...)
		anomalies = append(anomalies, d.incoherentDates(matchResult)...)
	}

	sort.SliceStable(anomalies, func(i, j int) bool {
		return severityRank(anomalies[i].Severity) < severityRank(anomalies[j].Severity)
	})

	result := &Result{Anomalies: anomalies}
	for _, a := range anomalies {
		result.Stats.Total++
		switch a.Severity {
		case SeverityCritical:
			result.Stats.Critical++
		case SeverityWarning:
			result.Stats.Warning++
		case SeverityInfo:
			result.Stats.Info++
		}
	}

	d.logger.WithFields(logger.Fields{
		"total":    result.Stats.Total,
		"critical": result.Stats.Critical,
		"warning":  result.Stats.Warning,
		"info":     result.Stats.Info,
	}).Info("Anomaly detection complete")

	return result
}

// duplicateTransactions flags pairs sharing the same day, amount and
// normalized description. Each duplicate pair is reported once, on the
// later member.
func (d *Detector) duplicateTransactions(transactions []*models.Transaction) []*Anomaly {
	type key struct {
		day, amount, desc string
	}
	seen := make(map[key]string, len(transactions))

	var anomalies []*Anomaly
	for _, tx := range transactions {
		k := key{
			day:    tx.Date.Format("2006-01-02"),
			amount: tx.Amount.String(),
			desc:   matching.NormalizeText(tx.Description),
		}
		if firstID, ok := seen[k]; ok {
			amount := tx.Amount
			anomalies = append(anomalies, &Anomaly{
				Kind:          KindDuplicateTransaction,
				Severity:      SeverityWarning,
				Description:   fmt.Sprintf("Transaction identique a %s (meme date, montant et libelle)", firstID),
				TransactionID: tx.ID,
				Montant:       &amount,
			})
			continue
		}
		seen[k] = tx.ID
	}
	return anomalies
}

// duplicateInvoices flags invoice pairs from the same supplier with
// near-identical amounts dated within the configured window. Supplier
// identity tolerates small spelling differences.
func (d *Detector) duplicateInvoices(invoices []*models.Invoice) []*Anomaly {
	var anomalies []*Anomaly
	for i := 0; i < len(invoices); i++ {
		for j := i + 1; j < len(invoices); j++ {
			a, b := invoices[i], invoices[j]
			if !d.sameSupplier(a.Fournisseur, b.Fournisseur) {
				continue
			}
			if !d.amountsNearIdentical(a.MontantTTC, b.MontantTTC) {
				continue
			}
			dayDiff := math.Abs(a.EffectiveDate().Sub(b.EffectiveDate()).Hours()) / 24
			if dayDiff > float64(d.config.DuplicateInvoiceWindowDays) {
				continue
			}
			amount := b.MontantTTC
			anomalies = append(anomalies, &Anomaly{
				Kind:        KindDuplicateInvoice,
				Severity:    SeverityWarning,
				Description: fmt.Sprintf("Facture en doublon probable de %s (fournisseur %s, montant proche)", a.ID, a.Fournisseur),
				FactureID:   b.ID,
				Montant:     &amount,
			})
		}
	}
	return anomalies
}

func (d *Detector) sameSupplier(a, b string) bool {
	na := matching.NormalizeSupplier(a)
	nb := matching.NormalizeSupplier(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return levenshtein.ComputeDistance(na, nb) <= d.config.SupplierDistanceMax
}

func (d *Detector) amountsNearIdentical(a, b decimal.Decimal) bool {
	aAbs, bAbs := a.Abs(), b.Abs()
	if aAbs.IsZero() && bAbs.IsZero() {
		return true
	}
	maxVal := aAbs
	if bAbs.GreaterThan(aAbs) {
		maxVal = bAbs
	}
	if maxVal.IsZero() {
		return false
	}
	diffPct := aAbs.Sub(bAbs).Abs().Div(maxVal).InexactFloat64() * 100
	return diffPct <= d.config.DuplicateInvoiceTolerancePct
}

// missingTVACodes flags expense transactions without a usable VAT code.
func (d *Detector) missingTVACodes(transactions []*models.Transaction) []*Anomaly {
	var anomalies []*Anomaly
	for _, tx := range transactions {
		if !tx.IsExpense() {
			continue
		}
		if models.IsValidTVACode(tx.CodeTVA) {
			continue
		}
		anomalies = append(anomalies, &Anomaly{
			Kind:          KindTVADiscrepancy,
			Severity:      SeverityWarning,
			Description:   "Transaction sans code TVA exploitable pour la declaration",
			TransactionID: tx.ID,
		})
	}
	return anomalies
}

// highAmounts flags any transaction above the configured alert threshold,
// matched or not.
func (d *Detector) highAmounts(transactions []*models.Transaction) []*Anomaly {
	var anomalies []*Anomaly
	for _, tx := range transactions {
		if !tx.AbsAmount().GreaterThan(d.matchCfg.AnomalyAmountThreshold) {
			continue
		}
		amount := tx.Amount
		anomalies = append(anomalies, &Anomaly{
			Kind:          KindHighAmount,
			Severity:      SeverityWarning,
			Description:   fmt.Sprintf("Montant eleve: %s (seuil %s)", tx.Amount.StringFixed(2), d.matchCfg.AnomalyAmountThreshold.StringFixed(2)),
			TransactionID: tx.ID,
			Montant:       &amount,
		})
	}
	return anomalies
}

func (d *Detector) unmatchedTransactions(result *matching.MatchingResult) []*Anomaly {
	var anomalies []*Anomaly
	for _, tx := range result.UnmatchedTransactions {
		amount := tx.Amount
		anomalies = append(anomalies, &Anomaly{
			Kind:          KindTransactionWithoutInvoice,
			Severity:      SeverityInfo,
			Description:   "Transaction sans facture correspondante",
			TransactionID: tx.ID,
			Montant:       &amount,
		})
	}
	return anomalies
}

func (d *Detector) unmatchedInvoices(result *matching.MatchingResult) []*Anomaly {
	var anomalies []*Anomaly
	for _, inv := range result.UnmatchedInvoices {
		amount := inv.MontantTTC
		anomalies = append(anomalies, &Anomaly{
			Kind:        KindInvoiceWithoutTransaction,
			Severity:    SeverityInfo,
			Description: "Facture sans transaction correspondante",
			FactureID:   inv.ID,
			Montant:     &amount,
		})
	}
	return anomalies
}

// amountDiscrepancies flags pairings whose two amounts differ beyond the
// configured tolerance despite being matched.
func (d *Detector) amountDiscrepancies(result *matching.MatchingResult) []*Anomaly {
	var anomalies []*Anomaly
	for _, s := range allMatches(result) {
		if s.Score.Details.AmountDiffPct <= d.matchCfg.AmountTolerancePct {
			continue
		}
		paid := s.Transaction.AbsAmount()
		expected := s.Invoice.MontantTTC.Abs()
		ecart := paid.Sub(expected)
		anomalies = append(anomalies, &Anomaly{
			Kind:           KindAmountDiscrepancy,
			Severity:       SeverityWarning,
			Description:    fmt.Sprintf("Ecart de montant de %.1f%% entre facture et transaction", s.Score.Details.AmountDiffPct),
			TransactionID:  s.Transaction.ID,
			FactureID:      s.Invoice.ID,
			Montant:        &paid,
			MontantAttendu: &expected,
			Ecart:          &ecart,
		})
	}
	return anomalies
}

// incoherentDates flags pairings where the payment precedes the invoice
// date by more than the allowed lead.
func (d *Detector) incoherentDates(result *matching.MatchingResult) []*Anomaly {
	var anomalies []*Anomaly
	for _, s := range allMatches(result) {
		invDate := s.Invoice.EffectiveDate()
		if invDate.IsZero() || s.Transaction.Date.IsZero() {
			continue
		}
		lead := invDate.Sub(s.Transaction.Date).Hours() / 24
		if lead <= float64(d.config.PaymentLeadMaxDays) {
			continue
		}
		anomalies = append(anomalies, &Anomaly{
			Kind:          KindIncoherentDate,
			Severity:      SeverityInfo,
			Description:   fmt.Sprintf("Paiement anterieur de %d jours a la date de facture", int(lead)),
			TransactionID: s.Transaction.ID,
			FactureID:     s.Invoice.ID,
		})
	}
	return anomalies
}

func allMatches(result *matching.MatchingResult) []*matching.MatchSuggestion {
	all := make([]*matching.MatchSuggestion, 0, len(result.AutoMatched)+len(result.Suggestions))
	all = append(all, result.AutoMatched...)
	return append(all, result.Suggestions...)
}

// severityRank orders severities for sorting in reports.
func severityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}
