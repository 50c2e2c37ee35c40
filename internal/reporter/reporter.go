// Package reporter renders matching results and detected anomalies for
// human review or downstream tooling.
//
// Supported output formats:
//   - Console: readable summary for terminal display
//   - JSON: structured output for programmatic consumption
//   - CSV: flat pairing list for spreadsheet review
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"finsoft-matching-engine/internal/anomaly"
	"finsoft-matching-engine/internal/matching"
)

// OutputFormat selects how a report is rendered.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ParseOutputFormat converts a user-supplied format string.
func ParseOutputFormat(s string) (OutputFormat, error) {
	f := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if !f.IsValid() {
		return "", fmt.Errorf("unsupported output format %q: must be console, json or csv", s)
	}
	return f, nil
}

// Report bundles everything one run produced. Anomalies is nil when
// detection was not requested.
type Report struct {
	GeneratedAt time.Time                `json:"generated_at"`
	Matching    *matching.MatchingResult `json:"matching"`
	Anomalies   *anomaly.Result          `json:"anomalies,omitempty"`
}

// Reporter renders reports in the configured format.
type Reporter struct {
	format OutputFormat
}

// NewReporter builds a reporter for the given format.
func NewReporter(format OutputFormat) (*Reporter, error) {
	if !format.IsValid() {
		return nil, fmt.Errorf("unsupported output format %q", format)
	}
	return &Reporter{format: format}, nil
}

// Write renders the report to w.
func (r *Reporter) Write(w io.Writer, report *Report) error {
	switch r.format {
	case FormatJSON:
		return r.writeJSON(w, report)
	case FormatCSV:
		return r.writeCSV(w, report)
	default:
		return r.writeConsole(w, report)
	}
}

func (r *Reporter) writeJSON(w io.Writer, report *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// writeCSV emits one row per pairing, then one row per anomaly when
// detection ran.
func (r *Reporter) writeCSV(w io.Writer, report *Report) error {
	cw := csv.NewWriter(w)

	if err := cw.Write([]string{"record_type", "facture_id", "transaction_id", "type", "score", "amount_score", "date_score", "supplier_score", "invoice_number_score", "iban_bonus", "partial", "detail"}); err != nil {
		return err
	}

	writeMatch := func(s *matching.MatchSuggestion) error {
		partial := ""
		if s.PartialPayment != nil {
			partial = fmt.Sprintf("%d%%", s.PartialPayment.CoveragePct)
		}
		return cw.Write([]string{
			"match",
			s.Invoice.ID,
			s.Transaction.ID,
			string(s.Type),
			strconv.Itoa(s.Score.Total),
			strconv.Itoa(s.Score.Details.Amount),
			strconv.Itoa(s.Score.Details.Date),
			strconv.Itoa(s.Score.Details.Supplier),
			strconv.Itoa(s.Score.Details.InvoiceNumber),
			strconv.Itoa(s.Score.Details.IBANBonus),
			partial,
			"",
		})
	}

	for _, s := range report.Matching.AutoMatched {
		if err := writeMatch(s); err != nil {
			return err
		}
	}
	for _, s := range report.Matching.Suggestions {
		if err := writeMatch(s); err != nil {
			return err
		}
	}

	for _, inv := range report.Matching.UnmatchedInvoices {
		if err := cw.Write([]string{"unmatched_facture", inv.ID, "", "", "", "", "", "", "", "", "", inv.Fournisseur}); err != nil {
			return err
		}
	}
	for _, tx := range report.Matching.UnmatchedTransactions {
		if err := cw.Write([]string{"unmatched_transaction", "", tx.ID, "", "", "", "", "", "", "", "", tx.Description}); err != nil {
			return err
		}
	}

	if report.Anomalies != nil {
		for _, a := range report.Anomalies.Anomalies {
			if err := cw.Write([]string{"anomaly", a.FactureID, a.TransactionID, string(a.Kind), "", "", "", "", "", "", string(a.Severity), a.Description}); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}

func (r *Reporter) writeConsole(w io.Writer, report *Report) error {
	m := report.Matching

	fmt.Fprintln(w, "RAPPROCHEMENT BANCAIRE")
	fmt.Fprintln(w, strings.Repeat("=", 60))
	fmt.Fprintf(w, "Genere le %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(w, "Rapprochements automatiques : %d\n", len(m.AutoMatched))
	fmt.Fprintf(w, "Suggestions a valider       : %d\n", len(m.Suggestions))
	fmt.Fprintf(w, "Factures sans transaction   : %d\n", len(m.UnmatchedInvoices))
	fmt.Fprintf(w, "Transactions sans facture   : %d\n", len(m.UnmatchedTransactions))

	if len(m.AutoMatched) > 0 {
		fmt.Fprintf(w, "\nAUTOMATIQUES\n%s\n", strings.Repeat("-", 60))
		for _, s := range m.AutoMatched {
			writeConsoleMatch(w, s)
		}
	}

	if len(m.Suggestions) > 0 {
		fmt.Fprintf(w, "\nSUGGESTIONS\n%s\n", strings.Repeat("-", 60))
		for _, s := range m.Suggestions {
			writeConsoleMatch(w, s)
		}
	}

	if len(m.UnmatchedInvoices) > 0 {
		fmt.Fprintf(w, "\nFACTURES SANS TRANSACTION\n%s\n", strings.Repeat("-", 60))
		for _, inv := range m.UnmatchedInvoices {
			fmt.Fprintf(w, "  %-12s %-24s %10s\n", inv.ID, truncate(inv.Fournisseur, 24), inv.MontantTTC.StringFixed(2))
		}
	}

	if len(m.UnmatchedTransactions) > 0 {
		fmt.Fprintf(w, "\nTRANSACTIONS SANS FACTURE\n%s\n", strings.Repeat("-", 60))
		for _, tx := range m.UnmatchedTransactions {
			fmt.Fprintf(w, "  %-12s %-24s %10s\n", tx.ID, truncate(tx.Description, 24), tx.Amount.StringFixed(2))
		}
	}

	if report.Anomalies != nil {
		a := report.Anomalies
		fmt.Fprintf(w, "\nANOMALIES (%d : %d critiques, %d alertes, %d infos)\n%s\n",
			a.Stats.Total, a.Stats.Critical, a.Stats.Warning, a.Stats.Info, strings.Repeat("-", 60))
		for _, an := range a.Anomalies {
			fmt.Fprintf(w, "  [%-8s] %-26s %s\n", an.Severity, an.Kind, an.Description)
		}
	}

	return nil
}

func writeConsoleMatch(w io.Writer, s *matching.MatchSuggestion) {
	fmt.Fprintf(w, "  %-12s <-> %-12s score %3d  (montant %2d, date %2d, fournisseur %2d, numero %2d, iban %2d)\n",
		s.Invoice.ID, s.Transaction.ID, s.Score.Total,
		s.Score.Details.Amount, s.Score.Details.Date, s.Score.Details.Supplier,
		s.Score.Details.InvoiceNumber, s.Score.Details.IBANBonus)
	if s.PartialPayment != nil {
		fmt.Fprintf(w, "               paiement partiel: %d%% couvert, reste %s (transactions liees: %s)\n",
			s.PartialPayment.CoveragePct, s.PartialPayment.Remaining.StringFixed(2),
			strings.Join(s.PartialPayment.RelatedTransactionIDs, ", "))
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
