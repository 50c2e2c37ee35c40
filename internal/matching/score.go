package matching

import (
	"math"

	"finsoft-matching-engine/internal/models"
)

// MaxRawScore is the sum of the five criterion maxima before normalization.
const MaxRawScore = MaxAmountScore + MaxDateScore + MaxSupplierScore + MaxInvoiceNumberScore + MaxIBANBonusScore

// ScoreDetails breaks a match score down per criterion, with the
// diagnostics each scorer produced.
type ScoreDetails struct {
	Amount        int     `json:"amount"`
	AmountDiffPct float64 `json:"amount_diff_pct"`
	Date          int     `json:"date"`
	DateDiffDays  int     `json:"date_diff_days"`
	Supplier      int     `json:"supplier"`
	SupplierPct   int     `json:"supplier_pct"`
	InvoiceNumber int     `json:"invoice_number"`
	InvoiceFound  bool    `json:"invoice_found"`
	IBANBonus     int     `json:"iban_bonus"`
	IBANMatch     bool    `json:"iban_match"`
}

// MatchScore is the aggregate result of scoring one invoice against one
// transaction. Total is normalized to [0, 100]; RawTotal is the unscaled
// criterion sum out of 130. Description mirrors the supplier similarity
// percentage for backward compatibility with older report consumers.
type MatchScore struct {
	Total       int          `json:"total"`
	RawTotal    int          `json:"raw_total"`
	Details     ScoreDetails `json:"details"`
	Description int          `json:"description"`
	Method      string       `json:"method"`
}

// CalculateSmartScore scores an invoice against a transaction across all
// five criteria and normalizes the raw sum to a 0-100 confidence value.
func CalculateSmartScore(invoice *models.Invoice, tx *models.Transaction, histories []*models.SupplierHistory, cfg *Config) MatchScore {
	amount := ScoreAmount(invoice.MontantTTC, tx.Amount)
	date := ScoreDate(invoice.EffectiveDate(), tx.Date, cfg.DateWindowDays)
	supplier := ScoreSupplier(invoice.Fournisseur, tx.Description)
	invNum := ScoreInvoiceNumber(invoice.NumeroFacture, tx.Description)
	iban := ScoreIBANHistory(invoice.Fournisseur, tx.Description, histories)

	raw := amount.Score + date.Score + supplier.Score + invNum.Score + iban.Score

	total := int(math.Round(float64(raw) / float64(MaxRawScore) * 100))
	if total > 100 {
		total = 100
	}

	return MatchScore{
		Total:    total,
		RawTotal: raw,
		Details: ScoreDetails{
			Amount:        amount.Score,
			AmountDiffPct: amount.DiffPct,
			Date:          date.Score,
			DateDiffDays:  date.DiffDays,
			Supplier:      supplier.Score,
			SupplierPct:   supplier.Similarity,
			InvoiceNumber: invNum.Score,
			InvoiceFound:  invNum.Found,
			IBANBonus:     iban.Score,
			IBANMatch:     iban.Match,
		},
		Description: supplier.Similarity,
		Method:      "smart",
	}
}
