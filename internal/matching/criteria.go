package matching

import (
	"math"
	"strings"
	"time"

	"finsoft-matching-engine/internal/models"

	"github.com/shopspring/decimal"
)

// Maximum sub-scores per criterion. The raw total over all five criteria
// caps at 130 and is normalized to 100 by the smart scorer.
const (
	MaxAmountScore        = 40
	MaxDateScore          = 20
	MaxSupplierScore      = 25
	MaxInvoiceNumberScore = 30
	MaxIBANBonusScore     = 15
)

// invalidDateDiffDays is the sentinel day difference reported when either
// date is missing or unparseable.
const invalidDateDiffDays = 999

// AmountResult carries the amount sub-score and its diagnostic.
type AmountResult struct {
	Score   int
	DiffPct float64
}

// ScoreAmount compares the invoice total against the transaction amount,
// both taken as absolute values, as a percentage difference of the larger
// one. Tiers: exact 40, within 0.5% 38, 1% 35, 2% 25, 5% 15, beyond 0.
// Two zero amounts are a trivial exact match; exactly one zero scores 0.
func ScoreAmount(factureTTC, transactionAmount decimal.Decimal) AmountResult {
	fAbs := factureTTC.Abs()
	tAbs := transactionAmount.Abs()

	if fAbs.IsZero() && tAbs.IsZero() {
		return AmountResult{Score: MaxAmountScore, DiffPct: 0}
	}
	if fAbs.IsZero() || tAbs.IsZero() {
		return AmountResult{Score: 0, DiffPct: 100}
	}

	diff := fAbs.Sub(tAbs).Abs()
	maxVal := fAbs
	if tAbs.GreaterThan(fAbs) {
		maxVal = tAbs
	}
	diffPct := diff.Div(maxVal).InexactFloat64() * 100

	var score int
	switch {
	case diff.IsZero():
		score = MaxAmountScore
	case diffPct <= 0.5:
		score = 38
	case diffPct <= 1:
		score = 35
	case diffPct <= 2:
		score = 25
	case diffPct <= 5:
		score = 15
	}

	return AmountResult{Score: score, DiffPct: diffPct}
}

// DateResult carries the date sub-score and the day difference.
type DateResult struct {
	Score    int
	DiffDays int
}

// ScoreDate scores the absolute day difference between the invoice date
// and the transaction date, gated by the configured window. Tiers: same
// day 20, 1 day 18, 3 days 15, 5 days 10, 7 days 5, beyond 0. A missing
// date on either side forces 0 with a sentinel day difference.
func ScoreDate(invoiceDate, transactionDate time.Time, windowDays int) DateResult {
	if invoiceDate.IsZero() || transactionDate.IsZero() {
		return DateResult{Score: 0, DiffDays: invalidDateDiffDays}
	}

	diffDays := int(math.Round(math.Abs(invoiceDate.Sub(transactionDate).Hours()) / 24))

	if diffDays > windowDays {
		return DateResult{Score: 0, DiffDays: diffDays}
	}

	var score int
	switch {
	case diffDays == 0:
		score = MaxDateScore
	case diffDays <= 1:
		score = 18
	case diffDays <= 3:
		score = 15
	case diffDays <= 5:
		score = 10
	case diffDays <= 7:
		score = 5
	}

	return DateResult{Score: score, DiffDays: diffDays}
}

// SupplierResult carries the supplier sub-score and the word similarity
// percentage used to derive it.
type SupplierResult struct {
	Score      int
	Similarity int
}

// ScoreSupplier compares the invoice supplier name against the transaction
// description. Full substring containment of either normalized string in
// the other scores the maximum outright; otherwise the score tiers on the
// fraction of the supplier's significant words found in the description.
func ScoreSupplier(fournisseur, transactionDescription string) SupplierResult {
	if fournisseur == "" {
		return SupplierResult{}
	}

	supplierWords := SignificantWords(fournisseur)
	descWords := SignificantWords(transactionDescription)

	if len(supplierWords) == 0 {
		return SupplierResult{}
	}

	normSupplier := NormalizeText(fournisseur)
	normDesc := NormalizeText(transactionDescription)
	if normDesc == "" {
		return SupplierResult{}
	}

	if strings.Contains(normDesc, normSupplier) || strings.Contains(normSupplier, normDesc) {
		return SupplierResult{Score: MaxSupplierScore, Similarity: 100}
	}

	matched := 0
	for _, sw := range supplierWords {
		for _, dw := range descWords {
			if strings.Contains(dw, sw) || strings.Contains(sw, dw) {
				matched++
				break
			}
		}
	}

	similarity := int(math.Round(float64(matched) / float64(len(supplierWords)) * 100))

	var score int
	switch {
	case similarity >= 100:
		score = MaxSupplierScore
	case similarity >= 75:
		score = 20
	case similarity >= 50:
		score = 15
	case similarity >= 25:
		score = 8
	}

	return SupplierResult{Score: score, Similarity: similarity}
}

// InvoiceNumberResult carries the invoice-number sub-score and whether the
// number was found in the description.
type InvoiceNumberResult struct {
	Score int
	Found bool
}

// ScoreInvoiceNumber looks for the invoice number inside the transaction
// description. An exact normalized match, with or without internal
// whitespace, scores 30. Failing that, a numeric-only fallback scores 15
// when at least 4 digits of the number appear in the description.
func ScoreInvoiceNumber(numeroFacture, transactionDescription string) InvoiceNumberResult {
	if numeroFacture == "" {
		return InvoiceNumberResult{}
	}

	normNum := NormalizeText(numeroFacture)
	normDesc := NormalizeText(transactionDescription)

	if len(normNum) < 2 {
		return InvoiceNumberResult{}
	}

	if strings.Contains(normDesc, normNum) {
		return InvoiceNumberResult{Score: MaxInvoiceNumberScore, Found: true}
	}

	// "FACT-2026-001" normalizes to "fact 2026 001"; banks often run the
	// segments together, so retry without whitespace on both sides.
	numNoSep := strings.ReplaceAll(normNum, " ", "")
	descNoSep := strings.ReplaceAll(normDesc, " ", "")
	if strings.Contains(descNoSep, numNoSep) {
		return InvoiceNumberResult{Score: MaxInvoiceNumberScore, Found: true}
	}

	// Numeric fallback: a reference like "FACT-2026-00458" often shows up
	// in statements as just "00458". Any digit run of 4 or more from the
	// invoice number counts, as does the full digit sequence.
	numericPart := digitsOnly(normNum)
	if len(numericPart) >= 4 && strings.Contains(normDesc, numericPart) {
		return InvoiceNumberResult{Score: 15, Found: true}
	}
	for _, run := range digitRuns(normNum) {
		if len(run) >= 4 && strings.Contains(normDesc, run) {
			return InvoiceNumberResult{Score: 15, Found: true}
		}
	}

	return InvoiceNumberResult{}
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// digitRuns returns the maximal consecutive digit sequences in s.
func digitRuns(s string) []string {
	var runs []string
	start := -1
	for i, r := range s {
		if r >= '0' && r <= '9' {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			runs = append(runs, s[start:i])
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, s[start:])
	}
	return runs
}

// IBANHistoryResult carries the history bonus sub-score and whether a
// stored pattern matched.
type IBANHistoryResult struct {
	Score int
	Match bool
}

// ScoreIBANHistory awards the bonus when the transaction description
// matches a known pattern or IBAN prefix from the supplier's learning
// history. No history entry for the supplier means no bonus, no error.
func ScoreIBANHistory(fournisseur, transactionDescription string, histories []*models.SupplierHistory) IBANHistoryResult {
	if fournisseur == "" || len(histories) == 0 {
		return IBANHistoryResult{}
	}

	normSupplier := NormalizeText(fournisseur)

	var history *models.SupplierHistory
	for _, h := range histories {
		if h.SupplierNormalized == normSupplier || NormalizeText(h.SupplierName) == normSupplier {
			history = h
			break
		}
	}

	if history == nil {
		return IBANHistoryResult{}
	}

	normDesc := NormalizeText(transactionDescription)
	if normDesc == "" {
		return IBANHistoryResult{}
	}

	for _, pattern := range history.TransactionPatterns {
		normPattern := NormalizeText(pattern)
		if normPattern == "" {
			continue
		}
		if strings.Contains(normDesc, normPattern) || strings.Contains(normPattern, normDesc) {
			return IBANHistoryResult{Score: MaxIBANBonusScore, Match: true}
		}
	}

	for _, iban := range history.IBANPatterns {
		if strings.Contains(normDesc, NormalizeText(iban)) {
			return IBANHistoryResult{Score: MaxIBANBonusScore, Match: true}
		}
	}

	return IBANHistoryResult{}
}
