package matching

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"finsoft-matching-engine/internal/models"
)

// minPatternLen filters out extracted patterns too short to discriminate.
const minPatternLen = 3

var (
	legalFormRe     = regexp.MustCompile(`\b(sas|sarl|eurl|sa|srl|sci|et\s+cie|inc|ltd|gmbh)\b`)
	bankingPrefixRe = regexp.MustCompile(`^(virement|vir|prelevement|prlv|carte|cb|paiement|cheque|chq)\s*(sepa|europeen)?\s*`)
	referenceRe     = regexp.MustCompile(`\b(ref|reference|n°|num|facture|fact)\s*[:.]?\s*\S+`)
	shortDateRe     = regexp.MustCompile(`\b\d{2}[/-]\d{2}[/-]\d{2,4}\b`)
	ibanPrefixRe    = regexp.MustCompile(`(?i)\b([A-Z]{2}\d{2}[A-Z0-9]{4})`)
	nonAlnumRe      = regexp.MustCompile(`[^a-z0-9\s]`)
)

// NormalizeSupplier lowercases a supplier name, strips accents and legal
// form suffixes, and collapses whitespace. "Boulangerie Dupont SARL" and
// "BOULANGERIE DUPONT" normalize to the same key.
func NormalizeSupplier(name string) string {
	s := stripAccents(name)
	s = nonAlnumRe.ReplaceAllString(s, " ")
	s = legalFormRe.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}

// ExtractTransactionPattern reduces a bank statement line to the stable
// part naming the counterparty. Banking operation prefixes, reference
// tokens and short dates are stripped:
// "VIR SEPA DURAND PEINTURE REF 2026-003" yields "durand peinture".
func ExtractTransactionPattern(description string) string {
	s := stripAccents(description)
	s = bankingPrefixRe.ReplaceAllString(s, "")
	s = referenceRe.ReplaceAllString(s, "")
	s = shortDateRe.ReplaceAllString(s, "")
	s = nonAlnumRe.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// ExtractIBANPattern returns the uppercased 8-character IBAN prefix found
// in a description, or "" when none is present.
func ExtractIBANPattern(description string) string {
	m := ibanPrefixRe.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return strings.ToUpper(m[1])
}

// UpdateSupplierHistory folds one confirmed match into the supplier's
// learning record. It never mutates its inputs: an updated clone is
// returned when the supplier is known, a fresh record otherwise. Pattern
// and IBAN lists are deduplicated and capped, evicting the oldest entries
// first.
func UpdateSupplierHistory(histories []*models.SupplierHistory, supplierName, transactionDescription string, transactionAmount decimal.Decimal) *models.SupplierHistory {
	normalized := NormalizeSupplier(supplierName)
	pattern := ExtractTransactionPattern(transactionDescription)
	iban := ExtractIBANPattern(transactionDescription)
	now := time.Now().UTC()
	absAmount := transactionAmount.Abs()

	var existing *models.SupplierHistory
	for _, h := range histories {
		if h.SupplierNormalized == normalized {
			existing = h
			break
		}
	}

	if existing == nil {
		record := &models.SupplierHistory{
			ID:                 uuid.NewString(),
			SupplierName:       supplierName,
			SupplierNormalized: normalized,
			AvgAmount:          absAmount.Round(2),
			MatchCount:         1,
			LastMatchedAt:      now,
		}
		if len(pattern) >= minPatternLen {
			record.TransactionPatterns = []string{pattern}
		}
		if iban != "" {
			record.IBANPatterns = []string{iban}
		}
		return record
	}

	updated := existing.Clone()

	if len(pattern) >= minPatternLen {
		updated.TransactionPatterns = appendCapped(updated.TransactionPatterns, pattern, models.MaxTransactionPatterns)
	}
	if iban != "" {
		updated.IBANPatterns = appendCapped(updated.IBANPatterns, iban, models.MaxIBANPatterns)
	}

	prevCount := decimal.NewFromInt(int64(updated.MatchCount))
	newCount := updated.MatchCount + 1
	updated.AvgAmount = updated.AvgAmount.Mul(prevCount).Add(absAmount).
		Div(decimal.NewFromInt(int64(newCount))).Round(2)
	updated.MatchCount = newCount
	updated.LastMatchedAt = now

	return updated
}

// appendCapped adds value to list unless already present, then trims the
// oldest entries to keep at most limit.
func appendCapped(list []string, value string, limit int) []string {
	for _, v := range list {
		if v == value {
			return list
		}
	}
	list = append(list, value)
	if len(list) > limit {
		list = list[len(list)-limit:]
	}
	return list
}
