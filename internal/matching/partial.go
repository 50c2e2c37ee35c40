package matching

import (
	"github.com/shopspring/decimal"

	"finsoft-matching-engine/internal/models"
)

// descriptionPrefixLen is how many leading characters of the normalized
// description must agree for two transactions to count as installments of
// the same payment series. Deliberately crude; see DESIGN.md.
const descriptionPrefixLen = 10

// PartialPaymentInfo flags a suggestion whose transaction settles only
// part of the invoice, aggregated with any complementary transactions
// found in the pool.
type PartialPaymentInfo struct {
	IsPartial             bool            `json:"is_partial"`
	TotalFacture          decimal.Decimal `json:"total_facture"`
	AmountPaid            decimal.Decimal `json:"amount_paid"`
	Remaining             decimal.Decimal `json:"remaining"`
	CoveragePct           int             `json:"coverage_pct"`
	RelatedTransactionIDs []string        `json:"related_transaction_ids"`
}

// detectPartialPayment checks whether tx looks like a partial settlement
// of the invoice. The single transaction must cover between 20% and
// (100 - tolerance)% of the invoice total. Complementary transactions are
// then accumulated from the pool: each must land within 5% of the gap
// still open and share the paying party's normalized description prefix.
func detectPartialPayment(invoice *models.Invoice, tx *models.Transaction, pool []*models.Transaction, cfg *Config) *PartialPaymentInfo {
	factureTTC := invoice.MontantTTC
	txAbs := tx.AbsAmount()

	if !factureTTC.IsPositive() || !txAbs.IsPositive() {
		return nil
	}

	coverage := txAbs.Div(factureTTC).InexactFloat64() * 100
	if coverage < 20 || coverage >= 100-cfg.PartialPaymentTolerance {
		return nil
	}

	txPrefix := normalizedPrefix(tx.Description)
	relatedIDs := []string{tx.ID}
	paid := txAbs

	for _, other := range pool {
		if other.ID == tx.ID {
			continue
		}
		otherAbs := other.AbsAmount()
		if !otherAbs.IsPositive() {
			continue
		}

		gap := factureTTC.Sub(paid)
		if !gap.IsPositive() {
			break
		}
		if otherAbs.Sub(gap).Abs().Div(gap).InexactFloat64() >= 0.05 {
			continue
		}
		if normalizedPrefix(other.Description) != txPrefix {
			continue
		}

		relatedIDs = append(relatedIDs, other.ID)
		paid = paid.Add(otherAbs)
	}

	coveragePct := int(paid.Div(factureTTC).Mul(decimal.NewFromInt(100)).Round(0).IntPart())

	return &PartialPaymentInfo{
		IsPartial:             true,
		TotalFacture:          factureTTC,
		AmountPaid:            paid,
		Remaining:             factureTTC.Sub(paid),
		CoveragePct:           coveragePct,
		RelatedTransactionIDs: relatedIDs,
	}
}

func normalizedPrefix(description string) string {
	norm := NormalizeText(description)
	if len(norm) > descriptionPrefixLen {
		return norm[:descriptionPrefixLen]
	}
	return norm
}
