package matching

import (
	"context"
	"reflect"
	"testing"

	"finsoft-matching-engine/internal/models"
)

func newTestEngine(t *testing.T, cfg *Config) *Engine {
	t.Helper()
	engine, err := NewEngine(cfg, nil)
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	return engine
}

func TestEngineMatchEDFScenario(t *testing.T) {
	invoices := []*models.Invoice{
		{
			ID:            "F-001",
			Fournisseur:   "EDF",
			NumeroFacture: "FCT-001",
			MontantTTC:    d("142.50"),
			DateFacture:   day("2026-01-10"),
		},
	}
	transactions := []*models.Transaction{
		{
			ID:          "T-001",
			Description: "PRLV EDF ENERGIE",
			Amount:      d("142.50"),
			Date:        day("2026-01-12"),
			Type:        models.TransactionTypeExpense,
		},
	}

	engine := newTestEngine(t, nil)
	result, err := engine.Match(context.Background(), invoices, transactions, nil)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	if len(result.AutoMatched) != 0 {
		t.Errorf("auto matched = %d, want 0", len(result.AutoMatched))
	}
	if len(result.Suggestions) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(result.Suggestions))
	}

	s := result.Suggestions[0]
	if s.Score.Total != 62 {
		t.Errorf("score = %d, want 62", s.Score.Total)
	}
	if s.Type != MatchSuggested {
		t.Errorf("type = %q, want %q", s.Type, MatchSuggested)
	}
	if s.Confidence != s.Score.Total {
		t.Errorf("confidence = %d, want %d", s.Confidence, s.Score.Total)
	}
	if len(result.UnmatchedInvoices) != 0 || len(result.UnmatchedTransactions) != 0 {
		t.Errorf("unexpected unmatched records: %d invoices, %d transactions",
			len(result.UnmatchedInvoices), len(result.UnmatchedTransactions))
	}
}

func TestEngineMatchAutoThreshold(t *testing.T) {
	invoices := []*models.Invoice{
		{
			ID:            "F-001",
			Fournisseur:   "Orange SA",
			NumeroFacture: "FACT-2026-0042",
			MontantTTC:    d("89.90"),
			DateFacture:   day("2026-02-05"),
		},
	}
	transactions := []*models.Transaction{
		{
			ID:          "T-001",
			Description: "PRLV ORANGE SA FACT 2026 0042",
			Amount:      d("89.90"),
			Date:        day("2026-02-05"),
			Type:        models.TransactionTypeExpense,
		},
	}

	engine := newTestEngine(t, nil)
	result, err := engine.Match(context.Background(), invoices, transactions, nil)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	if len(result.AutoMatched) != 1 {
		t.Fatalf("auto matched = %d, want 1", len(result.AutoMatched))
	}
	auto := result.AutoMatched[0]
	if auto.Type != MatchAuto {
		t.Errorf("type = %q, want %q", auto.Type, MatchAuto)
	}
	if auto.Score.Total < DefaultConfig().AutoThreshold {
		t.Errorf("auto score %d below threshold", auto.Score.Total)
	}
	if auto.PartialPayment != nil {
		t.Error("auto matches must not carry partial payment info")
	}
}

func TestEngineMatchIgnoresIncome(t *testing.T) {
	invoices := []*models.Invoice{
		{ID: "F-001", Fournisseur: "EDF", MontantTTC: d("100.00"), DateFacture: day("2026-01-10")},
	}
	transactions := []*models.Transaction{
		{
			ID:          "T-001",
			Description: "VIR EDF REMBOURSEMENT",
			Amount:      d("100.00"),
			Date:        day("2026-01-10"),
			Type:        models.TransactionTypeIncome,
		},
	}

	engine := newTestEngine(t, nil)
	result, err := engine.Match(context.Background(), invoices, transactions, nil)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	if len(result.AutoMatched)+len(result.Suggestions) != 0 {
		t.Error("income transactions must not participate in matching")
	}
	if len(result.UnmatchedInvoices) != 1 {
		t.Errorf("unmatched invoices = %d, want 1", len(result.UnmatchedInvoices))
	}
	if len(result.UnmatchedTransactions) != 0 {
		t.Errorf("income transactions must not be reported as unmatched, got %d", len(result.UnmatchedTransactions))
	}
}

func TestEngineMatchOneToOne(t *testing.T) {
	// Two identical invoices compete for one transaction.
	invoices := []*models.Invoice{
		{ID: "F-001", Fournisseur: "EDF", MontantTTC: d("142.50"), DateFacture: day("2026-01-10")},
		{ID: "F-002", Fournisseur: "EDF", MontantTTC: d("142.50"), DateFacture: day("2026-01-10")},
	}
	transactions := []*models.Transaction{
		{ID: "T-001", Description: "PRLV EDF ENERGIE", Amount: d("142.50"), Date: day("2026-01-10"), Type: models.TransactionTypeExpense},
	}

	engine := newTestEngine(t, nil)
	result, err := engine.Match(context.Background(), invoices, transactions, nil)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	matched := append(append([]*MatchSuggestion{}, result.AutoMatched...), result.Suggestions...)
	if len(matched) != 1 {
		t.Fatalf("matched pairs = %d, want 1", len(matched))
	}
	// Equal scores tie-break on invoice ID.
	if matched[0].Invoice.ID != "F-001" {
		t.Errorf("tie-break winner = %s, want F-001", matched[0].Invoice.ID)
	}
	if len(result.UnmatchedInvoices) != 1 || result.UnmatchedInvoices[0].ID != "F-002" {
		t.Errorf("expected F-002 unmatched, got %+v", result.UnmatchedInvoices)
	}
}

func TestEngineMatchDeterminism(t *testing.T) {
	invoices := []*models.Invoice{
		{ID: "F-001", Fournisseur: "EDF", MontantTTC: d("142.50"), DateFacture: day("2026-01-10")},
		{ID: "F-002", Fournisseur: "Orange SA", MontantTTC: d("89.90"), DateFacture: day("2026-01-15")},
		{ID: "F-003", Fournisseur: "Durand Peinture", MontantTTC: d("2400.00"), DateFacture: day("2026-01-20")},
	}
	transactions := []*models.Transaction{
		{ID: "T-001", Description: "PRLV EDF ENERGIE", Amount: d("142.50"), Date: day("2026-01-11"), Type: models.TransactionTypeExpense},
		{ID: "T-002", Description: "PRLV ORANGE", Amount: d("89.90"), Date: day("2026-01-15"), Type: models.TransactionTypeExpense},
		{ID: "T-003", Description: "VIR SEPA DURAND PEINTURE", Amount: d("2400.00"), Date: day("2026-01-22"), Type: models.TransactionTypeExpense},
	}

	engine := newTestEngine(t, nil)

	first, err := engine.Match(context.Background(), invoices, transactions, nil)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := engine.Match(context.Background(), invoices, transactions, nil)
		if err != nil {
			t.Fatalf("Match failed on repeat %d: %v", i, err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs from first run", i)
		}
	}
}

func TestEngineMatchCompleteness(t *testing.T) {
	invoices := []*models.Invoice{
		{ID: "F-001", Fournisseur: "EDF", MontantTTC: d("142.50"), DateFacture: day("2026-01-10")},
		{ID: "F-002", Fournisseur: "Inconnu SARL", MontantTTC: d("999.99"), DateFacture: day("2026-03-01")},
	}
	transactions := []*models.Transaction{
		{ID: "T-001", Description: "PRLV EDF ENERGIE", Amount: d("142.50"), Date: day("2026-01-11"), Type: models.TransactionTypeExpense},
		{ID: "T-002", Description: "CB STATION TOTAL", Amount: d("55.20"), Date: day("2026-02-10"), Type: models.TransactionTypeExpense},
	}

	engine := newTestEngine(t, nil)
	result, err := engine.Match(context.Background(), invoices, transactions, nil)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	seenInvoices := map[string]int{}
	seenTransactions := map[string]int{}
	for _, s := range append(append([]*MatchSuggestion{}, result.AutoMatched...), result.Suggestions...) {
		seenInvoices[s.Invoice.ID]++
		seenTransactions[s.Transaction.ID]++
	}
	for _, inv := range result.UnmatchedInvoices {
		seenInvoices[inv.ID]++
	}
	for _, tx := range result.UnmatchedTransactions {
		seenTransactions[tx.ID]++
	}

	for _, inv := range invoices {
		if seenInvoices[inv.ID] != 1 {
			t.Errorf("invoice %s appears %d times in the result, want exactly 1", inv.ID, seenInvoices[inv.ID])
		}
	}
	for _, tx := range transactions {
		if seenTransactions[tx.ID] != 1 {
			t.Errorf("transaction %s appears %d times in the result, want exactly 1", tx.ID, seenTransactions[tx.ID])
		}
	}
}

func TestEngineMatchEmptyInputs(t *testing.T) {
	engine := newTestEngine(t, nil)

	invoices := []*models.Invoice{
		{ID: "F-001", Fournisseur: "EDF", MontantTTC: d("142.50"), DateFacture: day("2026-01-10")},
	}
	transactions := []*models.Transaction{
		{ID: "T-001", Description: "PRLV EDF", Amount: d("142.50"), Date: day("2026-01-10"), Type: models.TransactionTypeExpense},
	}

	t.Run("no invoices", func(t *testing.T) {
		result, err := engine.Match(context.Background(), nil, transactions, nil)
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if len(result.AutoMatched)+len(result.Suggestions) != 0 {
			t.Error("expected no matches")
		}
		if len(result.UnmatchedTransactions) != 1 {
			t.Errorf("unmatched transactions = %d, want 1", len(result.UnmatchedTransactions))
		}
	})

	t.Run("no transactions", func(t *testing.T) {
		result, err := engine.Match(context.Background(), invoices, nil, nil)
		if err != nil {
			t.Fatalf("Match failed: %v", err)
		}
		if len(result.AutoMatched)+len(result.Suggestions) != 0 {
			t.Error("expected no matches")
		}
		if len(result.UnmatchedInvoices) != 1 {
			t.Errorf("unmatched invoices = %d, want 1", len(result.UnmatchedInvoices))
		}
	})
}

func TestEngineMatchPartialPayment(t *testing.T) {
	invoices := []*models.Invoice{
		{ID: "F-001", Fournisseur: "Durand Peinture", NumeroFacture: "FACT-2026-0777", MontantTTC: d("2000.00"), DateFacture: day("2026-01-10")},
	}
	transactions := []*models.Transaction{
		{ID: "T-001", Description: "VIR SEPA DURAND PEINTURE FACT 2026 0777 ACOMPTE", Amount: d("1000.00"), Date: day("2026-01-10"), Type: models.TransactionTypeExpense},
		{ID: "T-002", Description: "VIR SEPA DURAND PEINTURE SOLDE", Amount: d("1000.00"), Date: day("2026-02-12"), Type: models.TransactionTypeExpense},
	}

	engine := newTestEngine(t, nil)
	result, err := engine.Match(context.Background(), invoices, transactions, nil)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	if len(result.Suggestions) != 1 {
		t.Fatalf("suggestions = %d, want 1", len(result.Suggestions))
	}

	partial := result.Suggestions[0].PartialPayment
	if partial == nil {
		t.Fatal("expected partial payment info")
	}
	if !partial.IsPartial {
		t.Error("IsPartial = false, want true")
	}
	if partial.CoveragePct != 100 {
		t.Errorf("coverage = %d%%, want 100%% after aggregation", partial.CoveragePct)
	}
	if len(partial.RelatedTransactionIDs) != 2 {
		t.Errorf("related transactions = %v, want both installments", partial.RelatedTransactionIDs)
	}
	if !partial.Remaining.IsZero() {
		t.Errorf("remaining = %s, want 0", partial.Remaining)
	}
}

func TestEngineMatchSuggestionThresholdPrunes(t *testing.T) {
	invoices := []*models.Invoice{
		{ID: "F-001", Fournisseur: "Boulangerie Dupont", MontantTTC: d("50.00"), DateFacture: day("2026-01-10")},
	}
	transactions := []*models.Transaction{
		{ID: "T-001", Description: "CB STATION TOTAL", Amount: d("80.00"), Date: day("2026-03-10"), Type: models.TransactionTypeExpense},
	}

	engine := newTestEngine(t, nil)
	result, err := engine.Match(context.Background(), invoices, transactions, nil)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	if len(result.AutoMatched)+len(result.Suggestions) != 0 {
		t.Error("low scoring pair must be pruned")
	}
	if len(result.UnmatchedInvoices) != 1 || len(result.UnmatchedTransactions) != 1 {
		t.Error("both records must be reported unmatched")
	}
}
