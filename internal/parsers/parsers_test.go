package parsers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"finsoft-matching-engine/internal/models"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("cannot write temp file: %v", err)
	}
	return path
}

func TestInvoiceParserParseFile(t *testing.T) {
	csv := `id,fournisseur,numero_facture,montant_ttc,date_facture
F-001,EDF,FCT-001,"142,50",2026-01-10
F-002,Orange SA,FACT-2026-0042,89.90,15/01/2026
`
	path := writeTempFile(t, "invoices.csv", csv)

	invoices, stats, err := NewInvoiceParser(nil).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	if len(invoices) != 2 {
		t.Fatalf("parsed %d invoices, want 2", len(invoices))
	}
	if stats.HasErrors() {
		t.Errorf("unexpected row errors: %v", stats.Errors)
	}

	first := invoices[0]
	if first.ID != "F-001" || first.Fournisseur != "EDF" {
		t.Errorf("first invoice = %+v", first)
	}
	if first.MontantTTC.String() != "142.5" {
		t.Errorf("montant = %s, want 142.5", first.MontantTTC)
	}
	if invoices[1].DateFacture.Format("2006-01-02") != "2026-01-15" {
		t.Errorf("french date parsed as %s", invoices[1].DateFacture)
	}
}

func TestInvoiceParserSemicolonDelimiter(t *testing.T) {
	csv := `id;fournisseur;montant;date_facture
F-001;Boulangerie Dupont;45,20;2026-02-01
`
	path := writeTempFile(t, "invoices.csv", csv)

	invoices, _, err := NewInvoiceParser(nil).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(invoices) != 1 {
		t.Fatalf("parsed %d invoices, want 1", len(invoices))
	}
	if invoices[0].MontantTTC.String() != "45.2" {
		t.Errorf("montant = %s, want 45.2", invoices[0].MontantTTC)
	}
}

func TestInvoiceParserSkipsBadRows(t *testing.T) {
	csv := `id,fournisseur,montant_ttc,date_facture
F-001,EDF,142.50,2026-01-10
F-002,Orange,not-a-number,2026-01-11
,NoID,50.00,2026-01-12
`
	path := writeTempFile(t, "invoices.csv", csv)

	invoices, stats, err := NewInvoiceParser(nil).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	if len(invoices) != 1 {
		t.Errorf("parsed %d invoices, want 1", len(invoices))
	}
	if len(stats.Errors) != 2 {
		t.Errorf("row errors = %d, want 2", len(stats.Errors))
	}
	if stats.ParsedRows != 1 || stats.SkippedRows != 2 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestInvoiceParserMissingColumn(t *testing.T) {
	csv := `fournisseur,date_facture
EDF,2026-01-10
`
	path := writeTempFile(t, "invoices.csv", csv)

	_, _, err := NewInvoiceParser(nil).ParseFile(context.Background(), path)
	if err == nil {
		t.Fatal("expected error for missing required columns")
	}
}

func TestInvoiceParserFileNotFound(t *testing.T) {
	_, _, err := NewInvoiceParser(nil).ParseFile(context.Background(), "/nonexistent/invoices.csv")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestTransactionParserParseFile(t *testing.T) {
	csv := `id,libelle,montant,date,type,code_tva
T-001,PRLV EDF ENERGIE,-142.50,2026-01-12,expense,TVA20
T-002,VIR CLIENT REGLEMENT,500.00,2026-01-13,income,
T-003,CB STATION TOTAL,"-55,20",13/01/2026,,
`
	path := writeTempFile(t, "transactions.csv", csv)

	transactions, stats, err := NewTransactionParser(nil).ParseFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	if len(transactions) != 3 {
		t.Fatalf("parsed %d transactions, want 3 (errors: %v)", len(transactions), stats.Errors)
	}

	if transactions[0].Type != models.TransactionTypeExpense {
		t.Errorf("explicit expense parsed as %s", transactions[0].Type)
	}
	if transactions[1].Type != models.TransactionTypeIncome {
		t.Errorf("income parsed as %s", transactions[1].Type)
	}
	if transactions[2].Type != models.TransactionTypeExpense {
		t.Errorf("empty type must default to expense, got %s", transactions[2].Type)
	}
	if transactions[2].Amount.String() != "-55.2" {
		t.Errorf("comma amount = %s, want -55.2", transactions[2].Amount)
	}
	if transactions[0].CodeTVA != "TVA20" {
		t.Errorf("code tva = %q", transactions[0].CodeTVA)
	}
}

func TestHistoryParserRoundTrip(t *testing.T) {
	histories := []*models.SupplierHistory{
		{
			ID:                  "h-1",
			SupplierName:        "EDF",
			SupplierNormalized:  "edf",
			TransactionPatterns: []string{"edf energie"},
			IBANPatterns:        []string{"FR761234"},
			MatchCount:          4,
		},
	}

	path := filepath.Join(t.TempDir(), "histories.json")
	parser := NewHistoryParser()

	if err := parser.WriteFile(path, histories); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	loaded, err := parser.ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}

	if len(loaded) != 1 {
		t.Fatalf("loaded %d histories, want 1", len(loaded))
	}
	if loaded[0].SupplierNormalized != "edf" || loaded[0].MatchCount != 4 {
		t.Errorf("loaded history = %+v", loaded[0])
	}
}

func TestHistoryParserRebuildsNormalizedKey(t *testing.T) {
	content := `[{"id":"h-1","supplier_name":"Boulangerie Dupont SARL","supplier_normalized":"","transaction_patterns":[],"iban_patterns":[],"avg_amount":"50","match_count":2}]`
	path := writeTempFile(t, "histories.json", content)

	loaded, err := NewHistoryParser().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if loaded[0].SupplierNormalized != "boulangerie dupont" {
		t.Errorf("normalized key = %q, want %q", loaded[0].SupplierNormalized, "boulangerie dupont")
	}
}
