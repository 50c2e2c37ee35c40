// Sample data generator for the matching engine.
//
// Produces a coherent trio of files: an invoice CSV, a bank transaction
// CSV whose rows pay most of the invoices (with realistic description
// noise, partial payments and a few orphans), and a supplier history
// JSON seeded from the recurring suppliers.
//
// Usage:
//
//	go run generate.go -invoices 50 -output-dir ../generated -seed 42
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var suppliers = []struct {
	name    string
	prefix  string
	minTTC  float64
	maxTTC  float64
	monthly bool
}{
	{"EDF", "PRLV EDF ENERGIE", 80, 350, true},
	{"Orange SA", "PRLV ORANGE TELECOM", 30, 120, true},
	{"Boulangerie Dupont SARL", "CB BOULANGERIE DUPONT", 10, 90, false},
	{"Durand Peinture", "VIR SEPA DURAND PEINTURE", 400, 3000, false},
	{"Total Energies", "CARTE TOTAL STATION", 40, 140, false},
	{"Amazon EU SARL", "CB AMAZON EU", 15, 600, false},
	{"Cabinet Martin Expertise", "VIR CABINET MARTIN", 500, 1500, true},
}

func main() {
	var (
		invoiceCount = flag.Int("invoices", 40, "number of invoices to generate")
		outputDir    = flag.String("output-dir", "../generated", "output directory")
		seed         = flag.Int64("seed", time.Now().UnixNano(), "random seed")
		startDate    = flag.String("start-date", "2026-01-01", "first invoice date (YYYY-MM-DD)")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("invalid start date: %v", err)
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("cannot create output dir: %v", err)
	}

	rng := rand.New(rand.NewSource(*seed))
	gen := &generator{rng: rng, start: start}

	invoices := gen.invoices(*invoiceCount)
	transactions := gen.transactions(invoices)
	histories := gen.histories()

	if err := writeInvoicesCSV(filepath.Join(*outputDir, "invoices.csv"), invoices); err != nil {
		log.Fatalf("write invoices: %v", err)
	}
	if err := writeTransactionsCSV(filepath.Join(*outputDir, "transactions.csv"), transactions); err != nil {
		log.Fatalf("write transactions: %v", err)
	}
	if err := writeHistoriesJSON(filepath.Join(*outputDir, "histories.json"), histories); err != nil {
		log.Fatalf("write histories: %v", err)
	}

	fmt.Printf("Generated %d invoices, %d transactions, %d histories in %s\n",
		len(invoices), len(transactions), len(histories), *outputDir)
}

type invoiceRow struct {
	ID            string
	Fournisseur   string
	NumeroFacture string
	MontantTTC    decimal.Decimal
	DateFacture   time.Time
	supplierIdx   int
}

type transactionRow struct {
	ID          string
	Description string
	Amount      decimal.Decimal
	Date        time.Time
	Type        string
	CodeTVA     string
}

type historyRow struct {
	ID                  string    `json:"id"`
	SupplierName        string    `json:"supplier_name"`
	SupplierNormalized  string    `json:"supplier_normalized"`
	TransactionPatterns []string  `json:"transaction_patterns"`
	IBANPatterns        []string  `json:"iban_patterns"`
	AvgAmount           float64   `json:"avg_amount"`
	MatchCount          int       `json:"match_count"`
	LastMatchedAt       time.Time `json:"last_matched_at"`
}

type generator struct {
	rng   *rand.Rand
	start time.Time
}

func (g *generator) invoices(count int) []invoiceRow {
	rows := make([]invoiceRow, 0, count)
	for i := 0; i < count; i++ {
		s := g.rng.Intn(len(suppliers))
		sup := suppliers[s]
		amount := decimal.NewFromFloat(sup.minTTC + g.rng.Float64()*(sup.maxTTC-sup.minTTC)).Round(2)
		date := g.start.AddDate(0, 0, g.rng.Intn(90))
		rows = append(rows, invoiceRow{
			ID:            fmt.Sprintf("F-%04d", i+1),
			Fournisseur:   sup.name,
			NumeroFacture: fmt.Sprintf("FACT-%d-%05d", date.Year(), i+1),
			MontantTTC:    amount,
			DateFacture:   date,
			supplierIdx:   s,
		})
	}
	return rows
}

// transactions pays ~80% of the invoices, splits a few into two
// installments, and adds orphan rows that match nothing.
func (g *generator) transactions(invoices []invoiceRow) []transactionRow {
	var rows []transactionRow
	txID := 0
	nextID := func() string {
		txID++
		return fmt.Sprintf("T-%04d", txID)
	}

	for _, inv := range invoices {
		roll := g.rng.Float64()
		if roll > 0.8 {
			continue
		}

		sup := suppliers[inv.supplierIdx]
		date := inv.DateFacture.AddDate(0, 0, g.rng.Intn(8))
		desc := sup.prefix
		if g.rng.Float64() < 0.3 {
			desc = fmt.Sprintf("%s %s", sup.prefix, inv.NumeroFacture)
		}

		if roll < 0.1 && inv.MontantTTC.GreaterThan(decimal.NewFromInt(100)) {
			// Two-installment partial payment.
			half := inv.MontantTTC.Div(decimal.NewFromInt(2)).Round(2)
			rows = append(rows,
				transactionRow{nextID(), desc, half.Neg(), date, "expense", "TVA20"},
				transactionRow{nextID(), desc, inv.MontantTTC.Sub(half).Neg(), date.AddDate(0, 0, 14), "expense", "TVA20"},
			)
			continue
		}

		amount := inv.MontantTTC
		if g.rng.Float64() < 0.1 {
			// Small rounding discrepancy.
			amount = amount.Add(decimal.NewFromFloat(g.rng.Float64() - 0.5)).Round(2)
		}
		codeTVA := "TVA20"
		if g.rng.Float64() < 0.15 {
			codeTVA = ""
		}
		rows = append(rows, transactionRow{nextID(), desc, amount.Neg(), date, "expense", codeTVA})
	}

	// Orphans: transactions with no invoice.
	for i := 0; i < len(invoices)/10+1; i++ {
		date := g.start.AddDate(0, 0, g.rng.Intn(90))
		amount := decimal.NewFromFloat(5 + g.rng.Float64()*700).Round(2)
		rows = append(rows, transactionRow{nextID(), "VIR SEPA DIVERS", amount.Neg(), date, "expense", ""})
	}

	// A couple of income rows the engine must ignore.
	for i := 0; i < 2; i++ {
		date := g.start.AddDate(0, 0, g.rng.Intn(90))
		amount := decimal.NewFromFloat(100 + g.rng.Float64()*2000).Round(2)
		rows = append(rows, transactionRow{nextID(), "VIR CLIENT REGLEMENT", amount, date, "income", ""})
	}

	return rows
}

func (g *generator) histories() []historyRow {
	var rows []historyRow
	for _, sup := range suppliers {
		if !sup.monthly {
			continue
		}
		rows = append(rows, historyRow{
			ID:                  uuid.NewString(),
			SupplierName:        sup.name,
			SupplierNormalized:  "",
			TransactionPatterns: []string{sup.prefix},
			IBANPatterns:        nil,
			AvgAmount:           (sup.minTTC + sup.maxTTC) / 2,
			MatchCount:          3 + g.rng.Intn(20),
			LastMatchedAt:       g.start,
		})
	}
	return rows
}

func writeInvoicesCSV(path string, rows []invoiceRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"id", "fournisseur", "numero_facture", "montant_ttc", "date_facture"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.ID, r.Fournisseur, r.NumeroFacture, r.MontantTTC.StringFixed(2), r.DateFacture.Format("2006-01-02")}); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeTransactionsCSV(path string, rows []transactionRow) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"id", "description", "montant", "date", "type", "code_tva"}); err != nil {
		return err
	}
	for _, r := range rows {
		if err := w.Write([]string{r.ID, r.Description, r.Amount.StringFixed(2), r.Date.Format("2006-01-02"), r.Type, r.CodeTVA}); err != nil {
			return err
		}
	}
	return w.Error()
}

func writeHistoriesJSON(path string, rows []historyRow) error {
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
