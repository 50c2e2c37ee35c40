package parsers

import (
	"context"
	"fmt"

	"finsoft-matching-engine/internal/models"
)

// invoiceAliases maps logical invoice fields to the header spellings seen
// in accounting exports.
var invoiceAliases = map[string][]string{
	"id":             {"id", "facture_id", "invoice_id"},
	"fournisseur":    {"fournisseur", "supplier", "supplier_name", "nom_fournisseur"},
	"numero_facture": {"numero_facture", "numero", "invoice_number", "n° facture", "num_facture", "reference"},
	"montant_ttc":    {"montant_ttc", "montant", "total_ttc", "total ttc", "amount", "ttc"},
	"date_facture":   {"date_facture", "date", "invoice_date", "date facture"},
	"created_at":     {"created_at", "date_creation", "creation"},
}

var invoiceRequired = []string{"id", "montant_ttc"}

// InvoiceParser loads invoices from a CSV export.
type InvoiceParser struct {
	*baseParser
}

// NewInvoiceParser builds an invoice parser. A nil config uses defaults.
func NewInvoiceParser(config *ParseConfig) *InvoiceParser {
	return &InvoiceParser{baseParser: newBaseParser(config, "invoice_parser")}
}

// ParseFile reads all invoices from path. Rows that fail to parse are
// recorded in the stats and skipped; only file-level problems return an
// error.
func (p *InvoiceParser) ParseFile(ctx context.Context, path string) ([]*models.Invoice, *ParseStats, error) {
	file, reader, err := p.openFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	stats := &ParseStats{}

	if err := p.readHeader(reader, invoiceAliases, invoiceRequired, path); err != nil {
		return nil, stats, err
	}

	var invoices []*models.Invoice
	err = p.forEachRow(ctx, reader, stats, func(line int, record []string) error {
		invoice, err := p.parseRow(line, record, stats)
		if err != nil {
			return err
		}
		invoices = append(invoices, invoice)
		return nil
	})
	if err != nil {
		return invoices, stats, err
	}

	p.logger.WithField("parsed", stats.ParsedRows).WithField("skipped", stats.SkippedRows).
		Debugf("Parsed invoices from %s", path)

	return invoices, stats, nil
}

func (p *InvoiceParser) parseRow(line int, record []string, stats *ParseStats) (*models.Invoice, error) {
	id := p.field(record, "id")
	if id == "" {
		err := fmt.Errorf("invoice id is empty")
		stats.addError(line, "id", "", "missing invoice id", err)
		return nil, err
	}

	rawAmount := p.field(record, "montant_ttc")
	amount, err := models.ParseDecimalFromString(rawAmount)
	if err != nil {
		stats.addError(line, "montant_ttc", rawAmount, "invalid amount", err)
		return nil, err
	}

	invoice := &models.Invoice{
		ID:            id,
		Fournisseur:   p.field(record, "fournisseur"),
		NumeroFacture: p.field(record, "numero_facture"),
		MontantTTC:    amount,
	}

	if raw := p.field(record, "date_facture"); raw != "" {
		t, err := models.ParseTimeWithFormats(raw)
		if err != nil {
			stats.addError(line, "date_facture", raw, "invalid date", err)
			return nil, err
		}
		invoice.DateFacture = t
	}

	if raw := p.field(record, "created_at"); raw != "" {
		if t, err := models.ParseTimeWithFormats(raw); err == nil {
			invoice.CreatedAt = t
		}
	}

	if err := invoice.Validate(); err != nil {
		stats.addError(line, "", "", "invalid invoice", err)
		return nil, err
	}

	return invoice, nil
}
