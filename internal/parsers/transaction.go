package parsers

import (
	"context"
	"fmt"

	"finsoft-matching-engine/internal/models"
)

// transactionAliases maps logical transaction fields to the header
// spellings seen in bank exports.
var transactionAliases = map[string][]string{
	"id":          {"id", "transaction_id"},
	"description": {"description", "libelle", "libellé", "label", "intitule"},
	"amount":      {"amount", "montant", "debit", "valeur"},
	"date":        {"date", "date_operation", "date operation", "date_valeur"},
	"type":        {"type", "sens", "direction"},
	"code_tva":    {"code_tva", "tva", "vat_code", "taux_tva"},
}

var transactionRequired = []string{"id", "amount", "date"}

// TransactionParser loads bank transactions from a CSV export.
type TransactionParser struct {
	*baseParser
}

// NewTransactionParser builds a transaction parser. A nil config uses
// defaults.
func NewTransactionParser(config *ParseConfig) *TransactionParser {
	return &TransactionParser{baseParser: newBaseParser(config, "transaction_parser")}
}

// ParseFile reads all transactions from path. A missing type column
// defaults every row to expense, the common case for a statement export
// filtered upstream.
func (p *TransactionParser) ParseFile(ctx context.Context, path string) ([]*models.Transaction, *ParseStats, error) {
	file, reader, err := p.openFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	stats := &ParseStats{}

	if err := p.readHeader(reader, transactionAliases, transactionRequired, path); err != nil {
		return nil, stats, err
	}

	var transactions []*models.Transaction
	err = p.forEachRow(ctx, reader, stats, func(line int, record []string) error {
		tx, err := p.parseRow(line, record, stats)
		if err != nil {
			return err
		}
		transactions = append(transactions, tx)
		return nil
	})
	if err != nil {
		return transactions, stats, err
	}

	p.logger.WithField("parsed", stats.ParsedRows).WithField("skipped", stats.SkippedRows).
		Debugf("Parsed transactions from %s", path)

	return transactions, stats, nil
}

func (p *TransactionParser) parseRow(line int, record []string, stats *ParseStats) (*models.Transaction, error) {
	id := p.field(record, "id")
	if id == "" {
		err := fmt.Errorf("transaction id is empty")
		stats.addError(line, "id", "", "missing transaction id", err)
		return nil, err
	}

	rawAmount := p.field(record, "amount")
	amount, err := models.ParseDecimalFromString(rawAmount)
	if err != nil {
		stats.addError(line, "amount", rawAmount, "invalid amount", err)
		return nil, err
	}

	rawDate := p.field(record, "date")
	date, err := models.ParseTimeWithFormats(rawDate)
	if err != nil {
		stats.addError(line, "date", rawDate, "invalid date", err)
		return nil, err
	}

	txType := models.TransactionTypeExpense
	if raw := p.field(record, "type"); raw != "" {
		txType, err = models.ParseTransactionType(raw)
		if err != nil {
			stats.addError(line, "type", raw, "invalid transaction type", err)
			return nil, err
		}
	}

	tx := &models.Transaction{
		ID:          id,
		Description: p.field(record, "description"),
		Amount:      amount,
		Date:        date,
		Type:        txType,
		CodeTVA:     p.field(record, "code_tva"),
	}

	if err := tx.Validate(); err != nil {
		stats.addError(line, "", "", "invalid transaction", err)
		return nil, err
	}

	return tx, nil
}
