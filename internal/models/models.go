package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType represents the direction of a bank transaction.
type TransactionType string

const (
	// TransactionTypeIncome represents money coming in. Income transactions
	// never participate in invoice matching.
	TransactionTypeIncome TransactionType = "income"
	// TransactionTypeExpense represents money going out.
	TransactionTypeExpense TransactionType = "expense"
)

// String returns the string representation of TransactionType.
func (t TransactionType) String() string {
	return string(t)
}

// IsValid checks if the transaction type is valid.
func (t TransactionType) IsValid() bool {
	return t == TransactionTypeIncome || t == TransactionTypeExpense
}

// Invoice represents a supplier invoice (facture) pending reconciliation.
// The matching engine treats invoices as read-only input; persistence of
// match decisions is the caller's responsibility.
type Invoice struct {
	ID            string          `json:"id"`
	Fournisseur   string          `json:"fournisseur,omitempty"`
	NumeroFacture string          `json:"numero_facture,omitempty"`
	MontantTTC    decimal.Decimal `json:"montant_ttc"`
	DateFacture   time.Time       `json:"date_facture,omitempty"`
	CreatedAt     time.Time       `json:"created_at,omitempty"`
}

// NewInvoice creates a new Invoice instance.
func NewInvoice(id, fournisseur, numero string, montantTTC decimal.Decimal, dateFacture time.Time) *Invoice {
	return &Invoice{
		ID:            id,
		Fournisseur:   fournisseur,
		NumeroFacture: numero,
		MontantTTC:    montantTTC,
		DateFacture:   dateFacture,
	}
}

// Validate performs basic validation on the Invoice.
func (inv *Invoice) Validate() error {
	if strings.TrimSpace(inv.ID) == "" {
		return fmt.Errorf("invoice ID cannot be empty")
	}

	if inv.MontantTTC.IsNegative() {
		return fmt.Errorf("invoice amount cannot be negative: %s", inv.MontantTTC.String())
	}

	if inv.DateFacture.IsZero() && inv.CreatedAt.IsZero() {
		return fmt.Errorf("invoice must carry a date_facture or a created_at fallback")
	}

	return nil
}

// EffectiveDate returns the invoice date, falling back to the record
// creation date when the invoice date is missing. A zero return value
// means no usable date exists.
func (inv *Invoice) EffectiveDate() time.Time {
	if !inv.DateFacture.IsZero() {
		return inv.DateFacture
	}
	return inv.CreatedAt
}

// String returns a string representation of the Invoice.
func (inv *Invoice) String() string {
	return fmt.Sprintf("Invoice{ID: %s, Fournisseur: %s, Numero: %s, TTC: %s, Date: %s}",
		inv.ID, inv.Fournisseur, inv.NumeroFacture, inv.MontantTTC.String(),
		inv.DateFacture.Format("2006-01-02"))
}

// MarshalJSON implements custom JSON marshaling for Invoice.
func (inv *Invoice) MarshalJSON() ([]byte, error) {
	type Alias Invoice
	aux := &struct {
		MontantTTC  string `json:"montant_ttc"`
		DateFacture string `json:"date_facture,omitempty"`
		CreatedAt   string `json:"created_at,omitempty"`
		*Alias
	}{
		MontantTTC: inv.MontantTTC.String(),
		Alias:      (*Alias)(inv),
	}

	if !inv.DateFacture.IsZero() {
		aux.DateFacture = inv.DateFacture.Format("2006-01-02")
	}
	if !inv.CreatedAt.IsZero() {
		aux.CreatedAt = inv.CreatedAt.Format(time.RFC3339)
	}

	return json.Marshal(aux)
}

// UnmarshalJSON implements custom JSON unmarshaling for Invoice.
func (inv *Invoice) UnmarshalJSON(data []byte) error {
	type Alias Invoice
	aux := &struct {
		MontantTTC  string `json:"montant_ttc"`
		DateFacture string `json:"date_facture"`
		CreatedAt   string `json:"created_at"`
		*Alias
	}{
		Alias: (*Alias)(inv),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if aux.MontantTTC != "" {
		inv.MontantTTC, err = decimal.NewFromString(aux.MontantTTC)
		if err != nil {
			return fmt.Errorf("invalid montant_ttc format: %w", err)
		}
	}

	if aux.DateFacture != "" {
		inv.DateFacture, err = ParseTimeWithFormats(aux.DateFacture)
		if err != nil {
			return fmt.Errorf("invalid date_facture format: %w", err)
		}
	}

	if aux.CreatedAt != "" {
		inv.CreatedAt, err = ParseTimeWithFormats(aux.CreatedAt)
		if err != nil {
			return fmt.Errorf("invalid created_at format: %w", err)
		}
	}

	return nil
}

// Transaction represents a bank feed transaction.
type Transaction struct {
	ID          string          `json:"id"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Date        time.Time       `json:"date"`
	Type        TransactionType `json:"type"`
	// CodeTVA is the VAT code annotation (e.g. "TVA20"). Empty means the
	// transaction has not been annotated for the VAT return yet.
	CodeTVA string `json:"code_tva,omitempty"`
}

// NewTransaction creates a new Transaction instance.
func NewTransaction(id, description string, amount decimal.Decimal, date time.Time, txType TransactionType) *Transaction {
	return &Transaction{
		ID:          id,
		Description: description,
		Amount:      amount,
		Date:        date,
		Type:        txType,
	}
}

// Validate performs basic validation on the Transaction.
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction ID cannot be empty")
	}

	if !t.Type.IsValid() {
		return fmt.Errorf("invalid transaction type: %s", t.Type)
	}

	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}

	return nil
}

// AbsAmount returns the absolute value of the transaction amount. Bank
// exports disagree on the sign convention for debits, so all comparisons
// in the engine use absolute values.
func (t *Transaction) AbsAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// IsExpense returns true if the transaction is an expense.
func (t *Transaction) IsExpense() bool {
	return t.Type == TransactionTypeExpense
}

// String returns a string representation of the Transaction.
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Amount: %s, Type: %s, Date: %s}",
		t.ID, t.Amount.String(), t.Type, t.Date.Format("2006-01-02"))
}

// MarshalJSON implements custom JSON marshaling for Transaction.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Amount: t.Amount.String(),
		Date:   t.Date.Format("2006-01-02"),
		Alias:  (*Alias)(t),
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Transaction.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type Alias Transaction
	aux := &struct {
		Amount string `json:"amount"`
		Date   string `json:"date"`
		*Alias
	}{
		Alias: (*Alias)(t),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var err error
	if aux.Amount != "" {
		t.Amount, err = decimal.NewFromString(aux.Amount)
		if err != nil {
			return fmt.Errorf("invalid amount format: %w", err)
		}
	}

	if aux.Date != "" {
		t.Date, err = ParseTimeWithFormats(aux.Date)
		if err != nil {
			return fmt.Errorf("invalid date format: %w", err)
		}
	}

	return nil
}

// SupplierHistory is the learned per-supplier fingerprint built from
// confirmed matches: known transaction description patterns, known IBAN
// prefixes, and amount statistics. One record per normalized supplier name.
type SupplierHistory struct {
	ID                  string          `json:"id"`
	SupplierName        string          `json:"supplier_name"`
	SupplierNormalized  string          `json:"supplier_normalized"`
	TransactionPatterns []string        `json:"transaction_patterns"`
	IBANPatterns        []string        `json:"iban_patterns"`
	AvgAmount           decimal.Decimal `json:"avg_amount"`
	MatchCount          int             `json:"match_count"`
	LastMatchedAt       time.Time       `json:"last_matched_at,omitempty"`
}

// Pattern set caps. Oldest entries beyond the cap are dropped on update.
const (
	MaxTransactionPatterns = 20
	MaxIBANPatterns        = 10
)

// Validate performs basic validation on the SupplierHistory.
func (h *SupplierHistory) Validate() error {
	if strings.TrimSpace(h.SupplierNormalized) == "" {
		return fmt.Errorf("supplier normalized key cannot be empty")
	}

	if h.MatchCount < 0 {
		return fmt.Errorf("match count cannot be negative: %d", h.MatchCount)
	}

	if len(h.TransactionPatterns) > MaxTransactionPatterns {
		return fmt.Errorf("transaction patterns exceed cap of %d", MaxTransactionPatterns)
	}

	if len(h.IBANPatterns) > MaxIBANPatterns {
		return fmt.Errorf("IBAN patterns exceed cap of %d", MaxIBANPatterns)
	}

	return nil
}

// Clone returns a deep copy of the history record.
func (h *SupplierHistory) Clone() *SupplierHistory {
	if h == nil {
		return nil
	}

	clone := *h
	clone.TransactionPatterns = append([]string(nil), h.TransactionPatterns...)
	clone.IBANPatterns = append([]string(nil), h.IBANPatterns...)
	return &clone
}

// String returns a string representation of the SupplierHistory.
func (h *SupplierHistory) String() string {
	return fmt.Sprintf("SupplierHistory{Supplier: %s, Patterns: %d, IBANs: %d, Matches: %d}",
		h.SupplierNormalized, len(h.TransactionPatterns), len(h.IBANPatterns), h.MatchCount)
}

// TVACodes lists the VAT code annotations recognized on transactions,
// mapped to their display labels (French VAT regime).
var TVACodes = map[string]string{
	"TVA20":     "TVA 20%",
	"TVA10":     "TVA 10%",
	"TVA55":     "TVA 5,5%",
	"TVA21":     "TVA 2,1%",
	"EXONERE":   "Exonéré de TVA",
	"AUTOLIQ":   "Auto-liquidation",
	"HORSCHAMP": "Hors champ TVA",
}

// IsValidTVACode reports whether the given VAT code is recognized.
func IsValidTVACode(code string) bool {
	_, ok := TVACodes[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// ParseDecimalFromString parses a decimal amount from string, tolerating
// common French export quirks (currency symbols, thousands separators,
// comma decimal marks).
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	// "1 234,56" style exports use the comma as decimal mark
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	} else {
		s = strings.ReplaceAll(s, ",", "")
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseTransactionType parses and validates a transaction type from string.
func ParseTransactionType(s string) (TransactionType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "expense", "depense", "débit", "debit":
		return TransactionTypeExpense, nil
	case "income", "recette", "crédit", "credit":
		return TransactionTypeIncome, nil
	default:
		return "", fmt.Errorf("invalid transaction type '%s': must be income or expense", s)
	}
}

// ParseTimeWithFormats attempts to parse a date from string using the
// formats commonly found in bank and accounting exports.
func ParseTimeWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
		"02/01/2006", // French day-first exports
		"02-01-2006",
		"2006/01/02",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}
