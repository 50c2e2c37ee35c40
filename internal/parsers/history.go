package parsers

import (
	"encoding/json"
	"os"

	"finsoft-matching-engine/internal/matching"
	"finsoft-matching-engine/internal/models"
	pkgerrors "finsoft-matching-engine/pkg/errors"
	"finsoft-matching-engine/pkg/logger"
)

// HistoryParser loads supplier learning histories from a JSON export, the
// format the persistence layer stores them in.
type HistoryParser struct {
	logger logger.Logger
}

// NewHistoryParser builds a history parser.
func NewHistoryParser() *HistoryParser {
	return &HistoryParser{logger: logger.GetGlobalLogger().WithComponent("history_parser")}
}

// ParseFile reads a JSON array of supplier histories. Records missing the
// normalized key are rebuilt from the display name; records exceeding the
// pattern caps are rejected.
func (p *HistoryParser) ParseFile(path string) ([]*models.SupplierHistory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, pkgerrors.FileError(pkgerrors.CodeFileNotFound, path, err)
		}
		return nil, pkgerrors.FileError(pkgerrors.CodeFilePermission, path, err)
	}

	var histories []*models.SupplierHistory
	if err := json.Unmarshal(data, &histories); err != nil {
		return nil, pkgerrors.ParseError(pkgerrors.CodeInvalidFormat, path, 0, "", "", err)
	}

	for _, h := range histories {
		if h.SupplierNormalized == "" {
			h.SupplierNormalized = matching.NormalizeSupplier(h.SupplierName)
		}
		if err := h.Validate(); err != nil {
			return nil, pkgerrors.ValidationError(pkgerrors.CodeInvalidData, "supplier_history", h.SupplierName, err)
		}
	}

	p.logger.WithField("histories", len(histories)).Debugf("Parsed supplier histories from %s", path)

	return histories, nil
}

// WriteFile persists histories back to a JSON file, the inverse of
// ParseFile. Used after confirmed matches have been folded in.
func (p *HistoryParser) WriteFile(path string, histories []*models.SupplierHistory) error {
	data, err := json.MarshalIndent(histories, "", "  ")
	if err != nil {
		return pkgerrors.InternalError(pkgerrors.CodeUnexpectedError, "marshal supplier histories", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return pkgerrors.FileError(pkgerrors.CodeFilePermission, path, err)
	}
	return nil
}
