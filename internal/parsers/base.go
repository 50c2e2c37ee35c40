// Package parsers loads invoices, bank transactions and supplier
// histories from files into the engine's input models.
//
// CSV layouts vary between exports: French accounting tools label
// columns differently ("montant_ttc", "montant", "total ttc") and use
// either commas or semicolons. Parsers resolve columns through alias
// tables and report row-level problems without aborting the whole file.
package parsers

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	pkgerrors "finsoft-matching-engine/pkg/errors"
	"finsoft-matching-engine/pkg/logger"
)

// RowError describes a problem with one CSV row.
type RowError struct {
	Line    int
	Field   string
	Value   string
	Message string
	Err     error
}

func (e *RowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("row error at line %d (%s=%q): %s: %v", e.Line, e.Field, e.Value, e.Message, e.Err)
	}
	return fmt.Sprintf("row error at line %d (%s=%q): %s", e.Line, e.Field, e.Value, e.Message)
}

func (e *RowError) Unwrap() error { return e.Err }

// ParseStats summarizes a parse run.
type ParseStats struct {
	TotalRows   int
	ParsedRows  int
	SkippedRows int
	Errors      []*RowError
}

// HasErrors reports whether any row failed.
func (s *ParseStats) HasErrors() bool { return len(s.Errors) > 0 }

func (s *ParseStats) addError(line int, field, value, message string, err error) {
	s.Errors = append(s.Errors, &RowError{Line: line, Field: field, Value: value, Message: message, Err: err})
	s.SkippedRows++
}

// ParseConfig holds CSV reading options shared by all file parsers.
type ParseConfig struct {
	// Delimiter is the field separator. Zero means auto-detect between
	// comma and semicolon from the header line.
	Delimiter rune

	// TrimLeadingSpace drops spaces after the delimiter.
	TrimLeadingSpace bool

	// SkipEmptyRows ignores rows whose every field is blank.
	SkipEmptyRows bool
}

// DefaultParseConfig returns the options used when none are given.
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        0,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
	}
}

// baseParser carries shared CSV mechanics: opening files, resolving the
// header through alias tables, and iterating rows with cancellation.
type baseParser struct {
	config *ParseConfig
	logger logger.Logger

	headerMap map[string]int
}

func newBaseParser(config *ParseConfig, component string) *baseParser {
	if config == nil {
		config = DefaultParseConfig()
	}
	return &baseParser{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent(component),
	}
}

// openFile opens path and builds a CSV reader, auto-detecting the
// delimiter from the first line when none is configured.
func (p *baseParser) openFile(path string) (*os.File, *csv.Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, pkgerrors.FileError(pkgerrors.CodeFileNotFound, path, err)
		}
		return nil, nil, pkgerrors.FileError(pkgerrors.CodeFilePermission, path, err)
	}

	buffered := bufio.NewReader(file)

	delimiter := p.config.Delimiter
	if delimiter == 0 {
		delimiter = detectDelimiter(buffered)
	}

	reader := csv.NewReader(buffered)
	reader.Comma = delimiter
	reader.TrimLeadingSpace = p.config.TrimLeadingSpace
	reader.FieldsPerRecord = -1

	return file, reader, nil
}

// detectDelimiter peeks at the first line and picks semicolon when it
// outnumbers commas, which is the common French spreadsheet export.
func detectDelimiter(r *bufio.Reader) rune {
	peek, _ := r.Peek(4096)
	line := string(peek)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	if strings.Count(line, ";") > strings.Count(line, ",") {
		return ';'
	}
	return ','
}

// readHeader consumes the header row and resolves each required logical
// field through its alias table. Aliases are matched case-insensitively
// with surrounding whitespace and BOM stripped.
func (p *baseParser) readHeader(reader *csv.Reader, aliases map[string][]string, required []string, path string) error {
	record, err := reader.Read()
	if err != nil {
		return pkgerrors.ParseError(pkgerrors.CodeInvalidFormat, path, 1, "", "", err)
	}

	columns := make(map[string]int, len(record))
	for i, name := range record {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
		columns[key] = i
	}

	p.headerMap = make(map[string]int, len(aliases))
	for field, names := range aliases {
		for _, alias := range names {
			if idx, ok := columns[alias]; ok {
				p.headerMap[field] = idx
				break
			}
		}
	}

	for _, field := range required {
		if _, ok := p.headerMap[field]; !ok {
			return pkgerrors.ParseError(pkgerrors.CodeMissingColumn, path, 1, field, "",
				fmt.Errorf("no column matches any alias of %q", field))
		}
	}

	return nil
}

// field returns the value of a resolved logical field in record, or ""
// when the column is absent or the row is short.
func (p *baseParser) field(record []string, name string) string {
	idx, ok := p.headerMap[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// forEachRow drives the row loop: cancellation check, CSV errors
// recorded per line, empty rows skipped. handle returns an error to
// record the row as failed.
func (p *baseParser) forEachRow(ctx context.Context, reader *csv.Reader, stats *ParseStats, handle func(line int, record []string) error) error {
	line := 1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		line++
		if err != nil {
			stats.TotalRows++
			stats.addError(line, "", "", "malformed CSV row", err)
			continue
		}

		if p.config.SkipEmptyRows && isEmptyRow(record) {
			continue
		}

		stats.TotalRows++
		if err := handle(line, record); err != nil {
			continue
		}
		stats.ParsedRows++
	}
}

func isEmptyRow(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
