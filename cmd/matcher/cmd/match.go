package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"finsoft-matching-engine/cmd/matcher/config"
	"finsoft-matching-engine/internal/anomaly"
	"finsoft-matching-engine/internal/matching"
	"finsoft-matching-engine/internal/models"
	"finsoft-matching-engine/internal/parsers"
	"finsoft-matching-engine/internal/reporter"
	"finsoft-matching-engine/pkg/logger"
)

var (
	invoicesFile     string
	transactionsFile string
	historiesFile    string

	dateWindowDays          int
	autoThreshold           int
	suggestionThreshold     int
	anomalyAmountThreshold  float64
	partialPaymentTolerance float64

	detectAnomalies bool
	outputFormat    string
	outputFile      string
)

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Match invoices against bank transactions",
	Long: `Match scores every invoice against every expense transaction and
splits the pairings into automatic matches, suggestions and unmatched
records. Supplier histories, when provided, contribute a bonus signal
for recurring counterparties.`,
	RunE: runMatch,
}

func init() {
	rootCmd.AddCommand(matchCmd)

	matchCmd.Flags().StringVar(&invoicesFile, "invoices", "", "CSV file with invoices (required)")
	matchCmd.Flags().StringVar(&transactionsFile, "transactions", "", "CSV file with bank transactions (required)")
	matchCmd.Flags().StringVar(&historiesFile, "histories", "", "JSON file with supplier histories (optional)")

	matchCmd.Flags().IntVar(&dateWindowDays, "date-window", -1, "date window in days (default 7)")
	matchCmd.Flags().IntVar(&autoThreshold, "auto-threshold", -1, "minimum score for automatic matching (default 85)")
	matchCmd.Flags().IntVar(&suggestionThreshold, "suggestion-threshold", -1, "minimum score for a suggestion (default 50)")
	matchCmd.Flags().Float64Var(&anomalyAmountThreshold, "anomaly-amount", -1, "high amount alert threshold (default 500)")
	matchCmd.Flags().Float64Var(&partialPaymentTolerance, "partial-tolerance", -1, "partial payment tolerance percent (default 5)")

	matchCmd.Flags().BoolVar(&detectAnomalies, "detect-anomalies", false, "run anomaly detection after matching")
	matchCmd.Flags().StringVar(&outputFormat, "output-format", "console", "output format: console, json, csv")
	matchCmd.Flags().StringVar(&outputFile, "output-file", "", "write output to file instead of stdout")

	matchCmd.MarkFlagRequired("invoices")
	matchCmd.MarkFlagRequired("transactions")
}

func runMatch(cobraCmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	if err := executeMatch(cobraCmd.Context()); err != nil {
		os.Exit(handler.HandleError(err))
	}
	return nil
}

func executeMatch(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.GetGlobalLogger().WithComponent("match_command")

	format, err := reporter.ParseOutputFormat(outputFormat)
	if err != nil {
		return err
	}

	matchCfg := config.CreateMatchingConfig(config.MatchingOptions{
		DateWindowDays:          dateWindowDays,
		AutoThreshold:           autoThreshold,
		SuggestionThreshold:     suggestionThreshold,
		AnomalyAmountThreshold:  anomalyAmountThreshold,
		PartialPaymentTolerance: partialPaymentTolerance,
	})

	parseCfg := config.CreateParseConfig()

	invoices, invStats, err := parsers.NewInvoiceParser(parseCfg).ParseFile(ctx, invoicesFile)
	if err != nil {
		return err
	}
	logParseStats(log, "invoices", invStats)

	transactions, txStats, err := parsers.NewTransactionParser(parseCfg).ParseFile(ctx, transactionsFile)
	if err != nil {
		return err
	}
	logParseStats(log, "transactions", txStats)

	engineHistories, err := loadHistories(historiesFile)
	if err != nil {
		return err
	}

	engine, err := matching.NewEngine(matchCfg, log)
	if err != nil {
		return err
	}

	result, err := engine.Match(ctx, invoices, transactions, engineHistories)
	if err != nil {
		return err
	}

	report := &reporter.Report{
		GeneratedAt: time.Now(),
		Matching:    result,
	}

	if detectAnomalies {
		detector, err := anomaly.NewDetector(config.CreateDetectorConfig(), matchCfg, log)
		if err != nil {
			return err
		}
		report.Anomalies = detector.Detect(invoices, transactions, result)
	}

	out, closeOut, err := openOutput(outputFile)
	if err != nil {
		return err
	}
	defer closeOut()

	rep, err := reporter.NewReporter(format)
	if err != nil {
		return err
	}
	return rep.Write(out, report)
}

func loadHistories(path string) ([]*models.SupplierHistory, error) {
	if path == "" {
		return nil, nil
	}
	return parsers.NewHistoryParser().ParseFile(path)
}

func logParseStats(log logger.Logger, kind string, stats *parsers.ParseStats) {
	if stats == nil {
		return
	}
	entry := log.WithFields(logger.Fields{
		"kind":    kind,
		"parsed":  stats.ParsedRows,
		"skipped": stats.SkippedRows,
	})
	if stats.HasErrors() {
		entry.Warn("Some rows were skipped")
		for _, rowErr := range stats.Errors {
			log.WithError(rowErr).Debug("Skipped row")
		}
		return
	}
	entry.Debug("File parsed")
}

func openOutput(path string) (io.Writer, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot create output file %s: %w", path, err)
	}
	return f, func() { f.Close() }, nil
}
