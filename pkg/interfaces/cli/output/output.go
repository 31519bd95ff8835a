package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/vsinha/stocktransfer/pkg/application/dto"
)

// Config holds configuration for output generation
type Config struct {
	Format    string
	OutputDir string
	Verbose   bool
	Writer    io.Writer
}

// Report is everything a replayed session produced
type Report struct {
	SessionID     string              `json:"session_id"`
	TransferOutID string              `json:"transfer_out_id"`
	Location      string              `json:"location"`
	Outcomes      []dto.ActionOutcome `json:"outcomes"`
	Payload       *dto.CommitPayload  `json:"payload,omitempty"`
	Committed     bool                `json:"committed"`
	ReplayTime    time.Duration       `json:"replay_time_ns"`
}

// Generate creates output in the specified format
func Generate(report *Report, config Config) error {
	if config.Writer == nil {
		config.Writer = os.Stdout
	}

	switch config.Format {
	case "text":
		return generateTextOutput(report, config)
	case "json":
		return generateJSONOutput(report, config)
	case "csv":
		return generateCSVOutput(report, config)
	default:
		return fmt.Errorf("unsupported output format: %s", config.Format)
	}
}

// generateTextOutput creates human-readable text output
func generateTextOutput(report *Report, config Config) error {
	w := config.Writer
	fmt.Fprintf(w, "📦 Transfer-In Session %s\n", report.SessionID)
	fmt.Fprintf(w, "======================\n\n")
	fmt.Fprintf(w, "Transfer: %s at %s\n", report.TransferOutID, report.Location)
	fmt.Fprintf(w, "Actions: %d (%d rejected)\n", len(report.Outcomes), rejectedCount(report.Outcomes))
	fmt.Fprintf(w, "Replay Time: %v\n\n", report.ReplayTime)

	if len(report.Outcomes) > 0 {
		fmt.Fprintf(w, "📋 Actions:\n")
		fmt.Fprintf(w, "%-7s %-20s %-16s %-9s %-6s %-8s %-9s\n",
			"Action", "Target", "Key", "Result", "Qty", "Max", "Remaining")
		fmt.Fprintf(w, "%-7s %-20s %-16s %-9s %-6s %-8s %-9s\n",
			"-------", "--------------------", "----------------", "---------", "------", "--------", "---------")

		for _, outcome := range report.Outcomes {
			result := "accepted"
			if !outcome.Accepted {
				result = "rejected"
			}
			fmt.Fprintf(w, "%-7s %-20s %-16s %-9s %-6d %-8d %-9d\n",
				outcome.Kind,
				outcome.Target,
				outcome.Key,
				result,
				outcome.Quantity,
				outcome.AllowedMax,
				outcome.Remaining)
			if !outcome.Accepted && outcome.Message != "" && config.Verbose {
				fmt.Fprintf(w, "        ↳ %s\n", outcome.Message)
			}
		}
		fmt.Fprintln(w)
	}

	if report.Payload == nil {
		fmt.Fprintf(w, "No batch assembled.\n")
		return nil
	}

	payload := report.Payload
	fmt.Fprintf(w, "🧾 Batch %s:\n", payload.BatchID)
	fmt.Fprintf(w, "%-16s %-12s %-6s %-10s %-12s %-8s %-10s %-12s\n",
		"Key", "Detail", "Qty", "Price", "Bracket", "Tax %", "Tax/Unit", "Line Total")
	fmt.Fprintf(w, "%-16s %-12s %-6s %-10s %-12s %-8s %-10s %-12s\n",
		"----------------", "------------", "------", "----------", "------------", "--------", "----------", "------------")

	for _, line := range payload.Lines {
		fmt.Fprintf(w, "%-16s %-12s %-6d %-10s %-12s %-8s %-10s %-12s\n",
			line.EntryKey,
			line.DetailID,
			line.Quantity,
			line.UnitPrice.StringFixed(2),
			line.TaxBracketID,
			line.TaxPercent.String(),
			line.TaxAmount.StringFixed(2),
			line.LineTotal.StringFixed(2))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Total Quantity: %d\n", payload.TotalQuantity)
	fmt.Fprintf(w, "Total Tax: %s\n", payload.TotalTax.StringFixed(2))
	fmt.Fprintf(w, "Total Amount: %s\n", payload.TotalAmount.StringFixed(2))
	if report.Committed {
		fmt.Fprintf(w, "✅ Batch committed\n")
	}
	return nil
}

// generateJSONOutput creates JSON output
func generateJSONOutput(report *Report, config Config) error {
	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if config.OutputDir == "" {
		fmt.Fprintln(config.Writer, string(jsonData))
		return nil
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	filename := filepath.Join(config.OutputDir, "transfer_in.json")
	if err := os.WriteFile(filename, jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write JSON file: %w", err)
	}

	if config.Verbose {
		fmt.Fprintf(config.Writer, "💾 JSON results saved to: %s\n", filename)
	}
	return nil
}

// generateCSVOutput writes the batch lines to the writer, or the batch lines
// and action outcomes as two files when an output directory is set
func generateCSVOutput(report *Report, config Config) error {
	if config.OutputDir == "" {
		return writeLinesCSV(config.Writer, report.Payload)
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	linesFile := filepath.Join(config.OutputDir, "batch_lines.csv")
	if err := writeFile(linesFile, func(w io.Writer) error { return writeLinesCSV(w, report.Payload) }); err != nil {
		return fmt.Errorf("failed to write batch lines CSV: %w", err)
	}

	outcomesFile := filepath.Join(config.OutputDir, "action_outcomes.csv")
	if err := writeFile(outcomesFile, func(w io.Writer) error { return writeOutcomesCSV(w, report.Outcomes) }); err != nil {
		return fmt.Errorf("failed to write action outcomes CSV: %w", err)
	}

	if config.Verbose {
		fmt.Fprintf(config.Writer, "💾 CSV results saved to:\n")
		fmt.Fprintf(config.Writer, "  Batch Lines: %s\n", linesFile)
		fmt.Fprintf(config.Writer, "  Action Outcomes: %s\n", outcomesFile)
	}
	return nil
}

func writeFile(filename string, write func(io.Writer) error) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

func writeLinesCSV(w io.Writer, payload *dto.CommitPayload) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"entry_key", "source_line_id", "detail_id", "quantity", "unit_price",
		"tax_bracket_id", "tax_percent", "tax_amount", "line_tax", "line_total",
	}); err != nil {
		return err
	}

	if payload != nil {
		for _, line := range payload.Lines {
			if err := writer.Write([]string{
				string(line.EntryKey),
				line.SourceLineID,
				string(line.DetailID),
				strconv.FormatInt(int64(line.Quantity), 10),
				line.UnitPrice.StringFixed(2),
				line.TaxBracketID,
				line.TaxPercent.String(),
				line.TaxAmount.StringFixed(2),
				line.LineTax.StringFixed(2),
				line.LineTotal.StringFixed(2),
			}); err != nil {
				return err
			}
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeOutcomesCSV(w io.Writer, outcomes []dto.ActionOutcome) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{
		"action", "target", "key", "accepted", "quantity", "allowed_max", "remaining", "message",
	}); err != nil {
		return err
	}

	for _, outcome := range outcomes {
		if err := writer.Write([]string{
			string(outcome.Kind),
			outcome.Target,
			string(outcome.Key),
			strconv.FormatBool(outcome.Accepted),
			strconv.FormatInt(int64(outcome.Quantity), 10),
			strconv.FormatInt(int64(outcome.AllowedMax), 10),
			strconv.FormatInt(int64(outcome.Remaining), 10),
			outcome.Message,
		}); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func rejectedCount(outcomes []dto.ActionOutcome) int {
	n := 0
	for _, outcome := range outcomes {
		if !outcome.Accepted {
			n++
		}
	}
	return n
}
