package main

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

var convertFormat string

// convertCmd creates the "convert" subcommand: offline JSONL -> JSON/CSV
// conversion, for when a run's raw sink output needs reshaping afterward
// rather than during the run itself.
func convertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [input.jsonl] [output]",
		Short: "Convert a JSONL sink file to JSON or CSV",
		Args:  cobra.ExactArgs(2),
		RunE:  runConvert,
	}
	cmd.Flags().StringVarP(&convertFormat, "format", "f", "json", "output format: json or csv")
	return cmd
}

func runConvert(cmd *cobra.Command, args []string) error {
	inPath, outPath := args[0], args[1]

	records, err := readJSONL(inPath)
	if err != nil {
		return fmt.Errorf("read jsonl: %w", err)
	}

	switch strings.ToLower(convertFormat) {
	case "json":
		return writeJSON(outPath, records)
	case "csv":
		return writeCSV(outPath, records)
	default:
		return fmt.Errorf("unsupported format: %s", convertFormat)
	}
}

func readJSONL(path string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("parse line: %w", err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

func writeJSON(path string, records []map[string]any) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func writeCSV(path string, records []map[string]any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	columns := collectColumns(records)
	if err := w.Write(columns); err != nil {
		return err
	}

	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = flatten(rec[col])
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func collectColumns(records []map[string]any) []string {
	set := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			set[k] = struct{}{}
		}
	}
	columns := make([]string, 0, len(set))
	for k := range set {
		columns = append(columns, k)
	}
	sort.Strings(columns)
	return columns
}

func flatten(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		b, _ := json.Marshal(val)
		return string(b)
	}
}
