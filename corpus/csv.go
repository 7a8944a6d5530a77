package corpus

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
)

// CSVSource reads documents from a CSV file with a header row containing
// "text", "category" and "subset" columns. Rows whose category is not in
// the requested set are skipped; file order is preserved.
type CSVSource struct {
	path          string
	stripMetadata bool
	logger        *zap.Logger
}

var _ Source = (*CSVSource)(nil)

// NewCSVSource creates a CSVSource for the file at path. Set stripMetadata
// when the text column holds raw posts with headers; otherwise texts are
// used as-is and the strip options are ignored.
func NewCSVSource(path string, stripMetadata bool, logger *zap.Logger) *CSVSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVSource{path: path, stripMetadata: stripMetadata, logger: logger}
}

// Fetch implements Source
func (s *CSVSource) Fetch(ctx context.Context, categories CategorySet, subset Subset, opts FetchOptions) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open dataset file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV: %w", err)
	}

	if len(records) < 1 {
		return nil, fmt.Errorf("dataset file must have a header row")
	}

	columns, err := csvColumns(records[0], "text", "category", "subset")
	if err != nil {
		return nil, err
	}

	docs := make([]Document, 0, len(records)-1)
	skipped := 0
	for _, record := range records[1:] {
		if !strings.EqualFold(strings.TrimSpace(record[columns["subset"]]), string(subset)) {
			continue
		}
		label, err := categories.Index(strings.TrimSpace(record[columns["category"]]))
		if err != nil {
			skipped++
			continue
		}
		text := record[columns["text"]]
		if s.stripMetadata {
			text = Strip(text, opts.Strip)
		}
		docs = append(docs, Document{Text: text, Label: label})
	}

	if skipped > 0 {
		s.logger.Debug("skipped rows with unknown categories", zap.String("subset", string(subset)), zap.Int("rows", skipped))
	}

	return docs, nil
}

func csvColumns(header []string, names ...string) (map[string]int, error) {
	columns := make(map[string]int, len(names))
	for i, h := range header {
		columns[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range names {
		if _, ok := columns[name]; !ok {
			return nil, fmt.Errorf("dataset file is missing the %q column", name)
		}
	}
	return columns, nil
}
