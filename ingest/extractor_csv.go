package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVExtractor renders CSV content as a Markdown table. The first row is
// treated as the header.
type CSVExtractor struct{}

var _ Extractor = CSVExtractor{}

func (CSVExtractor) Extract(content []byte) (string, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf")) // BOM
	if len(bytes.TrimSpace(content)) == 0 {
		return "", nil
	}

	r := csv.NewReader(bytes.NewReader(content))
	r.LazyQuotes = true
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return "", nil
		}
		return "", fmt.Errorf("read csv header: %w", err)
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i := range headers {
			val := ""
			if i < len(cells) {
				val = strings.TrimSpace(cells[i])
			}
			b.WriteString(" ")
			b.WriteString(strings.ReplaceAll(val, "|", "\\|"))
			b.WriteString(" |")
		}
		b.WriteByte('\n')
	}

	writeRow(headers)
	b.WriteString("|")
	for range headers {
		b.WriteString(" --- |")
	}
	b.WriteByte('\n')

	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read csv row: %w", err)
		}
		writeRow(record)
	}

	return strings.TrimRight(b.String(), "\n"), nil
}
