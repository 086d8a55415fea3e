package csvout

import (
	"encoding/csv"
	"fmt"
	"os"
	"strings"
)

// Row is one CSV record keyed by header name.
type Row struct {
	Line   int
	Fields map[string]string
}

// Table is a CSV file read back into memory.
type Table struct {
	Header []string
	Rows   []Row
}

// ReadTable loads a CSV file written by this package.
func ReadTable(path string) (Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return Table{}, err
	}
	defer f.Close()

	all, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	if len(all) == 0 {
		return Table{}, fmt.Errorf("%s has no header", path)
	}

	t := Table{Header: all[0]}
	for i, record := range all[1:] {
		fields := make(map[string]string, len(t.Header))
		for j, h := range t.Header {
			if j < len(record) {
				fields[h] = strings.TrimSpace(record[j])
			}
		}
		t.Rows = append(t.Rows, Row{Line: i + 2, Fields: fields})
	}
	return t, nil
}
