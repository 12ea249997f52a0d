package staging

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/wliao/retaildw/internal/contracts"
)

// csvColumns is the expected header of a point-of-sale export, matched
// case-insensitively. Column order in the file does not matter.
var csvColumns = []string{
	"invoice", "stockcode", "description", "quantity",
	"invoicedate", "price", "customer id", "country",
}

// ReadCSV reads a point-of-sale CSV export into raw rows. Rows come back
// untyped; all cleaning happens in the Normalizer.
func ReadCSV(path string) ([]contracts.RawRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	return readCSV(f)
}

func readCSV(r io.Reader) ([]contracts.RawRow, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var rows []contracts.RawRow
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		rows = append(rows, contracts.RawRow{
			Invoice:     field(record, index[0]),
			StockCode:   field(record, index[1]),
			Description: field(record, index[2]),
			Quantity:    field(record, index[3]),
			InvoiceDate: field(record, index[4]),
			Price:       field(record, index[5]),
			CustomerID:  field(record, index[6]),
			Country:     field(record, index[7]),
		})
	}

	return rows, nil
}

// mapHeader resolves each expected column to its position in the file.
func mapHeader(header []string) ([]int, error) {
	positions := make(map[string]int, len(header))
	for i, name := range header {
		positions[strings.ToLower(strings.TrimSpace(name))] = i
	}

	index := make([]int, len(csvColumns))
	for i, name := range csvColumns {
		pos, ok := positions[name]
		if !ok {
			return nil, fmt.Errorf("input file missing column %q", name)
		}
		index[i] = pos
	}

	return index, nil
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
