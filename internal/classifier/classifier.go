// Package classifier maps product codes to functional categories read from a
// classification CSV (code, name, brand or segment, function category).
package classifier

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

type Info struct {
	Code             string `json:"code"`
	Name             string `json:"name"`
	Brand            string `json:"brand"`
	FunctionCategory string `json:"function_category"`
	FunctionShort    string `json:"function_short"`
}

// Lookup resolves a product code. Implementations trim the code before use.
type Lookup interface {
	Lookup(code string) (Info, bool)
}

type Table map[string]Info

func (t Table) Lookup(code string) (Info, bool) {
	key := strings.TrimSpace(code)
	if key == "" {
		return Info{}, false
	}
	info, ok := t[key]
	return info, ok
}

var codePattern = regexp.MustCompile(`^[0-9A-Za-z_-]+$`)

// Parse reads classification rows. Rows with fewer than four fields and
// header-like rows are skipped.
func Parse(r io.Reader) (Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	table := make(Table)
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				continue
			}
			return nil, fmt.Errorf("read classifier csv: %w", err)
		}
		if len(row) < 4 {
			continue
		}

		code := strings.TrimSpace(row[0])
		if code == "" || !codePattern.MatchString(code) {
			continue
		}

		fn := Normalize(row[3])
		table[code] = Info{
			Code:             code,
			Name:             strings.TrimSpace(row[1]),
			Brand:            strings.TrimSpace(row[2]),
			FunctionCategory: fn,
			FunctionShort:    Shorten(fn),
		}
	}
	return table, nil
}
