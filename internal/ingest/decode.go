// Package ingest converts uploaded sales exports (xlsx, JSON or CSV) into
// records.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"sales-dashboard/internal/models"
)

const (
	batchSize  = 1000
	maxWorkers = 10

	// DefaultMaxUploadBytes caps an uploaded export.
	DefaultMaxUploadBytes = 50 << 20
)

var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmpty             = errors.New("no valid records found")
)

type Metadata struct {
	BatchID         string    `json:"batch_id"`
	TotalRecords    int       `json:"total_records"`
	UniqueCustomers int       `json:"unique_customers"`
	UniqueProducts  int       `json:"unique_products"`
	UniqueInvoices  int       `json:"unique_invoices"`
	TotalSales      float64   `json:"total_sales"`
	ProcessedAt     time.Time `json:"processed_at"`
}

type Result struct {
	Records  []models.Record `json:"records"`
	Metadata Metadata        `json:"metadata"`
	Skipped  int             `json:"skipped"`
}

// Decode picks the decoder from the file name's extension.
func Decode(ctx context.Context, name string, r io.Reader) (Result, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json":
		return DecodeJSON(r)
	case ".csv":
		return DecodeCSV(ctx, r)
	case ".xlsx", ".xlsm":
		return DecodeXLSX(ctx, r)
	case ".xls":
		return Result{}, fmt.Errorf("%w: legacy .xls, save the sheet as .xlsx", ErrUnsupportedFormat)
	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

// DecodeJSON accepts a top-level array of rows or an object whose data
// field holds the rows.
func DecodeJSON(r io.Reader) (Result, error) {
	br := bufio.NewReader(r)
	first, err := firstByte(br)
	if err != nil {
		return Result{}, err
	}

	dec := json.NewDecoder(br)
	dec.UseNumber()

	var rows []map[string]any
	switch first {
	case '[':
		err = dec.Decode(&rows)
	case '{':
		var wrapped struct {
			Data []map[string]any `json:"data"`
		}
		err = dec.Decode(&wrapped)
		rows = wrapped.Data
	default:
		return Result{}, fmt.Errorf("%w: expected JSON array or object", ErrUnsupportedFormat)
	}
	if err != nil {
		return Result{}, fmt.Errorf("decode json: %w", err)
	}

	records := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		if rec, ok := FromRow(row); ok {
			records = append(records, rec)
		}
	}
	return newResult(records, len(rows)-len(records))
}

func firstByte(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if errors.Is(err, io.EOF) {
			return 0, ErrEmpty
		}
		if err != nil {
			return 0, fmt.Errorf("read json: %w", err)
		}
		if bytes.IndexByte([]byte(" \t\r\n"), b) >= 0 {
			continue
		}
		if err := br.UnreadByte(); err != nil {
			return 0, fmt.Errorf("read json: %w", err)
		}
		return b, nil
	}
}

// DecodeCSV maps the header row through the column table and converts the
// remaining rows.
func DecodeCSV(ctx context.Context, r io.Reader) (Result, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Result{}, ErrEmpty
	}
	if err != nil {
		return Result{}, fmt.Errorf("read csv header: %w", err)
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return Result{}, fmt.Errorf("read csv: %w", err)
	}
	return decodeRows(ctx, header, rows)
}

// DecodeXLSX reads the first worksheet of a workbook. The first row is the
// header. Cells are read unformatted, so date cells arrive as serial numbers.
func DecodeXLSX(ctx context.Context, r io.Reader) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return Result{}, ErrEmpty
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return Result{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return Result{}, ErrEmpty
	}
	return decodeRows(ctx, rows[0], rows[1:])
}

// decodeRows converts rows in parallel batches. Output keeps input order.
func decodeRows(ctx context.Context, header []string, rows [][]string) (Result, error) {
	batches := make([][]models.Record, (len(rows)+batchSize-1)/batchSize)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxWorkers)
	for i := range batches {
		lo := i * batchSize
		hi := min(lo+batchSize, len(rows))
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			batches[i] = convertRows(header, rows[lo:hi])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, err
	}

	records := make([]models.Record, 0, len(rows))
	for _, batch := range batches {
		records = append(records, batch...)
	}
	return newResult(records, len(rows)-len(records))
}

func convertRows(header []string, rows [][]string) []models.Record {
	out := make([]models.Record, 0, len(rows))
	cells := make(map[string]any, len(header))
	for _, row := range rows {
		clear(cells)
		for i, field := range row {
			if i < len(header) {
				cells[header[i]] = field
			}
		}
		if rec, ok := FromRow(cells); ok {
			out = append(out, rec)
		}
	}
	return out
}

func newResult(records []models.Record, skipped int) (Result, error) {
	if len(records) == 0 {
		return Result{Skipped: skipped}, ErrEmpty
	}
	return Result{
		Records:  records,
		Metadata: Summarize(records),
		Skipped:  skipped,
	}, nil
}

// Summarize computes upload metadata for a record set.
func Summarize(records []models.Record) Metadata {
	customers := make(map[string]struct{})
	products := make(map[string]struct{})
	invoices := make(map[string]struct{})

	meta := Metadata{
		BatchID:      uuid.NewString(),
		TotalRecords: len(records),
		ProcessedAt:  time.Now().UTC(),
	}
	for _, r := range records {
		customers[r.CustomerCode] = struct{}{}
		products[r.ProductCode] = struct{}{}
		invoices[r.InvoiceNumber] = struct{}{}
		meta.TotalSales += r.ItemTotal
	}
	meta.UniqueCustomers = len(customers)
	meta.UniqueProducts = len(products)
	meta.UniqueInvoices = len(invoices)
	return meta
}
