package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"

	"sales-dashboard/internal/models"
)

const (
	keyCompressed = "salesData_compressed"
	keyVersion    = "salesData_version"
	keyTimestamp  = "salesDataTimestamp"
	keyLegacy     = "salesData"

	FormatVersion = "2.0"
)

var allKeys = []string{keyCompressed, keyVersion, keyTimestamp, keyLegacy}

var ErrCorrupt = errors.New("stored dataset is corrupt")

// Format names the layout a Save call ended up writing.
type Format string

const (
	FormatCompressed Format = "compressed"
	FormatLegacy     Format = "legacy"
)

// shortRecord is the on-disk row of the compressed layout.
type shortRecord struct {
	CustomerName    string      `json:"cn"`
	CustomerCode    string      `json:"cc"`
	City            string      `json:"ci"`
	Governorate     string      `json:"g"`
	ProductName     string      `json:"pn"`
	ProductCode     string      `json:"pc"`
	ProductCategory string      `json:"cat"`
	Quantity        float64     `json:"q"`
	ProductPrice    float64     `json:"p"`
	ItemTotal       float64     `json:"it"`
	InvoiceNumber   string      `json:"in"`
	InvoiceDate     models.Date `json:"id"`
}

func shorten(r models.Record) shortRecord {
	return shortRecord{
		CustomerName:    r.CustomerName,
		CustomerCode:    r.CustomerCode,
		City:            r.City,
		Governorate:     r.Governorate,
		ProductName:     r.ProductName,
		ProductCode:     r.ProductCode,
		ProductCategory: r.ProductCategory,
		Quantity:        r.Quantity,
		ProductPrice:    r.ProductPrice,
		ItemTotal:       r.ItemTotal,
		InvoiceNumber:   r.InvoiceNumber,
		InvoiceDate:     r.InvoiceDate,
	}
}

func (s shortRecord) expand() models.Record {
	return models.Record{
		CustomerCode:    s.CustomerCode,
		CustomerName:    s.CustomerName,
		City:            s.City,
		Governorate:     s.Governorate,
		ProductCode:     s.ProductCode,
		ProductName:     s.ProductName,
		ProductCategory: s.ProductCategory,
		ProductPrice:    s.ProductPrice,
		Quantity:        s.Quantity,
		ItemTotal:       s.ItemTotal,
		InvoiceNumber:   s.InvoiceNumber,
		InvoiceDate:     s.InvoiceDate,
	}
}

type Codec struct {
	kv      KV
	logger  *slog.Logger
	encoder *zstd.Encoder
	decoder *zstd.Decoder
	now     func() time.Time
}

func NewCodec(kv KV, logger *slog.Logger) (*Codec, error) {
	if logger == nil {
		logger = slog.Default()
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &Codec{
		kv:      kv,
		logger:  logger,
		encoder: encoder,
		decoder: decoder,
		now:     time.Now,
	}, nil
}

// Close releases the compressors. The KV is owned by the caller.
func (c *Codec) Close() error {
	c.decoder.Close()
	return c.encoder.Close()
}

// Save writes records in the compressed layout. If that fails the store is
// wiped and the records are written once more as plain JSON. An error is
// returned only when both attempts fail.
func (c *Codec) Save(ctx context.Context, records []models.Record) (Format, error) {
	err := c.saveCompressed(ctx, records)
	if err == nil {
		return FormatCompressed, nil
	}

	c.logger.Warn("compressed save failed, retrying uncompressed",
		"error", err,
		"records", len(records))

	if dropErr := c.kv.DropAll(ctx); dropErr != nil {
		c.logger.Warn("drop store failed, deleting dataset keys", "error", dropErr)
		if clearErr := c.Clear(ctx); clearErr != nil {
			c.logger.Warn("clear dataset keys failed", "error", clearErr)
		}
	}

	if legacyErr := c.saveLegacy(ctx, records); legacyErr != nil {
		return "", fmt.Errorf("save dataset: %w", errors.Join(err, legacyErr))
	}
	return FormatLegacy, nil
}

func (c *Codec) saveCompressed(ctx context.Context, records []models.Record) error {
	rows := make([]shortRecord, len(records))
	for i, r := range records {
		rows[i] = shorten(r)
	}

	raw, err := json.Marshal(rows)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	blob := c.encoder.EncodeAll(raw, make([]byte, 0, len(raw)/4))

	if err := c.kv.Set(ctx, keyCompressed, blob); err != nil {
		return err
	}
	if err := c.kv.Set(ctx, keyVersion, []byte(FormatVersion)); err != nil {
		return err
	}
	if err := c.writeTimestamp(ctx); err != nil {
		return err
	}

	c.logger.Debug("dataset saved",
		"format", FormatCompressed,
		"records", len(records),
		"raw_bytes", len(raw),
		"stored_bytes", len(blob))

	// a stale legacy copy would only waste quota
	if err := c.kv.Delete(ctx, keyLegacy); err != nil && !errors.Is(err, ErrNotFound) {
		c.logger.Warn("delete legacy dataset failed", "error", err)
	}
	return nil
}

func (c *Codec) saveLegacy(ctx context.Context, records []models.Record) error {
	raw, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := c.kv.Set(ctx, keyLegacy, raw); err != nil {
		return err
	}
	return c.writeTimestamp(ctx)
}

func (c *Codec) writeTimestamp(ctx context.Context) error {
	return c.kv.Set(ctx, keyTimestamp, []byte(c.now().UTC().Format(time.RFC3339)))
}

// Load reads the compressed layout when its version marker matches and the
// legacy layout otherwise. An empty store yields nil records and no error.
func (c *Codec) Load(ctx context.Context) ([]models.Record, error) {
	version, err := c.get(ctx, keyVersion)
	if err != nil {
		return nil, err
	}

	if string(version) == FormatVersion {
		blob, err := c.get(ctx, keyCompressed)
		if err != nil {
			return nil, err
		}
		if blob != nil {
			return c.decodeCompressed(blob)
		}
	}

	raw, err := c.get(ctx, keyLegacy)
	if err != nil || raw == nil {
		return nil, err
	}

	var records []models.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: legacy payload: %w", ErrCorrupt, err)
	}
	return records, nil
}

func (c *Codec) decodeCompressed(blob []byte) ([]models.Record, error) {
	raw, err := c.decoder.DecodeAll(blob, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: decompress: %w", ErrCorrupt, err)
	}

	var rows []shortRecord
	if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, fmt.Errorf("%w: compressed payload: %w", ErrCorrupt, err)
	}

	records := make([]models.Record, len(rows))
	for i, row := range rows {
		records[i] = row.expand()
	}
	return records, nil
}

// get returns nil for a missing key.
func (c *Codec) get(ctx context.Context, key string) ([]byte, error) {
	v, err := c.kv.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	return v, nil
}

// Clear deletes every dataset key.
func (c *Codec) Clear(ctx context.Context) error {
	var errs []error
	for _, key := range allKeys {
		if err := c.kv.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("clear dataset: %w", err)
	}
	return nil
}

// SavedAt reports when the dataset was last written.
func (c *Codec) SavedAt(ctx context.Context) (time.Time, bool) {
	raw, err := c.get(ctx, keyTimestamp)
	if err != nil || raw == nil {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339, string(raw))
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
