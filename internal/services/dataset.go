package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"sales-dashboard/internal/analytics"
	"sales-dashboard/internal/classifier"
	"sales-dashboard/internal/ingest"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/observability"
	"sales-dashboard/internal/store"
)

const defaultClassifierTimeout = 10 * time.Second

// Persister is the storage side of a Dataset; *store.Codec implements it.
type Persister interface {
	Save(ctx context.Context, records []models.Record) (store.Format, error)
	Load(ctx context.Context) ([]models.Record, error)
	Clear(ctx context.Context) error
	SavedAt(ctx context.Context) (time.Time, bool)
}

// ClassifierLoader yields the product classification table;
// *classifier.Cache implements it.
type ClassifierLoader interface {
	Load(ctx context.Context) (classifier.Table, error)
}

type Source string

const (
	SourceNone    Source = "none"
	SourceMemory  Source = "memory"
	SourceStorage Source = "storage"
	SourceFile    Source = "file"
	SourceUpload  Source = "upload"
)

// Dataset owns the current record set. Replacing it swaps the slice, so a
// snapshot handed out earlier stays valid and unchanged.
type Dataset struct {
	mu       sync.RWMutex
	records  []models.Record
	source   Source
	loadedAt time.Time

	persister         Persister
	classifier        ClassifierLoader
	classifierTimeout time.Duration
	logger            *slog.Logger
}

type DatasetOption func(*Dataset)

func WithClassifierTimeout(d time.Duration) DatasetOption {
	return func(ds *Dataset) {
		if d > 0 {
			ds.classifierTimeout = d
		}
	}
}

// NewDataset wires storage and classification. Either may be nil: without a
// persister the dataset lives in memory only, without a classifier
// categories fall back to the raw product category.
func NewDataset(persister Persister, loader ClassifierLoader, logger *slog.Logger, opts ...DatasetOption) *Dataset {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dataset{
		source:            SourceNone,
		persister:         persister,
		classifier:        loader,
		classifierTimeout: defaultClassifierTimeout,
		logger:            logger,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetData replaces the records in memory without persisting them.
func (d *Dataset) SetData(records []models.Record) {
	d.swap(records, SourceMemory)
}

func (d *Dataset) swap(records []models.Record, source Source) {
	d.mu.Lock()
	d.records = records
	d.source = source
	d.loadedAt = time.Now()
	d.mu.Unlock()

	observability.SetDatasetRecords(len(records))
}

// Restore loads the persisted dataset. Storage problems are logged and
// leave the dataset empty. It returns the number of records restored.
func (d *Dataset) Restore(ctx context.Context) int {
	if d.persister == nil {
		return 0
	}

	records, err := d.persister.Load(ctx)
	if err != nil {
		d.logger.Warn("failed to restore dataset, starting empty", "error", err)
		return 0
	}
	if len(records) == 0 {
		return 0
	}

	d.swap(records, SourceStorage)
	d.logger.Info("dataset restored from storage", "records", len(records))
	return len(records)
}

// LoadFromFile ingests a CSV or JSON export from disk and makes it the
// current dataset.
func (d *Dataset) LoadFromFile(ctx context.Context, path string) (ingest.Result, error) {
	start := time.Now()
	d.logger.Info("loading dataset file", "filename", path)

	f, err := os.Open(path)
	if err != nil {
		return ingest.Result{}, fmt.Errorf("open dataset file: %w", err)
	}
	defer f.Close()

	res, err := ingest.Decode(ctx, path, f)
	if err != nil {
		return res, fmt.Errorf("decode %s: %w", path, err)
	}

	if _, err := d.replace(ctx, res.Records, SourceFile); err != nil {
		return res, err
	}

	duration := time.Since(start)
	d.logger.Info("dataset file loaded",
		"records", len(res.Records),
		"skipped", res.Skipped,
		"duration", duration,
		"rate", fmt.Sprintf("%.0f records/sec", float64(len(res.Records))/duration.Seconds()))
	return res, nil
}

// Replace persists records and then makes them current. Nothing changes in
// memory when persisting fails. The format is empty without a persister.
func (d *Dataset) Replace(ctx context.Context, records []models.Record) (store.Format, error) {
	return d.replace(ctx, records, SourceUpload)
}

func (d *Dataset) replace(ctx context.Context, records []models.Record, source Source) (store.Format, error) {
	var format store.Format
	if d.persister != nil {
		var err error
		format, err = d.persister.Save(ctx, records)
		if err != nil {
			observability.CountStorageWrite("failed")
			return "", fmt.Errorf("persist dataset: %w", err)
		}
		observability.CountStorageWrite(string(format))
		if format == store.FormatLegacy {
			d.logger.Warn("dataset stored uncompressed after fallback", "records", len(records))
		}
	}

	d.swap(records, source)
	return format, nil
}

// Clear removes the dataset from memory and storage.
func (d *Dataset) Clear(ctx context.Context) error {
	if d.persister != nil {
		if err := d.persister.Clear(ctx); err != nil {
			return err
		}
	}
	d.swap(nil, SourceNone)
	return nil
}

// Records returns the current snapshot. Callers must not modify it.
func (d *Dataset) Records() []models.Record {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.records
}

type DatasetStats struct {
	Records            int        `json:"records"`
	Source             Source     `json:"source"`
	LoadedAt           *time.Time `json:"loaded_at,omitempty"`
	SavedAt            *time.Time `json:"saved_at,omitempty"`
	ClassifiedProducts int        `json:"classified_products"`
}

func (d *Dataset) Stats(ctx context.Context) DatasetStats {
	d.mu.RLock()
	stats := DatasetStats{
		Records: len(d.records),
		Source:  d.source,
	}
	if !d.loadedAt.IsZero() {
		loadedAt := d.loadedAt
		stats.LoadedAt = &loadedAt
	}
	d.mu.RUnlock()

	if d.persister != nil {
		if savedAt, ok := d.persister.SavedAt(ctx); ok {
			stats.SavedAt = &savedAt
		}
	}
	if table := d.classifierTable(ctx); table != nil {
		stats.ClassifiedProducts = len(table)
	}
	return stats
}

// Processor snapshots the dataset together with the classifier. A
// classifier that fails to load within the timeout is skipped.
func (d *Dataset) Processor(ctx context.Context) *analytics.Processor {
	records := d.Records()
	if table := d.classifierTable(ctx); table != nil {
		return analytics.NewProcessor(records, analytics.WithClassifier(table))
	}
	return analytics.NewProcessor(records)
}

func (d *Dataset) classifierTable(ctx context.Context) classifier.Table {
	if d.classifier == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, d.classifierTimeout)
	defer cancel()

	table, err := d.classifier.Load(ctx)
	if err != nil {
		d.logger.Warn("product classifier unavailable", "error", err)
		return nil
	}
	return table
}
