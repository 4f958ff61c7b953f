package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sales-dashboard/internal/models"
)

func openMemory(t *testing.T, quota int64) *BadgerKV {
	t.Helper()
	kv, err := OpenBadger(BadgerOptions{InMemory: true, QuotaBytes: quota}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv
}

func newCodec(t *testing.T, kv KV) *Codec {
	t.Helper()
	codec, err := NewCodec(kv, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = codec.Close() })
	return codec
}

func sampleRecords(n int) []models.Record {
	out := make([]models.Record, n)
	for i := range out {
		out[i] = models.Record{
			CustomerCode:    fmt.Sprintf("C%d", i),
			CustomerName:    fmt.Sprintf("Customer %d", i),
			City:            "Nasr City",
			Governorate:     "Cairo",
			ProductCode:     fmt.Sprintf("P%d", i%4),
			ProductName:     fmt.Sprintf("Product %d", i%4),
			ProductCategory: "Care",
			ProductPrice:    10.5,
			Quantity:        float64(i%3 + 1),
			ItemTotal:       float64(i%3+1) * 10.5,
			InvoiceNumber:   fmt.Sprintf("INV%d", i/2),
			InvoiceDate:     models.NewDate(2024, time.January, 1+i%28),
		}
	}
	// one undated line must survive the round trip as undated
	if n > 0 {
		out[n-1].InvoiceDate = models.Date{}
	}
	return out
}

func TestBadgerKV(t *testing.T) {
	ctx := context.Background()
	kv := openMemory(t, 0)

	_, err := kv.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "a", []byte("one")))
	got, err := kv.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), got)

	require.NoError(t, kv.Delete(ctx, "a"))
	_, err = kv.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, kv.Set(ctx, "b", []byte("two")))
	require.NoError(t, kv.DropAll(ctx))
	_, err = kv.Get(ctx, "b")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerKV_Quota(t *testing.T) {
	ctx := context.Background()
	kv := openMemory(t, 64)

	require.NoError(t, kv.Set(ctx, "a", bytes.Repeat([]byte("x"), 50)))
	err := kv.Set(ctx, "b", bytes.Repeat([]byte("y"), 20))
	require.ErrorIs(t, err, ErrQuotaExceeded)

	// replacing a key only counts the new value
	require.NoError(t, kv.Set(ctx, "a", bytes.Repeat([]byte("z"), 60)))
}

func TestBadgerKV_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	kv := openMemory(t, 0)
	assert.ErrorIs(t, kv.Set(ctx, "a", []byte("1")), context.Canceled)
	_, err := kv.Get(ctx, "a")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCodec_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := openMemory(t, 0)
	codec := newCodec(t, kv)

	records := sampleRecords(50)
	format, err := codec.Save(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, FormatCompressed, format)

	version, err := kv.Get(ctx, keyVersion)
	require.NoError(t, err)
	assert.Equal(t, FormatVersion, string(version))

	_, err = kv.Get(ctx, keyLegacy)
	assert.ErrorIs(t, err, ErrNotFound)

	loaded, err := codec.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(records, loaded); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.False(t, loaded[len(loaded)-1].InvoiceDate.Valid())
}

func TestCodec_ShortKeys(t *testing.T) {
	ctx := context.Background()
	kv := openMemory(t, 0)
	codec := newCodec(t, kv)

	_, err := codec.Save(ctx, sampleRecords(1))
	require.NoError(t, err)

	blob, err := kv.Get(ctx, keyCompressed)
	require.NoError(t, err)
	raw, err := codec.decoder.DecodeAll(blob, nil)
	require.NoError(t, err)

	for _, key := range []string{`"cn"`, `"cc"`, `"ci"`, `"g"`, `"pn"`, `"pc"`, `"cat"`, `"q"`, `"p"`, `"it"`, `"in"`, `"id"`} {
		assert.Contains(t, string(raw), key)
	}
	assert.NotContains(t, string(raw), "customer_code")
}

func TestCodec_LoadEmpty(t *testing.T) {
	codec := newCodec(t, openMemory(t, 0))

	records, err := codec.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, records)

	_, ok := codec.SavedAt(context.Background())
	assert.False(t, ok)
}

func TestCodec_LoadLegacy(t *testing.T) {
	ctx := context.Background()
	kv := openMemory(t, 0)
	codec := newCodec(t, kv)

	legacy := `[{"customer_code":"C1","product_code":"P1","item_total":12.5,"invoice_number":"INV1","invoice_date":"2024-02-01"},
		{"customer_code":"C2","product_code":"P2","item_total":3,"invoice_date":null}]`
	require.NoError(t, kv.Set(ctx, keyLegacy, []byte(legacy)))

	records, err := codec.Load(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "C1", records[0].CustomerCode)
	assert.Equal(t, 12.5, records[0].ItemTotal)
	assert.Equal(t, "2024-02-01", records[0].InvoiceDate.String())
	assert.False(t, records[1].InvoiceDate.Valid())
}

func TestCodec_UnknownVersionFallsBackToLegacy(t *testing.T) {
	ctx := context.Background()
	kv := openMemory(t, 0)
	codec := newCodec(t, kv)

	require.NoError(t, kv.Set(ctx, keyCompressed, []byte("not zstd")))
	require.NoError(t, kv.Set(ctx, keyVersion, []byte("1.0")))
	require.NoError(t, kv.Set(ctx, keyLegacy, []byte(`[{"customer_code":"C1","product_code":"P1"}]`)))

	records, err := codec.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestCodec_Corrupt(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value []byte
	}{
		{"compressed garbage", keyCompressed, []byte("not zstd at all")},
		{"legacy garbage", keyLegacy, []byte("{")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := openMemory(t, 0)
			codec := newCodec(t, kv)

			require.NoError(t, kv.Set(ctx, tt.key, tt.value))
			if tt.key == keyCompressed {
				require.NoError(t, kv.Set(ctx, keyVersion, []byte(FormatVersion)))
			}

			_, err := codec.Load(ctx)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestCodec_FallbackAfterQuota(t *testing.T) {
	ctx := context.Background()
	kv := openMemory(t, 8192)
	codec := newCodec(t, kv)

	// unrelated data leaves too little room for the compressed dataset
	require.NoError(t, kv.Set(ctx, "unrelated", bytes.Repeat([]byte("u"), 8100)))

	records := sampleRecords(20)
	format, err := codec.Save(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, FormatLegacy, format)

	_, err = kv.Get(ctx, "unrelated")
	assert.ErrorIs(t, err, ErrNotFound, "fallback wipes the store")
	_, err = kv.Get(ctx, keyVersion)
	assert.ErrorIs(t, err, ErrNotFound)

	loaded, err := codec.Load(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(records, loaded); diff != "" {
		t.Errorf("legacy round trip mismatch (-want +got):\n%s", diff)
	}

	_, ok := codec.SavedAt(ctx)
	assert.True(t, ok)
}

func TestCodec_BothPathsFail(t *testing.T) {
	kv := openMemory(t, 64)
	codec := newCodec(t, kv)

	format, err := codec.Save(context.Background(), sampleRecords(40))
	require.Error(t, err)
	assert.Empty(t, format)
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

// faultyKV fails writes to selected keys.
type faultyKV struct {
	KV
	failSet map[string]error
	drops   int
}

func (f *faultyKV) Set(ctx context.Context, key string, value []byte) error {
	if err, ok := f.failSet[key]; ok {
		return err
	}
	return f.KV.Set(ctx, key, value)
}

func (f *faultyKV) DropAll(ctx context.Context) error {
	f.drops++
	return f.KV.DropAll(ctx)
}

func TestCodec_FallbackOnPartialWrite(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk unavailable")
	kv := &faultyKV{KV: openMemory(t, 0), failSet: map[string]error{keyVersion: boom}}
	codec := newCodec(t, kv)

	format, err := codec.Save(ctx, sampleRecords(3))
	require.NoError(t, err)
	assert.Equal(t, FormatLegacy, format)
	assert.Equal(t, 1, kv.drops)

	_, err = kv.Get(ctx, keyCompressed)
	assert.ErrorIs(t, err, ErrNotFound, "half-written compressed entry is wiped")

	loaded, err := codec.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, loaded, 3)

	kv.failSet[keyLegacy] = boom
	_, err = codec.Save(ctx, sampleRecords(3))
	assert.ErrorIs(t, err, boom)
}

func TestCodec_Clear(t *testing.T) {
	ctx := context.Background()
	kv := openMemory(t, 0)
	codec := newCodec(t, kv)
	codec.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	_, err := codec.Save(ctx, sampleRecords(5))
	require.NoError(t, err)
	require.NoError(t, kv.Set(ctx, keyLegacy, []byte("[]")))

	savedAt, ok := codec.SavedAt(ctx)
	require.True(t, ok)
	assert.Equal(t, codec.now(), savedAt)

	require.NoError(t, codec.Clear(ctx))
	for _, key := range allKeys {
		_, err := kv.Get(ctx, key)
		assert.ErrorIs(t, err, ErrNotFound, key)
	}

	records, err := codec.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, records)
}
