package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"sales-dashboard/internal/config"
	"sales-dashboard/internal/middleware"
	"sales-dashboard/internal/models"
	"sales-dashboard/internal/services"
	"sales-dashboard/internal/store"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() *config.Config {
	return &config.Config{
		Upload: config.UploadConfig{MaxBytes: 1 << 20},
		Security: config.SecurityConfig{
			RateLimitRPS:   100,
			RateLimitBurst: 20,
			AllowedOrigins: []string{"http://localhost:8084"},
			TrustedProxies: []string{"127.0.0.1"},
		},
	}
}

func newTestCodec(t *testing.T) *store.Codec {
	t.Helper()
	kv, err := store.OpenBadger(store.BadgerOptions{InMemory: true}, testLogger)
	if err != nil {
		t.Fatalf("open badger: %v", err)
	}
	codec, err := store.NewCodec(kv, testLogger)
	if err != nil {
		t.Fatalf("new codec: %v", err)
	}
	t.Cleanup(func() {
		codec.Close()
		kv.Close()
	})
	return codec
}

func newTestDataset(t *testing.T) *services.Dataset {
	t.Helper()
	d := services.NewDataset(newTestCodec(t), nil, testLogger)
	d.SetData([]models.Record{
		{
			CustomerCode: "C1", CustomerName: "Delta Motors", City: "Nasr City", Governorate: "Cairo",
			ProductCode: "P1", ProductName: "Filter", ProductCategory: "Parts",
			Quantity: 2, ItemTotal: 200, InvoiceNumber: "INV1", InvoiceDate: models.NewDate(2024, time.May, 2),
		},
		{
			CustomerCode: "C1", CustomerName: "Delta Motors", City: "Nasr City", Governorate: "Cairo",
			ProductCode: "P2", ProductName: "Oil 5W30", ProductCategory: "Oils",
			Quantity: 4, ItemTotal: 100, InvoiceNumber: "INV1", InvoiceDate: models.NewDate(2024, time.May, 2),
		},
		{
			CustomerCode: "C2", CustomerName: "Nile Garage", City: "Dokki", Governorate: "Giza",
			ProductCode: "P1", ProductName: "Filter", ProductCategory: "Parts",
			Quantity: 1, ItemTotal: 100, InvoiceNumber: "INV2", InvoiceDate: models.NewDate(2024, time.May, 9),
		},
	})
	return d
}

func newTestHandler(t *testing.T, dataset *services.Dataset) http.Handler {
	t.Helper()
	cfg := testConfig()
	return newHandler(cfg, dataset, middleware.NewRateLimiter(cfg.Security), testLogger)
}

func TestServer_Routes(t *testing.T) {
	handler := newTestHandler(t, newTestDataset(t))

	tests := []struct {
		path           string
		expectedStatus int
		contentType    string
	}{
		{"/", http.StatusOK, "text/html"},
		{"/health", http.StatusOK, "application/json"},
		{"/admin/stats", http.StatusOK, "application/json"},
		{"/metrics", http.StatusOK, "text/plain"},
		{"/api/summary", http.StatusOK, "application/json"},
		{"/api/customers", http.StatusOK, "application/json"},
		{"/api/customers/C1", http.StatusOK, "application/json"},
		{"/api/customers/C404", http.StatusNotFound, "application/json"},
		{"/api/products", http.StatusOK, "application/json"},
		{"/api/bundles", http.StatusOK, "application/json"},
		{"/api/regions", http.StatusOK, "application/json"},
		{"/api/regions/Cairo/cities/Nasr%20City/products", http.StatusOK, "application/json"},
		{"/api/regions/Cairo/cities/Nasr%20City/invoices", http.StatusBadRequest, "application/json"},
		{"/api/categories?customer=C1", http.StatusOK, "application/json"},
		{"/api/summary?start=2024-05-10&end=2024-05-01", http.StatusBadRequest, "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.expectedStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.expectedStatus)
			}
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, tt.contentType) {
				t.Errorf("content-type = %q, want %q", ct, tt.contentType)
			}
			if tt.contentType == "application/json" {
				var result map[string]any
				if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
					t.Errorf("invalid json: %v", err)
				}
				if _, ok := result["success"]; !ok {
					t.Error("response should use the success envelope")
				}
			}
		})
	}
}

func TestServer_SSERoutes(t *testing.T) {
	handler := newTestHandler(t, newTestDataset(t))

	for _, route := range []string{"/sse/summary", "/sse/top-customers", "/sse/top-products", "/sse/regions", "/sse/refresh-all"} {
		t.Run(route, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, route, nil))

			if w.Code != http.StatusOK {
				t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
			}
			if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/event-stream") {
				t.Errorf("content-type = %q, should contain 'text/event-stream'", ct)
			}
			if !strings.Contains(w.Body.String(), "datastar-patch-elements") {
				t.Error("stream should patch elements")
			}
		})
	}
}

func TestServer_Middleware(t *testing.T) {
	handler := newTestHandler(t, newTestDataset(t))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:8084")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Header().Get("X-Request-ID") == "" {
		t.Error("response should carry a request id")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers should be set")
	}
	if w.Header().Get("Access-Control-Allow-Origin") != "http://localhost:8084" {
		t.Error("allowed origin should be echoed")
	}
}

func TestServer_ErrorHandling(t *testing.T) {
	handler := newTestHandler(t, newTestDataset(t))

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPost, "/api/summary", http.StatusMethodNotAllowed},
		{http.MethodPut, "/", http.StatusMethodNotAllowed},
		{http.MethodDelete, "/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/upload", http.StatusMethodNotAllowed},
		{http.MethodGet, "/nowhere", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func summarySales(t *testing.T, handler http.Handler) float64 {
	t.Helper()
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/summary", nil))

	var resp struct {
		Data models.OverallStats `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode summary: %v", err)
	}
	return resp.Data.TotalSales
}

func TestServer_UploadLifecycle(t *testing.T) {
	dataset := newTestDataset(t)
	handler := newTestHandler(t, dataset)

	if got := summarySales(t, handler); got != 400 {
		t.Fatalf("initial sales = %v, want 400", got)
	}

	csv := "customer_code,product_code,item_total,invoice_number,invoice_date\n" +
		"N1,P1,75,X1,2024-06-01\n" +
		"N2,P2,25,X2,2024-06-02\n"
	req := httptest.NewRequest(http.MethodPost, "/api/upload?filename=june.csv", strings.NewReader(csv))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("upload status = %d, body %s", w.Code, w.Body.String())
	}

	if got := summarySales(t, handler); got != 100 {
		t.Errorf("sales after upload = %v, want 100", got)
	}

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/data", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("clear status = %d", w.Code)
	}
	if got := summarySales(t, handler); got != 0 {
		t.Errorf("sales after clear = %v, want 0", got)
	}
}

func TestLoadInitialData(t *testing.T) {
	seed := filepath.Join(t.TempDir(), "seed.json")
	if err := os.WriteFile(seed, []byte(`[{"customer_code":"S1","product_code":"P1","item_total":10,"invoice_number":"S-1"}]`), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("seed when storage is empty", func(t *testing.T) {
		dataset := services.NewDataset(newTestCodec(t), nil, testLogger)
		if err := loadInitialData(dataset, seed, testLogger); err != nil {
			t.Fatalf("loadInitialData() error = %v", err)
		}
		if got := dataset.Stats(context.Background()); got.Records != 1 || got.Source != services.SourceFile {
			t.Errorf("stats = %+v, want 1 record from file", got)
		}
	})

	t.Run("stored data wins over seed", func(t *testing.T) {
		codec := newTestCodec(t)
		if _, err := codec.Save(context.Background(), []models.Record{
			{CustomerCode: "A", ProductCode: "B", InvoiceNumber: "I1"},
			{CustomerCode: "A", ProductCode: "C", InvoiceNumber: "I1"},
		}); err != nil {
			t.Fatal(err)
		}

		dataset := services.NewDataset(codec, nil, testLogger)
		if err := loadInitialData(dataset, seed, testLogger); err != nil {
			t.Fatalf("loadInitialData() error = %v", err)
		}
		if got := dataset.Stats(context.Background()); got.Records != 2 || got.Source != services.SourceStorage {
			t.Errorf("stats = %+v, want 2 records from storage", got)
		}
	})

	t.Run("missing seed", func(t *testing.T) {
		dataset := services.NewDataset(newTestCodec(t), nil, testLogger)
		if err := loadInitialData(dataset, filepath.Join(t.TempDir(), "none.csv"), testLogger); err == nil {
			t.Error("expected error for missing seed file")
		}
	})
}

func TestDashboardTemplate(t *testing.T) {
	w := httptest.NewRecorder()
	handleDashboard(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content-type = %q, want text/html", ct)
	}

	body := w.Body.String()
	for _, component := range []string{"Sales Dashboard", "Top customers", "Top products", "Regions", "datastar"} {
		if !strings.Contains(body, component) {
			t.Errorf("dashboard should contain %q", component)
		}
	}
}
