package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukaan-labs/dukaan/internal/app/billing"
	"github.com/dukaan-labs/dukaan/internal/app/deals"
	"github.com/dukaan-labs/dukaan/internal/app/khata"
	"github.com/dukaan-labs/dukaan/internal/domain"
	"github.com/dukaan-labs/dukaan/internal/infra/sqlite"
)

// ─── Test Harness ───────────────────────────────────────────────────────────

func newTestServer(t *testing.T) (*Server, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	engine := khata.NewEngine(db)
	bill := billing.NewService(db, engine)
	dl := deals.NewService(db, db)
	return NewServer(db, bill, dl, engine), db
}

// do runs one request through the full router and decodes the JSON reply.
func do(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func seedAPICustomer(t *testing.T, db *sqlite.DB, phone string, score int, limit int64) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	if err := db.InsertCustomer(domain.Customer{PhoneNumber: phone, Name: "Ravi", CreatedAt: now}); err != nil {
		t.Fatalf("seed customer: %v", err)
	}
	if score > 0 {
		if err := db.SaveScore(phone, score, limit, now); err != nil {
			t.Fatalf("seed score: %v", err)
		}
	}
}

func seedAPIProduct(t *testing.T, db *sqlite.DB, id string, price, stock int64) {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	err := db.UpsertProduct(domain.Product{
		ID: id, Name: "Rice 1kg", PriceRupees: price, Stock: stock,
		LowStockLevel: 2, CreatedAt: now, UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
}

// ─── Health / Metrics ───────────────────────────────────────────────────────

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec, body := do(t, s.Handler(), "GET", "/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
}

func TestMetrics_GatedByConfig(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("metrics without EnableMetrics: status = %d, want 404", rec.Code)
	}

	s.EnableMetrics()
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("metrics with EnableMetrics: status = %d, want 200", rec.Code)
	}
}

// ─── Customers ──────────────────────────────────────────────────────────────

func TestCreateCustomer(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec, body := do(t, h, "POST", "/api/customers", map[string]string{
		"phone_number": "9876543210",
		"name":         "Ravi",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %v", rec.Code, body)
	}

	// Duplicate phone conflicts.
	rec, _ = do(t, h, "POST", "/api/customers", map[string]string{
		"phone_number": "9876543210",
		"name":         "Ravi",
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("duplicate status = %d, want 409", rec.Code)
	}

	// Missing fields rejected.
	rec, _ = do(t, h, "POST", "/api/customers", map[string]string{"name": "NoPhone"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing phone status = %d, want 400", rec.Code)
	}
}

func TestGetCustomer_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec, _ := do(t, s.Handler(), "GET", "/api/customers/0000", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListCustomers(t *testing.T) {
	s, db := newTestServer(t)
	seedAPICustomer(t, db, "111", 0, 0)
	seedAPICustomer(t, db, "222", 0, 0)

	rec, body := do(t, s.Handler(), "GET", "/api/customers", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body["count"] != float64(2) {
		t.Errorf("count = %v, want 2", body["count"])
	}
}

// ─── Khata Endpoints ────────────────────────────────────────────────────────

func TestKhataStatus(t *testing.T) {
	s, db := newTestServer(t)
	seedAPICustomer(t, db, "111", 0, 0)

	rec, body := do(t, s.Handler(), "GET", "/api/customers/111/khata", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// Never-scored customer presents the default score and its limit.
	if body["score"] != float64(khata.DefaultScore) {
		t.Errorf("score = %v, want %d", body["score"], khata.DefaultScore)
	}
	if body["limit"] != float64(3000) {
		t.Errorf("limit = %v, want 3000", body["limit"])
	}

	rec, _ = do(t, s.Handler(), "GET", "/api/customers/0000/khata", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown customer status = %d, want 404", rec.Code)
	}
}

func TestRecalculate(t *testing.T) {
	s, db := newTestServer(t)
	seedAPICustomer(t, db, "111", 0, 0)

	rec, body := do(t, s.Handler(), "POST", "/api/customers/111/khata/recalculate", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	// No khata history: the default score comes back.
	if body["score"] != float64(khata.DefaultScore) {
		t.Errorf("score = %v, want %d", body["score"], khata.DefaultScore)
	}

	rec, _ = do(t, s.Handler(), "POST", "/api/customers/0000/khata/recalculate", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown customer status = %d, want 404", rec.Code)
	}
}

// ─── Bills / Payments ───────────────────────────────────────────────────────

func TestCreateBill_EndToEnd(t *testing.T) {
	s, db := newTestServer(t)
	seedAPICustomer(t, db, "111", 600, 3000)
	seedAPIProduct(t, db, "p1", 100, 10)
	h := s.Handler()

	rec, body := do(t, h, "POST", "/api/bills", map[string]interface{}{
		"customer_phone": "111",
		"payment_mode":   "KHATA",
		"items": []map[string]interface{}{
			{"product_id": "p1", "quantity": 4},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201; body %v", rec.Code, body)
	}
	if body["total_rupees"] != float64(400) {
		t.Errorf("total = %v, want 400", body["total_rupees"])
	}

	billID, _ := body["id"].(string)
	rec, _ = do(t, h, "GET", "/api/bills/"+billID, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get bill status = %d, want 200", rec.Code)
	}

	// Khata over the limit is refused.
	rec, _ = do(t, h, "POST", "/api/bills", map[string]interface{}{
		"customer_phone": "111",
		"payment_mode":   "KHATA",
		"items": []map[string]interface{}{
			{"product_id": "p1", "quantity": 30},
		},
	})
	if rec.Code != http.StatusConflict && rec.Code != http.StatusPaymentRequired {
		t.Errorf("over-limit status = %d, want 402 or 409", rec.Code)
	}
}

func TestCreateBill_Validation(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec, _ := do(t, h, "POST", "/api/bills", map[string]interface{}{
		"payment_mode": "CASH",
		"items":        []map[string]interface{}{},
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty bill status = %d, want 400", rec.Code)
	}
}

func TestRecordPayment_EndToEnd(t *testing.T) {
	s, db := newTestServer(t)
	seedAPICustomer(t, db, "111", 600, 3000)
	seedAPIProduct(t, db, "p1", 200, 10)
	h := s.Handler()

	rec, _ := do(t, h, "POST", "/api/bills", map[string]interface{}{
		"customer_phone": "111",
		"payment_mode":   "KHATA",
		"items": []map[string]interface{}{
			{"product_id": "p1", "quantity": 1},
		},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("bill status = %d, want 201", rec.Code)
	}

	rec, body := do(t, h, "POST", "/api/customers/111/payments", map[string]interface{}{
		"amount_rupees": 200,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("payment status = %d, want 200; body %v", rec.Code, body)
	}
	if body["entries_settled"] != float64(1) {
		t.Errorf("entries_settled = %v, want 1", body["entries_settled"])
	}

	// Nothing left to settle.
	rec, _ = do(t, h, "POST", "/api/customers/111/payments", map[string]interface{}{
		"amount_rupees": 100,
	})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("no-pending status = %d, want 400", rec.Code)
	}
}

// ─── Products ───────────────────────────────────────────────────────────────

func TestProductEndpoints(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	rec, body := do(t, h, "PUT", "/api/products", map[string]interface{}{
		"name":            "Atta 5kg",
		"price_rupees":    240,
		"stock":           1,
		"low_stock_level": 3,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upsert status = %d, want 201; body %v", rec.Code, body)
	}
	id, _ := body["id"].(string)
	if id == "" {
		t.Fatal("created product has no id")
	}

	rec, body = do(t, h, "GET", "/api/products", nil)
	if rec.Code != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("list: status %d count %v, want 200/1", rec.Code, body["count"])
	}

	// Stock 1 is at/below low_stock_level 3.
	rec, body = do(t, h, "GET", "/api/products/low-stock", nil)
	if rec.Code != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("low-stock: status %d count %v, want 200/1", rec.Code, body["count"])
	}

	rec, _ = do(t, h, "GET", "/api/products/"+id, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("get product status = %d, want 200", rec.Code)
	}

	rec, _ = do(t, h, "GET", "/api/products/ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("ghost product status = %d, want 404", rec.Code)
	}
}

// ─── Deals ──────────────────────────────────────────────────────────────────

func TestDealEndpoints(t *testing.T) {
	s, db := newTestServer(t)
	seedAPIProduct(t, db, "p1", 240, 100)
	h := s.Handler()

	rec, body := do(t, h, "POST", "/api/deals", map[string]interface{}{
		"product_id":        "p1",
		"deal_price_rupees": 210,
		"target_qty":        10,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create deal status = %d, want 201; body %v", rec.Code, body)
	}
	dealID, _ := body["id"].(string)

	rec, body = do(t, h, "POST", fmt.Sprintf("/api/deals/%s/join", dealID), map[string]interface{}{
		"quantity": 10,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("join status = %d, want 200", rec.Code)
	}
	if body["status"] != string(domain.DealClosed) {
		t.Errorf("deal status = %v, want CLOSED", body["status"])
	}

	// Joining a closed deal conflicts.
	rec, _ = do(t, h, "POST", fmt.Sprintf("/api/deals/%s/join", dealID), map[string]interface{}{
		"quantity": 1,
	})
	if rec.Code != http.StatusConflict {
		t.Errorf("closed-deal join status = %d, want 409", rec.Code)
	}

	rec, body = do(t, h, "GET", "/api/deals", nil)
	if rec.Code != http.StatusOK || body["count"] != float64(1) {
		t.Errorf("list deals: status %d count %v, want 200/1", rec.Code, body["count"])
	}
}

// ─── Traces ─────────────────────────────────────────────────────────────────

func TestTracesEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	do(t, h, "GET", "/health", nil)
	rec, body := do(t, h, "GET", "/api/traces", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	spans, ok := body["spans"].([]interface{})
	if !ok || len(spans) == 0 {
		t.Errorf("spans = %v, want at least one recorded span", body["spans"])
	}
}
