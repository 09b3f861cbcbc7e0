package deals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukaan-labs/dukaan/internal/domain"
	"github.com/dukaan-labs/dukaan/internal/infra/sqlite"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	svc := NewService(db, db)
	svc.now = func() time.Time { return testNow }

	if err := db.UpsertProduct(domain.Product{
		ID: "p1", Name: "Atta 5kg", PriceRupees: 240, Stock: 100,
		LowStockLevel: 5, CreatedAt: testNow, UpdatedAt: testNow,
	}); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return svc, db
}

func TestCreate(t *testing.T) {
	svc, _ := newTestService(t)

	deal, err := svc.Create(context.Background(), CreateRequest{
		ProductID:       "p1",
		DealPriceRupees: 210,
		TargetQty:       20,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if deal.Title != "Atta 5kg group buy" {
		t.Errorf("default title = %q", deal.Title)
	}
	if deal.Status != domain.DealOpen {
		t.Errorf("status = %s, want OPEN", deal.Status)
	}
	// Default duration is 72 hours.
	if want := testNow.Add(72 * time.Hour); !deal.ExpiresAt.Equal(want) {
		t.Errorf("expires = %v, want %v", deal.ExpiresAt, want)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	tests := []struct {
		name    string
		req     CreateRequest
		wantErr error
	}{
		{"zero price", CreateRequest{ProductID: "p1", TargetQty: 10}, domain.ErrInvalidAmount},
		{"zero target", CreateRequest{ProductID: "p1", DealPriceRupees: 210}, domain.ErrInvalidAmount},
		{"unknown product", CreateRequest{ProductID: "ghost", DealPriceRupees: 210, TargetQty: 10}, domain.ErrProductNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJoin_ClosesAtTarget(t *testing.T) {
	svc, _ := newTestService(t)

	deal, err := svc.Create(context.Background(), CreateRequest{
		ProductID: "p1", DealPriceRupees: 210, TargetQty: 10,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	d, err := svc.Join(context.Background(), deal.ID, 6)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if d.Status != domain.DealOpen || d.JoinedQty != 6 {
		t.Errorf("after first join: %+v, want OPEN with 6", d)
	}

	d, err = svc.Join(context.Background(), deal.ID, 5)
	if err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if d.Status != domain.DealClosed || d.JoinedQty != 11 {
		t.Errorf("after target hit: %+v, want CLOSED with 11", d)
	}

	// A closed deal rejects further joins.
	if _, err := svc.Join(context.Background(), deal.ID, 1); !errors.Is(err, domain.ErrDealClosed) {
		t.Errorf("join after close err = %v, want ErrDealClosed", err)
	}
}

func TestJoin_Errors(t *testing.T) {
	svc, _ := newTestService(t)

	deal, _ := svc.Create(context.Background(), CreateRequest{
		ProductID: "p1", DealPriceRupees: 210, TargetQty: 10,
	})

	if _, err := svc.Join(context.Background(), deal.ID, 0); !errors.Is(err, domain.ErrInvalidAmount) {
		t.Errorf("zero qty err = %v, want ErrInvalidAmount", err)
	}
	if _, err := svc.Join(context.Background(), "ghost", 1); !errors.Is(err, domain.ErrDealNotFound) {
		t.Errorf("unknown deal err = %v, want ErrDealNotFound", err)
	}
}

func TestJoin_ExpiredDeal(t *testing.T) {
	svc, _ := newTestService(t)

	deal, _ := svc.Create(context.Background(), CreateRequest{
		ProductID: "p1", DealPriceRupees: 210, TargetQty: 10, DurationHours: 24,
	})

	svc.now = func() time.Time { return testNow.Add(25 * time.Hour) }
	if _, err := svc.Join(context.Background(), deal.ID, 1); !errors.Is(err, domain.ErrDealClosed) {
		t.Errorf("expired join err = %v, want ErrDealClosed", err)
	}
}

func TestList_ResolvesExpiry(t *testing.T) {
	svc, _ := newTestService(t)

	svc.Create(context.Background(), CreateRequest{
		ProductID: "p1", DealPriceRupees: 210, TargetQty: 10, DurationHours: 24,
	})
	svc.Create(context.Background(), CreateRequest{
		ProductID: "p1", DealPriceRupees: 200, TargetQty: 10, DurationHours: 96,
	})

	svc.now = func() time.Time { return testNow.Add(48 * time.Hour) }
	deals, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(deals) != 2 {
		t.Fatalf("deal count = %d, want 2", len(deals))
	}

	statuses := map[domain.DealStatus]int{}
	for _, d := range deals {
		statuses[d.Status]++
	}
	if statuses[domain.DealExpired] != 1 || statuses[domain.DealOpen] != 1 {
		t.Errorf("statuses = %v, want one EXPIRED and one OPEN", statuses)
	}
}
