package app

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"bookstore/pkg/auth"
	"bookstore/pkg/domain"
)

func TestAdminReportsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	user := env.user(t, "user@example.com", domain.RoleUser)
	if _, err := env.app.AdminBooks(user); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := env.app.AdminStats(context.Background(), user); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestReports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	admin := env.user(t, "admin@example.com", domain.RoleAdmin)
	seller, ref := env.checkout(t, "10.50")
	env.book(t, seller, "Emma", "7.00")

	body := webhookBody("charge.success", ref, "success")
	if err := env.app.HandleWebhook(ctx, body, auth.SignatureHex([]byte(testWebhookSecret), body)); err != nil {
		t.Fatalf("webhook: %v", err)
	}

	stats, err := env.app.AdminStats(ctx, admin)
	if err != nil {
		t.Fatalf("admin stats: %v", err)
	}
	if stats.TotalBooks != 2 || stats.TotalUsers != 3 || stats.SuccessfulPayments != 1 {
		t.Fatalf("unexpected admin stats: %+v", stats)
	}
	if !stats.TotalRevenue.Equal(decimal.RequireFromString("10.5")) {
		t.Fatalf("revenue = %s, want 10.5", stats.TotalRevenue)
	}
	books, err := env.app.AdminBooks(admin)
	if err != nil {
		t.Fatalf("admin books: %v", err)
	}
	if len(books) != 2 || books[0].Owner != "seller@example.com" {
		t.Fatalf("unexpected admin books: %+v", books)
	}

	vendor, err := env.app.VendorStats(seller)
	if err != nil {
		t.Fatalf("vendor stats: %v", err)
	}
	if vendor.TotalBooks != 2 || !vendor.TotalValue.Equal(decimal.RequireFromString("17.5")) {
		t.Fatalf("unexpected vendor stats: %+v", vendor)
	}
	mine, err := env.app.VendorBooks(admin)
	if err != nil {
		t.Fatalf("vendor books: %v", err)
	}
	if len(mine) != 0 {
		t.Fatalf("admin owns no books, got %d", len(mine))
	}
	sales, err := env.app.VendorSales(seller)
	if err != nil {
		t.Fatalf("vendor sales: %v", err)
	}
	if len(sales) != 1 || sales[0].Buyer != "buyer@example.com" || sales[0].BookTitle != "Dune" || sales[0].Reference != ref {
		t.Fatalf("unexpected sales: %+v", sales)
	}
}
