package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"bookstore/pkg/domain"
)

// AdminBooks lists every book in the store.
func (a *App) AdminBooks(p domain.Principal) ([]domain.Book, error) {
	if !p.IsAdmin() {
		return nil, ErrForbidden
	}
	return a.store.ListAllBooks(nil)
}

// AdminStats gathers catalog and revenue totals.
func (a *App) AdminStats(ctx context.Context, p domain.Principal) (domain.AdminStats, error) {
	if !p.IsAdmin() {
		return domain.AdminStats{}, ErrForbidden
	}
	var stats domain.AdminStats
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := a.store.BookCount()
		if err != nil {
			return fmt.Errorf("count books: %w", err)
		}
		stats.TotalBooks = n
		return nil
	})
	g.Go(func() error {
		n, err := a.store.UserCount()
		if err != nil {
			return fmt.Errorf("count users: %w", err)
		}
		stats.TotalUsers = n
		return nil
	})
	g.Go(func() error {
		n, revenue, err := a.store.PaymentTotals()
		if err != nil {
			return fmt.Errorf("sum payments: %w", err)
		}
		stats.SuccessfulPayments = n
		stats.TotalRevenue = revenue
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.AdminStats{}, err
	}
	return stats, nil
}

// VendorBooks lists the caller's own books.
func (a *App) VendorBooks(p domain.Principal) ([]domain.Book, error) {
	owner := p.UserID
	return a.store.ListAllBooks(&owner)
}

// VendorStats counts the caller's books and sums their prices.
func (a *App) VendorStats(p domain.Principal) (domain.VendorStats, error) {
	n, total, err := a.store.OwnerBookStats(p.UserID)
	if err != nil {
		return domain.VendorStats{}, fmt.Errorf("vendor stats: %w", err)
	}
	return domain.VendorStats{TotalBooks: n, TotalValue: total}, nil
}

// VendorSales lists successful payments on the caller's books, newest first.
func (a *App) VendorSales(p domain.Principal) ([]domain.Sale, error) {
	return a.store.ListSales(p.UserID)
}
