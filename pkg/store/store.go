package store

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"bookstore/pkg/domain"
)

// ErrDuplicate is returned when a write violates a unique constraint.
var ErrDuplicate = errors.New("duplicate record")

// Store defines persistence operations for users, books, images, and payments.
type Store interface {
	// users
	CreateUser(u *domain.User) error
	GetUserByUsername(username string) (domain.User, bool, error)
	GetUserByID(id uint) (domain.User, bool, error)
	UserCount() (int64, error)

	// books
	CreateBook(b *domain.Book) error
	UpdateBook(b *domain.Book, added []domain.Image) error
	GetBook(id uint) (domain.Book, bool, error)
	ListBooks(q domain.BookQuery) (domain.BookPage, error)
	ListAllBooks(ownerID *uint) ([]domain.Book, error)
	DeleteBook(id uint) error
	BookCount() (int64, error)
	OwnerBookStats(ownerID uint) (int64, decimal.Decimal, error)

	// images
	GetImage(id uint) (domain.Image, bool, error)
	DeleteImage(id uint) error

	// payments
	CreatePayment(p *domain.Payment) error
	GetPaymentByReference(ref string) (domain.Payment, bool, error)
	TransitionPayment(ref string, to domain.PaymentStatus, at time.Time) (bool, error)
	ListSales(ownerID uint) ([]domain.Sale, error)
	PaymentTotals() (int64, decimal.Decimal, error)
	RecordPaymentEvent(e domain.PaymentEvent) error
}
