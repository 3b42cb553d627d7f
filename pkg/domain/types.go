package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type UserRole string

const (
	RoleUser  UserRole = "User"
	RoleAdmin UserRole = "Admin"
)

// ParseUserRole normalizes a role claim or column value. Unknown roles are rejected.
func ParseUserRole(raw string) (UserRole, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "user":
		return RoleUser, true
	case "admin":
		return RoleAdmin, true
	default:
		return "", false
	}
}

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

// ParsePaymentStatus maps a stored or gateway-reported status onto the enum.
func ParsePaymentStatus(raw string) (PaymentStatus, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(PaymentPending):
		return PaymentPending, true
	case string(PaymentSuccess):
		return PaymentSuccess, true
	case string(PaymentFailed):
		return PaymentFailed, true
	default:
		return "", false
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

type User struct {
	ID           uint      `json:"id"`
	Username     string    `json:"username"`
	PasswordHash []byte    `json:"-"`
	PasswordSalt []byte    `json:"-"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Principal is the authenticated caller, as carried by a verified token.
type Principal struct {
	UserID   uint     `json:"id"`
	Username string   `json:"username"`
	Role     UserRole `json:"role"`
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

type Book struct {
	ID          uint            `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	UserID      uint            `json:"userId"`
	Owner       string          `json:"-"`
	AddedBy     string          `json:"addedBy"`
	UpdatedBy   string          `json:"updatedBy"`
	Images      []Image         `json:"images"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// FirstImageURL returns the earliest attached image URL, or "".
func (b Book) FirstImageURL() string {
	if len(b.Images) == 0 {
		return ""
	}
	return b.Images[0].URL
}

type Image struct {
	ID         uint   `json:"id"`
	URL        string `json:"url"`
	StorageKey string `json:"-"`
	BookID     uint   `json:"bookId"`
}

type Payment struct {
	ID        uint            `json:"id"`
	Reference string          `json:"reference"`
	Email     string          `json:"email"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
	BookID    uint            `json:"bookId"`
	BuyerID   uint            `json:"buyerId"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// PaymentEvent is a signature-verified webhook delivery kept for audit.
type PaymentEvent struct {
	ID         uint
	Event      string
	Reference  string
	Payload    []byte
	Applied    bool
	ReceivedAt time.Time
}

// BookQuery filters and paginates book listings. A nil OwnerID lists all owners.
type BookQuery struct {
	Search   string
	Page     int
	PageSize int
	OwnerID  *uint
}

type BookPage struct {
	Total    int64
	Page     int
	PageSize int
	Items    []Book
}

// Sale is a successful payment on a book, as seen by the book's owner.
type Sale struct {
	BookTitle string          `json:"bookTitle"`
	Buyer     string          `json:"buyer"`
	Amount    decimal.Decimal `json:"amount"`
	Status    PaymentStatus   `json:"status"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
	Reference string          `json:"reference"`
}

type VendorStats struct {
	TotalBooks int64           `json:"totalBooks"`
	TotalValue decimal.Decimal `json:"totalValue"`
}

type AdminStats struct {
	TotalBooks         int64           `json:"totalBooks"`
	TotalUsers         int64           `json:"totalUsers"`
	SuccessfulPayments int64           `json:"successfulPayments"`
	TotalRevenue       decimal.Decimal `json:"totalRevenue"`
}
