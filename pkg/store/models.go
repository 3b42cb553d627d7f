package store

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"size:191;uniqueIndex;not null"`
	PasswordHash []byte `gorm:"not null"`
	PasswordSalt []byte `gorm:"not null"`
	Role         string `gorm:"size:16;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type BookModel struct {
	ID          uint            `gorm:"primaryKey"`
	Name        string          `gorm:"not null"`
	Category    string          `gorm:"index"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Description string          `gorm:"type:text"`
	UserID      uint            `gorm:"not null;index"`
	User        UserModel       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	AddedBy     string
	UpdatedBy   string
	Images      []ImageModel `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time    `gorm:"index"`
	UpdatedAt   time.Time
}

type ImageModel struct {
	ID         uint   `gorm:"primaryKey"`
	URL        string `gorm:"not null"`
	StorageKey string
	BookID     uint `gorm:"not null;index"`
	CreatedAt  time.Time
}

type PaymentModel struct {
	ID        uint            `gorm:"primaryKey"`
	Reference string          `gorm:"size:64;uniqueIndex;not null"`
	Email     string          `gorm:"not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(12,2);not null"`
	Status    string          `gorm:"size:16;not null;index"`
	PaidAt    *time.Time
	BookID    uint      `gorm:"not null;index"`
	Book      BookModel `gorm:"foreignKey:BookID;constraint:OnDelete:CASCADE"`
	BuyerID   uint      `gorm:"not null;index"`
	Buyer     UserModel `gorm:"foreignKey:BuyerID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

type PaymentEventModel struct {
	ID         uint   `gorm:"primaryKey"`
	Event      string `gorm:"size:64;not null"`
	Reference  string `gorm:"size:64;index"`
	Payload    datatypes.JSON
	Applied    bool
	ReceivedAt time.Time `gorm:"not null;index"`
}
