package orders

import (
	"github.com/shopspring/decimal"
	"time"
)

type Product struct {
	Name             string
	Price            decimal.Decimal
	Description      string
	Category         string
	StockQuantity    int
	ReservedQuantity int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Available is stock not held by any reservation, never negative.
func (p Product) Available() int {
	if a := p.StockQuantity - p.ReservedQuantity; a > 0 {
		return a
	}
	return 0
}

type ChangeType string

const (
	ChangeReserve ChangeType = "reserve"
	ChangeRelease ChangeType = "release"
	ChangeDeduct  ChangeType = "deduct"
	ChangeAdd     ChangeType = "add"
	ChangeManual  ChangeType = "manual"
	ChangeExpired ChangeType = "expired"
)

// JournalEntry is one row of the append-only inventory journal.
type JournalEntry struct {
	ID            int64
	Product       string
	ChangeType    ChangeType
	QuantityDelta int
	OrderID       *int64
	ActorID       *int64
	Timestamp     time.Time
	Comment       string
}

type Order struct {
	ID              int64
	Code            string
	BuyerID         int64
	TotalPrice      decimal.Decimal
	BonusApplied    decimal.Decimal
	PaymentMethod   string
	DeliveryAddress string
	Phone           string
	DeliveryNote    string
	Status          Status // see status.go
	ReservedUntil   *time.Time
	DeliveryTime    *time.Time
	CreatedAt       time.Time
	CompletedAt     *time.Time
	Items           []OrderItem
}

// Payable is what the buyer owes after the bonus.
func (o Order) Payable() decimal.Decimal {
	return o.TotalPrice.Sub(o.BonusApplied)
}

const (
	PaymentCash    = "cash"
	PaymentBitcoin = "bitcoin"
)

func ValidPaymentMethod(m string) bool {
	return m == PaymentCash || m == PaymentBitcoin
}

type OrderItem struct {
	Product   string
	UnitPrice decimal.Decimal
	Quantity  int
}

type User struct {
	ID           int64
	ReferralID   *int64
	RegisteredAt time.Time
}

type CustomerInfo struct {
	UserID               int64
	TotalSpendings       decimal.Decimal
	CompletedOrdersCount int
	BonusBalance         decimal.Decimal
	UpdatedAt            time.Time
}

type ReferralEarning struct {
	ID             int64
	ReferrerID     int64
	ReferralID     *int64 // nil for admin bonus
	Amount         decimal.Decimal
	OriginalAmount decimal.Decimal
	CreatedAt      time.Time
}

type ReferenceCode struct {
	Code        string
	CreatedBy   int64
	CreatedAt   time.Time
	ExpiresAt   *time.Time
	MaxUses     *int // nil = unlimited
	CurrentUses int
	Note        string
	IsActive    bool
	IsAdminCode bool
}

type ReferenceCodeUsage struct {
	Code   string
	UsedBy int64
	UsedAt time.Time
}

type InventoryStatus struct {
	Product   string `json:"product"`
	Stock     int    `json:"stock"`
	Reserved  int    `json:"reserved"`
	Available int    `json:"available"`
}

func StatusOf(p Product) InventoryStatus {
	return InventoryStatus{
		Product:   p.Name,
		Stock:     p.StockQuantity,
		Reserved:  p.ReservedQuantity,
		Available: p.Available(),
	}
}
