package httpx

import (
	"github.com/ariefcatur/shop-fulfillment/internal/orders"
	"github.com/shopspring/decimal"
	"time"
)

type itemView struct {
	Product   string          `json:"product"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
}

type orderView struct {
	ID              int64           `json:"id"`
	Code            string          `json:"code"`
	BuyerID         int64           `json:"buyer_id"`
	Status          orders.Status   `json:"status"`
	TotalPrice      decimal.Decimal `json:"total_price"`
	BonusApplied    decimal.Decimal `json:"bonus_applied"`
	Payable         decimal.Decimal `json:"payable"`
	PaymentMethod   string          `json:"payment_method"`
	DeliveryAddress string          `json:"delivery_address,omitempty"`
	Phone           string          `json:"phone,omitempty"`
	DeliveryNote    string          `json:"delivery_note,omitempty"`
	ReservedUntil   *time.Time      `json:"reserved_until,omitempty"`
	DeliveryTime    *time.Time      `json:"delivery_time,omitempty"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Items           []itemView      `json:"items"`
}

func viewOrder(o orders.Order) orderView {
	v := orderView{
		ID:              o.ID,
		Code:            o.Code,
		BuyerID:         o.BuyerID,
		Status:          o.Status,
		TotalPrice:      o.TotalPrice,
		BonusApplied:    o.BonusApplied,
		Payable:         o.Payable(),
		PaymentMethod:   o.PaymentMethod,
		DeliveryAddress: o.DeliveryAddress,
		Phone:           o.Phone,
		DeliveryNote:    o.DeliveryNote,
		ReservedUntil:   o.ReservedUntil,
		DeliveryTime:    o.DeliveryTime,
		CompletedAt:     o.CompletedAt,
		CreatedAt:       o.CreatedAt,
		Items:           make([]itemView, 0, len(o.Items)),
	}
	for _, it := range o.Items {
		v.Items = append(v.Items, itemView{Product: it.Product, UnitPrice: it.UnitPrice, Quantity: it.Quantity})
	}
	return v
}

type productView struct {
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Stock       int             `json:"stock"`
	Reserved    int             `json:"reserved"`
	Available   int             `json:"available"`
}

func viewProduct(p orders.Product) productView {
	return productView{
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Category:    p.Category,
		Stock:       p.StockQuantity,
		Reserved:    p.ReservedQuantity,
		Available:   p.Available(),
	}
}

type journalView struct {
	ID        int64             `json:"id"`
	Change    orders.ChangeType `json:"change_type"`
	Delta     int               `json:"quantity_delta"`
	OrderID   *int64            `json:"order_id,omitempty"`
	ActorID   *int64            `json:"actor_id,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Comment   string            `json:"comment,omitempty"`
}

type codeView struct {
	Code        string     `json:"code"`
	CreatedBy   int64      `json:"created_by"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	MaxUses     *int       `json:"max_uses,omitempty"`
	CurrentUses int        `json:"current_uses"`
	Note        string     `json:"note,omitempty"`
	IsActive    bool       `json:"is_active"`
	IsAdminCode bool       `json:"is_admin_code"`
}

func viewCode(c orders.ReferenceCode) codeView {
	return codeView{
		Code:        c.Code,
		CreatedBy:   c.CreatedBy,
		ExpiresAt:   c.ExpiresAt,
		MaxUses:     c.MaxUses,
		CurrentUses: c.CurrentUses,
		Note:        c.Note,
		IsActive:    c.IsActive,
		IsAdminCode: c.IsAdminCode,
	}
}

type customerView struct {
	UserID               int64           `json:"user_id"`
	TotalSpendings       decimal.Decimal `json:"total_spendings"`
	CompletedOrdersCount int             `json:"completed_orders_count"`
	BonusBalance         decimal.Decimal `json:"bonus_balance"`
}

type earningView struct {
	ID             int64           `json:"id"`
	ReferralID     *int64          `json:"referral_id,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	OriginalAmount decimal.Decimal `json:"original_amount"`
	CreatedAt      time.Time       `json:"created_at"`
}
