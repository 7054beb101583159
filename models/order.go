package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the fulfillment state of an order. Statuses only ever move
// forward: a paid order can never become unpaid again.
type OrderStatus string

const (
	OrderUnpaid    OrderStatus = "Unpaid"
	OrderPaid      OrderStatus = "Paid"
	OrderDelivered OrderStatus = "Delivered"
	OrderRefunded  OrderStatus = "Refunded"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderUnpaid, OrderPaid, OrderDelivered, OrderRefunded:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s.
func (s OrderStatus) Terminal() bool {
	return s == OrderDelivered || s == OrderRefunded
}

// CanTransitionTo reports whether moving from s to next is a legal forward
// transition. Refunds are reachable from any non-terminal status; everything
// else follows Unpaid -> Paid -> Delivered.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() || s.Terminal() {
		return false
	}
	if next == OrderRefunded {
		return true
	}
	switch s {
	case OrderUnpaid:
		return next == OrderPaid
	case OrderPaid:
		return next == OrderDelivered
	}
	return false
}

type Order struct {
	ID               uint            `gorm:"primaryKey" json:"id"`
	OrderReference   string          `gorm:"uniqueIndex;not null" json:"order_reference"`
	ProductReference string          `gorm:"not null" json:"product_reference"`
	BusinessEmail    string          `json:"business_email"`
	Email            string          `json:"email"`
	FullName         string          `json:"full_name"`
	PhoneNumber      string          `json:"phone_number"`
	TotalPrice       int64           `gorm:"not null" json:"total_price"`
	Quantity         int             `gorm:"not null" json:"quantity"`
	CarrierOption    string          `json:"carrier_option"`
	PaymentMethod    string          `json:"payment_method"`
	OrderStatus      OrderStatus     `gorm:"not null" json:"order_status"`
	DiscountCode     string          `json:"discount_code"`
	Discount         string          `json:"discount"`
	City             string          `json:"city"`
	PostalCode       string          `json:"postal_code"`
	StreetAddress    string          `json:"street_address"`
	LocationLatLong  string          `json:"location_lat_long"`
	Type             string          `json:"type"`
	Colors           string          `json:"colors"`
	Sizes            string          `json:"sizes"`
	Commission       decimal.Decimal `gorm:"type:decimal(12,2)" json:"commission"`
	SellerTotal      decimal.Decimal `gorm:"type:decimal(12,2)" json:"seller_total_earned"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
