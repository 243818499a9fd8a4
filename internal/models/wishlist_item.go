package models

import "time"

// WishlistItem represents a planned purchase the user is saving toward.
type WishlistItem struct {
	Base
	UserID      string     `gorm:"type:uuid;not null;index" json:"user_id"`
	Name        string     `gorm:"not null" json:"name"`
	Description string     `json:"description"`
	Price       int64      `gorm:"type:bigint;not null" json:"price"`
	URL         string     `json:"url,omitempty"`
	Priority    int        `gorm:"default:0" json:"priority"`
	Purchased   bool       `gorm:"default:false" json:"purchased"`
	PurchasedAt *time.Time `json:"purchased_at,omitempty"`

	// Set when the item was bought through the API, linking the expense
	// transaction that recorded the purchase.
	TransactionID *string `gorm:"type:uuid" json:"transaction_id,omitempty"`
}
