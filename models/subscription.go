package models

import "time"

// PushSubscription is one browser's web-push registration. Stored in the
// local sqlite database rather than the marketplace database so a broadcast
// can run even when the primary store is down.
type PushSubscription struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Endpoint  string    `gorm:"uniqueIndex;not null" json:"endpoint"`
	P256dh    string    `gorm:"not null" json:"p256dh"`
	Auth      string    `gorm:"not null" json:"auth"`
	Role      string    `gorm:"not null" json:"role"` // admin, seller or buyer
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
