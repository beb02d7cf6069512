package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// The subscriber is notified when occupancy falls to Threshold or below.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	Threshold int       `gorm:"not null;index"`
	CreatedAt time.Time `gorm:"not null"`
}
