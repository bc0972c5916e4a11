package model

import "time"

// PushSubscription holds the information for a browser push subscription.
// A subscriber watches a set of serial numbers and is notified when one
// of them is fulfilled.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`

	// Associations
	Serials []SubscribedSerial `gorm:"foreignKey:Endpoint;references:Endpoint;constraint:OnDelete:CASCADE"`
}

// SubscribedSerial maps a subscription to one watched serial number.
type SubscribedSerial struct {
	ID       int64  `gorm:"primaryKey;autoIncrement"`
	Endpoint string `gorm:"index;size:512;not null"`
	SerialNo string `gorm:"index;size:255;not null"`
}
