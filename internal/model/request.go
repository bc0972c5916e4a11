package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestType distinguishes the two directions a container can move.
const (
	RequestTypePickUp  = "PICK_UP"
	RequestTypePutBack = "PUT_BACK"
)

// Fulfillment types recorded when a request leaves the active table.
const (
	FulfillmentAutoCleanup   = "auto_cleanup"
	FulfillmentManualCleanup = "manual_cleanup"
	FulfillmentManualDelete  = "manual_delete"
)

// Request is a pending pick-up or put-back task for a container,
// identified by its serial number.
type Request struct {
	ID           int64           `gorm:"primaryKey;autoIncrement" json:"req_id"`
	SerialNo     string          `gorm:"uniqueIndex;size:255;not null" json:"serial_no"`
	PartNo       string          `gorm:"size:255;index" json:"part_no"`
	Revision     string          `gorm:"size:50" json:"revision"`
	Quantity     decimal.Decimal `gorm:"type:decimal(10,2)" json:"quantity"`
	Location     string          `gorm:"size:255" json:"location"`
	DeliverTo    string          `gorm:"size:255" json:"deliver_to"`
	ReqTime      time.Time       `gorm:"not null;index" json:"req_time"`
	RequestType  string          `gorm:"size:50;default:PICK_UP" json:"request_type"`
	MasterUnitNo string          `gorm:"size:255" json:"master_unit_no,omitempty"`
}

// RequestHistory is the archived copy of a fulfilled request.
type RequestHistory struct {
	ID                         int64           `gorm:"primaryKey;autoIncrement" json:"history_id"`
	RequestID                  int64           `gorm:"column:req_id" json:"req_id"`
	SerialNo                   string          `gorm:"size:255;index" json:"serial_no"`
	PartNo                     string          `gorm:"size:255;index" json:"part_no"`
	Revision                   string          `gorm:"size:50" json:"revision"`
	Quantity                   decimal.Decimal `gorm:"type:decimal(10,2)" json:"quantity"`
	Location                   string          `gorm:"size:255" json:"location"`
	DeliverTo                  string          `gorm:"size:255" json:"deliver_to"`
	ReqTime                    time.Time       `gorm:"index" json:"req_time"`
	FulfilledTime              time.Time       `gorm:"not null;index" json:"fulfilled_time"`
	FulfillmentDurationMinutes int             `json:"fulfillment_duration_minutes"`
	FulfillmentType            string          `gorm:"size:50;index" json:"fulfillment_type"`
	CurrentLocation            string          `gorm:"size:255" json:"current_location"`
	RequestType                string          `gorm:"size:50;default:PICK_UP" json:"request_type"`
	MasterUnitNo               string          `gorm:"size:255" json:"master_unit_no,omitempty"`
}
