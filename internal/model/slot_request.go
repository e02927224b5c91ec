package model

import (
	"time"

	"gorm.io/datatypes"
)

// SlotRequestStatus is the workflow state of a slot request. Requests are
// transitioned exactly once and never deleted.
type SlotRequestStatus string

const (
	SlotRequestPending  SlotRequestStatus = "pending"
	SlotRequestApproved SlotRequestStatus = "approved"
	SlotRequestDeclined SlotRequestStatus = "declined"
)

// SlotRequest is a user's application for additional capacity. The requested
// units live in Items, one row per unit; per-category totals are always
// derived from the items and never stored redundantly. ApprovedSlots is
// written once on approval and kept distinct from the items so both the asked
// and the granted amounts stay inspectable.
type SlotRequest struct {
	ID            uint                                 `json:"id" gorm:"primaryKey"`
	AccountID     uint                                 `json:"account_id" gorm:"index;not null"`
	Reason        string                               `json:"reason" gorm:"type:text;not null"`
	Status        SlotRequestStatus                    `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	ApprovedSlots datatypes.JSONType[map[Category]int] `json:"approved_slots" gorm:"type:jsonb"`
	DecidedAt     *time.Time                           `json:"decided_at"`
	CreatedAt     time.Time                            `json:"created_at"`
	UpdatedAt     time.Time                            `json:"updated_at"`

	// Relations
	Items []SlotRequestItem `json:"items,omitempty" gorm:"foreignKey:RequestID"`
}

// SlotRequestItem is a single requested capacity unit. The attendee fields
// are audit metadata only; they never affect the quota arithmetic.
type SlotRequestItem struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	RequestID     uint      `json:"request_id" gorm:"index;not null"`
	Category      Category  `json:"category" gorm:"type:varchar(20);not null"`
	AttendeeName  string    `json:"attendee_name" gorm:"type:varchar(100)"`
	AttendeeEmail string    `json:"attendee_email" gorm:"type:varchar(100)"`
	Position      string    `json:"position" gorm:"type:varchar(100)"`
	CreatedAt     time.Time `json:"created_at"`
}

// RequestedSlots derives the per-category requested totals from the items.
func (r *SlotRequest) RequestedSlots() map[Category]int {
	requested := make(map[Category]int)
	for _, item := range r.Items {
		requested[item.Category]++
	}
	return requested
}

// Decided reports whether the request has reached a terminal state.
func (r *SlotRequest) Decided() bool {
	return r.Status != SlotRequestPending
}
