package model

import (
	"time"

	"gorm.io/datatypes"
)

// PartnershipTemplate is a named, shared capacity definition. Accounts bound
// to a template (via Account.PartnershipType) have their per-category totals
// overwritten from Slots whenever the template changes; the template is the
// single source of truth for templated accounts. Deletion is a hard delete:
// the unique name must be reusable afterwards.
type PartnershipTemplate struct {
	ID          uint                                 `json:"id" gorm:"primaryKey"`
	Name        string                               `json:"name" gorm:"type:varchar(100);uniqueIndex;not null"`
	Description string                               `json:"description" gorm:"type:text"`
	Slots       datatypes.JSONType[map[Category]int] `json:"slots" gorm:"type:jsonb"`
	CreatedAt   time.Time                            `json:"created_at"`
	UpdatedAt   time.Time                            `json:"updated_at"`
}

// SlotsPerCategory returns the template's capacity map with every known
// category present, missing entries filled with zero.
func (t *PartnershipTemplate) SlotsPerCategory() map[Category]int {
	slots := t.Slots.Data()
	full := make(map[Category]int, len(Categories()))
	for _, c := range Categories() {
		full[c] = slots[c]
	}
	return full
}
