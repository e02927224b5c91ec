package model

import (
	"fmt"
	"time"
)

// ModuleSetting is a sparse per-role module switch. Absence of a key means
// "defer to the default module list for that role"; rows are created and
// updated only through administrative settings edits and never auto-deleted.
type ModuleSetting struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Key       string    `json:"key" gorm:"type:varchar(150);uniqueIndex;not null"`
	Enabled   bool      `json:"enabled" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ModuleSettingKey builds the sparse settings key for a module/role pair.
func ModuleSettingKey(module string, role Role) string {
	return fmt.Sprintf("module_%s_enabled_for_%s", module, role.Slug())
}
