package model

import (
	"time"

	"gorm.io/gorm"
)

// Account represents a console account stored in the database. Quota rows are
// owned children; they are written only by the template synchronizer, the
// slot-request workflow, or an administrative override.
type Account struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	Name            string         `json:"name" gorm:"type:varchar(100)"`
	Email           string         `json:"email" gorm:"type:varchar(100);uniqueIndex"`
	Password        string         `json:"-" gorm:"type:varchar(255)"`
	Role            Role           `json:"role" gorm:"type:varchar(20);not null;default:'user';index"`
	PartnershipType *string        `json:"partnership_type" gorm:"type:varchar(100);index"`
	Active          bool           `json:"active" gorm:"default:true"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Quotas []AccountQuota `json:"quotas,omitempty" gorm:"foreignKey:AccountID"`
	Awards []Award        `json:"awards,omitempty" gorm:"foreignKey:AccountID"`
}

// AccountQuota is the per-account, per-category capacity record. Total is
// written by the synchronizer and the workflow; used is maintained by the
// external attendee-consumption process and is not guaranteed <= total here.
type AccountQuota struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	AccountID uint      `json:"account_id" gorm:"uniqueIndex:idx_account_category;not null"`
	Category  Category  `json:"category" gorm:"type:varchar(20);uniqueIndex:idx_account_category;not null"`
	Total     int       `json:"total" gorm:"not null;default:0"`
	Used      int       `json:"used" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Award is a recognition record; modules flagged as award-gated are visible
// only to accounts holding an award of the matching type.
type Award struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	AccountID uint      `json:"account_id" gorm:"index;not null"`
	Type      string    `json:"type" gorm:"type:varchar(50);not null;index"`
	Title     string    `json:"title" gorm:"type:varchar(200)"`
	CreatedAt time.Time `json:"created_at"`
}
