// Package quota implements the capacity core: the per-account ledger, the
// partnership-template synchronizer and the slot-request workflow. All writes
// go through the relational store in explicit transactions; the ledger's
// total is mutated only here.
package quota

import (
	"errors"

	"quota-service/internal/apperr"
	"quota-service/internal/model"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Availability is the ledger's arithmetic report for one account-category
// pair. Available is the raw total-used difference, unclamped: a negative
// value is a signal to the caller, not an error. Unlimited short-circuits the
// arithmetic for Admin and Super User accounts.
type Availability struct {
	Unlimited bool           `json:"unlimited"`
	Category  model.Category `json:"category"`
	Total     int            `json:"total"`
	Used      int            `json:"used"`
	Available int            `json:"available"`
}

// CapacityPolicy decides what happens when consumption exceeds capacity.
// The core never decrements used and never enforces used <= total on its
// own; the policy makes that rule explicit and injectable.
type CapacityPolicy func(accountID uint, category model.Category, total, used int) error

// WarnPolicy logs overuse and allows it. This is the default.
func WarnPolicy(log *zap.Logger) CapacityPolicy {
	return func(accountID uint, category model.Category, total, used int) error {
		if used > total {
			log.Warn("Quota overuse",
				zap.Uint("account_id", accountID),
				zap.String("category", string(category)),
				zap.Int("total", total),
				zap.Int("used", used))
		}
		return nil
	}
}

// StrictPolicy rejects any write that would leave used above total.
func StrictPolicy() CapacityPolicy {
	return func(accountID uint, category model.Category, total, used int) error {
		if used > total {
			return apperr.Validation("used", "used %d exceeds total %d for category %s", used, total, category)
		}
		return nil
	}
}

// Ledger owns the total/used counters. SetTotal and IncrementTotal are called
// only by the synchronizer, the workflow's approval step, and administrative
// overrides.
type Ledger struct {
	db     *gorm.DB
	log    *zap.Logger
	policy CapacityPolicy
}

// NewLedger builds a ledger over the store. A nil policy defaults to
// WarnPolicy.
func NewLedger(db *gorm.DB, log *zap.Logger, policy CapacityPolicy) *Ledger {
	if policy == nil {
		policy = WarnPolicy(log)
	}
	return &Ledger{db: db, log: log, policy: policy}
}

// Available reports the capacity arithmetic for one account-category pair.
// Unlimited roles bypass the counters entirely.
func (l *Ledger) Available(accountID uint, category model.Category) (Availability, error) {
	if !category.IsValid() {
		return Availability{}, apperr.Validation("category", "unknown category %q", category)
	}

	account, err := findAccount(l.db, accountID)
	if err != nil {
		return Availability{}, err
	}
	if account.Role.Unlimited() {
		return Availability{Unlimited: true, Category: category}, nil
	}

	var row model.AccountQuota
	err = l.db.Where("account_id = ? AND category = ?", accountID, category).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No row yet means zero capacity, zero consumption.
		return Availability{Category: category}, nil
	}
	if err != nil {
		return Availability{}, apperr.Storage(err)
	}

	return Availability{
		Category:  category,
		Total:     row.Total,
		Used:      row.Used,
		Available: row.Total - row.Used,
	}, nil
}

// GetTotal returns the stored total for one account-category pair.
func (l *Ledger) GetTotal(accountID uint, category model.Category) (int, error) {
	av, err := l.Available(accountID, category)
	if err != nil {
		return 0, err
	}
	return av.Total, nil
}

// GetUsed returns the stored used counter for one account-category pair.
func (l *Ledger) GetUsed(accountID uint, category model.Category) (int, error) {
	av, err := l.Available(accountID, category)
	if err != nil {
		return 0, err
	}
	return av.Used, nil
}

// SetTotal overwrites the total for one account-category pair. The write is
// idempotent and runs in a transaction scoped to that single pair. Negative
// totals are rejected before any write.
func (l *Ledger) SetTotal(accountID uint, category model.Category, newTotal int) error {
	if newTotal < 0 {
		return apperr.Validation("total", "total must not be negative, got %d", newTotal)
	}
	if !category.IsValid() {
		return apperr.Validation("category", "unknown category %q", category)
	}

	tx := l.db.Begin()
	if tx.Error != nil {
		return apperr.Storage(tx.Error)
	}

	if _, err := findAccount(tx, accountID); err != nil {
		tx.Rollback()
		return err
	}
	if err := setTotal(tx, accountID, category, newTotal); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return apperr.Storage(err)
	}

	l.log.Info("Quota total set",
		zap.Uint("account_id", accountID),
		zap.String("category", string(category)),
		zap.Int("total", newTotal))
	return nil
}

// IncrementTotal adds delta to the total for one account-category pair.
// Delta may be zero but not negative.
func (l *Ledger) IncrementTotal(accountID uint, category model.Category, delta int) error {
	if delta < 0 {
		return apperr.Validation("delta", "delta must not be negative, got %d", delta)
	}
	if !category.IsValid() {
		return apperr.Validation("category", "unknown category %q", category)
	}

	tx := l.db.Begin()
	if tx.Error != nil {
		return apperr.Storage(tx.Error)
	}

	if _, err := findAccount(tx, accountID); err != nil {
		tx.Rollback()
		return err
	}
	if err := incrementTotal(tx, accountID, category, delta); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return apperr.Storage(err)
	}

	l.log.Info("Quota total incremented",
		zap.Uint("account_id", accountID),
		zap.String("category", string(category)),
		zap.Int("delta", delta))
	return nil
}

// SetUsed records consumption written back by the external attendee process.
// The injected capacity policy decides whether overuse is an error or just a
// logged warning.
func (l *Ledger) SetUsed(accountID uint, category model.Category, used int) error {
	if used < 0 {
		return apperr.Validation("used", "used must not be negative, got %d", used)
	}
	if !category.IsValid() {
		return apperr.Validation("category", "unknown category %q", category)
	}

	tx := l.db.Begin()
	if tx.Error != nil {
		return apperr.Storage(tx.Error)
	}

	if _, err := findAccount(tx, accountID); err != nil {
		tx.Rollback()
		return err
	}

	var row model.AccountQuota
	err := tx.Where("account_id = ? AND category = ?", accountID, category).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		row = model.AccountQuota{AccountID: accountID, Category: category}
	} else if err != nil {
		tx.Rollback()
		return apperr.Storage(err)
	}

	if err := l.policy(accountID, category, row.Total, used); err != nil {
		tx.Rollback()
		return err
	}

	row.Used = used
	if err := tx.Save(&row).Error; err != nil {
		tx.Rollback()
		return apperr.Storage(err)
	}

	if err := tx.Commit().Error; err != nil {
		return apperr.Storage(err)
	}
	return nil
}

// findAccount loads an account or classifies its absence.
func findAccount(tx *gorm.DB, accountID uint) (*model.Account, error) {
	var account model.Account
	err := tx.First(&account, accountID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("account %d not found", accountID)
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &account, nil
}

// setTotal overwrites one counter row inside the caller's transaction.
func setTotal(tx *gorm.DB, accountID uint, category model.Category, newTotal int) error {
	result := tx.Model(&model.AccountQuota{}).
		Where("account_id = ? AND category = ?", accountID, category).
		Update("total", newTotal)
	if result.Error != nil {
		return apperr.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		row := model.AccountQuota{AccountID: accountID, Category: category, Total: newTotal}
		if err := tx.Create(&row).Error; err != nil {
			return apperr.Storage(err)
		}
	}
	return nil
}

// incrementTotal adds delta to one counter row inside the caller's
// transaction. The arithmetic happens in the database so concurrent approvals
// cannot lose updates.
func incrementTotal(tx *gorm.DB, accountID uint, category model.Category, delta int) error {
	result := tx.Model(&model.AccountQuota{}).
		Where("account_id = ? AND category = ?", accountID, category).
		Update("total", gorm.Expr("total + ?", delta))
	if result.Error != nil {
		return apperr.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		row := model.AccountQuota{AccountID: accountID, Category: category, Total: delta}
		if err := tx.Create(&row).Error; err != nil {
			return apperr.Storage(err)
		}
	}
	return nil
}
