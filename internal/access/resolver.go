package access

import (
	"errors"

	"quota-service/internal/apperr"
	"quota-service/internal/model"

	"gorm.io/gorm"
)

// Overrides is a snapshot of the sparse module-setting table, keyed by
// model.ModuleSettingKey. A nil or partial snapshot is fine: missing keys
// defer to the role's default module list.
type Overrides map[string]bool

// AwardStore is the lookup the resolver needs for award-gated modules.
type AwardStore interface {
	HasAward(accountID uint, awardType string) (bool, error)
}

// Resolver decides module visibility. CanAccess is pure and side-effect free
// so it can be called with any stale snapshot; CanUse adds the award gate on
// top and needs the store.
type Resolver struct {
	awards AwardStore
}

// NewResolver builds a resolver over the given award store.
func NewResolver(awards AwardStore) *Resolver {
	return &Resolver{awards: awards}
}

// CanAccess reports whether a role may use a module given an override
// snapshot. An explicit override always wins, enable or disable; otherwise
// the role's default list decides. Unknown modules resolve to false.
func (r *Resolver) CanAccess(role model.Role, module string, overrides Overrides) bool {
	if _, ok := Lookup(module); !ok {
		return false
	}
	if overrides != nil {
		if enabled, ok := overrides[model.ModuleSettingKey(module, role)]; ok {
			return enabled
		}
	}
	return inDefaults(role, module)
}

// CanUse applies both gates for a concrete account: the module-setting gate
// of CanAccess plus, for award-gated modules, the requirement that the
// account holds at least one award of the matching type.
func (r *Resolver) CanUse(account *model.Account, module string, overrides Overrides) (bool, error) {
	if !r.CanAccess(account.Role, module, overrides) {
		return false, nil
	}
	m, _ := Lookup(module)
	if !m.RequiresAward() {
		return true, nil
	}
	has, err := r.awards.HasAward(account.ID, m.AwardType)
	if err != nil {
		return false, apperr.Storage(err)
	}
	return has, nil
}

// GormAwardStore looks award records up in the relational store.
type GormAwardStore struct {
	DB *gorm.DB
}

// HasAward reports whether the account holds at least one award of the type.
func (s *GormAwardStore) HasAward(accountID uint, awardType string) (bool, error) {
	var award model.Award
	err := s.DB.Where("account_id = ? AND type = ?", accountID, awardType).First(&award).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LoadOverrides reads the current module-setting snapshot. Callers pass the
// result into CanAccess/CanUse; a read failure degrades to the defaults.
func LoadOverrides(db *gorm.DB) (Overrides, error) {
	var settings []model.ModuleSetting
	if err := db.Find(&settings).Error; err != nil {
		return nil, apperr.Storage(err)
	}
	overrides := make(Overrides, len(settings))
	for _, s := range settings {
		overrides[s.Key] = s.Enabled
	}
	return overrides, nil
}
