package quota

import (
	"context"
	"errors"
	"strings"

	"quota-service/internal/apperr"
	"quota-service/internal/model"
	"quota-service/internal/notifier"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PartnershipTypeNone is the sentinel accepted by AssignTemplate to unbind an
// account from any template.
const PartnershipTypeNone = "N/A"

// CascadeResult is the outcome of one account's quota rewrite during a
// template cascade.
type CascadeResult struct {
	AccountID uint   `json:"account_id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// CascadeReport lists the per-account outcomes of a template cascade. The
// cascade is deliberately not one global transaction: each account succeeds
// or fails on its own, and the caller retries the failures from this list.
type CascadeReport struct {
	Template string          `json:"template"`
	Accounts []CascadeResult `json:"accounts"`
}

// Failed counts the accounts whose rewrite did not apply.
func (r *CascadeReport) Failed() int {
	n := 0
	for _, a := range r.Accounts {
		if !a.OK {
			n++
		}
	}
	return n
}

// Synchronizer owns the partnership templates and pushes template changes
// into the ledger of every bound account.
type Synchronizer struct {
	db   *gorm.DB
	log  *zap.Logger
	sink notifier.Sink
}

// NewSynchronizer builds a synchronizer over the store and event sink.
func NewSynchronizer(db *gorm.DB, log *zap.Logger, sink notifier.Sink) *Synchronizer {
	return &Synchronizer{db: db, log: log, sink: sink}
}

// GetTemplate loads a template by name.
func (s *Synchronizer) GetTemplate(name string) (*model.PartnershipTemplate, error) {
	var tpl model.PartnershipTemplate
	err := s.db.Where("name = ?", name).First(&tpl).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("partnership template %q not found", name)
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &tpl, nil
}

// ListTemplates returns every template ordered by name.
func (s *Synchronizer) ListTemplates() ([]model.PartnershipTemplate, error) {
	var templates []model.PartnershipTemplate
	if err := s.db.Order("name").Find(&templates).Error; err != nil {
		return nil, apperr.Storage(err)
	}
	return templates, nil
}

// CreateTemplate adds a new named capacity definition. No accounts are bound
// yet, so there is no cascade.
func (s *Synchronizer) CreateTemplate(name, description string, slots map[model.Category]int) (*model.PartnershipTemplate, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.EqualFold(name, PartnershipTypeNone) {
		return nil, apperr.Validation("name", "template name is required")
	}
	if err := validateSlots(slots); err != nil {
		return nil, err
	}

	var existing model.PartnershipTemplate
	err := s.db.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return nil, apperr.Conflict("partnership template %q already exists", name)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.Storage(err)
	}

	tpl := model.PartnershipTemplate{
		Name:        name,
		Description: description,
		Slots:       datatypes.NewJSONType(slots),
	}
	if err := s.db.Create(&tpl).Error; err != nil {
		return nil, apperr.Storage(err)
	}

	s.log.Info("Partnership template created", zap.String("name", name))
	return &tpl, nil
}

// UpdateTemplate rewrites the template's capacity definition and cascades the
// new totals to every bound account. The overwrite is full, not a delta: the
// template is the single source of truth for templated accounts. An unknown
// template is a no-op and reported as not found.
func (s *Synchronizer) UpdateTemplate(ctx context.Context, name string, slots map[model.Category]int) (*model.PartnershipTemplate, *CascadeReport, error) {
	if err := validateSlots(slots); err != nil {
		return nil, nil, err
	}

	tpl, err := s.GetTemplate(name)
	if err != nil {
		return nil, nil, err
	}

	tpl.Slots = datatypes.NewJSONType(slots)
	if err := s.db.Save(tpl).Error; err != nil {
		return nil, nil, apperr.Storage(err)
	}

	report, err := s.cascade(name, tpl.SlotsPerCategory())
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("Partnership template updated",
		zap.String("name", name),
		zap.Int("accounts", len(report.Accounts)),
		zap.Int("failed", report.Failed()))

	s.sink.Publish(ctx, notifier.NewEvent(notifier.EventTemplateUpdated, 0, map[string]interface{}{
		"template": name,
		"accounts": len(report.Accounts),
	}))
	return tpl, report, nil
}

// DeleteTemplate removes the template, zeroes every bound account's totals
// and unbinds them. Capacity is revoked; the accounts themselves stay.
func (s *Synchronizer) DeleteTemplate(ctx context.Context, name string) (*CascadeReport, error) {
	tpl, err := s.GetTemplate(name)
	if err != nil {
		return nil, err
	}

	report := &CascadeReport{Template: name}
	accountIDs, err := s.boundAccountIDs(name)
	if err != nil {
		return nil, err
	}

	zeroed := make(map[model.Category]int, len(model.Categories()))
	for _, c := range model.Categories() {
		zeroed[c] = 0
	}

	for _, id := range accountIDs {
		if err := s.rewriteAccount(id, zeroed, true); err != nil {
			s.log.Error("Template delete cascade failed for account",
				zap.String("template", name),
				zap.Uint("account_id", id),
				zap.Error(err))
			report.Accounts = append(report.Accounts, CascadeResult{AccountID: id, Error: err.Error()})
			continue
		}
		report.Accounts = append(report.Accounts, CascadeResult{AccountID: id, OK: true})
	}

	if err := s.db.Delete(tpl).Error; err != nil {
		return report, apperr.Storage(err)
	}

	s.log.Info("Partnership template deleted",
		zap.String("name", name),
		zap.Int("accounts", len(report.Accounts)),
		zap.Int("failed", report.Failed()))

	s.sink.Publish(ctx, notifier.NewEvent(notifier.EventTemplateDeleted, 0, map[string]interface{}{
		"template": name,
		"accounts": len(report.Accounts),
	}))
	return report, nil
}

// AssignTemplate binds an account to a template and immediately overwrites
// its totals from the template's definition. The sentinel "N/A" (or an empty
// name) unbinds the account and zeroes its totals.
func (s *Synchronizer) AssignTemplate(ctx context.Context, accountID uint, name string) error {
	name = strings.TrimSpace(name)

	if _, err := findAccount(s.db, accountID); err != nil {
		return err
	}

	unbind := name == "" || strings.EqualFold(name, PartnershipTypeNone)

	slots := make(map[model.Category]int, len(model.Categories()))
	for _, c := range model.Categories() {
		slots[c] = 0
	}
	if !unbind {
		tpl, err := s.GetTemplate(name)
		if err != nil {
			return err
		}
		slots = tpl.SlotsPerCategory()
	}

	tx := s.db.Begin()
	if tx.Error != nil {
		return apperr.Storage(tx.Error)
	}

	var value interface{}
	if unbind {
		value = nil
	} else {
		value = name
	}
	if err := tx.Model(&model.Account{}).Where("id = ?", accountID).
		Update("partnership_type", value).Error; err != nil {
		tx.Rollback()
		return apperr.Storage(err)
	}
	for _, c := range model.Categories() {
		if err := setTotal(tx, accountID, c, slots[c]); err != nil {
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit().Error; err != nil {
		return apperr.Storage(err)
	}

	s.log.Info("Partnership template assigned",
		zap.Uint("account_id", accountID),
		zap.String("template", name),
		zap.Bool("unbound", unbind))

	s.sink.Publish(ctx, notifier.NewEvent(notifier.EventTemplateAssigned, accountID, map[string]interface{}{
		"template": name,
	}))
	return nil
}

// cascade rewrites every bound account's totals from the slots map, one
// independent transaction per account. A failing account never rolls back
// the accounts already rewritten.
func (s *Synchronizer) cascade(name string, slots map[model.Category]int) (*CascadeReport, error) {
	report := &CascadeReport{Template: name}
	accountIDs, err := s.boundAccountIDs(name)
	if err != nil {
		return nil, err
	}

	for _, id := range accountIDs {
		if err := s.rewriteAccount(id, slots, false); err != nil {
			s.log.Error("Template cascade failed for account",
				zap.String("template", name),
				zap.Uint("account_id", id),
				zap.Error(err))
			report.Accounts = append(report.Accounts, CascadeResult{AccountID: id, Error: err.Error()})
			continue
		}
		report.Accounts = append(report.Accounts, CascadeResult{AccountID: id, OK: true})
	}
	return report, nil
}

func (s *Synchronizer) boundAccountIDs(name string) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&model.Account{}).
		Where("partnership_type = ?", name).
		Order("id").
		Pluck("id", &ids).Error
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return ids, nil
}

// rewriteAccount overwrites one account's totals in a single transaction so
// the account's quota update succeeds or fails as a unit.
func (s *Synchronizer) rewriteAccount(accountID uint, slots map[model.Category]int, unbind bool) error {
	tx := s.db.Begin()
	if tx.Error != nil {
		return apperr.Storage(tx.Error)
	}

	for _, c := range model.Categories() {
		if err := setTotal(tx, accountID, c, slots[c]); err != nil {
			tx.Rollback()
			return err
		}
	}
	if unbind {
		if err := tx.Model(&model.Account{}).Where("id = ?", accountID).
			Update("partnership_type", nil).Error; err != nil {
			tx.Rollback()
			return apperr.Storage(err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return apperr.Storage(err)
	}
	return nil
}

func validateSlots(slots map[model.Category]int) error {
	for c, n := range slots {
		if !c.IsValid() {
			return apperr.Validation("slots", "unknown category %q", c)
		}
		if n < 0 {
			return apperr.Validation("slots", "slots for category %s must not be negative, got %d", c, n)
		}
	}
	return nil
}
