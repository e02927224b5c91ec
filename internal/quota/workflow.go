package quota

import (
	"context"
	"errors"
	"strings"
	"time"

	"quota-service/internal/apperr"
	"quota-service/internal/model"
	"quota-service/internal/notifier"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Workflow is the slot-request state machine: pending -> approved or
// pending -> declined, exactly once. Approval is the only path that credits
// the ledger, and the credit is additive to whatever total the account
// already holds.
type Workflow struct {
	db   *gorm.DB
	log  *zap.Logger
	sink notifier.Sink
}

// NewWorkflow builds a workflow over the store and event sink.
func NewWorkflow(db *gorm.DB, log *zap.Logger, sink notifier.Sink) *Workflow {
	return &Workflow{db: db, log: log, sink: sink}
}

// Get loads a slot request with its items.
func (w *Workflow) Get(requestID uint) (*model.SlotRequest, error) {
	var req model.SlotRequest
	err := w.db.Preload("Items").First(&req, requestID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperr.NotFound("slot request %d not found", requestID)
	}
	if err != nil {
		return nil, apperr.Storage(err)
	}
	return &req, nil
}

// List returns slot requests, newest first, optionally filtered by account.
func (w *Workflow) List(accountID uint) ([]model.SlotRequest, error) {
	query := w.db.Preload("Items").Order("created_at DESC")
	if accountID != 0 {
		query = query.Where("account_id = ?", accountID)
	}
	var requests []model.SlotRequest
	if err := query.Find(&requests).Error; err != nil {
		return nil, apperr.Storage(err)
	}
	return requests, nil
}

// PendingCount reports how many requests currently await a decision.
func (w *Workflow) PendingCount() (int64, error) {
	var n int64
	err := w.db.Model(&model.SlotRequest{}).
		Where("status = ?", model.SlotRequestPending).
		Count(&n).Error
	if err != nil {
		return 0, apperr.Storage(err)
	}
	return n, nil
}

// Submit files a new capacity request. Every requested unit is one item;
// per-category totals are derived from the items. A request with no units or
// an empty reason is rejected before any write.
func (w *Workflow) Submit(ctx context.Context, accountID uint, items []model.SlotRequestItem, reason string) (*model.SlotRequest, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("reason", "reason is required")
	}
	if len(items) == 0 {
		return nil, apperr.Validation("slots", "at least one requested slot is required")
	}
	for _, item := range items {
		if !item.Category.IsValid() {
			return nil, apperr.Validation("category", "unknown category %q", item.Category)
		}
	}

	if _, err := findAccount(w.db, accountID); err != nil {
		return nil, err
	}

	req := model.SlotRequest{
		AccountID: accountID,
		Reason:    reason,
		Status:    model.SlotRequestPending,
		Items:     items,
	}
	if err := w.db.Create(&req).Error; err != nil {
		return nil, apperr.Storage(err)
	}

	requested := req.RequestedSlots()
	w.log.Info("Slot request submitted",
		zap.Uint("request_id", req.ID),
		zap.Uint("account_id", accountID),
		zap.Int("units", len(items)))

	w.sink.Publish(ctx, notifier.NewEvent(notifier.EventSlotRequestSubmitted, accountID, map[string]interface{}{
		"request_id": req.ID,
		"requested":  requested,
		"reason":     reason,
	}))
	return &req, nil
}

// Decline moves a pending request to declined. No ledger effect. Deciding an
// already decided request is a conflict, not an overwrite.
func (w *Workflow) Decline(ctx context.Context, requestID uint) (*model.SlotRequest, error) {
	req, err := w.Get(requestID)
	if err != nil {
		return nil, err
	}

	tx := w.db.Begin()
	if tx.Error != nil {
		return nil, apperr.Storage(tx.Error)
	}

	now := time.Now().UTC()
	result := tx.Model(&model.SlotRequest{}).
		Where("id = ? AND status = ?", requestID, model.SlotRequestPending).
		Updates(map[string]interface{}{
			"status":     model.SlotRequestDeclined,
			"decided_at": now,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, apperr.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		tx.Rollback()
		return nil, apperr.Conflict("slot request %d is already %s", requestID, req.Status)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperr.Storage(err)
	}

	req.Status = model.SlotRequestDeclined
	req.DecidedAt = &now

	w.log.Info("Slot request declined",
		zap.Uint("request_id", requestID),
		zap.Uint("account_id", req.AccountID))

	w.sink.Publish(ctx, notifier.NewEvent(notifier.EventSlotRequestDeclined, req.AccountID, map[string]interface{}{
		"request_id": requestID,
	}))
	return req, nil
}

// Approve grants the request, possibly partially. Every approved amount must
// satisfy 0 <= approved[c] <= requested[c] and at least one category must be
// positive; any violation rejects the whole call with no mutation. The status
// guard, the approved-amounts write and the ledger credits share one
// transaction, so a retried or concurrent approval can never credit twice.
func (w *Workflow) Approve(ctx context.Context, requestID uint, approved map[model.Category]int) (*model.SlotRequest, error) {
	req, err := w.Get(requestID)
	if err != nil {
		return nil, err
	}

	requested := req.RequestedSlots()
	positive := 0
	for c, amount := range approved {
		if !c.IsValid() {
			return nil, apperr.Validation("approved", "unknown category %q", c)
		}
		if amount < 0 {
			return nil, apperr.Validation("approved", "approved amount for %s must not be negative, got %d", c, amount)
		}
		if amount > requested[c] {
			return nil, apperr.Validation("approved", "approved amount %d exceeds requested %d for category %s", amount, requested[c], c)
		}
		if amount > 0 {
			positive++
		}
	}
	if positive == 0 {
		return nil, apperr.Validation("approved", "at least one category must be approved")
	}

	tx := w.db.Begin()
	if tx.Error != nil {
		return nil, apperr.Storage(tx.Error)
	}

	now := time.Now().UTC()
	result := tx.Model(&model.SlotRequest{}).
		Where("id = ? AND status = ?", requestID, model.SlotRequestPending).
		Updates(map[string]interface{}{
			"status":         model.SlotRequestApproved,
			"approved_slots": datatypes.NewJSONType(approved),
			"decided_at":     now,
		})
	if result.Error != nil {
		tx.Rollback()
		return nil, apperr.Storage(result.Error)
	}
	if result.RowsAffected == 0 {
		// Lost the race or the request was already decided.
		tx.Rollback()
		return nil, apperr.Conflict("slot request %d is not pending", requestID)
	}

	for _, c := range model.Categories() {
		if amount := approved[c]; amount > 0 {
			if err := incrementTotal(tx, req.AccountID, c, amount); err != nil {
				tx.Rollback()
				return nil, err
			}
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, apperr.Storage(err)
	}

	req.Status = model.SlotRequestApproved
	req.ApprovedSlots = datatypes.NewJSONType(approved)
	req.DecidedAt = &now

	w.log.Info("Slot request approved",
		zap.Uint("request_id", requestID),
		zap.Uint("account_id", req.AccountID),
		zap.Int("categories", positive))

	w.sink.Publish(ctx, notifier.NewEvent(notifier.EventSlotRequestApproved, req.AccountID, map[string]interface{}{
		"request_id": requestID,
		"requested":  requested,
		"approved":   approved,
	}))
	return req, nil
}
