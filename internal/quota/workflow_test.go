package quota

import (
	"context"
	"testing"

	"quota-service/internal/apperr"
	"quota-service/internal/model"
)

func submitRequest(t *testing.T, w *Workflow, accountID uint, counts map[model.Category]int) *model.SlotRequest {
	t.Helper()
	var items []model.SlotRequestItem
	for category, n := range counts {
		for i := 0; i < n; i++ {
			items = append(items, model.SlotRequestItem{Category: category})
		}
	}
	req, err := w.Submit(context.Background(), accountID, items, "more capacity for the spring event")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	return req
}

func TestSubmitValidation(t *testing.T) {
	db := newTestDB(t)
	wf := NewWorkflow(db, testLogger(), &memorySink{})
	account := newTestAccount(t, db, model.RoleUser)
	ctx := context.Background()

	items := []model.SlotRequestItem{{Category: model.CategoryVIP}}

	if _, err := wf.Submit(ctx, account.ID, items, "  "); !apperr.IsValidation(err) {
		t.Fatalf("expected validation for blank reason, got %v", err)
	}
	if _, err := wf.Submit(ctx, account.ID, nil, "need slots"); !apperr.IsValidation(err) {
		t.Fatalf("expected validation for empty items, got %v", err)
	}
	bad := []model.SlotRequestItem{{Category: "speaker"}}
	if _, err := wf.Submit(ctx, account.ID, bad, "need slots"); !apperr.IsValidation(err) {
		t.Fatalf("expected validation for unknown category, got %v", err)
	}
	if _, err := wf.Submit(ctx, 4242, items, "need slots"); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found for unknown account, got %v", err)
	}
}

func TestSubmitDerivesRequestedTotals(t *testing.T) {
	db := newTestDB(t)
	sink := &memorySink{}
	wf := NewWorkflow(db, testLogger(), sink)
	account := newTestAccount(t, db, model.RoleUser)

	req := submitRequest(t, wf, account.ID, map[model.Category]int{
		model.CategoryVIP:     2,
		model.CategoryPartner: 1,
	})

	if req.Status != model.SlotRequestPending {
		t.Fatalf("expected pending, got %s", req.Status)
	}
	requested := req.RequestedSlots()
	if requested[model.CategoryVIP] != 2 || requested[model.CategoryPartner] != 1 {
		t.Fatalf("unexpected requested totals: %v", requested)
	}
	if names := sink.names(); len(names) != 1 || names[0] != "slot_request.submitted" {
		t.Fatalf("expected slot_request.submitted event, got %v", names)
	}
}

func TestApprovePartialCreditsLedger(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db, testLogger(), nil)
	sink := &memorySink{}
	wf := NewWorkflow(db, testLogger(), sink)
	account := newTestAccount(t, db, model.RoleUser)

	if err := ledger.SetTotal(account.ID, model.CategoryVIP, 3); err != nil {
		t.Fatalf("seed total: %v", err)
	}

	req := submitRequest(t, wf, account.ID, map[model.Category]int{model.CategoryVIP: 2})

	decided, err := wf.Approve(context.Background(), req.ID, map[model.Category]int{model.CategoryVIP: 1})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if decided.Status != model.SlotRequestApproved || decided.DecidedAt == nil {
		t.Fatalf("expected approved with decision time, got %+v", decided)
	}
	if got := decided.ApprovedSlots.Data()[model.CategoryVIP]; got != 1 {
		t.Fatalf("expected approved vip 1, got %d", got)
	}

	// Additive credit on top of the seeded total; other categories untouched.
	if total, _ := ledger.GetTotal(account.ID, model.CategoryVIP); total != 4 {
		t.Fatalf("expected VIP total 4, got %d", total)
	}
	if total, _ := ledger.GetTotal(account.ID, model.CategoryPartner); total != 0 {
		t.Fatalf("expected Partner total 0, got %d", total)
	}

	names := sink.names()
	if names[len(names)-1] != "slot_request.approved" {
		t.Fatalf("expected slot_request.approved event, got %v", names)
	}
}

func TestApproveRejectsOverRequested(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db, testLogger(), nil)
	wf := NewWorkflow(db, testLogger(), &memorySink{})
	account := newTestAccount(t, db, model.RoleUser)

	req := submitRequest(t, wf, account.ID, map[model.Category]int{model.CategoryVIP: 2})

	_, err := wf.Approve(context.Background(), req.ID, map[model.Category]int{model.CategoryVIP: 5})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation, got %v", err)
	}

	reloaded, err := wf.Get(req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if reloaded.Status != model.SlotRequestPending {
		t.Fatalf("expected request still pending, got %s", reloaded.Status)
	}
	if total, _ := ledger.GetTotal(account.ID, model.CategoryVIP); total != 0 {
		t.Fatalf("expected ledger untouched, got total %d", total)
	}
}

func TestApproveRejectsAllZero(t *testing.T) {
	db := newTestDB(t)
	wf := NewWorkflow(db, testLogger(), &memorySink{})
	account := newTestAccount(t, db, model.RoleUser)

	req := submitRequest(t, wf, account.ID, map[model.Category]int{model.CategoryVIP: 2})

	_, err := wf.Approve(context.Background(), req.ID, map[model.Category]int{model.CategoryVIP: 0})
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation for all-zero approval, got %v", err)
	}
}

func TestApproveTwiceCreditsOnce(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db, testLogger(), nil)
	wf := NewWorkflow(db, testLogger(), &memorySink{})
	account := newTestAccount(t, db, model.RoleUser)

	req := submitRequest(t, wf, account.ID, map[model.Category]int{model.CategoryVIP: 2})
	ctx := context.Background()

	if _, err := wf.Approve(ctx, req.ID, map[model.Category]int{model.CategoryVIP: 2}); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if _, err := wf.Approve(ctx, req.ID, map[model.Category]int{model.CategoryVIP: 2}); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict on second approve, got %v", err)
	}

	if total, _ := ledger.GetTotal(account.ID, model.CategoryVIP); total != 2 {
		t.Fatalf("expected exactly one credit, got total %d", total)
	}
}

func TestDecline(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db, testLogger(), nil)
	sink := &memorySink{}
	wf := NewWorkflow(db, testLogger(), sink)
	account := newTestAccount(t, db, model.RoleUser)

	req := submitRequest(t, wf, account.ID, map[model.Category]int{model.CategoryPartner: 1})
	ctx := context.Background()

	decided, err := wf.Decline(ctx, req.ID)
	if err != nil {
		t.Fatalf("decline: %v", err)
	}
	if decided.Status != model.SlotRequestDeclined || decided.DecidedAt == nil {
		t.Fatalf("expected declined with decision time, got %+v", decided)
	}
	if total, _ := ledger.GetTotal(account.ID, model.CategoryPartner); total != 0 {
		t.Fatalf("decline must not credit the ledger, got total %d", total)
	}

	if _, err := wf.Decline(ctx, req.ID); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict on second decline, got %v", err)
	}
	if _, err := wf.Approve(ctx, req.ID, map[model.Category]int{model.CategoryPartner: 1}); !apperr.IsConflict(err) {
		t.Fatalf("expected conflict approving a declined request, got %v", err)
	}

	names := sink.names()
	if names[len(names)-1] != "slot_request.declined" {
		t.Fatalf("expected slot_request.declined event, got %v", names)
	}
}

func TestPendingCount(t *testing.T) {
	db := newTestDB(t)
	wf := NewWorkflow(db, testLogger(), &memorySink{})
	account := newTestAccount(t, db, model.RoleUser)
	ctx := context.Background()

	if n, err := wf.PendingCount(); err != nil || n != 0 {
		t.Fatalf("expected 0 pending, got %d (%v)", n, err)
	}

	first := submitRequest(t, wf, account.ID, map[model.Category]int{model.CategoryVIP: 1})
	submitRequest(t, wf, account.ID, map[model.Category]int{model.CategoryPartner: 1})

	if n, err := wf.PendingCount(); err != nil || n != 2 {
		t.Fatalf("expected 2 pending, got %d (%v)", n, err)
	}

	if _, err := wf.Decline(ctx, first.ID); err != nil {
		t.Fatalf("decline: %v", err)
	}

	// Decided requests stay in the store but leave the pending count.
	if n, err := wf.PendingCount(); err != nil || n != 1 {
		t.Fatalf("expected 1 pending, got %d (%v)", n, err)
	}
}

func TestDeclineUnknownRequest(t *testing.T) {
	db := newTestDB(t)
	wf := NewWorkflow(db, testLogger(), &memorySink{})

	if _, err := wf.Decline(context.Background(), 777); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}
