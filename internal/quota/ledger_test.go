package quota

import (
	"testing"

	"quota-service/internal/apperr"
	"quota-service/internal/model"
)

func TestLedgerSetTotalAndAvailable(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db, testLogger(), nil)
	account := newTestAccount(t, db, model.RoleUser)

	if err := ledger.SetTotal(account.ID, model.CategoryVIP, 5); err != nil {
		t.Fatalf("set total: %v", err)
	}

	av, err := ledger.Available(account.ID, model.CategoryVIP)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if av.Total != 5 || av.Used != 0 || av.Available != 5 {
		t.Fatalf("expected 5/0/5, got %d/%d/%d", av.Total, av.Used, av.Available)
	}

	// Overwrite is idempotent.
	if err := ledger.SetTotal(account.ID, model.CategoryVIP, 5); err != nil {
		t.Fatalf("repeat set total: %v", err)
	}
	if total, _ := ledger.GetTotal(account.ID, model.CategoryVIP); total != 5 {
		t.Fatalf("expected total 5 after repeat, got %d", total)
	}
}

func TestLedgerRejectsNegativeTotal(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db, testLogger(), nil)
	account := newTestAccount(t, db, model.RoleUser)

	err := ledger.SetTotal(account.ID, model.CategoryVIP, -1)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}

	err = ledger.IncrementTotal(account.ID, model.CategoryVIP, -1)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error for negative delta, got %v", err)
	}

	// Nothing was written.
	if total, _ := ledger.GetTotal(account.ID, model.CategoryVIP); total != 0 {
		t.Fatalf("expected total 0 after rejections, got %d", total)
	}
}

func TestLedgerIncrementCreatesMissingRow(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db, testLogger(), nil)
	account := newTestAccount(t, db, model.RoleUser)

	if err := ledger.IncrementTotal(account.ID, model.CategoryPartner, 3); err != nil {
		t.Fatalf("increment: %v", err)
	}
	if err := ledger.IncrementTotal(account.ID, model.CategoryPartner, 2); err != nil {
		t.Fatalf("second increment: %v", err)
	}
	if total, _ := ledger.GetTotal(account.ID, model.CategoryPartner); total != 5 {
		t.Fatalf("expected total 5, got %d", total)
	}
}

func TestLedgerUnknownAccount(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db, testLogger(), nil)

	if err := ledger.SetTotal(9999, model.CategoryVIP, 1); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := ledger.Available(9999, model.CategoryVIP); !apperr.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestLedgerUnlimitedRolesBypass(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db, testLogger(), nil)

	for _, role := range []model.Role{model.RoleAdmin, model.RoleSuperUser} {
		account := newTestAccount(t, db, role)
		av, err := ledger.Available(account.ID, model.CategoryVIP)
		if err != nil {
			t.Fatalf("available for %s: %v", role, err)
		}
		if !av.Unlimited {
			t.Fatalf("expected unlimited availability for %s", role)
		}
	}
}

func TestLedgerReportsNegativeAvailableUnclamped(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db, testLogger(), nil) // default warn policy
	account := newTestAccount(t, db, model.RoleUser)

	if err := ledger.SetTotal(account.ID, model.CategoryMedia, 2); err != nil {
		t.Fatalf("set total: %v", err)
	}
	if err := ledger.SetUsed(account.ID, model.CategoryMedia, 4); err != nil {
		t.Fatalf("set used under warn policy: %v", err)
	}

	av, err := ledger.Available(account.ID, model.CategoryMedia)
	if err != nil {
		t.Fatalf("available: %v", err)
	}
	if av.Available != -2 {
		t.Fatalf("expected raw available -2, got %d", av.Available)
	}
}

func TestLedgerStrictPolicyRejectsOveruse(t *testing.T) {
	db := newTestDB(t)
	ledger := NewLedger(db, testLogger(), StrictPolicy())
	account := newTestAccount(t, db, model.RoleUser)

	if err := ledger.SetTotal(account.ID, model.CategoryMedia, 2); err != nil {
		t.Fatalf("set total: %v", err)
	}

	err := ledger.SetUsed(account.ID, model.CategoryMedia, 3)
	if !apperr.IsValidation(err) {
		t.Fatalf("expected validation error under strict policy, got %v", err)
	}
	if used, _ := ledger.GetUsed(account.ID, model.CategoryMedia); used != 0 {
		t.Fatalf("expected used unchanged at 0, got %d", used)
	}

	if err := ledger.SetUsed(account.ID, model.CategoryMedia, 2); err != nil {
		t.Fatalf("set used within capacity: %v", err)
	}
}
