package model

import "testing"

func TestParseRole(t *testing.T) {
	cases := []struct {
		in   string
		want Role
		ok   bool
	}{
		{"admin", RoleAdmin, true},
		{"Admin", RoleAdmin, true},
		{"super_user", RoleSuperUser, true},
		{"Super User", RoleSuperUser, true},
		{"superuser", RoleSuperUser, true},
		{"  user  ", RoleUser, true},
		{"moderator", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseRole(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Errorf("ParseRole(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestRoleUnlimited(t *testing.T) {
	if !RoleAdmin.Unlimited() || !RoleSuperUser.Unlimited() {
		t.Fatal("admin and super user must bypass the ledger")
	}
	if RoleUser.Unlimited() {
		t.Fatal("user must have capacity bookkeeping")
	}
}

func TestRoleCanAdminister(t *testing.T) {
	if !RoleAdmin.CanAdminister(RoleSuperUser) {
		t.Fatal("admin must administer super users")
	}
	if RoleSuperUser.CanAdminister(RoleAdmin) || RoleSuperUser.CanAdminister(RoleSuperUser) {
		t.Fatal("super user must only administer users")
	}
	if !RoleSuperUser.CanAdminister(RoleUser) {
		t.Fatal("super user must administer users")
	}
	if RoleUser.CanAdminister(RoleUser) {
		t.Fatal("user must administer nobody")
	}
}

func TestRequestedSlotsDerivedFromItems(t *testing.T) {
	req := SlotRequest{Items: []SlotRequestItem{
		{Category: CategoryVIP},
		{Category: CategoryVIP},
		{Category: CategoryPartner},
	}}
	requested := req.RequestedSlots()
	if requested[CategoryVIP] != 2 || requested[CategoryPartner] != 1 {
		t.Fatalf("unexpected requested totals: %v", requested)
	}
	if requested[CategoryMedia] != 0 {
		t.Fatalf("unrequested category must count zero, got %d", requested[CategoryMedia])
	}
}
