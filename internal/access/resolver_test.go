package access

import (
	"fmt"
	"testing"

	"quota-service/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.Account{}, &model.Award{}, &model.ModuleSetting{}); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

func TestCanAccessDefaults(t *testing.T) {
	r := NewResolver(nil)

	cases := []struct {
		role   model.Role
		module string
		want   bool
	}{
		{model.RoleAdmin, "module_settings", true},
		{model.RoleSuperUser, "module_settings", false},
		{model.RoleSuperUser, "partnership_types", true},
		{model.RoleUser, "accounts", false},
		{model.RoleUser, "dashboard", true},
		{model.RoleUser, "slot_requests", true},
	}
	for _, tc := range cases {
		if got := r.CanAccess(tc.role, tc.module, nil); got != tc.want {
			t.Errorf("CanAccess(%s, %s) = %v, want %v", tc.role, tc.module, got, tc.want)
		}
	}
}

func TestCanAccessOverrideWins(t *testing.T) {
	r := NewResolver(nil)

	// Explicit disable beats a default-enabled module.
	overrides := Overrides{
		model.ModuleSettingKey("dashboard", model.RoleUser): false,
	}
	if r.CanAccess(model.RoleUser, "dashboard", overrides) {
		t.Fatal("explicit disable must override the default")
	}

	// Explicit enable beats a default-disabled module.
	overrides = Overrides{
		model.ModuleSettingKey("accounts", model.RoleUser): true,
	}
	if !r.CanAccess(model.RoleUser, "accounts", overrides) {
		t.Fatal("explicit enable must override the default")
	}

	// Overrides are per role: another role's setting must not leak.
	overrides = Overrides{
		model.ModuleSettingKey("dashboard", model.RoleAdmin): false,
	}
	if !r.CanAccess(model.RoleUser, "dashboard", overrides) {
		t.Fatal("another role's override must not apply")
	}
}

func TestCanAccessUnknownModule(t *testing.T) {
	r := NewResolver(nil)

	overrides := Overrides{
		model.ModuleSettingKey("billing", model.RoleAdmin): true,
	}
	if r.CanAccess(model.RoleAdmin, "billing", overrides) {
		t.Fatal("unregistered module must resolve to false even with an override")
	}
}

func TestCanUseAwardGate(t *testing.T) {
	db := newTestDB(t)
	r := NewResolver(&GormAwardStore{DB: db})

	account := model.Account{
		Name:     "holder",
		Email:    "holder@example.com",
		Password: "x",
		Role:     model.RoleUser,
		Active:   true,
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("create account: %v", err)
	}

	// trophy is in the user defaults but gated on an award record.
	ok, err := r.CanUse(&account, "trophy", nil)
	if err != nil {
		t.Fatalf("can use: %v", err)
	}
	if ok {
		t.Fatal("trophy must be hidden without an award")
	}

	award := model.Award{AccountID: account.ID, Type: "trophy", Title: "Community Star"}
	if err := db.Create(&award).Error; err != nil {
		t.Fatalf("create award: %v", err)
	}

	ok, err = r.CanUse(&account, "trophy", nil)
	if err != nil {
		t.Fatalf("can use: %v", err)
	}
	if !ok {
		t.Fatal("trophy must be visible once the award exists")
	}

	// Non-gated modules need no award.
	ok, err = r.CanUse(&account, "dashboard", nil)
	if err != nil {
		t.Fatalf("can use: %v", err)
	}
	if !ok {
		t.Fatal("dashboard must be visible to users by default")
	}
}

func TestLoadOverrides(t *testing.T) {
	db := newTestDB(t)

	setting := model.ModuleSetting{
		Key:     model.ModuleSettingKey("exports", model.RoleUser),
		Enabled: true,
	}
	if err := db.Create(&setting).Error; err != nil {
		t.Fatalf("create setting: %v", err)
	}

	overrides, err := LoadOverrides(db)
	if err != nil {
		t.Fatalf("load overrides: %v", err)
	}
	r := NewResolver(nil)
	if !r.CanAccess(model.RoleUser, "exports", overrides) {
		t.Fatal("stored enable must surface through the snapshot")
	}
}
