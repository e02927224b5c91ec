package quota

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"quota-service/internal/model"
	"quota-service/internal/notifier"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database migrated with the core models.
// The shared cache keeps the database alive across pooled connections.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	err = db.AutoMigrate(
		&model.Account{},
		&model.AccountQuota{},
		&model.Award{},
		&model.PartnershipTemplate{},
		&model.SlotRequest{},
		&model.SlotRequestItem{},
		&model.ModuleSetting{},
	)
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	return db
}

var accountSeq atomic.Uint64

func newTestAccount(t *testing.T, db *gorm.DB, role model.Role) *model.Account {
	t.Helper()

	account := model.Account{
		Name:   "Test " + string(role),
		Email:  fmt.Sprintf("%s-%s-%d@example.com", t.Name(), role, accountSeq.Add(1)),
		Role:   role,
		Active: true,
	}
	if err := db.Create(&account).Error; err != nil {
		t.Fatalf("create test account: %v", err)
	}
	return &account
}

// memorySink records published events for assertions.
type memorySink struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (s *memorySink) Publish(_ context.Context, event notifier.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *memorySink) names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, len(s.events))
	for i, e := range s.events {
		names[i] = e.Name
	}
	return names
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
