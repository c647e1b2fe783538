package gate

import (
	"fmt"
	"sync"
	"testing"

	"bastion/internal/config"
	"bastion/internal/database"
	"bastion/internal/domain"
	"bastion/internal/events"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupGateTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}

	if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
		t.Fatalf("set busy timeout: %v", err)
	}

	if err := db.AutoMigrate(&domain.BlocklistEntry{}, &domain.FailedLogin{}, &domain.User{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	database.DB = db
	t.Cleanup(func() {
		database.DB = nil
	})

	return db
}

func testLoginConfig() config.Config {
	cfg := config.Default()
	cfg.Login.ShortAfter = 5
	cfg.Login.LongAfter = 20
	cfg.Login.UsernameDenylist = []string{"administrator"}
	cfg.Normalize()
	return cfg
}

// recordingSink captures emitted events for assertions.
type recordingSink struct {
	mu     sync.Mutex
	emitted []struct {
		ID  events.ID
		Ctx events.Context
	}
}

func (s *recordingSink) Emit(id events.ID, ctx events.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emitted = append(s.emitted, struct {
		ID  events.ID
		Ctx events.Context
	}{id, ctx})
}

func (s *recordingSink) last() (events.ID, events.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.emitted) == 0 {
		return "", nil, false
	}
	entry := s.emitted[len(s.emitted)-1]
	return entry.ID, entry.Ctx, true
}
