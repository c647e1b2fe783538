package bastion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"bastion/internal/config"
	"bastion/internal/domain"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestCore(t *testing.T) *Core {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite database: %v", err)
	}
	if err := db.AutoMigrate(&domain.BlocklistEntry{}, &domain.FailedLogin{}, &domain.User{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	cfg := config.Default()
	core, err := New(ctx, Options{DB: db, Config: &cfg})
	if err != nil {
		cancel()
		t.Fatalf("New: %v", err)
	}

	t.Cleanup(func() {
		core.Close()
		cancel()
	})
	return core
}

func TestDenylistedLoginLocksAndGateDenies(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	// "administrator" is denylisted by default and does not exist.
	if !core.HandleFailedLogin(ctx, "10.0.0.1", "administrator") {
		t.Fatal("first denylisted attempt did not lock")
	}

	if core.CheckLogin(ctx, "10.0.0.1") {
		t.Fatal("locked IP passed the login gate")
	}
	if !core.CheckLogin(ctx, "10.0.0.99") {
		t.Fatal("unrelated IP denied")
	}
}

func TestEscalationThroughPublicSurface(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		if core.HandleFailedLogin(ctx, "10.0.0.2", "alice") {
			t.Fatalf("attempt %d locked too early", i)
		}
	}
	if !core.HandleFailedLogin(ctx, "10.0.0.2", "alice") {
		t.Fatal("fifth attempt did not lock")
	}

	entries, err := core.Blocklist(ctx, ScopeAdmin, 0, 10, "ban_time", true)
	if err != nil {
		t.Fatalf("Blocklist: %v", err)
	}
	if len(entries) != 1 || entries[0].Reason != ReasonLoginLockoutShort {
		t.Fatalf("unexpected entries: %+v", entries)
	}
}

func TestManualLockLifecycle(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	if err := core.Lock(ctx, "203.0.113.5", time.Hour, ScopeWebsite, ReasonManuallyBlocked, "abuse report"); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if core.CheckAccess(ctx, "203.0.113.5", ScopeWebsite) {
		t.Fatal("manually blocked IP allowed")
	}

	count, err := core.CountBlocklist(ctx, ScopeAny)
	if err != nil {
		t.Fatalf("CountBlocklist: %v", err)
	}
	if count != 1 {
		t.Fatalf("count = %d, want 1", count)
	}

	entries, err := core.Blocklist(ctx, ScopeWebsite, 0, 10, "ban_time", false)
	if err != nil {
		t.Fatalf("Blocklist: %v", err)
	}

	ok, err := core.Unlock(ctx, entries[0].ID)
	if err != nil || !ok {
		t.Fatalf("Unlock: ok=%v err=%v", ok, err)
	}
	if !core.CheckAccess(ctx, "203.0.113.5", ScopeWebsite) {
		t.Fatal("unlocked IP still denied")
	}

	// Unlocked means expired, so prune removes the row.
	removed, err := core.Prune(ctx)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("pruned %d rows, want 1", removed)
	}
}

func TestMiddlewareEndToEnd(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	if err := core.Lock(ctx, "198.51.100.7", time.Hour, ScopeWebsite, ReasonBadRequestBan, ""); err != nil {
		t.Fatalf("Lock: %v", err)
	}

	handler := core.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.7:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestApplyConfigWhileServing(t *testing.T) {
	core := newTestCore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			cfg := config.Default()
			cfg.Login.ResetTimeoutHours = uint32(1 + i%12)
			if err := core.ApplyConfig(ctx, cfg); err != nil {
				t.Errorf("ApplyConfig: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 20; i++ {
		core.HandleFailedLogin(ctx, "10.0.0.50", "alice")
		core.AddDenylistRule(func(string) bool { return false })
		if _, err := core.Prune(ctx); err != nil {
			t.Errorf("Prune: %v", err)
			break
		}
	}
	wg.Wait()
}
