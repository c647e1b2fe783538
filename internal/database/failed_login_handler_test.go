package database

import (
	"context"
	"testing"
	"time"

	"bastion/internal/domain"
)

func TestRecordFailedLoginReturnsRollingCount(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	window := time.Hour

	for i := 1; i <= 3; i++ {
		retries, err := RecordFailedLogin(ctx, "10.0.0.1", "alice", nil, window)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if retries != int64(i) {
			t.Fatalf("attempt %d returned %d retries", i, retries)
		}
	}

	// Another IP counts separately.
	retries, err := RecordFailedLogin(ctx, "10.0.0.2", "alice", nil, window)
	if err != nil {
		t.Fatalf("other ip: %v", err)
	}
	if retries != 1 {
		t.Fatalf("other ip retries = %d, want 1", retries)
	}

	var total int64
	if err := db.Model(&domain.FailedLogin{}).Count(&total).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if total != 4 {
		t.Fatalf("rows = %d, want 4 (append-only)", total)
	}
}

func TestRollingCountIgnoresOldAttempts(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	stale := domain.FailedLogin{
		IPAddress:   "10.0.0.1",
		DateAndTime: domain.NewTextTime(time.Now().Add(-2 * time.Hour)),
		Username:    "alice",
	}
	if err := db.Create(&stale).Error; err != nil {
		t.Fatalf("insert stale attempt: %v", err)
	}

	retries, err := RecordFailedLogin(ctx, "10.0.0.1", "alice", nil, time.Hour)
	if err != nil {
		t.Fatalf("RecordFailedLogin: %v", err)
	}
	if retries != 1 {
		t.Fatalf("retries = %d, want 1 (stale attempt outside window)", retries)
	}
}

func TestPruneFailedLogins(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	rows := []domain.FailedLogin{
		{IPAddress: "10.0.0.1", DateAndTime: domain.NewTextTime(time.Now().Add(-3 * time.Hour)), Username: "a"},
		{IPAddress: "10.0.0.1", DateAndTime: domain.NewTextTime(time.Now().Add(-2 * time.Hour)), Username: "b"},
		{IPAddress: "10.0.0.1", DateAndTime: domain.NewTextTime(time.Now()), Username: "c"},
	}
	if err := db.Create(&rows).Error; err != nil {
		t.Fatalf("seed attempts: %v", err)
	}

	removed, err := PruneFailedLogins(ctx, time.Hour)
	if err != nil {
		t.Fatalf("PruneFailedLogins: %v", err)
	}
	if removed != 2 {
		t.Fatalf("pruned %d rows, want 2", removed)
	}

	var remaining []domain.FailedLogin
	if err := db.Find(&remaining).Error; err != nil {
		t.Fatalf("load remaining: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Username != "c" {
		t.Fatalf("recent attempt not preserved: %+v", remaining)
	}
}

func TestFindUserByLoginOrEmail(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := domain.User{Login: "alice", Email: "alice@example.com"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}

	byLogin, err := FindUserByLoginOrEmail(ctx, "alice")
	if err != nil {
		t.Fatalf("lookup by login: %v", err)
	}
	if byLogin == nil || byLogin.ID != user.ID {
		t.Fatalf("lookup by login returned %+v", byLogin)
	}

	byEmail, err := FindUserByLoginOrEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("lookup by email: %v", err)
	}
	if byEmail == nil || byEmail.ID != user.ID {
		t.Fatalf("lookup by email returned %+v", byEmail)
	}

	missing, err := FindUserByLoginOrEmail(ctx, "nobody")
	if err != nil {
		t.Fatalf("lookup missing: %v", err)
	}
	if missing != nil {
		t.Fatalf("missing user resolved to %+v", missing)
	}
}
