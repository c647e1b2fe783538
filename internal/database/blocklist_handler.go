package database

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"bastion/internal/domain"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LockIP places (or refreshes) a blocklist entry for the given triple. The
// upsert is keyed by the unique (scope, ip_address, reason) index, so a
// concurrent lock of the same triple resolves at the storage layer instead of
// duplicating rows.
func LockIP(ctx context.Context, ip string, duration time.Duration, scope domain.AccessScope, reason domain.BanReason, comment string) error {
	if DB == nil {
		return errors.New("database not initialised")
	}
	if !scope.Valid() {
		return errors.New("blocklist: scope must be a concrete scope")
	}

	now := time.Now()
	entry := domain.BlocklistEntry{
		Scope:       scope,
		IPAddress:   ip,
		BanTime:     domain.NewTextTime(now),
		ReleaseTime: domain.NewTextTime(now.Add(duration)),
		Reason:      reason,
		Comment:     comment,
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "scope"}, {Name: "ip_address"}, {Name: "reason"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"ban_time",
			"release_time",
			"comment",
		}),
	}).Create(&entry).Error
	if err != nil {
		// A duplicate-key failure under a true insert race means another
		// request just locked the same triple; the ban is in place.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil
		}
		return err
	}
	return nil
}

// IsIPLocked reports whether any entry for (scope, ip) is still active. The
// maximum release_time across all reasons decides, so a short lockout never
// shadows a concurrently-active long one.
func IsIPLocked(ctx context.Context, ip string, scope domain.AccessScope) (bool, error) {
	if DB == nil {
		return false, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var maxRelease sql.NullString
	err := db.Model(&domain.BlocklistEntry{}).
		Where("scope = ? AND ip_address = ?", scope, ip).
		Select("MAX(release_time)").
		Scan(&maxRelease).Error
	if err != nil {
		return false, err
	}
	if !maxRelease.Valid {
		return false, nil
	}

	// The text layout sorts lexicographically, so a string compare is a
	// faithful timestamp compare.
	return maxRelease.String > domain.FormatTextTime(time.Now()), nil
}

// UnlockEntry expires a single entry immediately. The row is kept for the
// audit trail; use RemoveEntry to delete it.
func UnlockEntry(ctx context.Context, id uint64) (bool, error) {
	count, err := UnlockEntries(ctx, []uint64{id})
	return count > 0, err
}

// UnlockEntries expires the given entries immediately and returns how many
// rows were touched.
func UnlockEntries(ctx context.Context, ids []uint64) (int64, error) {
	if DB == nil {
		return 0, errors.New("database not initialised")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	result := db.Model(&domain.BlocklistEntry{}).
		Where("id IN ?", ids).
		Update("release_time", domain.NewTextTime(time.Now()))
	return result.RowsAffected, result.Error
}

// RemoveEntry permanently deletes a single entry.
func RemoveEntry(ctx context.Context, id uint64) (bool, error) {
	count, err := RemoveEntries(ctx, []uint64{id})
	return count > 0, err
}

// RemoveEntries permanently deletes the given entries.
func RemoveEntries(ctx context.Context, ids []uint64) (int64, error) {
	if DB == nil {
		return 0, errors.New("database not initialised")
	}
	if len(ids) == 0 {
		return 0, nil
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	result := db.Where("id IN ?", ids).Delete(&domain.BlocklistEntry{})
	return result.RowsAffected, result.Error
}

// PruneBlocklist deletes every entry whose release_time has passed. Running
// it twice in a row is a no-op the second time.
func PruneBlocklist(ctx context.Context) (int64, error) {
	if DB == nil {
		return 0, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	result := db.Where("release_time <= ?", domain.FormatTextTime(time.Now())).
		Delete(&domain.BlocklistEntry{})
	return result.RowsAffected, result.Error
}

// CountBlocklist counts entries, optionally filtered by scope (ScopeAny
// means no filter).
func CountBlocklist(ctx context.Context, scope domain.AccessScope) (int64, error) {
	return CountBlocklistFrom(ctx, time.Time{}, scope)
}

// CountBlocklistFrom counts entries banned at or after the given instant.
func CountBlocklistFrom(ctx context.Context, from time.Time, scope domain.AccessScope) (int64, error) {
	if DB == nil {
		return 0, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	query := db.Model(&domain.BlocklistEntry{})
	if scope != domain.ScopeAny {
		query = query.Where("scope = ?", scope)
	}
	if !from.IsZero() {
		query = query.Where("ban_time >= ?", domain.FormatTextTime(from))
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

var blocklistOrderColumns = map[string]string{
	"ip_address":   "ip_address",
	"ban_time":     "ban_time",
	"release_time": "release_time",
	"reason":       "reason",
	"scope":        "scope",
}

// FetchBlocklist returns a page of entries for display. The order column is
// matched against an allowlist; anything unknown falls back to ban_time.
func FetchBlocklist(ctx context.Context, scope domain.AccessScope, offset, limit int, orderBy string, descending bool) ([]domain.BlocklistEntry, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	column, ok := blocklistOrderColumns[strings.ToLower(orderBy)]
	if !ok {
		column = "ban_time"
	}
	direction := "ASC"
	if descending {
		direction = "DESC"
	}

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	query := db.Model(&domain.BlocklistEntry{})
	if scope != domain.ScopeAny {
		query = query.Where("scope = ?", scope)
	}

	var entries []domain.BlocklistEntry
	err := query.Order(column + " " + direction).
		Offset(offset).
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
