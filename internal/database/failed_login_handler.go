package database

import (
	"context"
	"errors"
	"time"

	"bastion/internal/domain"
)

// RecordFailedLogin appends a failed attempt and returns the rolling retry
// count for the IP: all attempts newer than now minus the reset window,
// including the one just inserted. Insert and count are deliberately not one
// transaction; concurrent attempts from the same IP may land on either side
// of a threshold, which the lockout policy tolerates.
func RecordFailedLogin(ctx context.Context, ip, username string, userID *uint64, resetWindow time.Duration) (int64, error) {
	if DB == nil {
		return 0, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	attempt := domain.FailedLogin{
		IPAddress:   ip,
		DateAndTime: domain.NewTextTime(time.Now()),
		Username:    username,
		UserID:      userID,
	}
	if err := db.Create(&attempt).Error; err != nil {
		return 0, err
	}

	return CountRecentFailures(ctx, ip, resetWindow)
}

// CountRecentFailures counts attempts for the IP newer than now minus the
// reset window.
func CountRecentFailures(ctx context.Context, ip string, resetWindow time.Duration) (int64, error) {
	if DB == nil {
		return 0, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	cutoff := domain.FormatTextTime(time.Now().Add(-resetWindow))

	var count int64
	err := db.Model(&domain.FailedLogin{}).
		Where("ip_address = ? AND date_and_time > ?", ip, cutoff).
		Count(&count).Error
	return count, err
}

// PruneFailedLogins deletes attempts older than the reset window and returns
// how many rows were removed.
func PruneFailedLogins(ctx context.Context, resetWindow time.Duration) (int64, error) {
	if DB == nil {
		return 0, errors.New("database not initialised")
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	cutoff := domain.FormatTextTime(time.Now().Add(-resetWindow))

	result := db.Where("date_and_time <= ?", cutoff).Delete(&domain.FailedLogin{})
	return result.RowsAffected, result.Error
}
