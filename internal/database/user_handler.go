package database

import (
	"context"
	"errors"
	"strings"

	"bastion/internal/domain"

	"gorm.io/gorm"
)

// FindUserByLoginOrEmail resolves a submitted login name or email address to
// an account. A missing account returns (nil, nil).
func FindUserByLoginOrEmail(ctx context.Context, value string) (*domain.User, error) {
	if DB == nil {
		return nil, errors.New("database not initialised")
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	db := DB
	if ctx != nil {
		db = db.WithContext(ctx)
	}

	var user domain.User
	err := db.Where("login = ? OR email = ?", value, value).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
