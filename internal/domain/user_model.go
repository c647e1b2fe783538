package domain

import "time"

// User mirrors the host application's account table. The core only reads it
// to resolve submitted usernames; account management belongs to the host.
type User struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Login     string    `gorm:"uniqueIndex;not null;size:60"`
	Email     string    `gorm:"uniqueIndex;not null;size:255"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
