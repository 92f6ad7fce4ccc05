package model

import "time"

// Account 登录凭证，存关系库；FeedID 指向 Redis 里的 user:{id}
type Account struct {
	FeedID       string    `gorm:"primaryKey;type:varchar(36)"`
	Username     string    `gorm:"type:varchar(25);uniqueIndex;not null"`
	Email        string    `gorm:"type:varchar(255);index"`
	PasswordHash string    `gorm:"type:varchar(100);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Account) TableName() string { return "accounts" }
