package dbmysql

import (
	"time"
)

type User struct {
	UserID       string    `gorm:"primaryKey;column:user_id;size:36" json:"user_id"`
	Handle       string    `gorm:"column:handle;uniqueIndex;size:50;not null" json:"handle"`
	DisplayName  string    `gorm:"column:display_name;size:100" json:"display_name"`
	AvatarURL    string    `gorm:"column:avatar_url;size:255" json:"avatar_url"`
	PasswordHash string    `gorm:"column:password_hash;size:255;not null" json:"-"`
	Email        string    `gorm:"column:email;size:255" json:"email"`
	Status       string    `gorm:"column:status;size:16;default:active" json:"status"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}
