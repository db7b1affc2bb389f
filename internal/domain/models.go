package domain

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// User is an account that can sign in locally (username + password) or via
// Microsoft federation. Federated-only users carry an empty password hash
// and cannot use the local password path.
type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"type:varchar(64);uniqueIndex;not null"`
	PasswordHash string    `gorm:"type:varchar(128);not null;default:'';column:password_hash"`
	CreatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt    time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	Posts        []Post    `gorm:"foreignKey:UserID"`
}

// SetPassword hashes and stores the given plaintext password.
func (u *User) SetPassword(password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	return nil
}

// CheckPassword reports whether the plaintext password matches the stored
// hash. Always false for federated-only users (empty hash).
func (u *User) CheckPassword(password string) bool {
	if u.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// Post is a blog article with an optional image attachment stored in the
// object store under ImageKey. Posts are mutated only through the post
// service's save workflow; concurrent edits of the same post are
// last-write-wins.
type Post struct {
	ID        uint      `gorm:"primaryKey"`
	Title     string    `gorm:"type:varchar(150);not null"`
	Author    string    `gorm:"type:varchar(75);not null"`
	Body      string    `gorm:"type:varchar(800);not null"`
	ImageKey  *string   `gorm:"type:varchar(100);column:image_key"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP;index"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UserID    uint      `gorm:"not null;index;column:user_id"`
	User      *User     `gorm:"foreignKey:UserID"`
}
