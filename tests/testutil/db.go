package testutil

import (
	"testing"

	"github.com/nordvik-media/blog-api/internal/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database with the full schema.
// Each call returns an isolated database, so tests never share state.
func SetupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "Failed to open in-memory test database")

	require.NoError(t, db.AutoMigrate(&domain.User{}, &domain.Post{}))

	return db
}

// CreateTestUser creates a local user with the given password and returns it
func CreateTestUser(t *testing.T, db *gorm.DB, username, password string) *domain.User {
	user := &domain.User{Username: username}
	if password != "" {
		require.NoError(t, user.SetPassword(password))
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateTestPost creates a post for the given user and returns it
func CreateTestPost(t *testing.T, db *gorm.DB, userID uint, title string) *domain.Post {
	post := &domain.Post{
		Title:  title,
		Author: "Test Author",
		Body:   "Test body",
		UserID: userID,
	}
	require.NoError(t, db.Create(post).Error)
	return post
}
