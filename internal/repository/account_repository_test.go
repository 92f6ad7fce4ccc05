package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/d60-Lab/feedline/internal/apperr"
	"github.com/d60-Lab/feedline/internal/model"
)

func setupAccountDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Account{}))
	return db
}

func TestAccountRepository(t *testing.T) {
	repo := NewAccountRepository(setupAccountDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Account{FeedID: "f1", Username: "Luna", PasswordHash: "x"}))

	a, err := repo.FindByUsername(ctx, "LUNA")
	require.NoError(t, err)
	assert.Equal(t, "f1", a.FeedID)
	assert.Equal(t, "luna", a.Username)

	a, err = repo.FindByFeedID(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, "luna", a.Username)

	// 用户名唯一
	assert.Error(t, repo.Create(ctx, &model.Account{FeedID: "f2", Username: "luna", PasswordHash: "y"}))

	_, err = repo.FindByUsername(ctx, "mark")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
