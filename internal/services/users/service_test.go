package users

import (
	"context"
	"testing"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.User{}))
	return NewService(db)
}

func TestFindByID(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, &models.User{ID: "u1", Email: "a@b.c", Name: "Ada"}))

	user, err := svc.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "a@b.c", user.Email)

	_, err = svc.FindByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrUserNotFound)

	_, err = svc.FindByID(ctx, "")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpsert_UpdatesEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Upsert(ctx, &models.User{ID: "u1", Email: "old@b.c"}))
	require.NoError(t, svc.Upsert(ctx, &models.User{ID: "u1", Email: "new@b.c"}))

	user, err := svc.FindByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "new@b.c", user.Email)

	assert.Error(t, svc.Upsert(ctx, &models.User{ID: "u2"}))
}
