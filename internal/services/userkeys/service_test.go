package userkeys

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/Egham-7/custom-endpoint-proxy/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.UserKey{}))

	sealer, err := NewSealer(testKey)
	require.NoError(t, err)
	return NewService(db, sealer)
}

func TestSealer_RoundTrip(t *testing.T) {
	sealer, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("secret"), []byte("ad"))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "secret")

	plain, err := sealer.Open(sealed, []byte("ad"))
	require.NoError(t, err)
	assert.Equal(t, "secret", string(plain))

	_, err = sealer.Open(sealed, []byte("other"))
	assert.Error(t, err)
}

func TestSealer_RejectsTamperedCiphertext(t *testing.T) {
	sealer, err := NewSealer(testKey)
	require.NoError(t, err)

	sealed, err := sealer.Seal([]byte("secret"), nil)
	require.NoError(t, err)

	blob, err := base64.StdEncoding.DecodeString(sealed)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(blob)

	_, err = sealer.Open(tampered, nil)
	assert.Error(t, err)

	_, err = sealer.Open("c2hvcnQ=", nil)
	assert.Error(t, err)
}

func TestNewSealer_InvalidKey(t *testing.T) {
	_, err := NewSealer("zz")
	assert.Error(t, err)

	_, err = NewSealer(strings.Repeat("ab", 16))
	assert.Error(t, err)
}

func TestCheckExpiry(t *testing.T) {
	svc := newTestService(t)
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	assert.NoError(t, svc.CheckExpiry(now.Add(time.Hour), "X"))
	assert.NoError(t, svc.CheckExpiry(time.Time{}, "X"))

	err := svc.CheckExpiry(now.Add(-time.Minute), "X")
	require.ErrorIs(t, err, models.ErrCredentialExpired)

	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.ErrorTypeExpiredUserKey, appErr.Type)
}

func TestUpdateAndGetValues(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	values := models.UserKeyValues{APIKey: "sk-user", BaseURL: "https://example.test/v1"}
	require.NoError(t, svc.Update(ctx, "u1", "Mistral", values, nil))

	got, err := svc.GetValues(ctx, "u1", "Mistral")
	require.NoError(t, err)
	assert.Equal(t, values, *got)

	// another user sees nothing
	other, err := svc.GetValues(ctx, "u2", "Mistral")
	require.NoError(t, err)
	assert.Empty(t, other.APIKey)

	// upsert replaces the value
	require.NoError(t, svc.Update(ctx, "u1", "Mistral", models.UserKeyValues{APIKey: "sk-new"}, nil))
	got, err = svc.GetValues(ctx, "u1", "Mistral")
	require.NoError(t, err)
	assert.Equal(t, "sk-new", got.APIKey)
	assert.Empty(t, got.BaseURL)
}

func TestUpdate_Validation(t *testing.T) {
	svc := newTestService(t)

	err := svc.Update(context.Background(), "u1", "", models.UserKeyValues{APIKey: "k"}, nil)
	assert.Error(t, err)

	err = svc.Update(context.Background(), "u1", "Mistral", models.UserKeyValues{}, nil)
	assert.Error(t, err)
}

func TestGetValues_StoredKeyExpired(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour).UTC()
	require.NoError(t, svc.Update(ctx, "u1", "Mistral", models.UserKeyValues{APIKey: "k"}, &past))

	_, err := svc.GetValues(ctx, "u1", "Mistral")
	assert.ErrorIs(t, err, models.ErrCredentialExpired)

	expiry, err := svc.GetExpiry(ctx, "u1", "Mistral")
	require.NoError(t, err)
	require.NotNil(t, expiry)
	assert.WithinDuration(t, past, *expiry, time.Second)
}

func TestDelete(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, "u1", "A", models.UserKeyValues{APIKey: "a"}, nil))
	require.NoError(t, svc.Update(ctx, "u1", "B", models.UserKeyValues{APIKey: "b"}, nil))
	require.NoError(t, svc.Update(ctx, "u2", "A", models.UserKeyValues{APIKey: "c"}, nil))

	require.NoError(t, svc.Delete(ctx, "u1", "A"))
	assert.ErrorIs(t, svc.Delete(ctx, "u1", "A"), ErrKeyNotFound)

	_, err := svc.GetExpiry(ctx, "u1", "A")
	assert.ErrorIs(t, err, ErrKeyNotFound)

	n, err := svc.DeleteAll(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := svc.GetValues(ctx, "u2", "A")
	require.NoError(t, err)
	assert.Equal(t, "c", got.APIKey)
}
