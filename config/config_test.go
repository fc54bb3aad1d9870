package config

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("SEARCH_DEBOUNCE", "")
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("OAUTH_STATE_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StorageS3, cfg.Storage)
	assert.Equal(t, 500*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, 587, cfg.SMTPPort)
	assert.False(t, cfg.GoogleEnabled())
}

func TestLoadReadsEnvironment(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(make([]byte, 32))
	t.Setenv("STORAGE_BACKEND", "MinIO")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("SEARCH_DEBOUNCE", "250ms")
	t.Setenv("AUTH_BURST", "not-a-number")
	t.Setenv("OAUTH_STATE_KEY", key)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StorageMinio, cfg.Storage)
	assert.True(t, cfg.MinioUseSSL)
	assert.Equal(t, 250*time.Millisecond, cfg.SearchDebounce)
	assert.Equal(t, 5, cfg.AuthBurst)
	assert.Len(t, cfg.OAuthStateKey, 32)
}

func TestLoadRejectsShortStateKey(t *testing.T) {
	t.Setenv("OAUTH_STATE_KEY", base64.StdEncoding.EncodeToString([]byte("short")))
	_, err := Load()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := &Config{JWTSecret: "change-me-in-production", Storage: "ftp", GoogleClientID: "id", GoogleClientSecret: "s"}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "STORAGE_BACKEND")
	assert.Contains(t, err.Error(), "OAUTH_STATE_KEY")

	cfg = &Config{JWTSecret: "a-long-enough-secret", Storage: StorageS3, S3Bucket: "covers"}
	assert.NoError(t, cfg.Validate())
}

func TestRedirectOrigins(t *testing.T) {
	cfg := &Config{
		AllowedOrigins: []string{"*", "https://Shop.coach.test", "https://admin.coach.test/"},
		VerifyURL:      "https://shop.coach.test/verify-email",
	}
	assert.Equal(t, []string{"https://shop.coach.test", "https://admin.coach.test"}, cfg.RedirectOrigins())

	cfg = &Config{AllowedOrigins: []string{"*"}, VerifyURL: "http://localhost:5173/verify-email"}
	assert.Equal(t, []string{"http://localhost:5173"}, cfg.RedirectOrigins())

	cfg.OAuthRedirectOrigins = []string{"https://app.coach.test"}
	assert.Equal(t, []string{"https://app.coach.test"}, cfg.RedirectOrigins())
}
