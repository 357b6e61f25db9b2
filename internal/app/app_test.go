package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/secissues/secissues-go/internal/config"
	"github.com/secissues/secissues-go/internal/crypto"
)

func testConfig() config.Config {
	return config.Config{
		StoreTimeout: time.Second,
		JWTSecret:    "test-secret",
		TokenTTL:     time.Hour,
		RateLimit: config.RateLimitConfig{
			Limit:        5,
			Window:       time.Hour,
			PublicLimit:  3,
			PublicWindow: time.Hour,
			AuthRPS:      5,
			AuthBurst:    10,
		},
		CORSOrigins: []string{"http://localhost:3000"},
	}
}

func TestBuildAndClose(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	mock.ExpectClose()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	tokens, err := crypto.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	require.NoError(t, err)

	a, err := build(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), db, rdb, tokens)
	require.NoError(t, err)
	assert.Equal(t, "api", a.Governor.Scope())
	assert.Equal(t, "public", a.PublicGovernor.Scope())

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/posts", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	require.NoError(t, a.Close())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBuild_RejectsBadLimits(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig()
	cfg.RateLimit.Limit = 0
	tokens, err := crypto.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	require.NoError(t, err)

	_, err = build(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), db, rdb, tokens)
	assert.Error(t, err)
}
