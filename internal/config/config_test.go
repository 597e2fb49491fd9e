package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SECRET", "HTTP_PORT", "DATABASE_DRIVER", "DATABASE_DSN", "LOG_LEVEL", "LOG_FORMAT", "CHECKOUT_RATE", "CHECKOUT_BURST", "CORS_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "dev_secret", cfg.Secret)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "pharmapos.db", cfg.DatabaseDSN)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 5.0, cfg.CheckoutRate)
	assert.Equal(t, 10, cfg.CheckoutBurst)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HTTP_PORT", "not-a-port")
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("USER", "pos")
	t.Setenv("PASSWORD", "secret")
	t.Setenv("HOST", "db")
	t.Setenv("PORT", "6543")
	t.Setenv("NAME", "shops")
	t.Setenv("CHECKOUT_RATE", "-1")
	t.Setenv("CHECKOUT_BURST", "3")
	t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")

	cfg := Load()

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "postgres://pos:secret@db:6543/shops?sslmode=disable", cfg.DatabaseDSN)
	assert.Equal(t, 5.0, cfg.CheckoutRate)
	assert.Equal(t, 3, cfg.CheckoutBurst)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
}
