package database

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_DSNAndDefaults(t *testing.T) {
	cfg := Config{Host: "db", User: "ledger", Password: "secret", DBName: "bank"}
	cfg.SetDefaults()

	assert.Equal(t, DriverMySQL, cfg.Driver)
	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, 30*time.Minute, cfg.ConnMaxLifetime)
	assert.Equal(t, "ledger:secret@tcp(db:3306)/bank?charset=utf8mb4&parseTime=True&loc=UTC", cfg.DSN())
}

func TestNewClient_SQLiteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	client, err := NewClient(context.Background(), Config{Driver: DriverSQLite, Path: path, LogLevel: "silent"}, nil)
	require.NoError(t, err)
	defer client.Close()

	sqlDB, err := client.DB().DB()
	require.NoError(t, err)
	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)

	type probe struct {
		ID   int64
		Note string
	}
	require.NoError(t, client.AutoMigrate(&probe{}))
	require.NoError(t, client.DB().Create(&probe{Note: "ok"}).Error)
	var got probe
	require.NoError(t, client.DB().First(&got).Error)
	assert.Equal(t, "ok", got.Note)
}

func TestNewClient_UnsupportedDriver(t *testing.T) {
	_, err := NewClient(context.Background(), Config{Driver: "oracle"}, nil)
	require.Error(t, err)
}

func TestSlogWriter(t *testing.T) {
	var buf bytes.Buffer
	w := slogWriter{log: slog.New(slog.NewTextHandler(&buf, nil))}
	w.Printf("%s [%.3fms] %s\n", "store.go:42", 1.5, "SELECT 1")
	assert.Contains(t, buf.String(), "SELECT 1")
	assert.NotContains(t, buf.String(), `\n"`)
}
