package config

import (
	"context"
	"testing"
	"time"

	"github.com/alem-hub/levelup/internal/domain/experience"
	"github.com/alem-hub/levelup/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Store.Driver)
	assert.Equal(t, time.UTC, cfg.App.Location())
	assert.False(t, cfg.Redis.Enabled())
	assert.True(t, cfg.Streak.ArchiveHistory)
	assert.Equal(t, 1, cfg.Streak.FreezeDays)
	assert.Empty(t, cfg.Streak.MilestoneBonuses)
	assert.False(t, cfg.Points.AuditEnabled)
	assert.True(t, cfg.IsDevelopment())

	rules, err := cfg.Points.Rules()
	require.NoError(t, err)
	assert.Equal(t, experience.DefaultRules(), rules)
	assert.Nil(t, cfg.Points.Multiplier())
}

func TestLoadFrom_Overrides(t *testing.T) {
	cfg, err := LoadFrom(map[string]string{
		"APP_TIMEZONE":             "Asia/Almaty",
		"STORE_DRIVER":             "sqlite",
		"SQLITE_PATH":              "/tmp/levelup.db",
		"LEVEL_CAP_ENABLED":        "false",
		"LEVEL_CAP_OVERFLOW":       "clamp",
		"LEVELUP_POINTS_CARRY":     "consume",
		"POINTS_DEDUCT_POLICY":     "clamp_to_zero",
		"STREAK_MILESTONE_BONUSES": "7:50,30:200",
		"MULTIPLIER_BOOSTED_USERS": "u1, u2",
		"MULTIPLIER_BOOST_FACTOR":  "3",
		"REDIS_DISABLED":           "false",
		"REDIS_URL":                "redis://localhost:6379/0",
	})
	require.NoError(t, err)

	assert.Equal(t, "Asia/Almaty", cfg.App.Location().String())
	assert.Equal(t, "/tmp/levelup.db", cfg.Store.SQLitePath)
	assert.Equal(t, map[int]int{7: 50, 30: 200}, cfg.Streak.MilestoneBonuses)
	assert.True(t, cfg.Redis.Enabled())

	rules, err := cfg.Points.Rules()
	require.NoError(t, err)
	assert.False(t, rules.Cap.Enabled)
	assert.Equal(t, experience.CapOverflowClamp, rules.Cap.Overflow)
	assert.Equal(t, experience.CarryConsume, rules.Carry)
	assert.Equal(t, experience.DeductClampToZero, rules.Deduct)

	resolver := cfg.Points.Multiplier()
	require.NotNil(t, resolver)
	got, err := resolver.Resolve(context.Background(), shared.UserID("u2"), 10)
	require.NoError(t, err)
	assert.Equal(t, 30, got)
	got, err = resolver.Resolve(context.Background(), shared.UserID("u3"), 10)
	require.NoError(t, err)
	assert.Equal(t, 10, got)
}

func TestLoadFrom_CollectsValidationErrors(t *testing.T) {
	_, err := LoadFrom(map[string]string{
		"STORE_DRIVER":           "postgres",
		"REDIS_DISABLED":         "false",
		"POINTS_DEDUCT_POLICY":   "never",
		"STREAK_FREEZE_DURATION": "0",
	})
	require.Error(t, err)

	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL is required")
	assert.Contains(t, msg, "REDIS_URL is required")
	assert.Contains(t, msg, "unknown deduct policy")
	assert.Contains(t, msg, "STREAK_FREEZE_DURATION")
}

func TestLoadFrom_BadInput(t *testing.T) {
	tests := []struct {
		name    string
		environ map[string]string
	}{
		{"unknown driver", map[string]string{"STORE_DRIVER": "mongo"}},
		{"unknown timezone", map[string]string{"APP_TIMEZONE": "Mars/Olympus"}},
		{"malformed int", map[string]string{"LEVEL_CAP": "ten"}},
		{"zero starting level", map[string]string{"LEVELUP_STARTING_LEVEL": "0"}},
		{"negative bonus", map[string]string{"STREAK_MILESTONE_BONUSES": "7:-5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFrom(tt.environ)
			assert.Error(t, err)
		})
	}
}
