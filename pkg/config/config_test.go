package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestFromViperDefaults(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	cfg := fromViper(v)
	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, StoreMemory, cfg.Reminders.Store)
	assert.Equal(t, time.Minute, cfg.Reminders.CacheTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.Reminders.PurgeRetention)
	assert.Equal(t, "@daily", cfg.Reminders.PurgeSchedule)
	assert.Equal(t, 24*time.Hour, cfg.JWT.Expiration)
	assert.Equal(t, 1, cfg.Audit.Workers)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
	assert.Empty(t, cfg.Bootstrap.AdminEmail)
	assert.Equal(t, "Administrator", cfg.Bootstrap.AdminName)
	assert.Empty(t, cfg.Bootstrap.SeedFile)
}

func TestFromViperOverrides(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("REMINDER_STORE", " Postgres ")
	v.Set("REMINDER_CACHE_TTL", "not-a-duration")
	v.Set("ALLOWED_ORIGINS", "https://hub.example.edu, ,https://admin.example.edu")
	v.Set("JWT_EXPIRATION", "2h")

	cfg := fromViper(v)
	assert.Equal(t, StorePostgres, cfg.Reminders.Store)
	assert.Equal(t, time.Minute, cfg.Reminders.CacheTTL)
	assert.Equal(t, []string{"https://hub.example.edu", "https://admin.example.edu"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, 2*time.Hour, cfg.JWT.Expiration)
}

func TestFromViperUnknownStoreFallsBackToMemory(t *testing.T) {
	v := viper.New()
	setDefaults(v)
	v.Set("REMINDER_STORE", "localstorage")

	assert.Equal(t, StoreMemory, fromViper(v).Reminders.Store)
}
