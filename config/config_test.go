package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.App.Environment)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 15*time.Second, cfg.App.ShutdownTimeout)
	assert.Equal(t, 7.0, cfg.Grading.PassingAverage)
	assert.Equal(t, 4.0, cfg.Grading.RecoveryFloor)
	assert.Equal(t, 5.0, cfg.Grading.RecoveryPassingAverage)
	assert.False(t, cfg.UsesPostgres())
	assert.False(t, cfg.UploadsEnabled())
	assert.True(t, cfg.Features.IsEnabled(FeatureReportsBatch))
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "test-secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/records")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("STORAGE_S3_BUCKET", "uploads")
	t.Setenv("GRADING_PASSING_AVERAGE", "6")
	t.Setenv("HTTP_TRUSTED_PROXIES", "10.0.0.1,10.0.0.2")
	t.Setenv("FEATURE_REPORTS_SINGLE", "false")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.True(t, cfg.UsesPostgres())
	assert.True(t, cfg.Redis.Disabled)
	assert.True(t, cfg.UploadsEnabled())
	assert.Equal(t, 6.0, cfg.Grading.PassingAverage)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.HTTP.TrustedProxies)
	assert.False(t, cfg.Features.IsEnabled(FeatureReportsSingle))
}

func TestValidate_CollectsErrors(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("AUTH_JWT_SECRET", "short")
	t.Setenv("GRADING_RECOVERY_FLOOR", "8")

	_, err := Parse()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AUTH_JWT_SECRET must be at least 32 characters")
	assert.Contains(t, err.Error(), "DATABASE_URL is required in production")
	assert.Contains(t, err.Error(), "GRADING_* thresholds")
}

func TestFeatureFlags(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.False(t, ff.IsEnabled("unknown"))
	require.NoError(t, ff.Set(FeatureLookupCache, false))
	assert.False(t, ff.IsEnabled(FeatureLookupCache))

	var ffErr *FeatureFlagError
	assert.ErrorAs(t, ff.Set("unknown", true), &ffErr)
	assert.Equal(t, "FEATURE_BATCH_SPREADSHEET_UPLOAD", featureNameToEnvKey(FeatureSpreadsheetUpload))
	assert.Len(t, ff.Names(), 4)
}
