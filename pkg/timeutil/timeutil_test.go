package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatBR(t *testing.T) {
	utc := time.Date(2025, 3, 17, 14, 5, 0, 0, time.UTC)
	assert.Equal(t, "17/03/2025 às 11:05", FormatBR(utc))
}

func TestFormatBR_CrossesMidnight(t *testing.T) {
	utc := time.Date(2025, 3, 18, 1, 30, 0, 0, time.UTC)
	assert.Equal(t, "17/03/2025 às 22:30", FormatBR(utc))
	assert.Equal(t, "17/03/2025", FormatDateBR(utc))
}

func TestParseDateBR(t *testing.T) {
	got, err := ParseDateBR("05/12/2024")
	require.NoError(t, err)
	assert.Equal(t, Date(2024, 12, 5), got)

	_, err = ParseDateBR("2024-12-05")
	assert.Error(t, err)
}

func TestStartAndEndOfDay(t *testing.T) {
	ts := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC) // 31/05 23:00 in São Paulo
	assert.Equal(t, Date(2025, 5, 31), StartOfDay(ts))
	assert.Equal(t, Date(2025, 6, 1).Add(-time.Nanosecond), EndOfDay(ts))
}
