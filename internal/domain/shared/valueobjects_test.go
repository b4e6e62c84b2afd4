package shared

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBirthday(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	want := time.Date(1990, 5, 10, 0, 0, 0, 0, time.UTC)

	for _, raw := range []string{"10/05/1990", " 1990-05-10 ", "1990-05-10T08:00:00-03:00"} {
		got, err := ParseBirthday(raw, now)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
}

func TestParseBirthday_Rejects(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, raw := range []string{"", "31/02/1990", "05/10/2027", "01/01/1850", "10-05-1990"} {
		_, err := ParseBirthday(raw, now)
		assert.True(t, IsInvalidField(err), raw)
	}
}
