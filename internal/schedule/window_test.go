package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func strptr(s string) *string { return &s }

func TestResolveWindowSameDay(t *testing.T) {
	start, end, err := ResolveWindow(day(2025, 1, 10), "14:00", strptr("18:30"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 14, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 10, 18, 30, 0, 0, time.UTC), end)
}

func TestResolveWindowOvernightWrap(t *testing.T) {
	start, end, err := ResolveWindow(day(2025, 1, 10), "22:00", strptr("02:00"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 22, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 11, 2, 0, 0, 0, time.UTC), end)
}

func TestResolveWindowDefaultReturn(t *testing.T) {
	start, end, err := ResolveWindow(day(2025, 1, 10), "22:00", nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 22, 0, 0, 0, time.UTC), start)
	assert.Equal(t, time.Date(2025, 1, 11, 2, 0, 0, 0, time.UTC), end)

	_, endEmpty, err := ResolveWindow(day(2025, 1, 10), "22:00", strptr(""))
	require.NoError(t, err)
	assert.Equal(t, end, endEmpty)
}

func TestResolveWindowInclusiveBounds(t *testing.T) {
	start, end, err := ResolveWindow(day(2025, 1, 10), "22:00", nil)
	require.NoError(t, err)

	assert.True(t, InWindow(time.Date(2025, 1, 11, 1, 59, 0, 0, time.UTC), start, end))
	assert.True(t, InWindow(start, start, end))
	assert.True(t, InWindow(end, start, end))
	assert.False(t, InWindow(time.Date(2025, 1, 11, 2, 1, 0, 0, time.UTC), start, end))
	assert.False(t, InWindow(start.Add(-time.Minute), start, end))
}

func TestResolveWindowRejectsBadClock(t *testing.T) {
	_, _, err := ResolveWindow(day(2025, 1, 10), "25:61", nil)
	require.Error(t, err)

	_, _, err = ResolveWindow(day(2025, 1, 10), "22:00", strptr("nope"))
	require.Error(t, err)
}

func TestTokenExpiryFixedPoint(t *testing.T) {
	// 02:00 next day regardless of the stated return time.
	expiry := TokenExpiry(day(2025, 1, 10))
	assert.Equal(t, time.Date(2025, 1, 11, 2, 0, 0, 0, time.UTC), expiry)
}

func TestExpectedReturnSameDay(t *testing.T) {
	verifiedAt := time.Date(2025, 1, 10, 22, 5, 0, 0, time.UTC)
	expected, err := ExpectedReturn(verifiedAt, strptr("23:00"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 10, 23, 0, 0, 0, time.UTC), expected)
}

func TestExpectedReturnRollsPastMidnight(t *testing.T) {
	verifiedAt := time.Date(2025, 1, 10, 22, 5, 0, 0, time.UTC)
	expected, err := ExpectedReturn(verifiedAt, strptr("01:30"))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 11, 1, 30, 0, 0, time.UTC), expected)

	expectedDefault, err := ExpectedReturn(verifiedAt, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 1, 11, 2, 0, 0, 0, time.UTC), expectedDefault)
}

func TestLateness(t *testing.T) {
	expected := time.Date(2025, 1, 10, 23, 0, 0, 0, time.UTC)

	isLate, minutes := Lateness(time.Date(2025, 1, 10, 23, 47, 0, 0, time.UTC), expected)
	assert.True(t, isLate)
	assert.Equal(t, 47, minutes)

	isLate, minutes = Lateness(time.Date(2025, 1, 10, 22, 50, 0, 0, time.UTC), expected)
	assert.False(t, isLate)
	assert.Equal(t, 0, minutes)

	isLate, minutes = Lateness(expected, expected)
	assert.False(t, isLate)
	assert.Equal(t, 0, minutes)
}

func TestConfigureOverridesCurfewAndTimezone(t *testing.T) {
	require.NoError(t, Configure("23:30", "Asia/Kolkata"))
	t.Cleanup(func() {
		require.NoError(t, Configure(DefaultReturnTime, "UTC"))
	})

	date, err := ParseDate("2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", date.Location().String())

	// nil return time now means the configured curfew, same day
	_, end, err := ResolveWindow(date, "20:00", nil)
	require.NoError(t, err)
	assert.Equal(t, "2025-01-10T23:30:00+05:30", end.Format(time.RFC3339))

	expiry := TokenExpiry(date)
	assert.Equal(t, "2025-01-11T23:30:00+05:30", expiry.Format(time.RFC3339))
}

func TestConfigureRejectsBadSettings(t *testing.T) {
	require.Error(t, Configure("26:00", ""))
	require.Error(t, Configure("", "Mars/Olympus"))

	// failed configure leaves the defaults untouched
	date, err := ParseDate("2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, "UTC", date.Location().String())
}
