package dependr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.June, 15, 10, 30, 0, 0, time.UTC)

func TestParseDate(t *testing.T) {
	for in, want := range map[string]string{
		"today":        "2024-06-15",
		"Today":        "2024-06-15",
		"yesterday":    "2024-06-14",
		"30 days ago":  "2024-05-16",
		"1 day ago":    "2024-06-14",
		"2 weeks ago":  "2024-06-01",
		"2024-01-31":   "2024-01-31",
		"  2024-02-01": "2024-02-01",
		"2024/03/04":   "2024-03-04",
	} {
		got, err := ParseDate(in, testNow)
		require.NoError(t, err, in)
		assert.Equal(t, want, got.Format(DateLayout), in)
	}
}

func TestParseDateErrors(t *testing.T) {
	for _, in := range []string{"", "soon", "x days ago"} {
		_, err := ParseDate(in, testNow)
		assert.Error(t, err, in)
	}
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("30 days ago", "today", testNow)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-16", r.StartDate())
	assert.Equal(t, "2024-06-15", r.EndDate())

	_, err = ParseDateRange("today", "3 days ago", testNow)
	assert.Error(t, err)

	_, err = ParseDateRange("bogus", "today", testNow)
	assert.Error(t, err)
}
