package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDMY(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Time
		wantErr bool
	}{
		{"valid", "01.01.2022", time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC), false},
		{"leap day", "29.02.2024", time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC), false},
		{"invalid calendar day", "31.02.2023", time.Time{}, true},
		{"non leap year", "29.02.2023", time.Time{}, true},
		{"single digit parts", "1.1.2022", time.Time{}, true},
		{"iso form", "2022-01-01", time.Time{}, true},
		{"header text", "Datum", time.Time{}, true},
		{"empty", "", time.Time{}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseDMY(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNewDateRange(t *testing.T) {
	r, err := NewDateRange("01.01.2022", "31.12.2023")
	require.NoError(t, err)
	assert.Equal(t, []int{2022, 2023}, r.Years())
	assert.Equal(t, "2022-01-01", r.StartISO())
	assert.Equal(t, "2023-12-31", r.EndISO())

	_, err = NewDateRange("02.01.2022", "01.01.2022")
	require.Error(t, err)

	_, err = NewDateRange("bad", "01.01.2022")
	require.ErrorContains(t, err, "start date")

	_, err = NewDateRange("01.01.2022", "bad")
	require.ErrorContains(t, err, "end date")
}

func TestDateRange_SingleYear(t *testing.T) {
	r, err := NewDateRange("05.03.2023", "05.03.2023")
	require.NoError(t, err)
	assert.Equal(t, []int{2023}, r.Years())
	assert.True(t, r.Contains(time.Date(2023, 3, 5, 0, 0, 0, 0, time.UTC)))
}

func TestDateRange_ContainsIsInclusiveByDay(t *testing.T) {
	r, err := NewDateRange("01.01.2022", "31.12.2023")
	require.NoError(t, err)

	assert.True(t, r.Contains(time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, r.Contains(time.Date(2023, 12, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2021, 12, 31, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}
