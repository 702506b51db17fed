package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseDate(t *testing.T) {
	cases := []struct {
		input string
		want  time.Time
	}{
		{"2025-02-15", date(2025, time.February, 15)},
		{"2025-02-15T10:30:00Z", date(2025, time.February, 15)},
		{"15/02/2025", date(2025, time.February, 15)},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.input)
		require.NoError(t, err, tc.input)
		require.Equal(t, tc.want, got, tc.input)
	}

	_, err := ParseDate("February 15, 2025")
	require.ErrorIs(t, err, ErrValidation)
	_, err = ParseDate("")
	require.ErrorIs(t, err, ErrValidation)
}

func TestAddMonthsClamped(t *testing.T) {
	cases := []struct {
		name   string
		start  time.Time
		months int
		want   time.Time
	}{
		{"plain month", date(2025, time.March, 15), 1, date(2025, time.April, 15)},
		{"jan 31 to feb non-leap", date(2025, time.January, 31), 1, date(2025, time.February, 28)},
		{"jan 31 to feb leap", date(2024, time.January, 31), 1, date(2024, time.February, 29)},
		{"jan 31 to april", date(2025, time.January, 31), 3, date(2025, time.April, 30)},
		{"year rollover", date(2025, time.November, 30), 3, date(2026, time.February, 28)},
		{"many months keeps day", date(2025, time.January, 15), 24, date(2027, time.January, 15)},
		{"zero months", date(2025, time.May, 31), 0, date(2025, time.May, 31)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, AddMonthsClamped(tc.start, tc.months))
		})
	}
}

func TestBuildSchedule(t *testing.T) {
	t.Run("first due falls on the start date", func(t *testing.T) {
		drafts, err := BuildSchedule(7, 3, date(2025, time.February, 15), 3, 5000)
		require.NoError(t, err)
		require.Len(t, drafts, 3)
		require.Equal(t, date(2025, time.February, 15), drafts[0].DueDate)
		require.Equal(t, date(2025, time.March, 15), drafts[1].DueDate)
		require.Equal(t, date(2025, time.April, 15), drafts[2].DueDate)
		for _, d := range drafts {
			require.Equal(t, int64(7), d.EnrollmentID)
			require.Equal(t, int64(3), d.MemberID)
			require.Equal(t, 5000.0, d.Amount)
		}
	})

	t.Run("month-end start clamps the tail", func(t *testing.T) {
		drafts, err := BuildSchedule(1, 1, date(2025, time.January, 31), 4, 5000)
		require.NoError(t, err)
		require.Equal(t, date(2025, time.January, 31), drafts[0].DueDate)
		require.Equal(t, date(2025, time.February, 28), drafts[1].DueDate)
		require.Equal(t, date(2025, time.March, 31), drafts[2].DueDate)
		require.Equal(t, date(2025, time.April, 30), drafts[3].DueDate)
	})

	t.Run("non-positive month count yields empty schedule", func(t *testing.T) {
		drafts, err := BuildSchedule(1, 1, date(2025, time.January, 1), 0, 5000)
		require.NoError(t, err)
		require.Empty(t, drafts)

		drafts, err = BuildSchedule(1, 1, date(2025, time.January, 1), -2, 5000)
		require.NoError(t, err)
		require.Empty(t, drafts)
	})

	t.Run("invalid input", func(t *testing.T) {
		_, err := BuildSchedule(1, 1, time.Time{}, 1, 5000)
		require.ErrorIs(t, err, ErrValidation)

		_, err = BuildSchedule(1, 1, date(2025, time.January, 1), 1, 0)
		require.ErrorIs(t, err, ErrValidation)
	})

	t.Run("time component is stripped", func(t *testing.T) {
		start := time.Date(2025, time.June, 10, 17, 45, 3, 0, time.UTC)
		drafts, err := BuildSchedule(1, 1, start, 2, 100)
		require.NoError(t, err)
		require.Equal(t, date(2025, time.June, 10), drafts[0].DueDate)
		require.Equal(t, date(2025, time.July, 10), drafts[1].DueDate)
	})
}
