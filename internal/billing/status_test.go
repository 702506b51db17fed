package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDeriveMemberStatus(t *testing.T) {
	cases := []struct {
		name   string
		totals DueTotals
		want   MemberStatus
	}{
		{"all paid", DueTotals{Paid: 12}, MemberActive},
		{"no dues at all", DueTotals{}, MemberActive},
		{"pending only", DueTotals{Pending: 2, Paid: 3}, MemberPending},
		{"overdue wins over pending", DueTotals{Pending: 1, Overdue: 1}, MemberInactive},
		{"frozen wins over everything", DueTotals{Frozen: 1, Overdue: 2, Pending: 3, Paid: 4}, MemberInactive},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, DeriveMemberStatus(tc.totals))
		})
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		in   ClassifierInput
		want string
	}{
		{
			"pending member",
			ClassifierInput{Status: MemberPending},
			LabelPending,
		},
		{
			"active with current month paid",
			ClassifierInput{Status: MemberActive, CurrentMonthPaid: true, LifetimeThreshold: 360},
			LabelRegularActive,
		},
		{
			"active inside first enrollment month",
			ClassifierInput{Status: MemberActive, FirstCoveredMonth: true, LifetimeThreshold: 360},
			LabelRegularActive,
		},
		{
			"active but current month uncovered",
			ClassifierInput{Status: MemberActive, LifetimeThreshold: 360, PaidCount: 10},
			LabelRegularInactive,
		},
		{
			"inactive regular",
			ClassifierInput{Status: MemberInactive, LifetimeThreshold: 360, PaidCount: 10},
			LabelRegularInactive,
		},
		{
			"lifetime by paid count",
			ClassifierInput{Status: MemberActive, LifetimeThreshold: 360, PaidCount: 360},
			LabelLifetimeActive,
		},
		{
			"lifetime by plan with no history",
			ClassifierInput{Status: MemberActive, LifetimePlan: true, LifetimeThreshold: 360},
			LabelLifetimeActive,
		},
		{
			"lifetime member gone inactive",
			ClassifierInput{Status: MemberInactive, LifetimePlan: true, LifetimeThreshold: 360},
			LabelLifetimeInactive,
		},
		{
			"zero threshold disables count-based lifetime",
			ClassifierInput{Status: MemberActive, LifetimeThreshold: 0, PaidCount: 500, CurrentMonthPaid: true},
			LabelRegularActive,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Classify(tc.in))
		})
	}
}

func TestSameCalendarMonth(t *testing.T) {
	require.True(t, SameCalendarMonth(date(2025, time.February, 1), date(2025, time.February, 28)))
	require.False(t, SameCalendarMonth(date(2025, time.February, 28), date(2025, time.March, 1)))
	require.False(t, SameCalendarMonth(date(2024, time.February, 15), date(2025, time.February, 15)))
}
