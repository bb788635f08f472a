package cycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
	"github.com/ledgerline-io/recon-engine/pkg/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPeriods_MonthlyPreservesAnchorDay(t *testing.T) {
	periods, err := Periods(models.BillingCycleMonthly,
		date(2024, time.March, 15), date(2024, time.December, 31), date(2024, time.June, 1))
	require.NoError(t, err)

	require.Len(t, periods, 3)
	assert.Equal(t, date(2024, time.March, 15), periods[0].Start)
	assert.Equal(t, date(2024, time.April, 15), periods[0].End)
	assert.Equal(t, date(2024, time.April, 15), periods[1].Start)
	assert.Equal(t, date(2024, time.May, 15), periods[1].End)
	assert.Equal(t, date(2024, time.May, 15), periods[2].Start)
	assert.Equal(t, date(2024, time.June, 15), periods[2].End)
}

func TestPeriods_MonthlyClampsToShortMonths(t *testing.T) {
	// A Jan 31 anchor must clamp to Feb 29 in a leap year, then return to
	// the 31st in months that have one.
	periods, err := Periods(models.BillingCycleMonthly,
		date(2024, time.January, 31), date(2024, time.December, 31), date(2024, time.May, 1))
	require.NoError(t, err)

	require.Len(t, periods, 4)
	assert.Equal(t, date(2024, time.February, 29), periods[0].End)
	assert.Equal(t, date(2024, time.March, 31), periods[1].End)
	assert.Equal(t, date(2024, time.April, 30), periods[2].End)
	assert.Equal(t, date(2024, time.May, 31), periods[3].End)
}

func TestPeriods_MonthlyClampsToFeb28NonLeap(t *testing.T) {
	periods, err := Periods(models.BillingCycleMonthly,
		date(2023, time.January, 31), date(2023, time.December, 31), date(2023, time.February, 15))
	require.NoError(t, err)

	require.Len(t, periods, 2)
	assert.Equal(t, date(2023, time.February, 28), periods[0].End)
	assert.Equal(t, date(2023, time.March, 31), periods[1].End)
}

func TestPeriods_LongerCadences(t *testing.T) {
	tests := []struct {
		name       string
		cycle      string
		wantCount  int
		wantSecond time.Time
	}{
		{"quarterly", models.BillingCycleQuarterly, 4, date(2024, time.April, 1)},
		{"semi_annual", models.BillingCycleSemiAnnual, 2, date(2024, time.July, 1)},
		{"annual", models.BillingCycleAnnual, 1, date(2025, time.January, 1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			periods, err := Periods(tt.cycle,
				date(2024, time.January, 1), date(2024, time.December, 31), date(2025, time.June, 1))
			require.NoError(t, err)
			require.Len(t, periods, tt.wantCount)
			assert.Equal(t, date(2024, time.January, 1), periods[0].Start)
			assert.Equal(t, tt.wantSecond, periods[0].End)
		})
	}
}

func TestPeriods_BoundedByAsOf(t *testing.T) {
	// The sweep date cuts the sequence before the contract end does.
	periods, err := Periods(models.BillingCycleMonthly,
		date(2024, time.January, 1), date(2024, time.December, 31), date(2024, time.March, 15))
	require.NoError(t, err)

	require.Len(t, periods, 3)
	assert.Equal(t, date(2024, time.March, 1), periods[2].Start)
}

func TestPeriods_OneTimeSpansWholeContract(t *testing.T) {
	start := date(2024, time.January, 1)
	end := date(2024, time.June, 30)

	periods, err := Periods(models.BillingCycleOneTime, start, end, date(2024, time.March, 1))
	require.NoError(t, err)

	require.Len(t, periods, 1)
	p := periods[0]
	assert.Equal(t, start, p.Start)
	// End date is inside the period, and the period only elapses once the
	// end date has passed.
	assert.True(t, p.Contains(end))
	assert.False(t, p.Elapsed(end))
	assert.True(t, p.Elapsed(date(2024, time.July, 1)))
}

func TestPeriods_EndBeforeStart(t *testing.T) {
	_, err := Periods(models.BillingCycleMonthly,
		date(2024, time.June, 1), date(2024, time.January, 1), date(2024, time.December, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidData)
}

func TestPeriods_EndEqualsStart(t *testing.T) {
	// The validity window is strict: a zero-length contract is malformed
	// even for one_time billing.
	day := date(2024, time.June, 1)
	for _, cycle := range []string{models.BillingCycleMonthly, models.BillingCycleOneTime} {
		_, err := Periods(cycle, day, day, date(2024, time.December, 1))
		assert.ErrorIs(t, err, apperrors.ErrInvalidData, cycle)
	}
}

func TestPeriods_UnknownCycle(t *testing.T) {
	_, err := Periods("fortnightly",
		date(2024, time.January, 1), date(2024, time.December, 31), date(2024, time.June, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidData)
}

func TestPeriods_Deterministic(t *testing.T) {
	first, err := Periods(models.BillingCycleQuarterly,
		date(2024, time.January, 31), date(2025, time.January, 30), date(2024, time.November, 5))
	require.NoError(t, err)
	second, err := Periods(models.BillingCycleQuarterly,
		date(2024, time.January, 31), date(2025, time.January, 30), date(2024, time.November, 5))
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestPeriods_NonOverlappingAndContiguous(t *testing.T) {
	periods, err := Periods(models.BillingCycleMonthly,
		date(2024, time.January, 31), date(2024, time.December, 31), date(2024, time.August, 1))
	require.NoError(t, err)
	require.NotEmpty(t, periods)

	for i := 1; i < len(periods); i++ {
		assert.Equal(t, periods[i-1].End, periods[i].Start)
	}
}

func TestCovering(t *testing.T) {
	periods, err := Periods(models.BillingCycleQuarterly,
		date(2024, time.January, 1), date(2024, time.December, 31), date(2024, time.December, 31))
	require.NoError(t, err)

	p, ok := Covering(periods, date(2024, time.May, 10))
	require.True(t, ok)
	assert.Equal(t, date(2024, time.April, 1), p.Start)

	_, ok = Covering(periods, date(2023, time.December, 31))
	assert.False(t, ok)
}
