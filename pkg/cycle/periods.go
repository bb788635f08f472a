// Package cycle computes the expected billing periods of a contract.
//
// A period sequence is a pure function of (billing cycle, start date,
// end date, as-of date): the same inputs always produce the same ordered,
// non-overlapping half-open intervals. Months are added calendar-wise so
// the anchor day-of-month of the contract start is preserved; when a
// target month is too short the boundary clamps to its last day.
package cycle

import (
	"fmt"
	"time"

	"github.com/ledgerline-io/recon-engine/pkg/apperrors"
	"github.com/ledgerline-io/recon-engine/pkg/models"
)

// Period is one expected billing interval [Start, End).
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Elapsed reports whether the period has fully passed as of the given date.
func (p Period) Elapsed(asOf time.Time) bool {
	return !p.End.After(asOf)
}

// monthsPerPeriod maps a billing cycle to its calendar length.
// one_time has no fixed length and is handled separately.
func monthsPerPeriod(billingCycle string) (int, bool) {
	switch billingCycle {
	case models.BillingCycleMonthly:
		return 1, true
	case models.BillingCycleQuarterly:
		return 3, true
	case models.BillingCycleSemiAnnual:
		return 6, true
	case models.BillingCycleAnnual:
		return 12, true
	}
	return 0, false
}

// Periods returns the expected billing periods of a contract from its
// start date up to min(end, asOf). The last period may extend naturally
// past that bound; the sequence stops once a period starts beyond it.
//
// one_time contracts yield a single period spanning the whole validity
// window, end date inclusive.
func Periods(billingCycle string, start, end, asOf time.Time) ([]Period, error) {
	if !end.After(start) {
		return nil, fmt.Errorf("%w: contract end %s not after start %s",
			apperrors.ErrInvalidData, end.Format(dateLayout), start.Format(dateLayout))
	}

	if billingCycle == models.BillingCycleOneTime {
		return []Period{{Start: start, End: end.AddDate(0, 0, 1)}}, nil
	}

	step, ok := monthsPerPeriod(billingCycle)
	if !ok {
		return nil, fmt.Errorf("%w: unknown billing cycle %q", apperrors.ErrInvalidData, billingCycle)
	}

	limit := end
	if asOf.Before(limit) {
		limit = asOf
	}

	var periods []Period
	anchorDay := start.Day()
	for i := 0; ; i++ {
		ps := addMonthsClamped(start, i*step, anchorDay)
		if ps.After(limit) {
			break
		}
		pe := addMonthsClamped(start, (i+1)*step, anchorDay)
		periods = append(periods, Period{Start: ps, End: pe})
	}
	return periods, nil
}

// Covering returns the period containing t, if any. Periods are
// non-overlapping, so at most one period can contain a date.
func Covering(periods []Period, t time.Time) (Period, bool) {
	for _, p := range periods {
		if p.Contains(t) {
			return p, true
		}
	}
	return Period{}, false
}

const dateLayout = "2006-01-02"

// addMonthsClamped moves t forward by the given number of calendar months,
// restoring the anchor day-of-month where the target month allows it and
// clamping to the month's last day where it does not. time.Time.AddDate is
// unsuitable here: it normalizes Jan 31 + 1 month to Mar 2/3.
func addMonthsClamped(t time.Time, months, anchorDay int) time.Time {
	firstOfMonth := time.Date(t.Year(), t.Month()+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	day := anchorDay
	if last := daysInMonth(firstOfMonth.Year(), firstOfMonth.Month()); day > last {
		day = last
	}
	return time.Date(firstOfMonth.Year(), firstOfMonth.Month(), day, 0, 0, 0, 0, t.Location())
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
