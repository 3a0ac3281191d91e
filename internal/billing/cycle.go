// Package billing holds the card billing arithmetic: which monthly cycle a
// purchase lands in, how a purchase splits into installments (cuotas), and
// how future card payments roll up by month and card.
//
// Everything here is a pure function of its arguments. Callers pass the
// current date explicitly.
package billing

import (
	"time"

	"github.com/boddenberg/stockledger-go/internal/domain"
)

// MonthKeyLayout formats the month a cycle closes in ("YYYY-MM").
const MonthKeyLayout = "2006-01"

// DateLayout is the calendar date layout used on the wire.
const DateLayout = "2006-01-02"

// ResolveCycleClose returns the cutoff date of the billing cycle a purchase
// made on purchaseDate belongs to, for a card closing on closingDay.
//
// A purchase made on the cutoff day itself still belongs to that cycle; only
// purchases strictly after it roll into the next one. Closing days that do
// not exist in a month (31 in April, 30 in February) are clamped to the last
// day of that month.
func ResolveCycleClose(purchaseDate time.Time, closingDay int) (time.Time, error) {
	if !domain.ValidDay(closingDay) {
		return time.Time{}, &domain.ErrInvalidConfiguration{Field: "closing_day", Value: closingDay}
	}
	if purchaseDate.IsZero() {
		return time.Time{}, &domain.ErrInvalidArgument{Argument: "purchase_date", Message: "must be set"}
	}

	day := DateOnly(purchaseDate)
	cutoff := clampedDate(day.Year(), day.Month(), closingDay, day.Location())
	if day.After(cutoff) {
		return AddMonthsClamped(cutoff, 1, closingDay), nil
	}
	return cutoff, nil
}

// DueDate returns the payment due date for a cycle closing on cycleClose.
// A due day after the closing day falls in the same month, otherwise in the
// following one.
func DueDate(cycleClose time.Time, dueDay int) (time.Time, error) {
	if !domain.ValidDay(dueDay) {
		return time.Time{}, &domain.ErrInvalidConfiguration{Field: "due_day", Value: dueDay}
	}
	if dueDay > cycleClose.Day() {
		return clampedDate(cycleClose.Year(), cycleClose.Month(), dueDay, cycleClose.Location()), nil
	}
	return AddMonthsClamped(cycleClose, 1, dueDay), nil
}

// AddMonthsClamped moves t by months calendar months and places it on day,
// clamped to the length of the target month. Unlike time.AddDate it never
// spills into the month after.
func AddMonthsClamped(t time.Time, months, day int) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	return clampedDate(first.Year(), first.Month(), day, t.Location())
}

// DateOnly drops the time of day, keeping the location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MonthKey returns the "YYYY-MM" key for t.
func MonthKey(t time.Time) string {
	return t.Format(MonthKeyLayout)
}

func clampedDate(year int, month time.Month, day int, loc *time.Location) time.Time {
	if last := lastDayOfMonth(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}

func lastDayOfMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
