package billing

import (
	"sort"
	"time"

	"github.com/boddenberg/stockledger-go/internal/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DueScope says which future cycles count toward a "due" total.
type DueScope string

const (
	// DueNextMonth sums only the nearest future month with card payments.
	DueNextMonth DueScope = "next_month"
	// DueAllFuture sums every future card payment.
	DueAllFuture DueScope = "all_future"
)

// ParseDueScope maps a query value to a scope. Empty means DueNextMonth.
func ParseDueScope(s string) (DueScope, error) {
	switch DueScope(s) {
	case "", DueNextMonth:
		return DueNextMonth, nil
	case DueAllFuture:
		return DueAllFuture, nil
	}
	return "", &domain.ErrValidation{Field: "scope", Message: "must be next_month or all_future"}
}

// SkipFunc is told about every payment dropped for malformed data.
type SkipFunc func(paymentID, reason string)

// Aggregator rolls card payments up by month and card. Rows with malformed
// dates are skipped with a warning instead of failing the whole report.
type Aggregator struct {
	logger *zap.Logger
	onSkip SkipFunc
}

// NewAggregator creates an aggregator. onSkip may be nil.
func NewAggregator(logger *zap.Logger, onSkip SkipFunc) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{logger: logger, onSkip: onSkip}
}

// FilterFuturePayments keeps payments whose cycle closes on or after today,
// comparing calendar dates only. Payments without a cycle (cash, transfer)
// are left out.
func (a *Aggregator) FilterFuturePayments(payments []domain.Payment, today time.Time) []domain.Payment {
	from := calendarDay(today)
	out := make([]domain.Payment, 0, len(payments))
	for _, p := range payments {
		if p.CycleClose == nil {
			continue
		}
		if p.CycleClose.IsZero() {
			a.skip(p.ID, "malformed cycle_close")
			continue
		}
		if !calendarDay(*p.CycleClose).Before(from) {
			out = append(out, p)
		}
	}
	return out
}

// GroupByMonthAndCard groups payments by the month their cycle closes, then
// by card. Months come out in ascending order; cards keep first-seen order
// within a month and payments keep input order within a card. Aliases are
// looked up in cards.
func (a *Aggregator) GroupByMonthAndCard(payments []domain.Payment, cards []domain.Card) []domain.MonthGroup {
	aliases := make(map[string]string, len(cards))
	for _, c := range cards {
		aliases[c.ID] = c.Alias
	}

	type monthAcc struct {
		total decimal.Decimal
		order []string
		cards map[string]*domain.CardGroup
	}
	months := make(map[string]*monthAcc)

	for _, p := range payments {
		if p.CycleClose == nil || p.CycleClose.IsZero() {
			a.skip(p.ID, "missing or malformed cycle_close")
			continue
		}
		if p.CardID == nil || *p.CardID == "" {
			a.logger.Debug("aggregate: payment without card skipped", zap.String("payment_id", p.ID))
			continue
		}

		key := MonthKey(*p.CycleClose)
		m, ok := months[key]
		if !ok {
			m = &monthAcc{total: decimal.Zero, cards: make(map[string]*domain.CardGroup)}
			months[key] = m
		}

		cardID := *p.CardID
		g, ok := m.cards[cardID]
		if !ok {
			g = &domain.CardGroup{
				CardID:    cardID,
				Alias:     aliases[cardID],
				TotalCard: decimal.Zero,
				Payments:  []domain.PaymentDetail{},
			}
			m.cards[cardID] = g
			m.order = append(m.order, cardID)
		}

		g.TotalCard = g.TotalCard.Add(p.Amount)
		g.Payments = append(g.Payments, domain.PaymentDetail{
			ID:          p.ID,
			Description: p.Description,
			Amount:      p.Amount,
		})
		m.total = m.total.Add(p.Amount)
	}

	keys := make([]string, 0, len(months))
	for k := range months {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]domain.MonthGroup, 0, len(keys))
	for _, k := range keys {
		m := months[k]
		groups := make([]domain.CardGroup, 0, len(m.order))
		for _, id := range m.order {
			groups = append(groups, *m.cards[id])
		}
		out = append(out, domain.MonthGroup{
			Month:      k,
			TotalMonth: m.total,
			ByCard:     groups,
		})
	}
	return out
}

// TotalDueNextCycle sums future card payments. With DueNextMonth only the
// earliest future month counts; with DueAllFuture every future month does.
func (a *Aggregator) TotalDueNextCycle(payments []domain.Payment, today time.Time, scope DueScope) decimal.Decimal {
	future := a.FilterFuturePayments(payments, today)

	nearest := ""
	if scope != DueAllFuture {
		for _, p := range future {
			if k := MonthKey(*p.CycleClose); nearest == "" || k < nearest {
				nearest = k
			}
		}
	}

	total := decimal.Zero
	for _, p := range future {
		if nearest != "" && MonthKey(*p.CycleClose) != nearest {
			continue
		}
		total = total.Add(p.Amount)
	}
	return total
}

func (a *Aggregator) skip(paymentID, reason string) {
	a.logger.Warn("aggregate: payment skipped",
		zap.String("payment_id", paymentID),
		zap.String("reason", reason),
	)
	if a.onSkip != nil {
		a.onSkip(paymentID, reason)
	}
}

// calendarDay reduces t to its calendar date in UTC so that dates coming from
// different locations compare by their written day.
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
