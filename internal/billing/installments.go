package billing

import (
	"fmt"
	"time"

	"github.com/boddenberg/stockledger-go/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RemainderPolicy decides what happens to the cents lost when a total does
// not split evenly.
type RemainderPolicy string

const (
	// RemainderNone keeps every installment at the rounded quotient, so the
	// installments may sum to a few cents more or less than the total.
	RemainderNone RemainderPolicy = "none"
	// RemainderLast truncates every share to cents and makes the last
	// installment absorb the difference.
	RemainderLast RemainderPolicy = "last"
)

// ParseRemainderPolicy maps a config value to a policy. Unknown values are
// reported as an error.
func ParseRemainderPolicy(s string) (RemainderPolicy, error) {
	switch RemainderPolicy(s) {
	case RemainderNone, "":
		return RemainderNone, nil
	case RemainderLast:
		return RemainderLast, nil
	}
	return "", fmt.Errorf("unknown installment remainder policy %q", s)
}

type installmentConfig struct {
	anchorDay int
	seed      string
	remainder RemainderPolicy
}

// InstallmentOption tunes ExpandInstallments.
type InstallmentOption func(*installmentConfig)

// WithAnchorDay sets the day of month every installment cycle is placed on.
// Use the card closing day so a clamped first cycle (Feb 28 for a card
// closing on the 31st) does not drag later cycles to the 28th.
func WithAnchorDay(day int) InstallmentOption {
	return func(c *installmentConfig) { c.anchorDay = day }
}

// WithIntentSeed sets the idempotency seed shared by all installments.
func WithIntentSeed(seed string) InstallmentOption {
	return func(c *installmentConfig) { c.seed = seed }
}

// WithRemainderPolicy picks the rounding remainder policy.
func WithRemainderPolicy(p RemainderPolicy) InstallmentOption {
	return func(c *installmentConfig) { c.remainder = p }
}

// WithRemainderOnLast is WithRemainderPolicy(RemainderLast).
func WithRemainderOnLast() InstallmentOption {
	return WithRemainderPolicy(RemainderLast)
}

// ExpandInstallments splits total into count payments, one per billing cycle
// starting at firstCycleClose.
//
// Each amount is total/count rounded half away from zero to cents. Under
// RemainderLast the shares are truncated to cents instead and the last
// installment takes whatever is left, so no installment is negative.
// Installment k closes k-1 months after the first cycle. When count > 1 the description
// gets a " (Cuota k/count)" suffix. Payment intent ids are "<seed>-<k>".
// The returned payments only carry the billing fields; ids, owner, card and
// purchase references are the caller's to fill in.
func ExpandInstallments(total decimal.Decimal, count int, description string, firstCycleClose time.Time, opts ...InstallmentOption) ([]domain.Payment, error) {
	if count <= 0 {
		return nil, &domain.ErrInvalidArgument{Argument: "installment_count", Message: "must be at least 1"}
	}
	if total.IsNegative() {
		return nil, &domain.ErrInvalidArgument{Argument: "total_amount", Message: "must not be negative"}
	}
	if firstCycleClose.IsZero() {
		return nil, &domain.ErrInvalidArgument{Argument: "first_cycle_close", Message: "must be set"}
	}

	cfg := installmentConfig{
		anchorDay: firstCycleClose.Day(),
		remainder: RemainderNone,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if !domain.ValidDay(cfg.anchorDay) {
		return nil, &domain.ErrInvalidConfiguration{Field: "anchor_day", Value: cfg.anchorDay}
	}
	if cfg.seed == "" {
		cfg.seed = uuid.NewString()
	}

	n := decimal.NewFromInt(int64(count))
	share := total.Div(n).Round(2)
	last := share
	if cfg.remainder == RemainderLast {
		// Truncated shares never sum past total, so last stays >= share.
		share = total.Div(n).RoundDown(2)
		last = total.Sub(share.Mul(decimal.NewFromInt(int64(count - 1))))
	}

	first := DateOnly(firstCycleClose)
	payments := make([]domain.Payment, 0, count)
	for k := 1; k <= count; k++ {
		amount := share
		if k == count {
			amount = last
		}

		cycle := first
		if k > 1 {
			cycle = AddMonthsClamped(first, k-1, cfg.anchorDay)
		}

		desc := description
		if count > 1 {
			desc = fmt.Sprintf("%s (Cuota %d/%d)", description, k, count)
		}

		payments = append(payments, domain.Payment{
			Amount:             amount,
			Description:        desc,
			CycleClose:         &cycle,
			IsInstallment:      count > 1,
			InstallmentCount:   count,
			CurrentInstallment: k,
			PaymentIntentID:    fmt.Sprintf("%s-%d", cfg.seed, k),
		})
	}
	return payments, nil
}
