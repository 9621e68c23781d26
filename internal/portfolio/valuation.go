package portfolio

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/benki/benki/internal/profile"
)

var (
	hundred      = decimal.NewFromInt(100)
	hoursPerYear = decimal.NewFromInt(365 * 24)
)

// YieldRange is an annual return band in percent.
type YieldRange struct {
	Low  decimal.Decimal
	High decimal.Decimal
}

// ParseYield reads "8-16%", "12%" or "12.5". An empty string is a zero range.
func ParseYield(s string) (YieldRange, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "%"))
	if s == "" {
		return YieldRange{}, nil
	}
	lowText, highText, isRange := strings.Cut(s, "-")
	if !isRange {
		highText = lowText
	}
	low, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(lowText, "%")))
	if err != nil {
		return YieldRange{}, ErrInvalidYield
	}
	high, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(highText, "%")))
	if err != nil {
		return YieldRange{}, ErrInvalidYield
	}
	if high.LessThan(low) {
		low, high = high, low
	}
	return YieldRange{Low: low, High: high}, nil
}

// Pick returns the rate at fraction f (0..1) of the way through the range.
func (y YieldRange) Pick(f float64) decimal.Decimal {
	return y.Low.Add(y.High.Sub(y.Low).Mul(decimal.NewFromFloat(f)))
}

// stale reports whether any investment is due for revaluation.
func stale(investments []profile.Investment, now time.Time, interval time.Duration) bool {
	for _, inv := range investments {
		last := inv.LastValuedAt
		if last.IsZero() {
			last = inv.StartDate
		}
		if elapsed := now.Sub(last); elapsed > 0 && elapsed >= interval {
			return true
		}
	}
	return false
}

// revalue drifts every investment last valued more than interval ago by an
// annual rate drawn from its yield range, pro-rated for the elapsed time. It
// reports whether any value changed.
func revalue(investments []profile.Investment, now time.Time, interval time.Duration, draw func() float64) bool {
	changed := false
	for i := range investments {
		inv := &investments[i]
		if inv.LastValuedAt.IsZero() {
			inv.LastValuedAt = inv.StartDate
		}
		elapsed := now.Sub(inv.LastValuedAt)
		if elapsed < interval || elapsed <= 0 {
			continue
		}
		yr, err := ParseYield(inv.Yield)
		if err != nil {
			yr = YieldRange{}
		}
		rate := yr.Pick(draw()).Div(hundred)
		fraction := decimal.NewFromFloat(elapsed.Hours()).Div(hoursPerYear)
		inv.CurrentValue = inv.CurrentValue.Mul(decimal.NewFromInt(1).Add(rate.Mul(fraction))).Round(2)
		inv.LastValuedAt = now
		changed = true
	}
	return changed
}

// summarize totals the portfolio.
func summarize(investments []profile.Investment, now time.Time) Summary {
	invested := decimal.Zero
	initial := decimal.Zero
	for _, inv := range investments {
		invested = invested.Add(inv.CurrentValue)
		initial = initial.Add(inv.InitialAmount)
	}
	growth := decimal.Zero
	if initial.IsPositive() {
		growth = invested.Div(initial).Sub(decimal.NewFromInt(1)).Mul(hundred).Round(2)
	}
	if investments == nil {
		investments = []profile.Investment{}
	}
	return Summary{
		TotalValue:      invested.Add(StartingBalance).Round(2),
		StartingBalance: StartingBalance,
		InvestedValue:   invested.Round(2),
		InitialTotal:    initial.Round(2),
		GrowthPercent:   growth,
		Investments:     investments,
		ValuedAt:        now,
	}
}
