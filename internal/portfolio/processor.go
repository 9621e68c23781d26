package portfolio

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Charge is a funding request sent to the payment processor.
type Charge struct {
	UserID     string
	Method     string
	Amount     decimal.Decimal
	CardNumber string
	Expiry     string
	CVV        string
}

// Authorization is the processor's answer to a charge.
type Authorization struct {
	Reference string
	Approved  bool
}

// Processor connects to the rail that moves the money in.
type Processor interface {
	Authorize(ctx context.Context, charge Charge) (Authorization, error)
}

// StaticProcessor approves every charge with a synthetic reference.
type StaticProcessor struct{}

// Authorize approves the charge.
func (StaticProcessor) Authorize(_ context.Context, _ Charge) (Authorization, error) {
	return Authorization{Reference: uuid.NewString(), Approved: true}, nil
}

func validateCardNumber(card string) error {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) < 12 || len(digits) > 19 {
		return ErrInvalidCard
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return ErrInvalidCard
		}
	}
	return nil
}

// maskCard keeps the last four digits.
func maskCard(card string) string {
	digits := strings.ReplaceAll(card, " ", "")
	if len(digits) <= 4 {
		return digits
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}
