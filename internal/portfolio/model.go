package portfolio

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/benki/benki/internal/profile"
)

const (
	// MaxTransactions is how many transactions a user's history keeps.
	MaxTransactions = 200

	TypeFunding    = "funding"
	TypeInvestment = "investment"

	StatusCompleted = "completed"
)

// StartingBalance is credited to every portfolio on top of its investments.
var StartingBalance = decimal.NewFromInt(300)

// Funding methods.
const (
	MethodCard         = "card"
	MethodBankTransfer = "bank_transfer"
	MethodMobileMoney  = "mobile_money"
	MethodUSSD         = "ussd"
)

var methods = map[string]bool{
	MethodCard:         true,
	MethodBankTransfer: true,
	MethodMobileMoney:  true,
	MethodUSSD:         true,
}

var (
	ErrInvalidAmount = errors.New("amount must be positive")
	ErrNameRequired  = errors.New("investment name is required")
	ErrInvalidMethod = errors.New("method must be one of card, bank_transfer, mobile_money, ussd")
	ErrInvalidCard   = errors.New("card number must be 12 to 19 digits")
	ErrInvalidYield  = errors.New("yield must look like 8-16%")
	ErrDeclined      = errors.New("payment declined")
)

// Transaction is one entry of a user's money movement history.
type Transaction struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Name      string          `json:"name,omitempty"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method,omitempty"`
	Reference string          `json:"reference,omitempty"`
	Status    string          `json:"status"`
	Date      time.Time       `json:"date"`
}

// NewInvestment is the input of Invest.
type NewInvestment struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	RiskLevel   string          `json:"riskLevel"`
	Yield       string          `json:"yield"`
	Currency    string          `json:"currency"`
	Goal        string          `json:"goal"`
}

// FundingRequest is the input of Fund.
type FundingRequest struct {
	Amount     decimal.Decimal `json:"amount"`
	Method     string          `json:"method"`
	CardNumber string          `json:"cardNumber,omitempty"`
	Expiry     string          `json:"expiry,omitempty"`
	CVV        string          `json:"cvv,omitempty"`
}

// Summary is the valuation of a user's portfolio.
type Summary struct {
	TotalValue      decimal.Decimal      `json:"totalValue"`
	StartingBalance decimal.Decimal      `json:"startingBalance"`
	InvestedValue   decimal.Decimal      `json:"investedValue"`
	InitialTotal    decimal.Decimal      `json:"initialTotal"`
	GrowthPercent   decimal.Decimal      `json:"growthPercent"`
	Investments     []profile.Investment `json:"investments"`
	ValuedAt        time.Time            `json:"valuedAt"`
}
