package profile

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/benki/benki/internal/userstate"
)

// SchemaVersion is bumped whenever Normalize learns a new default.
const SchemaVersion = 2

// KYCStatus is the identity verification state of a profile.
type KYCStatus string

const (
	KYCPending   KYCStatus = "pending"
	KYCSubmitted KYCStatus = "submitted"
	KYCVerified  KYCStatus = "verified"
	KYCRejected  KYCStatus = "rejected"
)

// Investment is a position held in the user's portfolio.
type Investment struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description,omitempty"`
	InitialAmount decimal.Decimal `json:"initialAmount"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	RiskLevel     string          `json:"riskLevel,omitempty"`
	Yield         string          `json:"yield,omitempty"`
	Currency      string          `json:"currency,omitempty"`
	Goal          string          `json:"goal,omitempty"`
	StartDate     time.Time       `json:"startDate"`
	LastValuedAt  time.Time       `json:"lastValuedAt"`
}

// Profile is the user document stored under user_profile_<id>.
type Profile struct {
	ID                   string `json:"id"`
	Email                string `json:"email"`
	FirstName            string `json:"firstName"`
	LastName             string `json:"lastName"`
	PhoneNumber          string `json:"phoneNumber"`
	DateOfBirth          string `json:"dateOfBirth"`
	Address              string `json:"address"`
	City                 string `json:"city"`
	Country              string `json:"country"`
	ProfileImage         string `json:"profileImage"`
	Bio                  string `json:"bio"`
	Occupation           string `json:"occupation"`
	AnnualIncome         string `json:"annualIncome"`
	InvestmentExperience string `json:"investmentExperience"`
	RiskTolerance        string `json:"riskTolerance"`

	KYCStatus      KYCStatus      `json:"kycStatus"`
	KYCData        map[string]any `json:"kycData"`
	KYCSubmittedAt *time.Time     `json:"kycSubmittedAt,omitempty"`
	KYCVerifiedAt  *time.Time     `json:"kycVerifiedAt,omitempty"`
	KYCReviewNote  string         `json:"kycReviewNote,omitempty"`

	JoinedCircles []string     `json:"joinedCircles"`
	Investments   []Investment `json:"investments"`
	Achievements  []string     `json:"achievements"`

	SchemaVersion int       `json:"schemaVersion"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Key returns the store key of userID's profile.
func Key(userID string) string {
	return userstate.Profile.Key(userID)
}

// Default returns the profile served for a user that has never saved one.
func Default(userID string, now time.Time) Profile {
	p := Profile{ID: userID, CreatedAt: now, UpdatedAt: now}
	Normalize(&p, userID, now)
	return p
}

// Normalize fills every default a stored profile may be missing and reports
// whether anything changed.
func Normalize(p *Profile, userID string, now time.Time) bool {
	changed := false
	if p.ID == "" {
		p.ID = userID
		changed = true
	}
	if p.Email == "" && strings.Contains(userID, "@") {
		p.Email = userID
		changed = true
	}
	if p.KYCStatus == "" {
		p.KYCStatus = KYCPending
		changed = true
	}
	if p.KYCData == nil {
		p.KYCData = map[string]any{}
		changed = true
	}
	if p.JoinedCircles == nil {
		p.JoinedCircles = []string{}
		changed = true
	}
	if p.Investments == nil {
		p.Investments = []Investment{}
		changed = true
	}
	if p.Achievements == nil {
		p.Achievements = []string{}
		changed = true
	}
	for i := range p.Investments {
		inv := &p.Investments[i]
		if inv.LastValuedAt.IsZero() {
			inv.LastValuedAt = inv.StartDate
			changed = true
		}
		if inv.CurrentValue.IsZero() && !inv.InitialAmount.IsZero() {
			inv.CurrentValue = inv.InitialAmount
			changed = true
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
		changed = true
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
		changed = true
	}
	if p.SchemaVersion < SchemaVersion {
		p.SchemaVersion = SchemaVersion
		changed = true
	}
	return changed
}

// HasJoined reports whether circleID is in the profile's joined list.
func (p Profile) HasJoined(circleID string) bool {
	for _, id := range p.JoinedCircles {
		if id == circleID {
			return true
		}
	}
	return false
}
