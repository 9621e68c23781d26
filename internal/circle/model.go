package circle

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/benki/benki/internal/kv"
)

const (
	// CatalogKey holds the list of all circles.
	CatalogKey    = "investment_circles"
	membersPrefix = "circle_members"
	postsPrefix   = "circle_posts"

	// MaxPosts is how many discussion posts a circle keeps.
	MaxPosts = 100
)

var (
	// ErrNotFound is returned for an unknown circle id.
	ErrNotFound = errors.New("circle not found")
	// ErrUserRequired is returned when a membership change names no user.
	ErrUserRequired = errors.New("userId is required")
	// ErrContentRequired is returned for an empty discussion post.
	ErrContentRequired = errors.New("content is required")
)

// Circle is an investment community.
type Circle struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	MemberCount     int             `json:"memberCount"`
	TotalInvestment decimal.Decimal `json:"totalInvestment"`
	AverageReturn   decimal.Decimal `json:"averageReturn"`
	Image           string          `json:"image"`
	Tags            []string        `json:"tags"`
	RiskLevel       string          `json:"riskLevel"`
	MinInvestment   decimal.Decimal `json:"minInvestment"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Member is one entry of a circle's membership list.
type Member struct {
	UserID    string    `json:"userId"`
	UserEmail string    `json:"userEmail,omitempty"`
	JoinedAt  time.Time `json:"joinedAt"`
}

// Post is a discussion message inside a circle.
type Post struct {
	ID        string    `json:"id"`
	CircleID  string    `json:"circleId"`
	UserID    string    `json:"userId"`
	UserEmail string    `json:"userEmail,omitempty"`
	Content   string    `json:"content"`
	Likes     int       `json:"likes"`
	Comments  []string  `json:"comments"`
	CreatedAt time.Time `json:"createdAt"`
}

// MembersKey returns the store key of circleID's member list.
func MembersKey(circleID string) string {
	return kv.Key(membersPrefix, circleID)
}

// PostsKey returns the store key of circleID's discussion.
func PostsKey(circleID string) string {
	return kv.Key(postsPrefix, circleID)
}

// DefaultCatalog returns the circles a fresh deployment starts with.
func DefaultCatalog(now time.Time) []Circle {
	day := 24 * time.Hour
	return []Circle{
		{
			ID:              "tech-africa",
			Name:            "African Tech Investors",
			Description:     "Investing in African technology startups and innovation",
			Category:        "Technology",
			MemberCount:     245,
			TotalInvestment: decimal.NewFromInt(1250000),
			AverageReturn:   decimal.RequireFromString("18.5"),
			Image:           "https://images.unsplash.com/photo-1559526324-593bc073d938?w=300&h=200&fit=crop",
			Tags:            []string{"tech", "startups", "innovation", "africa"},
			RiskLevel:       "High",
			MinInvestment:   decimal.NewFromInt(1000),
			CreatedAt:       now.Add(-30 * day),
		},
		{
			ID:              "bonds-stable",
			Name:            "Stable Bond Investors",
			Description:     "Focus on government and corporate bonds for stable returns",
			Category:        "Fixed Income",
			MemberCount:     892,
			TotalInvestment: decimal.NewFromInt(3450000),
			AverageReturn:   decimal.RequireFromString("12.3"),
			Image:           "https://images.unsplash.com/photo-1554224155-6726b3ff858f?w=300&h=200&fit=crop",
			Tags:            []string{"bonds", "stable", "government", "corporate"},
			RiskLevel:       "Low",
			MinInvestment:   decimal.NewFromInt(500),
			CreatedAt:       now.Add(-90 * day),
		},
		{
			ID:              "real-estate",
			Name:            "African Real Estate",
			Description:     "Real estate investment opportunities across Africa",
			Category:        "Real Estate",
			MemberCount:     456,
			TotalInvestment: decimal.NewFromInt(2100000),
			AverageReturn:   decimal.RequireFromString("15.2"),
			Image:           "https://images.unsplash.com/photo-1560518883-ce09059eeffa?w=300&h=200&fit=crop",
			Tags:            []string{"realestate", "property", "africa", "development"},
			RiskLevel:       "Medium",
			MinInvestment:   decimal.NewFromInt(2000),
			CreatedAt:       now.Add(-60 * day),
		},
		{
			ID:              "green-energy",
			Name:            "Green Energy Africa",
			Description:     "Sustainable energy investments across the continent",
			Category:        "Renewable Energy",
			MemberCount:     178,
			TotalInvestment: decimal.NewFromInt(890000),
			AverageReturn:   decimal.RequireFromString("22.1"),
			Image:           "https://images.unsplash.com/photo-1473341304170-971dccb5ac1e?w=300&h=200&fit=crop",
			Tags:            []string{"solar", "renewable", "sustainable", "climate"},
			RiskLevel:       "Medium",
			MinInvestment:   decimal.NewFromInt(1500),
			CreatedAt:       now.Add(-45 * day),
		},
		{
			ID:              "agriculture",
			Name:            "AgriTech Investors",
			Description:     "Agricultural technology and farming investments",
			Category:        "Agriculture",
			MemberCount:     234,
			TotalInvestment: decimal.NewFromInt(1100000),
			AverageReturn:   decimal.RequireFromString("16.8"),
			Image:           "https://images.unsplash.com/photo-1500937386664-56d1dfef3854?w=300&h=200&fit=crop",
			Tags:            []string{"agriculture", "farming", "agritech", "food"},
			RiskLevel:       "Medium",
			MinInvestment:   decimal.NewFromInt(800),
			CreatedAt:       now.Add(-75 * day),
		},
	}
}

func indexOf(circles []Circle, id string) int {
	for i, c := range circles {
		if c.ID == id {
			return i
		}
	}
	return -1
}
