package market

import (
	"math/rand"
	"sync"

	"github.com/shopspring/decimal"
)

// Index is a stock exchange index quote.
type Index struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Change   float64 `json:"change"`
	Status   string  `json:"status"`
	Currency string  `json:"currency"`
}

// Performance is the recent behaviour of an investment product.
type Performance struct {
	Name          string  `json:"name"`
	CurrentReturn float64 `json:"currentReturn"`
	Risk          string  `json:"risk"`
	Trend         string  `json:"trend"`
	Volume        int64   `json:"volume"`
}

// Source produces market snapshots.
type Source interface {
	Indices() ([]Index, error)
	Performance() ([]Performance, error)
}

type indexBaseline struct {
	name     string
	value    float64
	spread   float64
	change   float64
	currency string
}

var indexBaselines = []indexBaseline{
	{name: "NGX ASI", value: 104250.5, spread: 1000, change: 5, currency: "NGN"},
	{name: "JSE All Share", value: 78450.2, spread: 800, change: 3, currency: "ZAR"},
	{name: "GSE CI", value: 3245.7, spread: 100, change: 2, currency: "GHS"},
	{name: "NSE 20", value: 1875.3, spread: 50, change: 1.5, currency: "KES"},
}

type productBaseline struct {
	name      string
	ret       float64
	spread    float64
	risk      string
	trendUp   bool
	volume    int64
	volumeMin int64
}

var productBaselines = []productBaseline{
	{name: "Nigerian High-Yield Bonds", ret: 16.2, spread: 2, risk: "Low", trendUp: true, volume: 1000000, volumeMin: 500000},
	{name: "Kenyan Equities Fund", ret: 14.8, spread: 3, risk: "Medium", volume: 750000, volumeMin: 250000},
	{name: "West African Tech Startups", ret: 25.1, spread: 5, risk: "High", trendUp: true, volume: 500000, volumeMin: 100000},
	{name: "South African REITs", ret: 12.4, spread: 2, risk: "Medium", volume: 300000, volumeMin: 150000},
}

// RandomSource jitters fixed baselines.
type RandomSource struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomSource returns a source seeded with seed.
func NewRandomSource(seed int64) *RandomSource {
	return &RandomSource{rnd: rand.New(rand.NewSource(seed))}
}

// jitter returns a value uniformly spread over [-width/2, width/2).
func (s *RandomSource) jitter(width float64) float64 {
	return (s.rnd.Float64() - 0.5) * width
}

func (s *RandomSource) direction() string {
	if s.rnd.Float64() > 0.5 {
		return "up"
	}
	return "down"
}

// Indices returns one quote per tracked exchange.
func (s *RandomSource) Indices() ([]Index, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Index, 0, len(indexBaselines))
	for _, b := range indexBaselines {
		out = append(out, Index{
			Name:     b.name,
			Value:    round2(b.value + s.jitter(b.spread)),
			Change:   round2(s.jitter(b.change)),
			Status:   s.direction(),
			Currency: b.currency,
		})
	}
	return out, nil
}

// Performance returns one entry per tracked product.
func (s *RandomSource) Performance() ([]Performance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Performance, 0, len(productBaselines))
	for _, b := range productBaselines {
		trend := "up"
		if !b.trendUp {
			trend = s.direction()
		}
		out = append(out, Performance{
			Name:          b.name,
			CurrentReturn: round2(b.ret + s.jitter(b.spread)),
			Risk:          b.risk,
			Trend:         trend,
			Volume:        s.rnd.Int63n(b.volume) + b.volumeMin,
		})
	}
	return out, nil
}

// FallbackIndices is served when no snapshot can be generated.
func FallbackIndices() []Index {
	return []Index{
		{Name: "NGX ASI", Value: 104250.5, Change: 1.2, Status: "up", Currency: "NGN"},
		{Name: "JSE All Share", Value: 78450.2, Change: -0.8, Status: "down", Currency: "ZAR"},
	}
}

// FallbackPerformance is served when no snapshot can be generated.
func FallbackPerformance() []Performance {
	out := make([]Performance, 0, len(productBaselines))
	for _, b := range productBaselines {
		out = append(out, Performance{Name: b.name, CurrentReturn: b.ret, Risk: b.risk, Trend: "up", Volume: b.volumeMin})
	}
	return out
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
