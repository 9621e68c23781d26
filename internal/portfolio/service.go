// Package portfolio records investments and funding and values a user's
// holdings.
package portfolio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/benki/benki/internal/kv"
	"github.com/benki/benki/internal/profile"
	"github.com/benki/benki/internal/userstate"
)

// Service manages a user's investments and money movements.
type Service struct {
	accessor  *userstate.Accessor
	processor Processor
	logger    *slog.Logger
	interval  time.Duration
	now       func() time.Time

	mu   sync.Mutex
	rand *rand.Rand
}

// NewService constructs the portfolio service. interval is the minimum age of
// a valuation before it drifts again.
func NewService(accessor *userstate.Accessor, processor Processor, logger *slog.Logger, interval time.Duration) *Service {
	if processor == nil {
		processor = StaticProcessor{}
	}
	return &Service{
		accessor:  accessor,
		processor: processor,
		logger:    logger,
		interval:  interval,
		now:       func() time.Time { return time.Now().UTC() },
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetClock overrides the time source.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// SetRand overrides the source of simulated returns.
func (s *Service) SetRand(r *rand.Rand) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rand = r
}

func (s *Service) draw() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Float64()
}

func txKey(userID string) string {
	return userstate.Transactions.Key(userID)
}

// Invest adds an investment to the profile and records the matching
// transaction in one atomic update.
func (s *Service) Invest(ctx context.Context, userID string, in NewInvestment) (profile.Investment, error) {
	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return profile.Investment{}, ErrNameRequired
	}
	if !in.Amount.IsPositive() {
		return profile.Investment{}, ErrInvalidAmount
	}
	if _, err := ParseYield(in.Yield); err != nil {
		return profile.Investment{}, err
	}

	var created profile.Investment
	keys := []string{profile.Key(userID), txKey(userID)}
	err := s.accessor.Store().Update(ctx, keys, func(current map[string]json.RawMessage) (map[string]json.RawMessage, error) {
		now := s.now()
		p, err := profile.FromSnapshot(current, userID, now)
		if err != nil {
			return nil, err
		}
		var txs []Transaction
		if _, err := kv.Decode(current, txKey(userID), &txs); err != nil {
			return nil, err
		}

		created = profile.Investment{
			ID:            uuid.NewString(),
			Name:          in.Name,
			Description:   in.Description,
			InitialAmount: in.Amount.Round(2),
			CurrentValue:  in.Amount.Round(2),
			RiskLevel:     in.RiskLevel,
			Yield:         in.Yield,
			Currency:      in.Currency,
			Goal:          in.Goal,
			StartDate:     now,
			LastValuedAt:  now,
		}
		p.Investments = append(p.Investments, created)
		p.UpdatedAt = now
		txs = userstate.PrependCapped(txs, Transaction{
			ID:     uuid.NewString(),
			Type:   TypeInvestment,
			Name:   in.Name,
			Amount: created.InitialAmount,
			Status: StatusCompleted,
			Date:   now,
		}, MaxTransactions)

		next := make(map[string]json.RawMessage, 2)
		if err := kv.Encode(next, profile.Key(userID), p); err != nil {
			return nil, err
		}
		if err := kv.Encode(next, txKey(userID), txs); err != nil {
			return nil, err
		}
		return next, nil
	})
	if err != nil {
		return profile.Investment{}, err
	}
	return created, nil
}

// Fund authorizes a deposit with the processor and records it.
func (s *Service) Fund(ctx context.Context, userID string, req FundingRequest) (Transaction, error) {
	if !req.Amount.IsPositive() {
		return Transaction{}, ErrInvalidAmount
	}
	req.Method = strings.TrimSpace(req.Method)
	if !methods[req.Method] {
		return Transaction{}, ErrInvalidMethod
	}
	if req.Method == MethodCard {
		if err := validateCardNumber(req.CardNumber); err != nil {
			return Transaction{}, err
		}
	}

	auth, err := s.processor.Authorize(ctx, Charge{
		UserID:     userID,
		Method:     req.Method,
		Amount:     req.Amount,
		CardNumber: req.CardNumber,
		Expiry:     req.Expiry,
		CVV:        req.CVV,
	})
	if err != nil {
		return Transaction{}, fmt.Errorf("authorize funding: %w", err)
	}
	if !auth.Approved {
		return Transaction{}, ErrDeclined
	}

	tx := Transaction{
		ID:        uuid.NewString(),
		Type:      TypeFunding,
		Amount:    req.Amount.Round(2),
		Method:    req.Method,
		Reference: auth.Reference,
		Status:    StatusCompleted,
		Date:      s.now(),
	}
	session := userstate.Session{UserID: userID}
	if _, err := userstate.Prepend(ctx, s.accessor, session, userstate.Transactions, tx, MaxTransactions); err != nil {
		return Transaction{}, err
	}
	attrs := []any{slog.String("user_id", userID), slog.String("method", req.Method), slog.String("amount", tx.Amount.String())}
	if req.Method == MethodCard {
		attrs = append(attrs, slog.String("card", maskCard(req.CardNumber)))
	}
	s.logger.Info("funding recorded", attrs...)
	return tx, nil
}

// Transactions returns the user's history, newest first.
func (s *Service) Transactions(ctx context.Context, userID string) ([]Transaction, error) {
	txs, _, err := userstate.Load[[]Transaction](ctx, s.accessor, userstate.Session{UserID: userID}, userstate.Transactions)
	if err != nil {
		return nil, err
	}
	if txs == nil {
		txs = []Transaction{}
	}
	return txs, nil
}

// Value returns the portfolio summary. Investments whose valuation is older
// than the interval are revalued first; the new values and a summary snapshot
// are persisted.
func (s *Service) Value(ctx context.Context, userID string) (Summary, error) {
	key := profile.Key(userID)
	p, found, err := kv.GetJSON[profile.Profile](ctx, s.accessor.Store(), key)
	if err != nil {
		return Summary{}, err
	}
	now := s.now()
	if !found {
		return summarize(nil, now), nil
	}

	profile.Normalize(&p, userID, now)
	if !stale(p.Investments, now, s.interval) {
		return summarize(p.Investments, now), nil
	}

	var summary Summary
	_, err = kv.UpdateJSON(ctx, s.accessor.Store(), key, func(p profile.Profile, found bool) (profile.Profile, error) {
		now := s.now()
		if !found {
			p = profile.Default(userID, now)
		}
		profile.Normalize(&p, userID, now)
		if revalue(p.Investments, now, s.interval, s.draw) {
			p.UpdatedAt = now
		}
		summary = summarize(p.Investments, now)
		return p, nil
	})
	if err != nil {
		return Summary{}, err
	}
	session := userstate.Session{UserID: userID}
	if err := userstate.Save(ctx, s.accessor, session, userstate.Portfolio, summary); err != nil {
		s.logger.Warn("save portfolio snapshot", slog.String("user_id", userID), slog.Any("error", err))
	}
	return summary, nil
}

// Snapshot returns the summary stored at the last revaluation.
func (s *Service) Snapshot(ctx context.Context, userID string) (Summary, bool, error) {
	return userstate.Load[Summary](ctx, s.accessor, userstate.Session{UserID: userID}, userstate.Portfolio)
}
