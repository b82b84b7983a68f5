// Package outcome scores a finished race and hands the result to the reward ledger and the
// result store.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/physics"
)

var (
	ErrNotFinished     = errors.New("race not finished")
	ErrAlreadyResolved = errors.New("outcome already resolved")
	ErrUnknownWinner   = errors.New("winner is not part of the race")
)

// RewardLedger credits the reward of a race.
type RewardLedger interface {
	Credit(ctx context.Context, raceID uuid.UUID, winnerID, loserID string,
		points int, tokens decimal.Decimal) error
}

// ResultStore keeps the tick log of a race for replay and leaderboards.
type ResultStore interface {
	Store(ctx context.Context, raceID uuid.UUID, winnerID string,
		tickLog []model.TickLogEntry) error
}

type Outcome struct {
	RaceID     uuid.UUID       `json:"raceId"`
	WinnerID   string          `json:"winnerId"`
	LoserID    string          `json:"loserId"`
	Gap        float64         `json:"gap"` // s
	Points     int             `json:"points"`
	Multiplier int             `json:"multiplier"`
	Tokens     decimal.Decimal `json:"tokens"`
	LedgerErr  error           `json:"-"`
	StoreErr   error           `json:"-"`
}

// Err joins the collaborator errors. The outcome itself stays valid when Err is not nil.
func (o *Outcome) Err() error {
	return errors.Join(o.LedgerErr, o.StoreErr)
}

var thresholds = []struct {
	below  float64
	points int
}{
	{0.2, 1},
	{0.5, 2},
	{1.0, 3},
	{2.0, 4},
}

// Points maps a time gap in seconds to the base point value. Closer finishes score less.
func Points(gap float64) int {
	for _, t := range thresholds {
		if gap < t.below {
			return t.points
		}
	}
	return 5
}

// Compute scores a finished race without calling any collaborator.
func Compute(s model.RaceState, tokensPerPoint decimal.Decimal) (Outcome, error) {
	if !s.Finished {
		return Outcome{}, ErrNotFinished
	}
	wi := s.CarIndex(s.WinnerID)
	if wi < 0 {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownWinner, s.WinnerID)
	}
	w, l := s.Cars[wi], s.Cars[1-wi]
	gap := max(0, w.State.Distance-l.State.Distance) / max(l.State.Speed, physics.MinSpeed)
	o := Outcome{
		RaceID:     s.RaceID,
		WinnerID:   w.PlayerID,
		LoserID:    l.PlayerID,
		Gap:        gap,
		Multiplier: 1,
	}
	if w.Disadvantaged() {
		o.Multiplier = 2
	}
	o.Points = Points(gap) * o.Multiplier
	o.Tokens = tokensPerPoint.Mul(decimal.NewFromInt(int64(o.Points)))
	return o, nil
}

type Option func(*Resolver)

func WithLedger(l RewardLedger) Option {
	return func(r *Resolver) { r.ledger = l }
}

func WithStore(s ResultStore) Option {
	return func(r *Resolver) { r.store = s }
}

func WithTokensPerPoint(d decimal.Decimal) Option {
	return func(r *Resolver) { r.tokensPerPoint = d }
}

func WithLogger(l *log.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// DefaultTokensPerPoint is used unless WithTokensPerPoint says otherwise.
var DefaultTokensPerPoint = decimal.NewFromInt(10)

// Resolver resolves the outcome of one race. Resolve succeeds at most once.
type Resolver struct {
	ledger         RewardLedger
	store          ResultStore
	tokensPerPoint decimal.Decimal
	logger         *log.Logger

	mu       sync.Mutex
	resolved bool
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		tokensPerPoint: DefaultTokensPerPoint,
		logger:         log.Default().Named("outcome"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve scores s and calls the ledger and the store. Collaborator failures are logged and
// reported in the returned Outcome; they are not retried.
func (r *Resolver) Resolve(ctx context.Context, s model.RaceState) (Outcome, error) {
	o, err := Compute(s, r.tokensPerPoint)
	if err != nil {
		return o, err
	}
	r.mu.Lock()
	if r.resolved {
		r.mu.Unlock()
		return o, ErrAlreadyResolved
	}
	r.resolved = true
	r.mu.Unlock()

	r.logger.Info("race outcome",
		log.String("race", o.RaceID.String()),
		log.String("winner", o.WinnerID),
		log.Float64("gap", o.Gap),
		log.Int("points", o.Points),
		log.String("tokens", o.Tokens.String()))

	if r.ledger != nil {
		if o.LedgerErr = r.ledger.Credit(ctx, o.RaceID, o.WinnerID, o.LoserID,
			o.Points, o.Tokens); o.LedgerErr != nil {
			r.logger.Error("crediting reward failed",
				log.String("race", o.RaceID.String()), log.ErrorField(o.LedgerErr))
		}
	}
	if r.store != nil {
		if o.StoreErr = r.store.Store(ctx, o.RaceID, o.WinnerID, s.TickLog); o.StoreErr != nil {
			r.logger.Error("storing result failed",
				log.String("race", o.RaceID.String()), log.ErrorField(o.StoreErr))
		}
	}
	return o, nil
}
