package api

import (
	"context"
	"errors"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

var ErrNoRows = errors.New("no rows in result set")

type Repositories interface {
	Profile() ProfileRepository
	Result() ResultRepository
	Ledger() LedgerRepository
}

type (
	// ProfilePatch carries the profile values to change. Omitted values are kept.
	ProfilePatch struct {
		Acceleration   omit.Val[float64]
		Braking        omit.Val[float64]
		Cornering      omit.Val[float64]
		EnergyRecovery omit.Val[float64]
		DecisionMaking omit.Val[float64]
		Morale         omit.Val[float64]
	}

	StoredResult struct {
		RaceID     uuid.UUID
		WinnerID   string
		Ticks      int
		TickLog    []model.TickLogEntry
		RecordedAt time.Time
	}

	LedgerEntry struct {
		RaceID     uuid.UUID
		WinnerID   string
		LoserID    string
		Points     int
		Tokens     decimal.Decimal
		CreditedAt time.Time
	}
)

type ProfileRepository interface {
	Load(ctx context.Context, playerID string) (model.DriverProfile, error)
	LoadAll(ctx context.Context) (map[string]model.DriverProfile, error)
	Upsert(ctx context.Context, playerID string, p model.DriverProfile) error
	// Patch changes the given values of an existing profile. Returns ErrNoRows if the
	// profile does not exist.
	Patch(ctx context.Context, playerID string, patch ProfilePatch) error
	DeleteByPlayerID(ctx context.Context, playerID string) (int, error)
}

type ResultRepository interface {
	Store(ctx context.Context, raceID uuid.UUID, winnerID string,
		tickLog []model.TickLogEntry) error
	LoadByRaceID(ctx context.Context, raceID uuid.UUID) (*StoredResult, error)
	DeleteByRaceID(ctx context.Context, raceID uuid.UUID) (int, error)
}

type LedgerRepository interface {
	// Credit books the reward of a race. A race is credited at most once.
	Credit(ctx context.Context, raceID uuid.UUID, winnerID, loserID string,
		points int, tokens decimal.Decimal) error
	LoadByRaceID(ctx context.Context, raceID uuid.UUID) (*LedgerEntry, error)
	// Balance sums the tokens won by a player.
	Balance(ctx context.Context, playerID string) (decimal.Decimal, error)
}

type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
