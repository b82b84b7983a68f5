//nolint:whitespace // readability
package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob"
	"gotest.tools/v3/assert"

	"github.com/mpapenbr/racesim-engine/pkg/repository/api"
	bobCtx "github.com/mpapenbr/racesim-engine/pkg/repository/bob/context"
	"github.com/mpapenbr/racesim-engine/testsupport/testdb"
)

func setup() (bob.DB, api.LedgerRepository) {
	pool := testdb.InitTestDb()
	db := bob.NewDB(stdlib.OpenDBFromPool(pool))
	return db, NewLedgerRepository(db)
}

func TestCredit(t *testing.T) {
	_, r := setup()
	ctx := context.Background()
	raceID := uuid.Must(uuid.NewV4())

	assert.NilError(t, r.Credit(ctx, raceID, "alice", "bob", 4, decimal.NewFromInt(40)))
	got, err := r.LoadByRaceID(ctx, raceID)
	assert.NilError(t, err)
	assert.Equal(t, got.WinnerID, "alice")
	assert.Equal(t, got.LoserID, "bob")
	assert.Equal(t, got.Points, 4)
	assert.Assert(t, got.Tokens.Equal(decimal.NewFromInt(40)), got.Tokens.String())

	err = r.Credit(ctx, raceID, "bob", "alice", 1, decimal.NewFromInt(10))
	assert.Assert(t, errors.Is(err, ErrAlreadyCredited))
	got, err = r.LoadByRaceID(ctx, raceID)
	assert.NilError(t, err)
	assert.Equal(t, got.WinnerID, "alice")
}

func TestBalance(t *testing.T) {
	_, r := setup()
	ctx := context.Background()

	bal, err := r.Balance(ctx, "alice")
	assert.NilError(t, err)
	assert.Assert(t, bal.IsZero())

	assert.NilError(t, r.Credit(ctx, uuid.Must(uuid.NewV4()), "alice", "bob", 2,
		decimal.RequireFromString("20.5")))
	assert.NilError(t, r.Credit(ctx, uuid.Must(uuid.NewV4()), "alice", "bob", 10,
		decimal.NewFromInt(100)))
	assert.NilError(t, r.Credit(ctx, uuid.Must(uuid.NewV4()), "bob", "alice", 1,
		decimal.NewFromInt(10)))

	bal, err = r.Balance(ctx, "alice")
	assert.NilError(t, err)
	assert.Assert(t, bal.Equal(decimal.RequireFromString("120.5")), bal.String())
}

func TestCreditWithinRolledBackTx(t *testing.T) {
	db, r := setup()
	raceID := uuid.Must(uuid.NewV4())
	errRollback := errors.New("rollback")

	err := db.RunInTx(context.Background(), nil,
		func(ctx context.Context, e bob.Executor) error {
			ctx = bobCtx.NewContext(ctx, e)
			if err := r.Credit(ctx, raceID, "alice", "bob", 1, decimal.NewFromInt(10)); err != nil {
				return err
			}
			return errRollback
		})
	assert.Assert(t, errors.Is(err, errRollback))

	_, err = r.LoadByRaceID(context.Background(), raceID)
	assert.Assert(t, errors.Is(err, api.ErrNoRows))
}
