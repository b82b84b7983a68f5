//nolint:whitespace // can't make both editor and linter happy
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/racesim-engine/pkg/repository/api"
	bobCtx "github.com/mpapenbr/racesim-engine/pkg/repository/bob/context"
)

const tableName = "reward_ledger"

var ErrAlreadyCredited = errors.New("race already credited")

type (
	repo struct {
		conn bob.Executor
	}
	ledgerRow struct {
		RaceID     uuid.UUID
		WinnerID   string
		LoserID    string
		Points     int32
		Tokens     decimal.Decimal
		CreditedAt time.Time
	}
)

var _ api.LedgerRepository = (*repo)(nil)

func NewLedgerRepository(conn bob.Executor) api.LedgerRepository {
	return &repo{
		conn: conn,
	}
}

// Credit books the reward. A second credit for the same race returns ErrAlreadyCredited
// and leaves the first booking untouched.
func (r *repo) Credit(
	ctx context.Context,
	raceID uuid.UUID,
	winnerID, loserID string,
	points int,
	tokens decimal.Decimal,
) error {
	q := psql.Insert(
		im.Into(tableName, "race_id", "winner_id", "loser_id", "points", "tokens"),
		im.Values(psql.Arg(raceID, winnerID, loserID, points, tokens)),
		im.OnConflict("race_id").DoNothing(),
	)
	res, err := bob.Exec(ctx, r.getExecutor(ctx), q)
	if err != nil {
		return fmt.Errorf("credit race %s: %w", raceID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("credit race %s: %w", raceID, ErrAlreadyCredited)
	}
	return nil
}

func (r *repo) LoadByRaceID(ctx context.Context, raceID uuid.UUID) (
	*api.LedgerEntry, error,
) {
	q := psql.Select(
		sm.Columns("race_id", "winner_id", "loser_id", "points", "tokens", "credited_at"),
		sm.From(tableName),
		sm.Where(psql.Quote("race_id").EQ(psql.Arg(raceID))),
	)
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[ledgerRow]())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ledger entry of race %s: %w", raceID, api.ErrNoRows)
		}
		return nil, err
	}
	return &api.LedgerEntry{
		RaceID:     row.RaceID,
		WinnerID:   row.WinnerID,
		LoserID:    row.LoserID,
		Points:     int(row.Points),
		Tokens:     row.Tokens,
		CreditedAt: row.CreditedAt,
	}, nil
}

func (r *repo) Balance(ctx context.Context, playerID string) (decimal.Decimal, error) {
	q := psql.RawQuery(
		`SELECT coalesce(sum(tokens), 0) FROM reward_ledger WHERE winner_id = ?`,
		psql.Arg(playerID))
	ret, err := bob.One(ctx, r.getExecutor(ctx), q, scan.SingleColumnMapper[decimal.Decimal])
	if err != nil {
		return decimal.Zero, err
	}
	return ret, nil
}

func (r *repo) getExecutor(ctx context.Context) bob.Executor {
	return bobCtx.Executor(ctx, r.conn)
}
