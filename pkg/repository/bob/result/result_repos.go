//nolint:whitespace // can't make both editor and linter happy
package result

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/racesim-engine/pkg/db/mytypes"
	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/repository/api"
	bobCtx "github.com/mpapenbr/racesim-engine/pkg/repository/bob/context"
)

const tableName = "race_result"

type (
	repo struct {
		conn bob.Executor
	}
	resultRow struct {
		RaceID     uuid.UUID
		WinnerID   string
		Ticks      int32
		TickLog    mytypes.TickLog
		RecordedAt time.Time
	}
)

var _ api.ResultRepository = (*repo)(nil)

func NewResultRepository(conn bob.Executor) api.ResultRepository {
	return &repo{
		conn: conn,
	}
}

// Store persists the final tick log of a race. Storing a race twice is an error.
func (r *repo) Store(
	ctx context.Context,
	raceID uuid.UUID,
	winnerID string,
	tickLog []model.TickLogEntry,
) error {
	q := psql.Insert(
		im.Into(tableName, "race_id", "winner_id", "ticks", "tick_log"),
		im.Values(psql.Arg(raceID, winnerID, len(tickLog), mytypes.TickLog(tickLog))),
	)
	if _, err := bob.Exec(ctx, r.getExecutor(ctx), q); err != nil {
		return fmt.Errorf("store result of race %s: %w", raceID, err)
	}
	return nil
}

func (r *repo) LoadByRaceID(ctx context.Context, raceID uuid.UUID) (
	*api.StoredResult, error,
) {
	q := psql.Select(
		sm.Columns("race_id", "winner_id", "ticks", "tick_log", "recorded_at"),
		sm.From(tableName),
		sm.Where(psql.Quote("race_id").EQ(psql.Arg(raceID))),
	)
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[resultRow]())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("result of race %s: %w", raceID, api.ErrNoRows)
		}
		return nil, err
	}
	return &api.StoredResult{
		RaceID:     row.RaceID,
		WinnerID:   row.WinnerID,
		Ticks:      int(row.Ticks),
		TickLog:    []model.TickLogEntry(row.TickLog),
		RecordedAt: row.RecordedAt,
	}, nil
}

// deletes an entry from the database, returns number of rows deleted.
func (r *repo) DeleteByRaceID(ctx context.Context, raceID uuid.UUID) (int, error) {
	res, err := bob.Exec(ctx, r.getExecutor(ctx), psql.Delete(
		dm.From(tableName),
		dm.Where(psql.Quote("race_id").EQ(psql.Arg(raceID))),
	))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (r *repo) getExecutor(ctx context.Context) bob.Executor {
	return bobCtx.Executor(ctx, r.conn)
}
