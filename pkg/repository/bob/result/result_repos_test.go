//nolint:whitespace // readability
package result_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stephenafamo/bob"
	"gotest.tools/v3/assert"

	"github.com/mpapenbr/racesim-engine/pkg/repository/api"
	"github.com/mpapenbr/racesim-engine/pkg/repository/bob/result"
	base "github.com/mpapenbr/racesim-engine/testsupport/basedata"
	"github.com/mpapenbr/racesim-engine/testsupport/testdb"
)

func setup() api.ResultRepository {
	pool := testdb.InitTestDb()
	return result.NewResultRepository(bob.NewDB(stdlib.OpenDBFromPool(pool)))
}

func TestStoreAndLoad(t *testing.T) {
	r := setup()
	ctx := context.Background()
	raceID := base.SampleRaceID()
	tickLog := base.SampleTickLog(5)

	assert.NilError(t, r.Store(ctx, raceID, base.SamplePlayer, tickLog))

	got, err := r.LoadByRaceID(ctx, raceID)
	assert.NilError(t, err)
	assert.Equal(t, got.RaceID, raceID)
	assert.Equal(t, got.WinnerID, base.SamplePlayer)
	assert.Equal(t, got.Ticks, 5)
	assert.DeepEqual(t, got.TickLog, tickLog)
	assert.Assert(t, !got.RecordedAt.IsZero())
}

func TestStoreTwice(t *testing.T) {
	r := setup()
	ctx := context.Background()
	raceID := base.SampleRaceID()
	assert.NilError(t, r.Store(ctx, raceID, base.SamplePlayer, base.SampleTickLog(1)))
	assert.Assert(t, r.Store(ctx, raceID, base.SampleOpponent, base.SampleTickLog(2)) != nil)

	got, err := r.LoadByRaceID(ctx, raceID)
	assert.NilError(t, err)
	assert.Equal(t, got.WinnerID, base.SamplePlayer)
}

func TestLoadUnknown(t *testing.T) {
	r := setup()
	_, err := r.LoadByRaceID(context.Background(), base.SampleRaceID())
	assert.Assert(t, errors.Is(err, api.ErrNoRows))
}

func TestDeleteByRaceID(t *testing.T) {
	r := setup()
	ctx := context.Background()
	raceID := base.SampleRaceID()
	assert.NilError(t, r.Store(ctx, raceID, base.SamplePlayer, nil))

	num, err := r.DeleteByRaceID(ctx, raceID)
	assert.NilError(t, err)
	assert.Equal(t, num, 1)
}
