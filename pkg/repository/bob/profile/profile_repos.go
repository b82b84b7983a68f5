//nolint:whitespace // can't make both editor and linter happy
package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aarondl/opt/omit"
	"github.com/shopspring/decimal"
	"github.com/stephenafamo/bob"
	"github.com/stephenafamo/bob/dialect/psql"
	"github.com/stephenafamo/bob/dialect/psql/dialect"
	"github.com/stephenafamo/bob/dialect/psql/dm"
	"github.com/stephenafamo/bob/dialect/psql/im"
	"github.com/stephenafamo/bob/dialect/psql/sm"
	"github.com/stephenafamo/bob/dialect/psql/um"
	"github.com/stephenafamo/scan"

	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/repository/api"
	bobCtx "github.com/mpapenbr/racesim-engine/pkg/repository/bob/context"
)

const tableName = "driver_profile"

// column names of driver_profile in insert order
var columns = []string{
	"player_id",
	"acceleration",
	"braking",
	"cornering",
	"energy_recovery",
	"decision_making",
	"morale",
}

type (
	repo struct {
		conn bob.Executor
	}
	profileRow struct {
		PlayerID       string
		Acceleration   decimal.Decimal
		Braking        decimal.Decimal
		Cornering      decimal.Decimal
		EnergyRecovery decimal.Decimal
		DecisionMaking decimal.Decimal
		Morale         decimal.Decimal
	}
)

var _ api.ProfileRepository = (*repo)(nil)

func NewProfileRepository(conn bob.Executor) api.ProfileRepository {
	return &repo{
		conn: conn,
	}
}

func (r *repo) Load(ctx context.Context, playerID string) (model.DriverProfile, error) {
	q := psql.Select(
		sm.Columns(columnsAny()...),
		sm.From(tableName),
		sm.Where(psql.Quote("player_id").EQ(psql.Arg(playerID))),
	)
	row, err := bob.One(ctx, r.getExecutor(ctx), q, scan.StructMapper[profileRow]())
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.DriverProfile{}, fmt.Errorf("profile %s: %w", playerID, api.ErrNoRows)
		}
		return model.DriverProfile{}, err
	}
	return row.toModel(), nil
}

func (r *repo) LoadAll(ctx context.Context) (map[string]model.DriverProfile, error) {
	q := psql.Select(
		sm.Columns(columnsAny()...),
		sm.From(tableName),
		sm.OrderBy("player_id").Asc(),
	)
	rows, err := bob.All(ctx, r.getExecutor(ctx), q, scan.StructMapper[profileRow]())
	if err != nil {
		return nil, err
	}
	ret := make(map[string]model.DriverProfile, len(rows))
	for i := range rows {
		ret[rows[i].PlayerID] = rows[i].toModel()
	}
	return ret, nil
}

func (r *repo) Upsert(ctx context.Context, playerID string, p model.DriverProfile) error {
	p = p.Sanitized()
	values := []float64{
		p.Acceleration, p.Braking, p.Cornering,
		p.EnergyRecovery, p.DecisionMaking, p.Morale,
	}
	args := []any{playerID}
	for _, v := range values {
		args = append(args, decimal.NewFromFloat(v))
	}
	sets := []bob.Mod[*dialect.InsertQuery]{
		im.Into(tableName, columns...),
		im.Values(psql.Arg(args...)),
	}
	doUpdate := im.OnConflict("player_id").DoUpdate(
		im.SetCol(columns[1]).To(psql.Arg(args[1])),
		im.SetCol(columns[2]).To(psql.Arg(args[2])),
		im.SetCol(columns[3]).To(psql.Arg(args[3])),
		im.SetCol(columns[4]).To(psql.Arg(args[4])),
		im.SetCol(columns[5]).To(psql.Arg(args[5])),
		im.SetCol(columns[6]).To(psql.Arg(args[6])),
		im.SetCol("updated_at").To(psql.Raw("now()")),
	)
	sets = append(sets, doUpdate)
	_, err := bob.Exec(ctx, r.getExecutor(ctx), psql.Insert(sets...))
	return err
}

func (r *repo) Patch(ctx context.Context, playerID string, patch api.ProfilePatch) error {
	mods := []bob.Mod[*dialect.UpdateQuery]{
		um.Table(tableName),
		um.SetCol("updated_at").To(psql.Raw("now()")),
		um.Where(psql.Quote("player_id").EQ(psql.Arg(playerID))),
	}
	set := func(col string, v omit.Val[float64]) {
		if val, ok := v.Get(); ok {
			clamped := min(100, max(0, val))
			mods = append(mods, um.SetCol(col).To(psql.Arg(decimal.NewFromFloat(clamped))))
		}
	}
	set("acceleration", patch.Acceleration)
	set("braking", patch.Braking)
	set("cornering", patch.Cornering)
	set("energy_recovery", patch.EnergyRecovery)
	set("decision_making", patch.DecisionMaking)
	set("morale", patch.Morale)

	res, err := bob.Exec(ctx, r.getExecutor(ctx), psql.Update(mods...))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("profile %s: %w", playerID, api.ErrNoRows)
	}
	return nil
}

// deletes an entry from the database, returns number of rows deleted.
func (r *repo) DeleteByPlayerID(ctx context.Context, playerID string) (int, error) {
	res, err := bob.Exec(ctx, r.getExecutor(ctx), psql.Delete(
		dm.From(tableName),
		dm.Where(psql.Quote("player_id").EQ(psql.Arg(playerID))),
	))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (p profileRow) toModel() model.DriverProfile {
	return model.DriverProfile{
		Acceleration:   p.Acceleration.InexactFloat64(),
		Braking:        p.Braking.InexactFloat64(),
		Cornering:      p.Cornering.InexactFloat64(),
		EnergyRecovery: p.EnergyRecovery.InexactFloat64(),
		DecisionMaking: p.DecisionMaking.InexactFloat64(),
		Morale:         p.Morale.InexactFloat64(),
	}
}

func columnsAny() []any {
	ret := make([]any, len(columns))
	for i := range columns {
		ret[i] = columns[i]
	}
	return ret
}

func (r *repo) getExecutor(ctx context.Context) bob.Executor {
	return bobCtx.Executor(ctx, r.conn)
}
