// since we want to use convenience methods from testsupport this test has to be moved
// into its own package
// otherwise we end up in import cycles
//
//nolint:whitespace,funlen // readability
package profile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aarondl/opt/omit"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/stephenafamo/bob"
	"gotest.tools/v3/assert"

	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/repository/api"
	"github.com/mpapenbr/racesim-engine/pkg/repository/bob/profile"
	base "github.com/mpapenbr/racesim-engine/testsupport/basedata"
	"github.com/mpapenbr/racesim-engine/testsupport/testdb"
)

func setup() (bob.DB, api.ProfileRepository) {
	pool := testdb.InitTestDb()
	db := bob.NewDB(stdlib.OpenDBFromPool(pool))
	return db, profile.NewProfileRepository(db)
}

func TestLoad(t *testing.T) {
	db, r := setup()
	base.CreateSampleProfile(db)

	got, err := r.Load(context.Background(), base.SamplePlayer)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, base.SampleProfile)

	_, err = r.Load(context.Background(), "unknown")
	assert.Assert(t, errors.Is(err, api.ErrNoRows))
}

func TestUpsert(t *testing.T) {
	_, r := setup()
	ctx := context.Background()

	assert.NilError(t, r.Upsert(ctx, "carol", model.NeutralProfile))
	changed := model.DriverProfile{
		Acceleration: 120, Braking: -5, Cornering: 33.25,
		EnergyRecovery: 50, DecisionMaking: 50, Morale: 10,
	}
	assert.NilError(t, r.Upsert(ctx, "carol", changed))

	got, err := r.Load(ctx, "carol")
	assert.NilError(t, err)
	assert.DeepEqual(t, got, changed.Sanitized())
}

func TestPatch(t *testing.T) {
	db, r := setup()
	ctx := context.Background()
	base.CreateSampleProfile(db)

	err := r.Patch(ctx, base.SamplePlayer, api.ProfilePatch{
		Morale:    omit.From(20.0),
		Cornering: omit.From(150.0),
	})
	assert.NilError(t, err)

	want := base.SampleProfile
	want.Morale = 20
	want.Cornering = 100
	got, err := r.Load(ctx, base.SamplePlayer)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, want)

	err = r.Patch(ctx, "unknown", api.ProfilePatch{Morale: omit.From(1.0)})
	assert.Assert(t, errors.Is(err, api.ErrNoRows))
}

func TestLoadAll(t *testing.T) {
	db, r := setup()
	ctx := context.Background()
	base.CreateSampleProfile(db)
	assert.NilError(t, r.Upsert(ctx, base.SampleOpponent, model.NeutralProfile))

	got, err := r.LoadAll(ctx)
	assert.NilError(t, err)
	assert.DeepEqual(t, got, map[string]model.DriverProfile{
		base.SamplePlayer:   base.SampleProfile,
		base.SampleOpponent: model.NeutralProfile,
	})
}

func TestDeleteByPlayerID(t *testing.T) {
	db, r := setup()
	base.CreateSampleProfile(db)

	num, err := r.DeleteByPlayerID(context.Background(), base.SamplePlayer)
	assert.NilError(t, err)
	assert.Equal(t, num, 1)

	num, err = r.DeleteByPlayerID(context.Background(), base.SamplePlayer)
	assert.NilError(t, err)
	assert.Equal(t, num, 0)
}
