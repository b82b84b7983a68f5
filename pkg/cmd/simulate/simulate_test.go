package simulate

import (
	"context"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/outcome"
	"github.com/mpapenbr/racesim-engine/pkg/readiness"
	"github.com/mpapenbr/racesim-engine/pkg/track"
)

var simRaceID = uuid.Must(uuid.FromString("7b1d4c1e-0a52-4f3e-9d43-5c1f1a2b3c4d"))

func newSimulation(t *testing.T, scriptA, scriptB string) *simulation {
	t.Helper()
	sim := &simulation{
		track:    track.Default(),
		raceID:   simRaceID,
		players:  [2]string{"alice", "bob"},
		seed:     42,
		resolver: outcome.NewResolver(),
		maxTicks: 5000,
		l:        log.Default().Named("simulate"),
	}
	var err error
	sim.scripts[0], err = parseScript("alice", scriptA)
	require.NoError(t, err)
	sim.scripts[1], err = parseScript("bob", scriptB)
	require.NoError(t, err)
	return sim
}

func TestSimulation_Finishes(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	sim := newSimulation(t, "2:ers overtake;30:ers recharge", "5:line toward;10:ers saving")
	sim.profiles = readiness.Map{"alice": model.NeutralProfile}

	o, final, err := sim.run(ctx)
	require.NoError(t, err)
	assert.True(t, final.Finished)
	assert.Equal(t, final.WinnerID, o.WinnerID)
	assert.Equal(t, simRaceID, o.RaceID)
	assert.Positive(t, o.Points)

	idx := final.CarIndex("bob")
	require.GreaterOrEqual(t, idx, 0)
	assert.Equal(t, model.ErsSaving, final.Cars[idx].Intent.ErsMode)
	assert.Equal(t, model.LineToward, final.Cars[idx].Intent.RacingLine)
	assert.Len(t, final.TickLog, final.Tick)
}

func TestSimulation_Deterministic(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_, first, err := newSimulation(t, "3:ers overtake", "").run(ctx)
	require.NoError(t, err)
	_, second, err := newSimulation(t, "3:ers overtake", "").run(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("simulation not deterministic (-first +second):\n%s", diff)
	}
}
