package predict

import (
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/race"
	"github.com/mpapenbr/racesim-engine/pkg/scheduler"
	"github.com/mpapenbr/racesim-engine/pkg/track"
)

// midStraight returns a snapshot with both cars well inside the first straight of the default
// lap, far enough apart that neither drafts.
func midStraight(tr *track.Track) model.RaceState {
	s := race.New(uuid.Must(uuid.NewV4()), tr, "alice", [2]race.Player{
		{ID: "alice", Profile: model.NeutralProfile},
		{ID: "bob", Profile: model.NeutralProfile},
	}, 1)
	s.Tick = 20
	s.Clock = 20
	s.Cars[0].State.Distance = 100
	s.Cars[0].State.Speed = 60
	s.Cars[1].State.Distance = 300
	s.Cars[1].State.Speed = 62
	s.Cars[1].State.Lateral = 0.2
	for i := range s.Cars {
		s.Cars[i].State.LastSegmentID = 1
	}
	return s
}

func TestPredictor_ConvergesOnAuthority(t *testing.T) {
	tr := track.Default()
	snap := midStraight(tr)
	authority := race.Advance(tr, snap)

	p := New(tr)
	assert.True(t, p.Reconcile(snap))
	for range Rate {
		p.Tick()
	}
	predicted, ok := p.State()
	assert.True(t, ok)
	for i := range predicted.Cars {
		got, want := predicted.Cars[i].State, authority.Cars[i].State
		assert.InDelta(t, want.Distance, got.Distance, 0.5, "distance car %d", i)
		assert.InDelta(t, want.Speed, got.Speed, 0.2, "speed car %d", i)
		assert.InDelta(t, want.Battery, got.Battery, 10_000, "battery car %d", i)
		assert.InDelta(t, want.Lateral, got.Lateral, 1e-9, "lateral car %d", i)
	}

	assert.True(t, p.Reconcile(authority))
	reconciled, _ := p.State()
	if diff := cmp.Diff(authority, reconciled); diff != "" {
		t.Errorf("reconcile must replace the local state: %s", diff)
	}
}

func TestPredictor_IgnoresStaleSnapshot(t *testing.T) {
	tr := track.Default()
	snap := midStraight(tr)
	newer := race.Advance(tr, snap)
	p := New(tr)
	assert.True(t, p.Reconcile(newer))
	assert.False(t, p.Reconcile(snap))
	got, _ := p.State()
	assert.Equal(t, newer.Tick, got.Tick)
}

func TestPredictor_NoSnapshotNoMotion(t *testing.T) {
	updates := 0
	p := New(track.Default(), WithUpdate(func(model.RaceState) { updates++ }))
	p.Tick()
	_, ok := p.State()
	assert.False(t, ok)
	assert.Zero(t, updates)
}

func TestPredictor_StopsWhenFinished(t *testing.T) {
	tr := track.Default()
	snap := midStraight(tr)
	snap.Finished = true
	snap.WinnerID = "alice"
	p := New(tr)
	p.Reconcile(snap)
	p.Tick()
	got, _ := p.State()
	if diff := cmp.Diff(snap, got); diff != "" {
		t.Errorf("finished state must not be extrapolated: %s", diff)
	}
}

func TestPredictor_LocalIntent(t *testing.T) {
	tr := track.Default()
	p := New(tr)
	p.Reconcile(midStraight(tr))
	p.SetIntent(model.StrategyIntent{
		PlayerID: "alice", ErsMode: model.ErsRecharge, RacingLine: model.LineHold,
	})
	before, _ := p.State()
	p.Tick()
	after, _ := p.State()
	assert.Equal(t, model.ErsRecharge, after.Cars[0].Intent.ErsMode)
	assert.Greater(t, after.Cars[0].State.Battery, before.Cars[0].State.Battery-1e-9)
	assert.Less(t, after.Cars[1].State.Battery, before.Cars[1].State.Battery)
}

func TestPredictor_Run(t *testing.T) {
	tr := track.Default()
	var last model.RaceState
	p := New(tr, WithUpdate(func(s model.RaceState) { last = s }))
	snap := midStraight(tr)
	p.Reconcile(snap)
	sched := scheduler.NewManual()
	task := p.Run(t.Context(), sched)
	sched.Advance(500 * time.Millisecond)
	task.Stop()
	assert.InDelta(t, snap.Clock+0.5, last.Clock, 1e-9)
	assert.Greater(t, last.Cars[0].State.Distance, snap.Cars[0].State.Distance)
}
