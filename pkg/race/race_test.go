//nolint:funlen // ok for tests
package race

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/scheduler"
	"github.com/mpapenbr/racesim-engine/pkg/track"
)

var testRaceID = uuid.Must(uuid.FromString("3f0e6a52-7c2e-4c55-9e8f-0b1c2d3e4f50"))

func equalPlayers() [2]Player {
	return [2]Player{
		{ID: "alice", Profile: model.NeutralProfile},
		{ID: "bob", Profile: model.NeutralProfile},
	}
}

func runToFinish(t *testing.T, tr *track.Track, s model.RaceState) model.RaceState {
	t.Helper()
	for i := 0; i < 1000 && !s.Finished; i++ {
		s = Advance(tr, s)
	}
	if !s.Finished {
		t.Fatalf("race did not finish")
	}
	return s
}

func frontIdx(s model.RaceState) int {
	if s.Cars[0].GridOffset == model.GridFront {
		return 0
	}
	return 1
}

func TestNew_Grid(t *testing.T) {
	seen := map[int]bool{}
	for seed := uint64(0); seed < 64; seed++ {
		s := New(testRaceID, track.Default(), "alice", equalPlayers(), seed)
		offsets := []float64{s.Cars[0].GridOffset, s.Cars[1].GridOffset}
		assert.ElementsMatch(t, []float64{model.GridFront, model.GridBack}, offsets)
		for _, c := range s.Cars {
			assert.InDelta(t, c.GridOffset, c.State.Distance, 0)
			assert.Equal(t, model.DefaultIntent(c.PlayerID), c.Intent)
		}
		seen[frontIdx(s)] = true

		again := New(testRaceID, track.Default(), "alice", equalPlayers(), seed)
		if diff := cmp.Diff(s, again); diff != "" {
			t.Fatalf("same seed gave a different race: %s", diff)
		}
	}
	assert.Len(t, seen, 2, "both grid assignments should occur")
}

func TestEqualProfiles_GridDecides(t *testing.T) {
	tr := track.Default()
	for seed := uint64(0); seed < 16; seed++ {
		s := runToFinish(t, tr, New(testRaceID, tr, "alice", equalPlayers(), seed))
		front := s.Cars[frontIdx(s)]
		assert.Equal(t, front.PlayerID, s.WinnerID, "seed %d", seed)
		back := s.Cars[1-frontIdx(s)]
		assert.Greater(t, front.State.Distance, back.State.Distance)
	}
}

func TestAdvance_TickLogAndFinish(t *testing.T) {
	tr := track.Default()
	s := New(testRaceID, tr, "alice", equalPlayers(), 7)
	finishedTransitions := 0
	for i := 0; i < 1000; i++ {
		next := Advance(tr, s)
		if next.Finished && !s.Finished {
			finishedTransitions++
			for _, c := range next.Cars {
				assert.Greater(t, c.State.Distance, tr.LapLength())
			}
			w := next.Cars[next.CarIndex(next.WinnerID)]
			l := next.Cars[1-next.CarIndex(next.WinnerID)]
			assert.Greater(t, w.State.Distance, l.State.Distance)
		}
		if !next.Finished {
			assert.Equal(t, s.Tick+1, next.Tick)
			assert.Len(t, next.TickLog, next.Tick)
			assert.Equal(t, next.Tick, next.TickLog[len(next.TickLog)-1].Tick)
			assert.Empty(t, next.WinnerID)
		}
		if s.Finished {
			if diff := cmp.Diff(s, next); diff != "" {
				t.Fatalf("finished state changed: %s", diff)
			}
			break
		}
		s = next
	}
	assert.Equal(t, 1, finishedTransitions)
	assert.Len(t, s.TickLog, s.Tick)
}

func TestAdvance_DoesNotAliasSnapshots(t *testing.T) {
	tr := track.Default()
	s := New(testRaceID, tr, "alice", equalPlayers(), 3)
	for range 5 {
		s = Advance(tr, s)
	}
	a := Advance(tr, s)
	s.Cars[0].Intent.ErsMode = model.ErsOvertake
	b := Advance(tr, s)
	assert.Len(t, s.TickLog, 5)
	assert.Equal(t, model.ErsBalanced, a.TickLog[5].Cars[0].ErsMode)
	assert.Equal(t, model.ErsOvertake, b.TickLog[5].Cars[0].ErsMode)
}

func TestCheckFinish_Tie(t *testing.T) {
	tr := track.Default()
	for _, front := range []int{0, 1} {
		s := New(testRaceID, tr, "alice", equalPlayers(), 1)
		s.Cars[front].GridOffset = model.GridFront
		s.Cars[1-front].GridOffset = model.GridBack
		s.Cars[0].State.Distance = tr.LapLength() + 5
		s.Cars[1].State.Distance = tr.LapLength() + 5
		checkFinish(tr, &s)
		assert.True(t, s.Finished)
		assert.Equal(t, s.Cars[front].PlayerID, s.WinnerID)
	}
}

func TestCheckFinish_OnlyOneAcross(t *testing.T) {
	tr := track.Default()
	s := New(testRaceID, tr, "alice", equalPlayers(), 1)
	s.Cars[0].State.Distance = tr.LapLength() + 100
	s.Cars[1].State.Distance = tr.LapLength()
	checkFinish(tr, &s)
	assert.False(t, s.Finished)
}

func TestApplyIntent(t *testing.T) {
	tests := []struct {
		name    string
		intent  model.StrategyIntent
		finish  bool
		wantErr error
	}{
		{
			name:   "ok",
			intent: model.StrategyIntent{PlayerID: "bob", ErsMode: model.ErsRecharge, RacingLine: model.LineAway},
		},
		{
			name:    "unknown player",
			intent:  model.StrategyIntent{PlayerID: "carol", ErsMode: model.ErsSaving, RacingLine: model.LineHold},
			wantErr: ErrUnknownPlayer,
		},
		{
			name:    "bad mode",
			intent:  model.StrategyIntent{PlayerID: "bob", ErsMode: "turbo", RacingLine: model.LineHold},
			wantErr: ErrInvalidIntent,
		},
		{
			name:    "finished",
			intent:  model.DefaultIntent("bob"),
			finish:  true,
			wantErr: ErrFinished,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(testRaceID, track.Default(), "alice", equalPlayers(), 1)
			s.Finished = tt.finish
			err := ApplyIntent(&s, tt.intent)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.intent, s.Cars[1].Intent)
		})
	}
}

func TestLoop_FinishExactlyOnce(t *testing.T) {
	tr := track.Default()
	sched := scheduler.NewManual()
	var emitted []model.RaceState
	finishCalls := 0
	var final model.RaceState
	l := NewLoop(tr, New(testRaceID, tr, "alice", equalPlayers(), 11),
		WithScheduler(sched),
		WithEmitter(func(_ context.Context, s model.RaceState) { emitted = append(emitted, s) }),
		WithFinish(func(_ context.Context, s model.RaceState) {
			finishCalls++
			final = s
		}),
	)
	l.Start(context.Background())
	assert.Len(t, emitted, 1, "initial snapshot")

	done := func() bool {
		select {
		case <-l.Done():
			return true
		default:
			return false
		}
	}
	for i := 0; i < 1000 && !done(); i++ {
		sched.Advance(time.Second)
	}
	assert.True(t, done())
	// the loop must not tick after the finish
	sched.Advance(10 * time.Second)

	assert.Equal(t, 1, finishCalls)
	assert.Equal(t, 0, sched.Pending())
	finishedSnaps := 0
	for _, s := range emitted {
		if s.Finished {
			finishedSnaps++
		}
	}
	assert.Equal(t, 1, finishedSnaps)
	last := emitted[len(emitted)-1]
	assert.True(t, last.Finished)
	if diff := cmp.Diff(last, final); diff != "" {
		t.Errorf("finish callback got a different state: %s", diff)
	}
	assert.ErrorIs(t, l.SetIntent(model.DefaultIntent("alice")), ErrFinished)
}

func TestLoop_SetIntentAppliesNextTick(t *testing.T) {
	tr := track.Default()
	sched := scheduler.NewManual()
	l := NewLoop(tr, New(testRaceID, tr, "alice", equalPlayers(), 5), WithScheduler(sched))
	l.Start(context.Background())
	sched.Advance(time.Second)
	err := l.SetIntent(model.StrategyIntent{
		PlayerID: "bob", ErsMode: model.ErsRecharge, RacingLine: model.LineHold,
	})
	assert.NoError(t, err)
	sched.Advance(time.Second)
	s := l.Snapshot()
	assert.Equal(t, 2, s.Tick)
	assert.Equal(t, model.ErsBalanced, s.TickLog[0].Cars[1].ErsMode)
	assert.Equal(t, model.ErsRecharge, s.TickLog[1].Cars[1].ErsMode)
	l.Stop()
	sched.Advance(5 * time.Second)
	assert.Equal(t, 2, l.Snapshot().Tick)
}
