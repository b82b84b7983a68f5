// Package race holds the authoritative race simulation. Advance is the pure tick function,
// Loop drives it on a scheduler and publishes every resulting snapshot.
package race

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/gofrs/uuid/v5"

	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/physics"
	"github.com/mpapenbr/racesim-engine/pkg/strategy"
	"github.com/mpapenbr/racesim-engine/pkg/track"
)

const (
	TickLength = 1.0 // s of race time per authoritative tick
	SubSteps   = 10
)

var (
	ErrFinished      = errors.New("race already finished")
	ErrUnknownPlayer = errors.New("player not part of race")
	ErrInvalidIntent = errors.New("invalid strategy intent")
)

type Player struct {
	ID      string
	Profile model.DriverProfile
}

// New creates the initial state of a race. The seed decides the grid and feeds the
// driver error rolls; the same seed always gives the same race.
func New(raceID uuid.UUID, t *track.Track, convener string, players [2]Player, seed uint64,
) model.RaceState {
	rnd := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	front := rnd.IntN(2)
	s := model.RaceState{
		RaceID:   raceID,
		Track:    t.Name(),
		Seed:     seed,
		Convener: convener,
	}
	for i, p := range players {
		offset := model.GridBack
		if i == front {
			offset = model.GridFront
		}
		s.Cars[i] = model.CarEntry{
			PlayerID:   p.ID,
			Profile:    p.Profile.Sanitized(),
			GridOffset: offset,
			Intent:     model.DefaultIntent(p.ID),
			State: model.CarState{
				Battery:     physics.MaxBattery,
				Distance:    offset,
				AppliedLine: model.LineHold,
			},
		}
	}
	return s
}

// ApplyIntent stores the live selection of a player in s.
func ApplyIntent(s *model.RaceState, intent model.StrategyIntent) error {
	if s.Finished {
		return ErrFinished
	}
	if !intent.ErsMode.Valid() || !intent.RacingLine.Valid() {
		return fmt.Errorf("%w: %+v", ErrInvalidIntent, intent)
	}
	idx := s.CarIndex(intent.PlayerID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, intent.PlayerID)
	}
	s.Cars[idx].Intent = intent
	return nil
}

// StepCars advances both cars by dt. Both next states are computed from the same previous
// pair so neither car sees the other's half updated state.
func StepCars(t *track.Track, s model.RaceState, dt float64) model.RaceState {
	prev := [2]model.CarState{s.Cars[0].State, s.Cars[1].State}
	for i := range s.Cars {
		opp := prev[1-i]
		c := &s.Cars[i]
		own := strategy.Resolve(prev[i], c.Intent.RacingLine, s.Clock, c.Profile)
		pos := t.Locate(own.Distance)
		c.State = physics.Step(physics.StepInput{
			Dt:            dt,
			Own:           own,
			Opponent:      opp,
			Gap:           t.SignedGap(own.Distance, opp.Distance),
			Segment:       pos.Current,
			Next:          pos.Next,
			InSegment:     pos.InSegment,
			Profile:       c.Profile,
			Ers:           c.Intent.ErsMode,
			TargetLateral: strategy.TargetOffset(own.AppliedLine, opp.Lateral),
			Seed:          s.Seed + uint64(i),
		})
	}
	s.Clock += dt
	return s
}

// Advance runs one authoritative tick: SubSteps physics steps, finish check and tick log entry.
// A finished state is returned unchanged.
func Advance(t *track.Track, s model.RaceState) model.RaceState {
	if s.Finished {
		return s
	}
	dt := TickLength / SubSteps
	for range SubSteps {
		s = StepCars(t, s, dt)
	}
	s.Tick++
	s.Clock = float64(s.Tick) * TickLength
	checkFinish(t, &s)
	// clip so that snapshots handed out earlier never share the appended entry
	s.TickLog = append(slices.Clip(s.TickLog), logEntry(&s))
	return s
}

// checkFinish declares the race finished once both cars completed the lap.
// The car with more distance wins, an exact tie goes to the car from the front grid slot.
func checkFinish(t *track.Track, s *model.RaceState) {
	lap := t.LapLength()
	a, b := &s.Cars[0], &s.Cars[1]
	if a.State.Distance <= lap || b.State.Distance <= lap {
		return
	}
	s.Finished = true
	switch {
	case a.State.Distance > b.State.Distance:
		s.WinnerID = a.PlayerID
	case b.State.Distance > a.State.Distance:
		s.WinnerID = b.PlayerID
	case b.Disadvantaged():
		s.WinnerID = a.PlayerID
	default:
		s.WinnerID = b.PlayerID
	}
}

func logEntry(s *model.RaceState) model.TickLogEntry {
	e := model.TickLogEntry{Tick: s.Tick, Clock: s.Clock}
	for i, c := range s.Cars {
		e.Cars[i] = model.TickCar{
			Distance:  c.State.Distance,
			Speed:     c.State.Speed,
			Battery:   c.State.Battery,
			Recovered: c.State.Recovered,
			Lateral:   c.State.Lateral,
			Line:      c.State.AppliedLine,
			ErsMode:   c.Intent.ErsMode,
		}
	}
	return e
}
