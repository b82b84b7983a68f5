package utils

import (
	"errors"
	"slices"
	"sync"

	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/outcome"
	"github.com/mpapenbr/racesim-engine/pkg/utils/broadcast"
)

var ErrRaceNotFound = errors.New("race not found")

// RaceData holds what the API needs to know about a race hosted by this process.
type RaceData struct {
	RaceID string
	// Snapshot returns the current canonical state
	Snapshot func() model.RaceState
	// Snapshots fans out every emitted snapshot, may be nil
	Snapshots broadcast.BroadcastServer[model.RaceState]

	mu      sync.Mutex
	outcome *outcome.Outcome
}

func (r *RaceData) SetOutcome(o outcome.Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcome = &o
}

func (r *RaceData) Outcome() (outcome.Outcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcome == nil {
		return outcome.Outcome{}, false
	}
	return *r.outcome, true
}

type RaceLookup struct {
	mu     sync.RWMutex
	lookup map[string]*RaceData
}

func NewRaceLookup() *RaceLookup {
	return &RaceLookup{
		lookup: make(map[string]*RaceData),
	}
}

// AddRace registers a race. An already registered race is kept.
func (e *RaceLookup) AddRace(data *RaceData) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.lookup[data.RaceID]; ok {
		return
	}
	e.lookup[data.RaceID] = data
}

func (e *RaceLookup) GetRace(raceID string) (*RaceData, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if ret, ok := e.lookup[raceID]; ok {
		return ret, nil
	}
	return nil, ErrRaceNotFound
}

func (e *RaceLookup) RemoveRace(raceID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.lookup, raceID)
}

func (e *RaceLookup) GetRaces() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ret := make([]string, 0, len(e.lookup))
	for k := range e.lookup {
		ret = append(ret, k)
	}
	slices.Sort(ret)
	return ret
}

func (e *RaceLookup) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lookup = make(map[string]*RaceData)
}
