package model

import (
	"slices"

	"github.com/gofrs/uuid/v5"
)

const (
	GridFront = 0.0
	GridBack  = -10.0
)

type StrategyIntent struct {
	PlayerID   string     `json:"playerId"`
	ErsMode    ErsMode    `json:"ersMode"`
	RacingLine RacingLine `json:"racingLine"`
}

// DefaultIntent is what a car drives with until its player says otherwise.
func DefaultIntent(playerID string) StrategyIntent {
	return StrategyIntent{PlayerID: playerID, ErsMode: ErsBalanced, RacingLine: LineHold}
}

type CarEntry struct {
	PlayerID   string         `json:"playerId"`
	Profile    DriverProfile  `json:"profile"`
	GridOffset float64        `json:"gridOffset"`
	Intent     StrategyIntent `json:"intent"`
	State      CarState       `json:"state"`
}

func (c CarEntry) Disadvantaged() bool {
	return c.GridOffset < GridFront
}

type TickCar struct {
	Distance  float64    `json:"distance"`
	Speed     float64    `json:"speed"`
	Battery   float64    `json:"battery"`
	Recovered float64    `json:"recovered"`
	Lateral   float64    `json:"lateral"`
	Line      RacingLine `json:"line"`
	ErsMode   ErsMode    `json:"ersMode"`
}

type TickLogEntry struct {
	Tick  int        `json:"tick"`
	Clock float64    `json:"clock"`
	Cars  [2]TickCar `json:"cars"`
}

// RaceState is the canonical state of a race. It is a value type; Clone must be used
// before handing a state to another owner since TickLog is a slice.
type RaceState struct {
	RaceID   uuid.UUID      `json:"raceId"`
	Track    string         `json:"track"`
	Seed     uint64         `json:"seed"`
	Convener string         `json:"convener"`
	Tick     int            `json:"tick"`
	Clock    float64        `json:"clock"`
	Cars     [2]CarEntry    `json:"cars"`
	Finished bool           `json:"finished"`
	WinnerID string         `json:"winnerId,omitempty"`
	TickLog  []TickLogEntry `json:"tickLog"`
}

func (r RaceState) Clone() RaceState {
	r.TickLog = slices.Clone(r.TickLog)
	return r
}

// CarIndex returns the index of the car driven by playerID or -1
func (r *RaceState) CarIndex(playerID string) int {
	for i := range r.Cars {
		if r.Cars[i].PlayerID == playerID {
			return i
		}
	}
	return -1
}

func (r *RaceState) PlayerIDs() []string {
	return []string{r.Cars[0].PlayerID, r.Cars[1].PlayerID}
}
