package basedata

import (
	"context"
	"log"

	"github.com/gofrs/uuid/v5"
	"github.com/stephenafamo/bob"

	"github.com/mpapenbr/racesim-engine/pkg/model"
	"github.com/mpapenbr/racesim-engine/pkg/repository/bob/profile"
)

const (
	SamplePlayer   = "alice"
	SampleOpponent = "bob"
)

var SampleProfile = model.DriverProfile{
	Acceleration:   70,
	Braking:        60,
	Cornering:      55,
	EnergyRecovery: 80,
	DecisionMaking: 45,
	Morale:         90,
}

func SampleRaceID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

// SampleTickLog returns a short log where the sample player leads from the start.
func SampleTickLog(ticks int) []model.TickLogEntry {
	ret := make([]model.TickLogEntry, 0, ticks)
	for i := 1; i <= ticks; i++ {
		ret = append(ret, model.TickLogEntry{
			Tick:  i,
			Clock: float64(i),
			Cars: [2]model.TickCar{
				{
					Distance: float64(i) * 60, Speed: 60, Battery: 4e6,
					Line: model.LineHold, ErsMode: model.ErsBalanced,
				},
				{
					Distance: float64(i)*58 - 10, Speed: 58, Battery: 3.9e6,
					Lateral: -0.2, Line: model.LineAway, ErsMode: model.ErsSaving,
				},
			},
		})
	}
	return ret
}

func CreateSampleProfile(db bob.Executor) model.DriverProfile {
	r := profile.NewProfileRepository(db)
	if err := r.Upsert(context.Background(), SamplePlayer, SampleProfile); err != nil {
		log.Fatalf("CreateSampleProfile: %v\n", err)
	}
	return SampleProfile
}
