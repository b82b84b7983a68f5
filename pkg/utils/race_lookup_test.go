package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racesim-engine/pkg/outcome"
)

func TestRaceLookup(t *testing.T) {
	l := NewRaceLookup()
	_, err := l.GetRace("r1")
	assert.ErrorIs(t, err, ErrRaceNotFound)

	first := &RaceData{RaceID: "r1"}
	l.AddRace(first)
	l.AddRace(&RaceData{RaceID: "r1"})
	l.AddRace(&RaceData{RaceID: "r0"})

	got, err := l.GetRace("r1")
	require.NoError(t, err)
	assert.Same(t, first, got)
	assert.Equal(t, []string{"r0", "r1"}, l.GetRaces())

	l.RemoveRace("r1")
	assert.Equal(t, []string{"r0"}, l.GetRaces())
	l.Clear()
	assert.Empty(t, l.GetRaces())
}

func TestRaceData_Outcome(t *testing.T) {
	rd := &RaceData{RaceID: "r1"}
	_, ok := rd.Outcome()
	assert.False(t, ok)
	rd.SetOutcome(outcome.Outcome{WinnerID: "alice", Points: 3})
	got, ok := rd.Outcome()
	assert.True(t, ok)
	assert.Equal(t, "alice", got.WinnerID)
}

func TestSeedFromString(t *testing.T) {
	assert.Equal(t, SeedFromString("race-1"), SeedFromString("race-1"))
	assert.NotEqual(t, SeedFromString("race-1"), SeedFromString("race-2"))
}
