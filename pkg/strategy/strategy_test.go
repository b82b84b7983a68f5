//nolint:funlen // ok for tests
package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

func TestReactionDelay(t *testing.T) {
	tests := []struct {
		decision float64
		want     float64
	}{
		{decision: 0, want: 1.2},
		{decision: 50, want: 0.75},
		{decision: 100, want: 0.3},
		{decision: 250, want: 0.3}, // clamped skill
	}
	for _, tt := range tests {
		p := model.NeutralProfile
		p.DecisionMaking = tt.decision
		assert.InDelta(t, tt.want, ReactionDelay(p), 1e-9, "decision %v", tt.decision)
	}
}

// runs Resolve in 0.1 s steps with the selection returned by sel for each step
func drive(s model.CarState, p model.DriverProfile, steps int,
	sel func(i int) model.RacingLine,
) (model.CarState, []model.RacingLine) {
	applied := make([]model.RacingLine, 0, steps)
	for i := 0; i < steps; i++ {
		s = Resolve(s, sel(i), float64(i)/10, p)
		applied = append(applied, s.AppliedLine)
	}
	return s, applied
}

func TestResolve_AppliesAfterDelay(t *testing.T) {
	p := model.NeutralProfile // 0.75 s
	s := model.CarState{AppliedLine: model.LineHold}
	s, applied := drive(s, p, 12, func(int) model.RacingLine { return model.LineAway })
	for i, l := range applied {
		want := model.LineHold
		if float64(i)/10 >= 0.75 {
			want = model.LineAway
		}
		assert.Equal(t, want, l, "step %d", i)
	}
	assert.False(t, s.HasPending())
}

func TestResolve_RevertCancels(t *testing.T) {
	p := model.NeutralProfile
	s := model.CarState{AppliedLine: model.LineHold}
	// request toward for 0.5 s, then go back to hold
	s, applied := drive(s, p, 30, func(i int) model.RacingLine {
		if i < 5 {
			return model.LineToward
		}
		return model.LineHold
	})
	for i, l := range applied {
		assert.Equal(t, model.LineHold, l, "step %d", i)
	}
	assert.False(t, s.HasPending())
}

func TestResolve_ThirdLineRestartsTimer(t *testing.T) {
	p := model.NeutralProfile
	s := model.CarState{AppliedLine: model.LineHold}
	s = Resolve(s, model.LineToward, 0, p)
	assert.InDelta(t, 0.75, s.PendingAt, 1e-9)
	s = Resolve(s, model.LineToward, 0.5, p)
	assert.InDelta(t, 0.75, s.PendingAt, 1e-9, "same selection keeps the timer")
	s = Resolve(s, model.LineAway, 0.6, p)
	assert.Equal(t, model.LineAway, s.PendingLine)
	assert.InDelta(t, 1.35, s.PendingAt, 1e-9)
	s = Resolve(s, model.LineAway, 1.0, p)
	assert.Equal(t, model.LineHold, s.AppliedLine)
	s = Resolve(s, model.LineAway, 1.4, p)
	assert.Equal(t, model.LineAway, s.AppliedLine)
}

func TestResolve_ZeroDelay(t *testing.T) {
	p := model.NeutralProfile
	p.DecisionMaking = 100
	s := Resolve(model.CarState{}, model.LineToward, 3, p)
	assert.Equal(t, model.LineHold, s.AppliedLine, "0.3 s delay still applies")
	s = Resolve(s, model.LineToward, 3.4, p)
	assert.Equal(t, model.LineToward, s.AppliedLine)
}

func TestResolve_InvalidSelection(t *testing.T) {
	s := model.CarState{AppliedLine: model.LineAway, PendingLine: model.LineHold, PendingAt: 10}
	got := Resolve(s, "sideways", 1, model.NeutralProfile)
	assert.Equal(t, model.LineAway, got.AppliedLine)
	assert.False(t, got.HasPending())
}

func TestTargetOffset(t *testing.T) {
	tests := []struct {
		name string
		line model.RacingLine
		opp  float64
		want float64
	}{
		{name: "hold", line: model.LineHold, opp: 0.7, want: 0},
		{name: "toward", line: model.LineToward, opp: -0.4, want: -0.4},
		{name: "away from right", line: model.LineAway, opp: 0.3, want: -0.8},
		{name: "away from left", line: model.LineAway, opp: -0.3, want: 0.8},
		{name: "away from center", line: model.LineAway, opp: 0, want: -0.8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, TargetOffset(tt.line, tt.opp), 1e-12)
		})
	}
}
