package strategy

import "github.com/mpapenbr/racesim-engine/pkg/model"

const (
	baseDelay    = 1.2 // s
	maxReduction = 0.9 // s, at decision making 100
	awayOffset   = 0.8
)

// ReactionDelay is the time between a racing line selection and its application.
func ReactionDelay(p model.DriverProfile) float64 {
	return max(0, baseDelay-p.Sanitized().DecisionMaking/100*maxReduction)
}

// Resolve updates the racing line bookkeeping of s for the selection at race clock now.
//
// A selection different from the applied line starts a pending change that takes effect after
// the reaction delay. Selecting another line while a change is pending restarts the timer,
// selecting the applied line again cancels it.
func Resolve(s model.CarState, selected model.RacingLine, now float64, p model.DriverProfile,
) model.CarState {
	if s.AppliedLine == "" {
		s.AppliedLine = model.LineHold
	}
	if !selected.Valid() {
		selected = s.AppliedLine
	}
	switch {
	case selected == s.AppliedLine:
		s.PendingLine, s.PendingAt = "", 0
	case selected != s.PendingLine:
		s.PendingLine = selected
		s.PendingAt = now + ReactionDelay(p)
	}
	if s.HasPending() && now >= s.PendingAt {
		s.AppliedLine = s.PendingLine
		s.PendingLine, s.PendingAt = "", 0
	}
	return s
}

// TargetOffset maps a racing line to a lateral target given the opponent's lateral offset.
// An opponent on the center line counts as being on the right.
func TargetOffset(line model.RacingLine, opponentLateral float64) float64 {
	switch line {
	case model.LineToward:
		return min(1, max(-1, opponentLateral))
	case model.LineAway:
		if opponentLateral < 0 {
			return awayOffset
		}
		return -awayOffset
	default:
		return 0
	}
}
