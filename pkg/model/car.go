package model

import "fmt"

type (
	ErsMode     string
	RacingLine  string
	LateralLock int
)

const (
	ErsBalanced ErsMode = "balanced"
	ErsOvertake ErsMode = "overtake"
	ErsSaving   ErsMode = "saving"
	ErsRecharge ErsMode = "recharge"
)

const (
	LineHold   RacingLine = "hold"
	LineToward RacingLine = "toward"
	LineAway   RacingLine = "away"
)

// LateralLock is the one-shot commitment of a car inside a segment.
// The first lateral move in a segment blocks the opposite direction;
// entering a new segment resets the lock to LockFree.
const (
	LockFree LateralLock = iota
	LockBlockedLeft
	LockBlockedRight
)

var (
	ErsModes    = []ErsMode{ErsBalanced, ErsOvertake, ErsSaving, ErsRecharge}
	RacingLines = []RacingLine{LineHold, LineToward, LineAway}
)

func (m ErsMode) Valid() bool {
	switch m {
	case ErsBalanced, ErsOvertake, ErsSaving, ErsRecharge:
		return true
	}
	return false
}

func (l RacingLine) Valid() bool {
	switch l {
	case LineHold, LineToward, LineAway:
		return true
	}
	return false
}

func ParseErsMode(s string) (ErsMode, error) {
	if m := ErsMode(s); m.Valid() {
		return m, nil
	}
	return "", fmt.Errorf("unknown ers mode %q", s)
}

func ParseRacingLine(s string) (RacingLine, error) {
	if l := RacingLine(s); l.Valid() {
		return l, nil
	}
	return "", fmt.Errorf("unknown racing line %q", s)
}

func (l LateralLock) String() string {
	switch l {
	case LockFree:
		return "free"
	case LockBlockedLeft:
		return "blocked-left"
	case LockBlockedRight:
		return "blocked-right"
	}
	return fmt.Sprintf("LateralLock(%d)", int(l))
}

// Blocks reports whether a lateral move by delta is forbidden. Negative delta moves left.
func (l LateralLock) Blocks(delta float64) bool {
	return (l == LockBlockedLeft && delta < 0) || (l == LockBlockedRight && delta > 0)
}

// CarState is the physical and strategic state of one car.
// Speed in m/s, energies in J, distance in m, lateral offset in [-1,1].
type CarState struct {
	Speed         float64     `json:"speed"`
	Battery       float64     `json:"battery"`
	Recovered     float64     `json:"recovered"`
	Deployed      float64     `json:"deployed"`
	Lateral       float64     `json:"lateral"`
	Distance      float64     `json:"distance"`
	LastSegmentID int         `json:"lastSegmentId"`
	Lock          LateralLock `json:"lock"`
	AppliedLine   RacingLine  `json:"appliedLine"`
	PendingLine   RacingLine  `json:"pendingLine,omitempty"`
	PendingAt     float64     `json:"pendingAt,omitempty"` // race clock when PendingLine takes effect
}

func (c CarState) HasPending() bool {
	return c.PendingLine != ""
}
