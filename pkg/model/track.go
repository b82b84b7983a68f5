package model

type SegmentKind string

const (
	SegmentStraight SegmentKind = "straight"
	SegmentTurn     SegmentKind = "turn"
)

// TrackSegment is one piece of the lap. Speeds are in km/h, distances in meters.
// Start and End are derived when the lap is laid out.
type TrackSegment struct {
	ID               int         `json:"id" yaml:"id"`
	Kind             SegmentKind `json:"kind" yaml:"kind"`
	Length           float64     `json:"length" yaml:"length"`
	TargetEntrySpeed float64     `json:"targetEntrySpeed" yaml:"targetEntrySpeed"`
	TargetExitSpeed  float64     `json:"targetExitSpeed" yaml:"targetExitSpeed"`
	Start            float64     `json:"start" yaml:"-"`
	End              float64     `json:"end" yaml:"-"`
}

func (s TrackSegment) IsTurn() bool {
	return s.Kind == SegmentTurn
}
