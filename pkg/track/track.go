package track

import (
	"errors"
	"fmt"
	"math"

	"github.com/samber/lo"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

var ErrInvalidLayout = errors.New("invalid track layout")

// Track is a closed lap. Segments are immutable once the track is created.
type Track struct {
	name      string
	segments  []model.TrackSegment
	lapLength float64
}

// Position describes where a distance falls on the lap.
type Position struct {
	Current   model.TrackSegment
	Next      model.TrackSegment
	InSegment float64 // meters covered within Current
}

// New lays out the segments in the given order and derives start/end distances.
func New(name string, segments []model.TrackSegment) (*Track, error) {
	if len(segments) == 0 {
		return nil, fmt.Errorf("%w: no segments", ErrInvalidLayout)
	}
	ids := map[int]bool{}
	laid := make([]model.TrackSegment, len(segments))
	pos := 0.0
	for i, s := range segments {
		if s.Length <= 0 {
			return nil, fmt.Errorf("%w: segment %d has length %v", ErrInvalidLayout, s.ID, s.Length)
		}
		if s.Kind != model.SegmentStraight && s.Kind != model.SegmentTurn {
			return nil, fmt.Errorf("%w: segment %d has kind %q", ErrInvalidLayout, s.ID, s.Kind)
		}
		if s.TargetEntrySpeed <= 0 || s.TargetExitSpeed <= 0 {
			return nil, fmt.Errorf("%w: segment %d needs positive target speeds",
				ErrInvalidLayout, s.ID)
		}
		if ids[s.ID] {
			return nil, fmt.Errorf("%w: duplicate segment id %d", ErrInvalidLayout, s.ID)
		}
		ids[s.ID] = true
		s.Start = pos
		pos += s.Length
		s.End = pos
		laid[i] = s
	}
	return &Track{name: name, segments: laid, lapLength: pos}, nil
}

func (t *Track) Name() string {
	return t.name
}

func (t *Track) LapLength() float64 {
	return t.lapLength
}

// Segments returns a copy of the laid out segments
func (t *Track) Segments() []model.TrackSegment {
	return append([]model.TrackSegment(nil), t.segments...)
}

func (t *Track) SegmentByID(id int) (model.TrackSegment, bool) {
	return lo.Find(t.segments, func(s model.TrackSegment) bool { return s.ID == id })
}

// Locate maps a cumulative distance onto the lap. Distances beyond one lap wrap around,
// negative distances (grid offsets behind the line) count back from the lap end.
func (t *Track) Locate(distance float64) Position {
	d := math.Mod(distance, t.lapLength)
	if d < 0 {
		d += t.lapLength
	}
	idx := t.indexAt(d)
	return Position{
		Current:   t.segments[idx],
		Next:      t.segments[(idx+1)%len(t.segments)],
		InSegment: d - t.segments[idx].Start,
	}
}

func (t *Track) indexAt(d float64) int {
	low, high := 0, len(t.segments)-1
	for low < high {
		mid := (low + high) / 2
		if d < t.segments[mid].End {
			high = mid
		} else {
			low = mid + 1
		}
	}
	return low
}

// SignedGap returns the track relative distance from own to other.
// Positive values mean other is ahead. The result is normalized to half a lap.
func (t *Track) SignedGap(own, other float64) float64 {
	gap := other - own
	half := t.lapLength / 2
	for gap > half {
		gap -= t.lapLength
	}
	for gap < -half {
		gap += t.lapLength
	}
	return gap
}
