package physics

import (
	"math"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

// StepInput is everything a car needs to advance by Dt.
type StepInput struct {
	Dt       float64
	Own      model.CarState
	Opponent model.CarState
	// Gap is the signed track distance to the opponent, positive when the opponent is ahead.
	Gap       float64
	Segment   model.TrackSegment
	Next      model.TrackSegment
	InSegment float64
	Profile   model.DriverProfile
	Ers       model.ErsMode
	// TargetLateral is the lateral offset the resolved racing line asks for.
	TargetLateral float64
	Seed          uint64
}

// Step advances one car. It has no side effects and returns the same result for the same input.
func Step(in StepInput) model.CarState {
	out := in.Own
	if out.LastSegmentID != in.Segment.ID {
		out.LastSegmentID = in.Segment.ID
		out.Lock = model.LockFree
	}
	if !(in.Dt > 0) {
		return sanitize(out)
	}
	p := in.Profile.Sanitized()
	dt := in.Dt

	out.Lateral, out.Lock = moveLateral(out.Lateral, out.Lock, in.TargetLateral, dt, p.Cornering)

	overlap := math.Abs(out.Lateral-in.Opponent.Lateral) < LineOverlap
	trailing := overlap && in.Gap > 0 && in.Gap <= DraftDistance
	cda, grip := cdaStraight, 1.0
	if in.Segment.IsTurn() {
		cda = cdaTurn
		if trailing {
			grip = dirtyAirFactor
		}
	} else if trailing {
		cda *= draftDragFactor
	}

	v := max(out.Speed, 0)
	resist := 0.5*airDensity*cda*v*v + rollingCoeff*Mass*gravity

	penalty := 1.0
	if DriverError(in.Seed, p.Morale, in.Own) {
		penalty = moralePenalty
	}
	b := newBudget(&in, p, penalty)

	maxDrive := min(b.total()/max(v, MinSpeed), tractionFactor*Mass*gravity*grip)
	maxAccel := maxDrive - resist
	maxBrake := baseBrakeForce*skillScale(p.Braking)*penalty*grip + resist

	a := plan(&in, v, grip, p.Cornering, maxBrake/Mass)
	force := clamp(Mass*a, -maxBrake, maxAccel)

	// tractive force: a lift with drag left over is not braking
	b.account(&out, force+resist, v, dt)

	next := max(0, v+force/Mass*dt)
	dist := out.Distance + (v+next)/2*dt

	// cars share a line and cannot pass through each other
	if overlap && in.Gap > 0 && in.Gap < CarLength {
		next = min(next, max(in.Opponent.Speed, 0))
		dist = min(dist, in.Own.Distance+in.Gap)
	}
	out.Speed = next
	out.Distance = max(dist, in.Own.Distance)
	return sanitize(out)
}

// plan returns the acceleration the driver asks for.
func plan(in *StepInput, v, grip, cornering, maxDecel float64) float64 {
	remaining := max(in.Segment.Length-in.InSegment, minPlanDistance)
	exit := KmhToMs(in.Segment.TargetExitSpeed)
	if in.Segment.IsTurn() {
		exit *= cornerScale(cornering) * grip
	}
	a := (exit*exit - v*v) / (2 * remaining)

	entry := KmhToMs(in.Next.TargetEntrySpeed)
	if in.Next.IsTurn() {
		entry *= cornerScale(cornering)
	}
	if v > entry && maxDecel > 0 {
		brakeDist := (v*v - entry*entry) / (2 * maxDecel)
		if brakeDist >= remaining {
			a = min(a, (entry*entry-v*v)/(2*remaining))
		}
	}
	return a
}

const lateralEpsilon = 1e-9

func moveLateral(cur float64, lock model.LateralLock, target, dt, cornering float64) (
	float64, model.LateralLock,
) {
	delta := clamp(target, -1, 1) - cur
	if math.Abs(delta) < lateralEpsilon || lock.Blocks(delta) {
		return cur, lock
	}
	step := lateralRate * lateralScale(cornering) * dt
	move := clamp(delta, -step, step)
	if lock == model.LockFree {
		if move < 0 {
			lock = model.LockBlockedRight
		} else {
			lock = model.LockBlockedLeft
		}
	}
	return clamp(cur+move, -1, 1), lock
}

func sanitize(s model.CarState) model.CarState {
	s.Battery = clamp(s.Battery, 0, MaxBattery)
	s.Recovered = clamp(s.Recovered, 0, RecoveryQuota)
	s.Lateral = clamp(s.Lateral, -1, 1)
	s.Speed = max(s.Speed, 0)
	return s
}
