//nolint:funlen,gocognit // ok for tests
package physics

import (
	"math/rand/v2"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

var (
	longStraight = model.TrackSegment{
		ID: 1, Kind: model.SegmentStraight, Length: 20000,
		TargetEntrySpeed: 250, TargetExitSpeed: 345, End: 20000,
	}
	hairpin = model.TrackSegment{
		ID: 2, Kind: model.SegmentTurn, Length: 120,
		TargetEntrySpeed: 90, TargetExitSpeed: 110,
	}
)

func baseInput() StepInput {
	return StepInput{
		Dt:        0.1,
		Own:       model.CarState{Speed: 60, Battery: MaxBattery / 2, Distance: 100, LastSegmentID: 1},
		Opponent:  model.CarState{Speed: 60, Battery: MaxBattery / 2, Distance: 400, Lateral: 0.8},
		Gap:       300,
		Segment:   longStraight,
		Next:      hairpin,
		InSegment: 100,
		Profile:   model.NeutralProfile,
		Ers:       model.ErsBalanced,
		Seed:      42,
	}
}

// nearSegmentEnd leaves a short run to the exit so the planned acceleration
// exceeds what the car can deliver.
func nearSegmentEnd(in StepInput) StepInput {
	in.InSegment = in.Segment.Length - 100
	in.Own.Distance = in.InSegment
	in.Opponent.Distance = in.Own.Distance + in.Gap
	return in
}

func TestStep_EnergyAndDistanceBounds(t *testing.T) {
	rnd := rand.New(rand.NewPCG(1, 2))
	segments := []model.TrackSegment{longStraight, hairpin}
	for i := 0; i < 5000; i++ {
		seg := segments[rnd.IntN(2)]
		in := StepInput{
			Dt: 0.01 + rnd.Float64()*0.2,
			Own: model.CarState{
				Speed:         rnd.Float64() * 110,
				Battery:       rnd.Float64() * MaxBattery,
				Recovered:     rnd.Float64() * RecoveryQuota,
				Lateral:       rnd.Float64()*2 - 1,
				Distance:      rnd.Float64() * 5000,
				LastSegmentID: seg.ID,
				Lock:          model.LateralLock(rnd.IntN(3)),
			},
			Opponent: model.CarState{
				Speed:   rnd.Float64() * 110,
				Lateral: rnd.Float64()*2 - 1,
			},
			Gap:       rnd.Float64()*80 - 40,
			Segment:   seg,
			Next:      segments[rnd.IntN(2)],
			InSegment: rnd.Float64() * seg.Length,
			Profile: model.DriverProfile{
				Acceleration:   rnd.Float64() * 100,
				Braking:        rnd.Float64() * 100,
				Cornering:      rnd.Float64() * 100,
				EnergyRecovery: rnd.Float64() * 100,
				DecisionMaking: rnd.Float64() * 100,
				Morale:         rnd.Float64() * 100,
			},
			Ers:           model.ErsModes[rnd.IntN(len(model.ErsModes))],
			TargetLateral: rnd.Float64()*2 - 1,
			Seed:          rnd.Uint64(),
		}
		// exercise the quota ceiling
		if i%10 == 0 {
			in.Own.Recovered = RecoveryQuota - rnd.Float64()*1000
		}
		got := Step(in)
		if got.Battery < 0 || got.Battery > MaxBattery {
			t.Fatalf("battery out of range: %v (input %+v)", got.Battery, in)
		}
		if got.Recovered < 0 || got.Recovered > RecoveryQuota {
			t.Fatalf("recovered out of range: %v (input %+v)", got.Recovered, in)
		}
		if got.Lateral < -1 || got.Lateral > 1 {
			t.Fatalf("lateral out of range: %v", got.Lateral)
		}
		if got.Distance < in.Own.Distance {
			t.Fatalf("distance decreased: %v -> %v", in.Own.Distance, got.Distance)
		}
		if got.Speed < 0 {
			t.Fatalf("negative speed %v", got.Speed)
		}
	}
}

func TestStep_Deterministic(t *testing.T) {
	in := baseInput()
	in.Profile.Morale = 5
	first := Step(in)
	for i := 0; i < 10; i++ {
		if diff := cmp.Diff(first, Step(in)); diff != "" {
			t.Fatalf("Step not deterministic: %s", diff)
		}
	}
}

func TestStep_CollisionClamp(t *testing.T) {
	tests := []struct {
		name      string
		oppLat    float64
		wantClamp bool
	}{
		{name: "same line", oppLat: 0.1, wantClamp: true},
		{name: "separated lines", oppLat: 0.8, wantClamp: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			in.Own.Speed = 70
			in.Opponent = model.CarState{Speed: 50, Distance: in.Own.Distance + 3, Lateral: tt.oppLat}
			in.Gap = 3
			got := Step(in)
			if tt.wantClamp {
				assert.LessOrEqual(t, got.Speed, in.Opponent.Speed)
				assert.LessOrEqual(t, got.Distance, in.Opponent.Distance)
			} else {
				assert.Greater(t, got.Speed, in.Opponent.Speed)
			}
		})
	}
}

func TestStep_RechargeOnStraight(t *testing.T) {
	in := baseInput()
	in.Ers = model.ErsRecharge
	in.Own = model.CarState{Speed: 40, LastSegmentID: 1}
	in.InSegment = 0
	in.Gap = 5000
	prev := in.Own
	for i := 0; i < 300; i++ {
		in.Own = prev
		in.InSegment = prev.Distance
		next := Step(in)
		if next.Battery <= prev.Battery {
			t.Fatalf("step %d: battery did not increase: %v -> %v", i, prev.Battery, next.Battery)
		}
		assert.Zero(t, next.Deployed, "recharge must not deploy")
		assert.LessOrEqual(t, next.Recovered, RecoveryQuota)
		prev = next
	}
}

func TestStep_RechargeCappedByQuota(t *testing.T) {
	in := baseInput()
	in.Ers = model.ErsRecharge
	in.Own = model.CarState{Speed: 40, LastSegmentID: 1, Recovered: RecoveryQuota - 10_000}
	state := in.Own
	for i := 0; i < 50; i++ {
		in.Own = state
		in.InSegment = state.Distance
		state = Step(in)
	}
	assert.InDelta(t, RecoveryQuota, state.Recovered, 1e-6)
	assert.InDelta(t, 10_000.0, state.Battery, 1e-6)
	assert.Zero(t, state.Deployed)
}

func TestStep_DeploysBattery(t *testing.T) {
	in := nearSegmentEnd(baseInput())
	got := Step(in)
	assert.Less(t, got.Battery, in.Own.Battery)
	assert.Greater(t, got.Deployed, 0.0)
	assert.InDelta(t, in.Own.Battery-got.Battery, got.Deployed, 1e-6)
}

func TestStep_EmptyBatteryStillDrives(t *testing.T) {
	in := baseInput()
	in.Own.Battery = 0
	got := Step(in)
	assert.Zero(t, got.Battery)
	assert.Zero(t, got.Deployed)
	assert.Greater(t, got.Speed, in.Own.Speed)
}

func TestStep_LookAheadBraking(t *testing.T) {
	in := baseInput()
	in.Own.Speed = 90
	in.InSegment = longStraight.Length - 40
	got := Step(in)
	assert.Less(t, got.Speed, in.Own.Speed)
	assert.Greater(t, got.Recovered, in.Own.Recovered, "braking harvests energy")
}

func TestStep_Drafting(t *testing.T) {
	free := nearSegmentEnd(baseInput())
	free.Own.Speed = 80
	draft := free
	draft.Opponent = model.CarState{Speed: 80, Distance: free.Own.Distance + 20}
	draft.Gap = 20
	assert.Greater(t, Step(draft).Speed, Step(free).Speed)
}

func TestStep_StraightFollowsKinematicPlan(t *testing.T) {
	exit := KmhToMs(longStraight.TargetExitSpeed)
	tests := []struct {
		name  string
		speed float64
	}{
		{name: "below exit target", speed: 50},
		{name: "above exit target", speed: exit + 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := baseInput()
			in.Own.Speed = tt.speed
			in.InSegment = longStraight.Length - 800
			want := (exit*exit - tt.speed*tt.speed) / (2 * 800)

			got := Step(in)
			assert.InDelta(t, want, (got.Speed-tt.speed)/in.Dt, 1e-6)
			assert.InDelta(t, want, plan(&in, tt.speed, 1, in.Profile.Cornering, 40), 1e-12)
			// lifting on an open straight is no braking event
			assert.Equal(t, in.Own.Recovered, got.Recovered)
		})
	}
}

func TestStep_DirtyAir(t *testing.T) {
	free := baseInput()
	free.Segment = hairpin
	free.Own.LastSegmentID = hairpin.ID
	free.Next = longStraight
	free.InSegment = 20
	free.Own.Speed = 40
	dirty := free
	dirty.Opponent = model.CarState{Speed: 30, Distance: free.Own.Distance + 15}
	dirty.Gap = 15
	assert.Less(t, Step(dirty).Speed, Step(free).Speed)
}

func TestStep_LateralLock(t *testing.T) {
	in := baseInput()
	in.TargetLateral = -0.5
	got := Step(in)
	assert.Less(t, got.Lateral, 0.0)
	assert.Equal(t, model.LockBlockedRight, got.Lock)

	// moving back right is blocked inside the same segment
	in.Own = got
	in.TargetLateral = 0.5
	again := Step(in)
	assert.InDelta(t, got.Lateral, again.Lateral, 1e-12)
	assert.Equal(t, model.LockBlockedRight, again.Lock)

	// continuing left is fine
	in.TargetLateral = -1
	further := Step(in)
	assert.Less(t, further.Lateral, got.Lateral)

	// a new segment releases the lock
	in.Own = got
	in.TargetLateral = 0.5
	in.Segment = hairpin
	in.Next = longStraight
	in.InSegment = 0
	released := Step(in)
	assert.Greater(t, released.Lateral, got.Lateral)
	assert.Equal(t, model.LockBlockedLeft, released.Lock)
	assert.Equal(t, hairpin.ID, released.LastSegmentID)
}

func TestStep_ZeroDelta(t *testing.T) {
	in := baseInput()
	in.Dt = 0
	got := Step(in)
	assert.InDelta(t, in.Own.Distance, got.Distance, 0)
	assert.InDelta(t, in.Own.Speed, got.Speed, 0)
}

func TestErsCap(t *testing.T) {
	tests := []struct {
		name string
		mode model.ErsMode
		kmh  float64
		want float64
	}{
		{name: "balanced low", mode: model.ErsBalanced, kmh: 200, want: ErsMaxPower},
		{name: "balanced at threshold", mode: model.ErsBalanced, kmh: 300, want: ErsMaxPower},
		{name: "balanced mid taper", mode: model.ErsBalanced, kmh: 320, want: 235_000},
		{name: "balanced reduced", mode: model.ErsBalanced, kmh: 340, want: ErsReducedCap},
		{name: "balanced second taper", mode: model.ErsBalanced, kmh: 342.5, want: 60_000},
		{name: "balanced top", mode: model.ErsBalanced, kmh: 350, want: 0},
		{name: "overtake top", mode: model.ErsOvertake, kmh: 360, want: ErsMaxPower},
		{name: "saving low", mode: model.ErsSaving, kmh: 200, want: 210_000},
		{name: "saving shifted", mode: model.ErsSaving, kmh: 345, want: 89_250},
		{name: "saving top", mode: model.ErsSaving, kmh: 355, want: 0},
		{name: "recharge", mode: model.ErsRecharge, kmh: 100, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, ErsCap(tt.mode, KmhToMs(tt.kmh)), 1e-6)
		})
	}
}

func TestMoraleChance(t *testing.T) {
	tests := []struct {
		morale float64
		want   float64
	}{
		{morale: 100, want: 0},
		{morale: 50, want: 0},
		{morale: 25, want: 0.0125},
		{morale: 0, want: 0.05},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, MoraleChance(tt.morale), 1e-12, "morale %v", tt.morale)
	}
}

func TestMoraleRollDistribution(t *testing.T) {
	hits := 0
	const n = 20000
	for i := 0; i < n; i++ {
		if moraleRoll(7, float64(i)*1.37, 55.5) < 0.05 {
			hits++
		}
	}
	// uniform draw, expect about 5 %
	assert.InDelta(t, 0.05, float64(hits)/n, 0.01)
}
