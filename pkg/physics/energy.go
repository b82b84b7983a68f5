package physics

import "github.com/mpapenbr/racesim-engine/pkg/model"

// budget is the power available to a car for one step.
type budget struct {
	ice     float64 // W usable for propulsion
	ers     float64 // W electrical deployment limit
	divert  float64 // W of ICE output routed to the battery (recharge mode)
	harvest float64 // share of braking power that is recovered
}

func newBudget(in *StepInput, p model.DriverProfile, penalty float64) budget {
	scale := skillScale(p.Acceleration) * penalty
	b := budget{
		ice:     IcePower * scale,
		harvest: harvestFraction(p.EnergyRecovery),
	}
	if in.Ers == model.ErsRecharge {
		room := min(MaxBattery-in.Own.Battery, RecoveryQuota-in.Own.Recovered)
		if room > 0 {
			b.divert = rechargeShare * b.ice * b.harvest
			b.ice -= b.divert
		}
		return b
	}
	b.ers = ErsCap(in.Ers, in.Own.Speed) * scale
	if in.Dt > 0 && b.ers*in.Dt > in.Own.Battery {
		b.ers = in.Own.Battery / in.Dt
	}
	return b
}

func (b budget) total() float64 {
	return b.ice + b.ers
}

// account books the energy flows for a step with the given drive force
// (positive: propulsion, negative: braking) at speed v.
func (b budget) account(s *model.CarState, drive, v, dt float64) {
	speed := max(v, MinSpeed)
	switch {
	case drive > 0:
		need := drive * speed
		ersUsed := clamp(need-b.ice, 0, b.ers)
		if e := min(ersUsed*dt, s.Battery); e > 0 {
			s.Battery -= e
			s.Deployed += e
		}
		if b.divert > 0 {
			store(s, b.divert*dt)
		}
	case drive < 0:
		p := min(-drive*speed*b.harvest, RegenCeiling)
		store(s, p*dt)
	}
	s.Battery = clamp(s.Battery, 0, MaxBattery)
	s.Recovered = clamp(s.Recovered, 0, RecoveryQuota)
}

// store adds harvested energy limited by the battery headroom and the race quota.
func store(s *model.CarState, e float64) {
	e = min(e, MaxBattery-s.Battery, RecoveryQuota-s.Recovered)
	if e <= 0 {
		return
	}
	s.Battery += e
	s.Recovered += e
}
