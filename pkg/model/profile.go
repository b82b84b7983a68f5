package model

// DriverProfile holds the skill scalars of a driver. All values are in the range 0..100,
// 50 being a neutral driver.
type DriverProfile struct {
	Acceleration   float64 `json:"acceleration"`
	Braking        float64 `json:"braking"`
	Cornering      float64 `json:"cornering"`
	EnergyRecovery float64 `json:"energyRecovery"`
	DecisionMaking float64 `json:"decisionMaking"`
	Morale         float64 `json:"morale"`
}

// NeutralProfile is used whenever a driver profile is not available.
var NeutralProfile = DriverProfile{
	Acceleration:   50,
	Braking:        50,
	Cornering:      50,
	EnergyRecovery: 50,
	DecisionMaking: 50,
	Morale:         75,
}

// Sanitized returns the profile with every value clamped into 0..100.
func (p DriverProfile) Sanitized() DriverProfile {
	c := func(v float64) float64 {
		if v != v { // NaN
			return 50
		}
		return min(100, max(0, v))
	}
	return DriverProfile{
		Acceleration:   c(p.Acceleration),
		Braking:        c(p.Braking),
		Cornering:      c(p.Cornering),
		EnergyRecovery: c(p.EnergyRecovery),
		DecisionMaking: c(p.DecisionMaking),
		Morale:         c(p.Morale),
	}
}
