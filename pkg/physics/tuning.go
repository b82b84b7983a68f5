package physics

// Vehicle constants. SI units unless the name says otherwise.
const (
	Mass = 800.0 // kg

	IcePower      = 400_000.0 // W
	ErsMaxPower   = 350_000.0 // W
	ErsReducedCap = 120_000.0 // W, deployment cap at the end of the first taper

	MaxBattery    = 4_000_000.0 // J
	RecoveryQuota = 8_500_000.0 // J per race
	RegenCeiling  = 350_000.0   // W

	CarLength     = 5.6  // m, minimum following distance
	DraftDistance = 30.0 // m
	LineOverlap   = 0.35 // lateral difference below which two cars share a line

	MinSpeed = 1.0 // m/s, floor for every division by speed
)

const (
	gravity      = 9.81
	airDensity   = 1.225
	cdaStraight  = 0.9
	cdaTurn      = 1.4
	rollingCoeff = 0.015

	draftDragFactor = 0.7
	dirtyAirFactor  = 0.92

	baseBrakeForce = 35_000.0
	tractionFactor = 1.3

	lateralRate = 0.6 // offset units per second at neutral cornering skill

	minPlanDistance = 1.0

	moraleThreshold = 50.0
	moraleMaxChance = 0.05
	moralePenalty   = 0.4 // remaining power/braking share when a driver error fires

	rechargeShare = 0.2 // share of ICE output diverted in recharge mode

	// ERS taper thresholds in km/h
	ersFullBelow   = 300.0
	ersTaperEnd    = 340.0
	ersZeroAt      = 345.0
	savingCapShare = 0.6
	savingShift    = 10.0
)

// KmhToMs converts km/h to m/s.
func KmhToMs(v float64) float64 {
	return v / 3.6
}

// MsToKmh converts m/s to km/h.
func MsToKmh(v float64) float64 {
	return v * 3.6
}

// skillScale maps a 0..100 skill onto a multiplier around 1.0 (0.9..1.1)
func skillScale(skill float64) float64 {
	return 0.9 + 0.2*skill/100
}

func harvestFraction(skill float64) float64 {
	return 0.5 + 0.4*skill/100
}

func cornerScale(skill float64) float64 {
	return 0.95 + 0.1*skill/100
}

func lateralScale(skill float64) float64 {
	return 0.5 + skill/100
}

func clamp(v, lo, hi float64) float64 {
	return min(hi, max(lo, v))
}
