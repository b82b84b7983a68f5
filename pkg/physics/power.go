package physics

import (
	"encoding/binary"
	"hash/fnv"
	"math"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

// ErsCap returns the electrical deployment cap in W for the mode at speed v (m/s)
// before skill scaling.
func ErsCap(mode model.ErsMode, v float64) float64 {
	kmh := MsToKmh(v)
	switch mode {
	case model.ErsOvertake:
		return ErsMaxPower
	case model.ErsSaving:
		return savingCapShare * taper(kmh, savingShift)
	case model.ErsRecharge:
		return 0
	default:
		return taper(kmh, 0)
	}
}

func taper(kmh, shift float64) float64 {
	full, end, zero := ersFullBelow+shift, ersTaperEnd+shift, ersZeroAt+shift
	switch {
	case kmh <= full:
		return ErsMaxPower
	case kmh <= end:
		return ErsMaxPower + (ErsReducedCap-ErsMaxPower)*(kmh-full)/(end-full)
	case kmh < zero:
		return ErsReducedCap * (zero - kmh) / (zero - end)
	default:
		return 0
	}
}

// MoraleChance is the per step probability of a driver error.
func MoraleChance(morale float64) float64 {
	if morale >= moraleThreshold {
		return 0
	}
	r := (moraleThreshold - morale) / moraleThreshold
	return moraleMaxChance * r * r
}

// moraleRoll derives a uniform value in [0,1) from the race seed and the car's motion state.
// Identical inputs always give the same roll, which keeps Step reproducible on every participant.
func moraleRoll(seed uint64, distance, speed float64) float64 {
	h := fnv.New64a()
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], seed)
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(distance))
	binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(speed))
	_, _ = h.Write(buf[:])
	return float64(h.Sum64()>>11) / (1 << 53)
}

// DriverError reports whether the morale penalty fires for this step.
func DriverError(seed uint64, morale float64, own model.CarState) bool {
	chance := MoraleChance(morale)
	return chance > 0 && moraleRoll(seed, own.Distance, own.Speed) < chance
}
