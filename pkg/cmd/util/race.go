package util

import (
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/racesim-engine/log"
	"github.com/mpapenbr/racesim-engine/pkg/config"
	"github.com/mpapenbr/racesim-engine/pkg/outcome"
	"github.com/mpapenbr/racesim-engine/pkg/track"
)

// LoadTrack returns the track given by --track or the built-in one.
func LoadTrack() (*track.Track, error) {
	if config.TrackFile == "" {
		return track.Default(), nil
	}
	t, err := track.LoadFile(config.TrackFile)
	if err != nil {
		return nil, err
	}
	log.Info("Using track", log.String("name", t.Name()), log.Float64("length", t.LapLength()))
	return t, nil
}

// RaceID parses --race-id. If create is set an empty value yields a new id.
func RaceID(create bool) (uuid.UUID, error) {
	if config.RaceID == "" {
		if !create {
			return uuid.Nil, fmt.Errorf("no race id given (--race-id)")
		}
		return uuid.NewV4()
	}
	id, err := uuid.FromString(config.RaceID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid race id %q: %w", config.RaceID, err)
	}
	return id, nil
}

// TokensPerPoint parses --tokens-per-point and falls back to the default.
func TokensPerPoint() decimal.Decimal {
	if config.TokensPerPoint == "" {
		return outcome.DefaultTokensPerPoint
	}
	d, err := decimal.NewFromString(config.TokensPerPoint)
	if err != nil || d.IsNegative() {
		log.Warn("Invalid tokens per point, using default",
			log.String("value", config.TokensPerPoint),
			log.String("default", outcome.DefaultTokensPerPoint.String()))
		return outcome.DefaultTokensPerPoint
	}
	return d
}
