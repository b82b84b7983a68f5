package server

import (
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

const (
	ServiceName = "rse.race.v1.RaceService"

	GetSnapshotProcedure    = "/" + ServiceName + "/GetSnapshot"
	GetResultProcedure      = "/" + ServiceName + "/GetResult"
	WatchSnapshotsProcedure = "/" + ServiceName + "/WatchSnapshots"
)

type (
	RaceRequest struct {
		RaceID string `json:"raceId"`
	}
	SnapshotResponse struct {
		State model.RaceState `json:"state"`
	}
	ResultResponse struct {
		RaceID   string          `json:"raceId"`
		WinnerID string          `json:"winnerId"`
		LoserID  string          `json:"loserId,omitempty"`
		Ticks    int             `json:"ticks,omitempty"`
		Gap      float64         `json:"gap,omitempty"`
		Points   int             `json:"points"`
		Tokens   decimal.Decimal `json:"tokens"`
		// Source is "live" for races hosted by this process, "stored" otherwise
		Source string `json:"source"`
	}
)
