package track

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/racesim-engine/pkg/model"
)

type layoutFile struct {
	Name     string               `yaml:"name"`
	Segments []model.TrackSegment `yaml:"segments"`
}

// LoadFile reads a track layout from a YAML file.
//
//	name: ring
//	segments:
//	  - {id: 1, kind: straight, length: 900, targetEntrySpeed: 250, targetExitSpeed: 345}
func LoadFile(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track layout: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Track, error) {
	var lf layoutFile
	if err := yaml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse track layout: %w", err)
	}
	return New(lf.Name, lf.Segments)
}

// Default is the built-in lap used when no layout file is configured.
func Default() *Track {
	t, err := New("ring", []model.TrackSegment{
		{ID: 1, Kind: model.SegmentStraight, Length: 900, TargetEntrySpeed: 250, TargetExitSpeed: 345},
		{ID: 2, Kind: model.SegmentTurn, Length: 160, TargetEntrySpeed: 115, TargetExitSpeed: 140},
		{ID: 3, Kind: model.SegmentStraight, Length: 450, TargetEntrySpeed: 140, TargetExitSpeed: 300},
		{ID: 4, Kind: model.SegmentTurn, Length: 220, TargetEntrySpeed: 190, TargetExitSpeed: 210},
		{ID: 5, Kind: model.SegmentStraight, Length: 700, TargetEntrySpeed: 210, TargetExitSpeed: 340},
		{ID: 6, Kind: model.SegmentTurn, Length: 120, TargetEntrySpeed: 90, TargetExitSpeed: 110},
		{ID: 7, Kind: model.SegmentStraight, Length: 380, TargetEntrySpeed: 110, TargetExitSpeed: 280},
		{ID: 8, Kind: model.SegmentTurn, Length: 260, TargetEntrySpeed: 160, TargetExitSpeed: 200},
		{ID: 9, Kind: model.SegmentStraight, Length: 610, TargetEntrySpeed: 200, TargetExitSpeed: 330},
		{ID: 10, Kind: model.SegmentTurn, Length: 140, TargetEntrySpeed: 125, TargetExitSpeed: 250},
	})
	if err != nil {
		panic(err)
	}
	return t
}
