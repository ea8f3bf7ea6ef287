package multimodal

import (
	"fmt"

	"tempus/common"
	"tempus/road"
)

type POIType int

const (
	POICarPark POIType = iota + 1
	POISharedCarPoint
	POICyclePark
	POISharedCyclePoint
	POIUserPOI
)

// POI is a point of interest located on a road section.
type POI struct {
	DBID                  common.DBID
	Type                  POIType
	Name                  string
	ParkingTransportTypes common.DBID
	RoadSection           common.DBID
	RoadEdge              road.Edge
	Abscissa              float64
	Coordinates           common.Point3D
}

func (p *POI) CheckConsistency() error {
	if p.RoadSection == 0 {
		return fmt.Errorf("poi %d: no road section: %w", p.DBID, common.ErrInconsistent)
	}
	if p.Type < POICarPark || p.Type > POIUserPOI {
		return fmt.Errorf("poi %d: unknown type %d: %w", p.DBID, p.Type, common.ErrInconsistent)
	}
	if p.Abscissa < 0 || p.Abscissa > 1 {
		return fmt.Errorf("poi %d: abscissa %f out of [0, 1]: %w", p.DBID, p.Abscissa, common.ErrInconsistent)
	}
	return nil
}
