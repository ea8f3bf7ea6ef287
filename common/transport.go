package common

import (
	"fmt"
	"math/bits"
	"sort"
	"strings"
)

// TransportType describes a mode of transport. IDs are powers of two so sets
// of modes can be expressed as bit masks.
type TransportType struct {
	ID          DBID
	ParentID    DBID
	Name        string
	NeedParking bool
	NeedStation bool
	NeedReturn  bool
	NeedNetwork bool
}

const (
	TransportCar         DBID = 1
	TransportPedestrial  DBID = 2
	TransportCycle       DBID = 4
	TransportBus         DBID = 8
	TransportTramway     DBID = 16
	TransportMetro       DBID = 32
	TransportTrain       DBID = 64
	TransportSharedCycle DBID = 128
	TransportSharedCar   DBID = 256
	TransportRoller      DBID = 512
)

// CheckConsistency implements Checker.
func (t TransportType) CheckConsistency() error {
	if t.ID <= 0 || bits.OnesCount64(uint64(t.ID)) != 1 {
		return fmt.Errorf("transport type %q: id %d is not a power of 2: %w", t.Name, t.ID, ErrInconsistent)
	}
	return nil
}

// TransportTypes indexes transport types by their ID.
type TransportTypes map[DBID]TransportType

// DefaultTransportTypes returns the table used when a database does not
// provide its own.
func DefaultTransportTypes() TransportTypes {
	list := []TransportType{
		{ID: TransportCar, Name: "Car", NeedParking: true},
		{ID: TransportPedestrial, Name: "Pedestrial"},
		{ID: TransportCycle, Name: "Cycle", NeedParking: true},
		{ID: TransportBus, Name: "Bus", NeedNetwork: true},
		{ID: TransportTramway, Name: "Tramway", NeedNetwork: true},
		{ID: TransportMetro, Name: "Metro", NeedNetwork: true},
		{ID: TransportTrain, Name: "Train", NeedNetwork: true},
		{ID: TransportSharedCycle, ParentID: TransportCycle, Name: "Shared cycle", NeedParking: true, NeedStation: true},
		{ID: TransportSharedCar, ParentID: TransportCar, Name: "Shared car", NeedParking: true, NeedStation: true, NeedReturn: true},
		{ID: TransportRoller, ParentID: TransportPedestrial | TransportCycle, Name: "Roller"},
	}
	tt := make(TransportTypes, len(list))
	for _, t := range list {
		tt[t.ID] = t
	}
	return tt
}

// IDs returns transport type identifiers in ascending order.
func (tt TransportTypes) IDs() []DBID {
	ids := make([]DBID, 0, len(tt))
	for id := range tt {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ByName looks transport type up ignoring case.
func (tt TransportTypes) ByName(name string) (TransportType, bool) {
	for _, t := range tt {
		if strings.EqualFold(t.Name, name) {
			return t, true
		}
	}
	return TransportType{}, false
}

// Mask combines named transport types into a bit mask.
func (tt TransportTypes) Mask(names ...string) (DBID, error) {
	var mask DBID
	for _, n := range names {
		t, ok := tt.ByName(n)
		if !ok {
			return 0, fmt.Errorf("unknown transport type %q", n)
		}
		mask |= t.ID
	}
	return mask, nil
}

// CheckConsistency verifies every transport type.
func (tt TransportTypes) CheckConsistency() error {
	checkers := make([]Checker, 0, len(tt))
	for _, id := range tt.IDs() {
		checkers = append(checkers, tt[id])
	}
	return CheckAll(checkers...)
}
