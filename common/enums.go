package common

import (
	"fmt"
	"strconv"
	"strings"
)

// RoadType classifies road sections.
type RoadType int

const (
	RoadTypeMotorway RoadType = iota + 1
	RoadTypePrimaryRoad
	RoadTypeSecondaryRoad
	RoadTypeStreet
	RoadTypeOther
	RoadTypeCyclePath
	RoadTypePedestrialOnly
)

var roadTypeNames = map[RoadType]string{
	RoadTypeMotorway:       "motorway",
	RoadTypePrimaryRoad:    "primary_road",
	RoadTypeSecondaryRoad:  "secondary_road",
	RoadTypeStreet:         "street",
	RoadTypeOther:          "other",
	RoadTypeCyclePath:      "cycle_path",
	RoadTypePedestrialOnly: "pedestrial_only",
}

func (x RoadType) String() string {
	if s, ok := roadTypeNames[x]; ok {
		return s
	}
	return fmt.Sprintf("RoadType(%d)", int(x))
}

func (x RoadType) IsValid() bool {
	_, ok := roadTypeNames[x]
	return ok
}

// CostID identifies a criterion a path may be evaluated or optimized on.
type CostID int

const (
	CostDistance CostID = iota + 1
	CostDuration
	CostPrice
	CostCarbon
	CostCalories
	CostNumberOfChanges
	CostVariability
	CostPathComplexity
	CostElevation
	CostSecurity
	CostLandmark
)

var costDescriptions = []struct{ name, unit string }{
	{"", ""},
	{"Distance", "m"},
	{"Duration", "min"},
	{"Price", "€"},
	{"Carbon", "kg"},
	{"Calories", "kcal"},
	{"Number of changes", ""},
	{"Variability", ""},
	{"Path complexity", ""},
	{"Elevation", "m"},
	{"Security", ""},
	{"Landmark", ""},
}

func (c CostID) IsValid() bool {
	return c >= CostDistance && c <= CostLandmark
}

// CostName returns human readable name of the criterion.
func CostName(c CostID) string {
	if !c.IsValid() {
		return "Unknown"
	}
	return costDescriptions[c].name
}

// CostUnit returns unit the criterion is measured in, may be empty.
func CostUnit(c CostID) string {
	if !c.IsValid() {
		return ""
	}
	return costDescriptions[c].unit
}

func (c CostID) String() string {
	return CostName(c)
}

// CostIDs lists every known criterion in ascending order.
func CostIDs() []CostID {
	ids := make([]CostID, 0, int(CostLandmark))
	for c := CostDistance; c <= CostLandmark; c++ {
		ids = append(ids, c)
	}
	return ids
}

// ParseCostID accepts either a numeric identifier or a criterion name.
func ParseCostID(s string) (CostID, error) {
	if n, err := strconv.Atoi(s); err == nil && CostID(n).IsValid() {
		return CostID(n), nil
	}
	for _, c := range CostIDs() {
		if strings.EqualFold(CostName(c), s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", s, ErrInvalidCost)
}

// Costs keeps values of several criteria.
type Costs map[CostID]float64

// Add sums other into c.
func (c Costs) Add(other Costs) {
	for k, v := range other {
		c[k] += v
	}
}
