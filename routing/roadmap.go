package routing

import (
	"tempus/common"
	"tempus/multimodal"
	"tempus/pt"
	"tempus/road"
)

type StepKind int

const (
	RoadStepKind StepKind = iota
	PublicTransportStepKind
	GenericStepKind
)

func (k StepKind) String() string {
	switch k {
	case RoadStepKind:
		return "road"
	case PublicTransportStepKind:
		return "public_transport"
	}
	return "generic"
}

// EndMovement tells what to do at the end of a road step.
type EndMovement int

const (
	GoAhead EndMovement = iota
	TurnLeft
	TurnRight
	UTurn
	RoundAboutEnter
	FirstExit
	SecondExit
	ThirdExit
	FourthExit
	FifthExit
	SixthExit
	YouAreArrived EndMovement = 999
)

// RoadmapStep is one element of a roadmap.
type RoadmapStep interface {
	Kind() StepKind
	Costs() common.Costs
	Cost(id common.CostID) (float64, bool)
	SetCost(id common.CostID, v float64)
	Mode() common.DBID
}

// StepBase carries what every kind of step has.
type StepBase struct {
	StepCosts     common.Costs
	TransportType common.DBID
	GeometryWKB   []byte
}

func (b *StepBase) Costs() common.Costs {
	return b.StepCosts
}

func (b *StepBase) Cost(id common.CostID) (float64, bool) {
	v, ok := b.StepCosts[id]
	return v, ok
}

func (b *StepBase) SetCost(id common.CostID, v float64) {
	if b.StepCosts == nil {
		b.StepCosts = make(common.Costs)
	}
	b.StepCosts[id] = v
}

func (b *StepBase) Mode() common.DBID {
	return b.TransportType
}

// RoadStep follows a road section. DistanceKm is -1 when the step goes to
// the end of the section.
type RoadStep struct {
	StepBase
	Edge        road.Edge
	SectionID   common.DBID
	RoadName    string
	DistanceKm  float64
	EndMovement EndMovement
}

func (*RoadStep) Kind() StepKind {
	return RoadStepKind
}

// PublicTransportStep rides a network section between two stops.
type PublicTransportStep struct {
	StepBase
	Network       common.DBID
	Section       pt.Edge
	DepartureStop common.DBID
	ArrivalStop   common.DBID
	TripID        common.DBID
	Wait          float64 // minutes
}

func (*PublicTransportStep) Kind() StepKind {
	return PublicTransportStepKind
}

// GenericStep follows any multimodal edge, used for mode changes.
type GenericStep struct {
	StepBase
	Edge      multimodal.Edge
	RoadName  string
	FinalMode common.DBID
}

func (*GenericStep) Kind() StepKind {
	return GenericStepKind
}

// Roadmap is an ordered list of steps.
type Roadmap struct {
	Steps []RoadmapStep
	// vertices visited, in order, when the plugin tracks them
	Path []multimodal.Vertex
}

func (r *Roadmap) AddStep(s RoadmapStep) {
	r.Steps = append(r.Steps, s)
}

// TotalCosts sums costs over every step.
func (r *Roadmap) TotalCosts() common.Costs {
	total := make(common.Costs)
	for _, s := range r.Steps {
		total.Add(s.Costs())
	}
	return total
}

// Result holds alternatives, best first.
type Result []Roadmap
