package debug

import (
	"tempus/common"
	"tempus/routing"
)

// Roadmaps describes every alternative of a result, one step per node.
func Roadmaps(res routing.Result) string {
	tw := NewTreeWriter()
	if len(res) == 0 {
		tw.Line(0, "no roadmap")
		return tw.String()
	}
	for i, rm := range res {
		tw.Line(0, "roadmap %d (%d steps)", i+1, len(rm.Steps))
		for j, s := range rm.Steps {
			tw.Line(1, "step %d: %s", j+1, s.Kind())
			step(tw, s)
			costs(tw, 2, s.Costs())
		}
		tw.Line(1, "total")
		costs(tw, 2, rm.TotalCosts())
	}
	return tw.String()
}

func step(tw *TreeWriter, s routing.RoadmapStep) {
	tw.Field(2, "mode", s.Mode())
	switch s := s.(type) {
	case *routing.RoadStep:
		tw.Field(2, "road", s.RoadName)
		tw.Field(2, "section", s.SectionID)
		if s.DistanceKm >= 0 {
			tw.Field(2, "distance_km", s.DistanceKm)
		}
		tw.Field(2, "end_movement", int(s.EndMovement))
	case *routing.PublicTransportStep:
		tw.Field(2, "network", s.Network)
		tw.Field(2, "from_stop", s.DepartureStop)
		tw.Field(2, "to_stop", s.ArrivalStop)
		tw.Field(2, "trip", s.TripID)
		if s.Wait > 0 {
			tw.Field(2, "wait", s.Wait)
		}
	case *routing.GenericStep:
		tw.Field(2, "connection", s.Edge.ConnectionType())
		tw.Field(2, "road", s.RoadName)
		tw.Field(2, "final_mode", s.FinalMode)
	}
}

func costs(tw *TreeWriter, depth int, c common.Costs) {
	for _, id := range common.CostIDs() {
		v, ok := c[id]
		if !ok {
			continue
		}
		if unit := common.CostUnit(id); unit != "" {
			tw.Line(depth, "%s: %g %s", common.CostName(id), v, unit)
			continue
		}
		tw.Line(depth, "%s: %g", common.CostName(id), v)
	}
}
