package road

import (
	"fmt"
	"math"

	"tempus/common"
)

// Restriction is a sequence of consecutive edges that is either forbidden or
// penalized for some transport types.
type Restriction struct {
	DBID  common.DBID
	Edges []Edge
	// Costs maps a transport type mask to the additional cost, +Inf forbids.
	Costs map[common.DBID]float64
}

// Forbidden reports whether the movement is forbidden for transport type t.
func (r *Restriction) Forbidden(t common.DBID) bool {
	return math.IsInf(r.Cost(t), 1)
}

// Cost returns the penalty for transport type t, zero when not restricted.
func (r *Restriction) Cost(t common.DBID) float64 {
	var c float64
	for mask, v := range r.Costs {
		if mask&t != 0 && v > c {
			c = v
		}
	}
	return c
}

// MovementCost returns the penalty for transport type t of going from edge a
// onto edge b, +Inf when some two section restriction forbids it. Sections
// are matched by database id so both directions of a section are covered.
func (g *Graph) MovementCost(a, b Edge, t common.DBID) float64 {
	ida, idb := g.edges[a].section.DBID, g.edges[b].section.DBID
	var c float64
	for i := range g.Restrictions {
		r := &g.Restrictions[i]
		if len(r.Edges) != 2 || g.edges[r.Edges[0]].section.DBID != ida || g.edges[r.Edges[1]].section.DBID != idb {
			continue
		}
		c = max(c, r.Cost(t))
	}
	return c
}

// ForbiddenMovement reports whether traversing from edge a to edge b is
// forbidden for transport type t.
func (g *Graph) ForbiddenMovement(a, b Edge, t common.DBID) bool {
	return math.IsInf(g.MovementCost(a, b, t), 1)
}

type restrictionCheck struct {
	g *Graph
	r *Restriction
}

func (c restrictionCheck) CheckConsistency() error {
	if len(c.r.Edges) < 2 {
		return fmt.Errorf("road restriction %d: needs at least two sections: %w", c.r.DBID, common.ErrInconsistent)
	}
	for i := 1; i < len(c.r.Edges); i++ {
		a, b := c.r.Edges[i-1], c.r.Edges[i]
		if !c.g.validEdge(a) || !c.g.validEdge(b) {
			return fmt.Errorf("road restriction %d: unknown section: %w", c.r.DBID, common.ErrInconsistent)
		}
		ga, gb := c.g.edges[a], c.g.edges[b]
		// sections of a restriction may be given in any direction, they only need to touch
		if ga.target != gb.source && ga.target != gb.target && ga.source != gb.source && ga.source != gb.target {
			return fmt.Errorf("road restriction %d: sections %d and %d are not adjacent: %w",
				c.r.DBID, ga.section.DBID, gb.section.DBID, common.ErrInconsistent)
		}
	}
	return nil
}
