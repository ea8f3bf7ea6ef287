// Package routing defines routing requests, their results and the shortest
// path searches plugins are built on.
package routing

import (
	"errors"
	"fmt"
	"time"

	"tempus/common"
	"tempus/road"
)

var (
	ErrBadTiming       = errors.New("bad request timing")
	ErrInvalidArgument = errors.New("invalid argument")
)

type TimeConstraintType int

const (
	NoConstraint TimeConstraintType = iota
	ConstraintBefore
	ConstraintAfter
)

func (t TimeConstraintType) String() string {
	switch t {
	case ConstraintBefore:
		return "before"
	case ConstraintAfter:
		return "after"
	}
	return "none"
}

type TimeConstraint struct {
	Type     TimeConstraintType
	DateTime time.Time
}

// Step is a location the path has to reach, the first step of a request is
// its origin.
type Step struct {
	Location                    road.Vertex
	Constraint                  TimeConstraint
	PrivateVehicleAtDestination bool
}

// Request describes what a plugin is asked to compute. Zero
// AllowedTransportTypes means every mode is allowed.
type Request struct {
	Steps                 []Step
	AllowedTransportTypes common.DBID
	AllowedNetworks       []common.DBID
	ParkingLocation       road.Vertex
	OptimizingCriteria    []common.CostID
}

// NewRequest creates a request going from origin to destination optimizing
// distance.
func NewRequest(origin, destination Step) (*Request, error) {
	r := &Request{
		Steps:              []Step{origin, destination},
		ParkingLocation:    road.NullVertex,
		OptimizingCriteria: []common.CostID{common.CostDistance},
	}
	if err := r.checkTiming(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Request) Origin() road.Vertex {
	return r.Steps[0].Location
}

func (r *Request) Destination() road.Vertex {
	return r.Steps[len(r.Steps)-1].Location
}

func (r *Request) SetOrigin(s Step) {
	r.Steps[0] = s
}

func (r *Request) SetDestination(s Step) {
	r.Steps[len(r.Steps)-1] = s
}

// AddIntermediaryStep inserts a step just before the destination.
func (r *Request) AddIntermediaryStep(s Step) error {
	steps := make([]Step, 0, len(r.Steps)+1)
	steps = append(steps, r.Steps[:len(r.Steps)-1]...)
	steps = append(steps, s, r.Steps[len(r.Steps)-1])
	old := r.Steps
	r.Steps = steps
	if err := r.checkTiming(); err != nil {
		r.Steps = old
		return err
	}
	return nil
}

func (r *Request) SetOptimizingCriterion(idx int, c common.CostID) error {
	if idx < 0 || idx >= len(r.OptimizingCriteria) {
		return fmt.Errorf("criterion index %d out of range: %w", idx, ErrInvalidArgument)
	}
	if !c.IsValid() {
		return fmt.Errorf("criterion %d: %w", c, ErrInvalidArgument)
	}
	r.OptimizingCriteria[idx] = c
	return nil
}

func (r *Request) AddCriterion(c common.CostID) error {
	if !c.IsValid() {
		return fmt.Errorf("criterion %d: %w", c, ErrInvalidArgument)
	}
	r.OptimizingCriteria = append(r.OptimizingCriteria, c)
	return nil
}

// Allows reports whether transport type t may be used.
func (r *Request) Allows(t common.DBID) bool {
	return r.AllowedTransportTypes == 0 || r.AllowedTransportTypes&t != 0
}

// checkTiming verifies constrained steps are in chronological order.
func (r *Request) checkTiming() error {
	var (
		last    time.Time
		hasLast bool
	)
	for i, s := range r.Steps {
		if s.Constraint.Type == NoConstraint {
			continue
		}
		if s.Constraint.Type > ConstraintAfter {
			return fmt.Errorf("step %d: unknown constraint type %d: %w", i, s.Constraint.Type, ErrBadTiming)
		}
		if hasLast && !s.Constraint.DateTime.After(last) {
			return fmt.Errorf("step %d: %s is not after %s: %w", i,
				s.Constraint.DateTime.Format(time.RFC3339), last.Format(time.RFC3339), ErrBadTiming)
		}
		last, hasLast = s.Constraint.DateTime, true
	}
	return nil
}

// CheckConsistency implements common.Checker.
func (r *Request) CheckConsistency() error {
	if len(r.Steps) < 2 {
		return fmt.Errorf("request needs origin and destination: %w", common.ErrInconsistent)
	}
	if len(r.OptimizingCriteria) == 0 {
		return fmt.Errorf("request has no optimizing criterion: %w", common.ErrInconsistent)
	}
	for _, c := range r.OptimizingCriteria {
		if !c.IsValid() {
			return fmt.Errorf("request criterion %d: %w", c, common.ErrInconsistent)
		}
	}
	if err := r.checkTiming(); err != nil {
		return fmt.Errorf("%w: %w", common.ErrInconsistent, err)
	}
	return nil
}
