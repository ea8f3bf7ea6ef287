package routing

import (
	"container/heap"
	"context"
	"math"
)

// AccessType tells a Visitor which point of the search is reached.
type AccessType int

const (
	AccessInit AccessType = iota
	AccessDiscover
	AccessExamine
	AccessEdgeRelaxed
	AccessEdgeNotRelaxed
	AccessFinish
)

var accessNames = [...]string{"init", "discover", "examine", "edge_relaxed", "edge_not_relaxed", "finish"}

func (a AccessType) String() string {
	if a < 0 || int(a) >= len(accessNames) {
		return "unknown"
	}
	return accessNames[a]
}

// Visitor observes a search.
type Visitor[V comparable, E any] interface {
	VertexAccessed(v V, access AccessType)
	EdgeAccessed(e E, access AccessType)
}

// Search describes a single source shortest path problem over an implicit
// graph. Weight returning +Inf or a negative value skips the edge.
type Search[V comparable, E any] struct {
	OutEdges func(V) []E
	Target   func(E) V
	Weight   func(E) float64
	// Heuristic turns the search into A*, it must never overestimate.
	Heuristic func(V) float64
	Visitor   Visitor[V, E]
}

// Tree is the outcome of a search.
type Tree[V comparable, E any] struct {
	Source     V
	Dist       map[V]float64
	Pred       map[V]E
	Iterations int
}

// Distance returns the cost to reach v, +Inf when unreachable.
func (t *Tree[V, E]) Distance(v V) float64 {
	if d, ok := t.Dist[v]; ok {
		return d
	}
	return math.Inf(1)
}

// PathTo returns edges from source to v.
func (t *Tree[V, E]) PathTo(v V, source func(E) V) ([]E, bool) {
	if _, ok := t.Dist[v]; !ok {
		return nil, false
	}
	var path []E
	for v != t.Source {
		e, ok := t.Pred[v]
		if !ok {
			return nil, false
		}
		path = append(path, e)
		v = source(e)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, true
}

const cancelCheckInterval = 1024

// Run explores the graph from source until the queue is empty or stop
// returns true for an examined vertex. Stop may be nil.
func (s *Search[V, E]) Run(ctx context.Context, source V, stop func(V) bool) (*Tree[V, E], error) {
	t := &Tree[V, E]{
		Source: source,
		Dist:   map[V]float64{source: 0},
		Pred:   make(map[V]E),
	}
	h := func(v V) float64 {
		if s.Heuristic == nil {
			return 0
		}
		return s.Heuristic(v)
	}

	s.vertex(source, AccessInit)
	q := &queue[V]{}
	heap.Push(q, item[V]{v: source, key: h(source)})
	s.vertex(source, AccessDiscover)

	done := make(map[V]bool)
	for q.Len() > 0 {
		if t.Iterations%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return t, err
			}
		}
		it := heap.Pop(q).(item[V])
		u := it.v
		if done[u] {
			continue
		}
		done[u] = true
		t.Iterations++
		s.vertex(u, AccessExamine)
		if stop != nil && stop(u) {
			break
		}

		du := t.Dist[u]
		for _, e := range s.OutEdges(u) {
			w := s.Weight(e)
			if math.IsInf(w, 1) || w < 0 || math.IsNaN(w) {
				continue
			}
			v := s.Target(e)
			nd := du + w
			if old, seen := t.Dist[v]; !seen || nd < old {
				t.Dist[v] = nd
				t.Pred[v] = e
				s.edge(e, AccessEdgeRelaxed)
				if !seen {
					s.vertex(v, AccessDiscover)
				}
				heap.Push(q, item[V]{v: v, key: nd + h(v)})
			} else {
				s.edge(e, AccessEdgeNotRelaxed)
			}
		}
		s.vertex(u, AccessFinish)
	}
	return t, nil
}

func (s *Search[V, E]) vertex(v V, a AccessType) {
	if s.Visitor != nil {
		s.Visitor.VertexAccessed(v, a)
	}
}

func (s *Search[V, E]) edge(e E, a AccessType) {
	if s.Visitor != nil {
		s.Visitor.EdgeAccessed(e, a)
	}
}

type item[V comparable] struct {
	v   V
	key float64
}

type queue[V comparable] []item[V]

func (q queue[V]) Len() int           { return len(q) }
func (q queue[V]) Less(i, j int) bool { return q[i].key < q[j].key }
func (q queue[V]) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *queue[V]) Push(x any) {
	*q = append(*q, x.(item[V]))
}

func (q *queue[V]) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	*q = old[:n-1]
	return it
}
