package multimodal

// View is the adjacency interface shared by Graph and its reversed form.
type View interface {
	OutEdges(v Vertex) []Edge
	InEdges(v Vertex) []Edge
}

// ReverseGraph presents a graph with every edge reversed, used for backward
// searches from the destination.
type ReverseGraph struct {
	g *Graph
}

func Reverse(g *Graph) *ReverseGraph {
	return &ReverseGraph{g: g}
}

func (r *ReverseGraph) Graph() *Graph {
	return r.g
}

func (r *ReverseGraph) OutEdges(v Vertex) []Edge {
	return reversed(r.g.InEdges(v))
}

func (r *ReverseGraph) InEdges(v Vertex) []Edge {
	return reversed(r.g.OutEdges(v))
}

func (r *ReverseGraph) Edge(u, v Vertex) (Edge, bool) {
	e, ok := r.g.Edge(v, u)
	return e.Reversed(), ok
}

func reversed(es []Edge) []Edge {
	out := make([]Edge, len(es))
	for i, e := range es {
		out[i] = e.Reversed()
	}
	return out
}
