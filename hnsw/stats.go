package hnsw

// Stats summarizes the shape of a graph.
type Stats struct {
	Dimension      int
	Capacity       int
	Slots          int
	Live           int
	Deleted        int
	M              int
	EFConstruction int
	EF             int
	MaxLevel       int
	// NodesPerLevel[l] counts slots whose top level is l.
	NodesPerLevel []int
	// AvgConnections[l] is the mean out-degree on layer l.
	AvgConnections []float64
}

// Stats returns statistics about the graph.
func (g *Graph) Stats() Stats {
	s := Stats{
		Dimension:      g.dim,
		Capacity:       g.capacity,
		Slots:          len(g.nodes),
		Live:           g.Len(),
		Deleted:        g.DeletedCount(),
		M:              g.m,
		EFConstruction: g.efConstruction,
		EF:             g.ef,
		MaxLevel:       g.maxLevel,
		NodesPerLevel:  make([]int, g.maxLevel+1),
		AvgConnections: make([]float64, g.maxLevel+1),
	}

	onLevel := make([]int, g.maxLevel+1)
	for _, n := range g.nodes {
		if n.level < len(s.NodesPerLevel) {
			s.NodesPerLevel[n.level]++
		}
		for l := 0; l <= n.level && l < len(onLevel); l++ {
			onLevel[l]++
			if l < len(n.connections) {
				s.AvgConnections[l] += float64(len(n.connections[l]))
			}
		}
	}
	for l := range s.AvgConnections {
		if onLevel[l] > 0 {
			s.AvgConnections[l] /= float64(onLevel[l])
		}
	}

	return s
}
