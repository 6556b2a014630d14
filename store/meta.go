package store

import (
	"fmt"

	"github.com/hupe1980/annstore/hnsw"
	"github.com/hupe1980/annstore/metric"
)

// Meta is the sidecar record stored next to a snapshot. Space, EF and M are the
// fields every reader relies on; the rest is informational.
type Meta struct {
	Space          metric.Space `json:"space"`
	EF             int          `json:"ef"`
	M              int          `json:"M"`
	EFConstruction int          `json:"ef_construction,omitempty"`
	Dim            int          `json:"dim,omitempty"`
	Count          int          `json:"count,omitempty"`
	Capacity       int          `json:"capacity,omitempty"`
}

// MetaOf describes g.
func MetaOf(g *hnsw.Graph) Meta {
	return Meta{
		Space:          metric.SpaceCosine,
		EF:             g.EF(),
		M:              g.M(),
		EFConstruction: g.EFConstruction(),
		Dim:            g.Dimension(),
		Count:          g.Len(),
		Capacity:       g.Capacity(),
	}
}

func (m *Meta) validate(g *hnsw.Graph) error {
	if m.Space != "" && m.Space != metric.SpaceCosine {
		return fmt.Errorf("unsupported space %q", m.Space)
	}
	if m.Dim != 0 && m.Dim != g.Dimension() {
		return fmt.Errorf("sidecar dimension %d, snapshot dimension %d", m.Dim, g.Dimension())
	}
	if m.EF < 0 || m.M < 0 {
		return fmt.Errorf("negative parameters ef=%d M=%d", m.EF, m.M)
	}
	return nil
}
