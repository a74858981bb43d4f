package ontology

import (
	"sort"
	"strings"
)

// Entity types and attribute names of the building description format that
// the schema resolver relies on.
const (
	TypeZone     = "Zone"
	TypeSchedule = "Schedule:Compact"
	TypeSurface  = "BuildingSurface:Detailed"
	TypeBuilding = "Building"

	attrZoneName       = "zone_name"
	attrBoundary       = "outside_boundary_condition"
	attrBoundaryObject = "outside_boundary_condition_object"
	attrWarmupDays     = "minimum_number_of_warmup_days"
)

// Zones returns every zone in the building, in document order.
func (g *Graph) Zones() []*Node {
	return g.Find(TypeZone, nil)
}

// Schedules returns every compact schedule, in document order.
func (g *Graph) Schedules() []*Node {
	return g.Find(TypeSchedule, nil)
}

// Surfaces returns every detailed building surface, in document order.
func (g *Graph) Surfaces() []*Node {
	return g.Find(TypeSurface, nil)
}

// ZoneSurfaces returns the surfaces whose zone_name attribute references the
// given zone.
func (g *Graph) ZoneSurfaces(zone string) []*Node {
	return g.Find(TypeSurface, func(n *Node) bool {
		return n.Attr(attrZoneName) == zone
	})
}

// SetpointManagers returns every setpoint manager regardless of its variant,
// in document order.
func (g *Graph) SetpointManagers() []*Node {
	out := make([]*Node, 0)
	for _, t := range g.types {
		if strings.HasPrefix(t, "SetpointManager:") {
			out = append(out, g.byType[t]...)
		}
	}
	return out
}

// ZoneAdjacency computes which zones share a surface. Two zones are adjacent
// when a surface of one names a surface of the other as its outside boundary
// object and vice versa, with both boundary conditions set to "Surface".
// Neighbour lists are sorted, self-adjacency is excluded.
func (g *Graph) ZoneAdjacency() map[string][]string {
	pairs := make(map[string]map[string]struct{})
	link := func(a, b string) {
		if pairs[a] == nil {
			pairs[a] = make(map[string]struct{})
		}
		pairs[a][b] = struct{}{}
	}
	for _, sa := range g.Surfaces() {
		if sa.Attr(attrBoundary) != "Surface" {
			continue
		}
		sb, ok := g.Lookup(sa.Attr(attrBoundaryObject))
		if !ok || sb.Type != TypeSurface {
			continue
		}
		if sb.Attr(attrBoundary) != "Surface" || sb.Attr(attrBoundaryObject) != sa.Name {
			continue
		}
		za, zb := sa.Attr(attrZoneName), sb.Attr(attrZoneName)
		if za == "" || zb == "" || za == zb {
			continue
		}
		link(za, zb)
		link(zb, za)
	}
	out := make(map[string][]string, len(pairs))
	for zone, neighbours := range pairs {
		list := make([]string, 0, len(neighbours))
		for n := range neighbours {
			list = append(list, n)
		}
		sort.Strings(list)
		out[zone] = list
	}
	return out
}

// MinWarmupDays returns the minimum_number_of_warmup_days attribute of the
// Building section. The second return is false when the building does not
// declare one.
func (g *Graph) MinWarmupDays() (int, bool) {
	for _, b := range g.Find(TypeBuilding, nil) {
		if f, ok := b.Number(attrWarmupDays); ok {
			return int(f), true
		}
	}
	return 0, false
}
