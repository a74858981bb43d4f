package ontology

import (
	"testing"
)

func TestZonesAndSchedules(t *testing.T) {
	g := testGraph(t)
	zones := g.Zones()
	if len(zones) != 2 || zones[0].Name != "parlor" || zones[1].Name != "cellar" {
		t.Errorf("unexpected zones: %v", zones)
	}
	schedules := g.Schedules()
	if len(schedules) != 2 || schedules[0].Name != "heating_sch" {
		t.Errorf("unexpected schedules: %v", schedules)
	}
}

func TestZoneSurfaces(t *testing.T) {
	g := testGraph(t)
	surfaces := g.ZoneSurfaces("parlor")
	if len(surfaces) != 2 {
		t.Fatalf("expected 2 parlor surfaces, got %d", len(surfaces))
	}
	if surfaces[0].Name != "parlor_floor" || surfaces[1].Name != "parlor_wall" {
		t.Errorf("unexpected parlor surfaces: %s, %s", surfaces[0].Name, surfaces[1].Name)
	}
	if got := g.ZoneSurfaces("nowhere"); len(got) != 0 {
		t.Errorf("unknown zone has surfaces: %v", got)
	}
}

func TestZoneAdjacency(t *testing.T) {
	g := testGraph(t)
	adj := g.ZoneAdjacency()
	if len(adj) != 2 {
		t.Fatalf("expected 2 adjacent zones, got %v", adj)
	}
	if len(adj["parlor"]) != 1 || adj["parlor"][0] != "cellar" {
		t.Errorf("parlor neighbours: %v", adj["parlor"])
	}
	if len(adj["cellar"]) != 1 || adj["cellar"][0] != "parlor" {
		t.Errorf("cellar neighbours: %v", adj["cellar"])
	}
}

func TestZoneAdjacencyNeedsMutualBoundary(t *testing.T) {
	// attic_floor points at parlor_ceiling, but parlor_ceiling faces
	// outdoors, so the zones do not count as adjacent.
	oneSided := `{
		"Zone": {"parlor": {}, "attic": {}},
		"BuildingSurface:Detailed": {
			"attic_floor": {
				"zone_name": "attic",
				"outside_boundary_condition": "Surface",
				"outside_boundary_condition_object": "parlor_ceiling"
			},
			"parlor_ceiling": {
				"zone_name": "parlor",
				"outside_boundary_condition": "Outdoors"
			}
		}
	}`
	g, err := FromDescription([]byte(oneSided))
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if adj := g.ZoneAdjacency(); len(adj) != 0 {
		t.Errorf("one-sided boundary produced adjacency: %v", adj)
	}
}

func TestMinWarmupDays(t *testing.T) {
	g := testGraph(t)
	days, ok := g.MinWarmupDays()
	if !ok || days != 2 {
		t.Errorf("warmup days: got %d (%v), want 2", days, ok)
	}

	bare, err := FromDescription([]byte(`{"Building": {"b": {}}}`))
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	if _, ok := bare.MinWarmupDays(); ok {
		t.Errorf("building without the attribute reported warmup days")
	}
}

func TestSetpointManagers(t *testing.T) {
	desc := `{
		"SetpointManager:Scheduled": {"mgr1": {"schedule_name": "s1"}},
		"SetpointManager:MixedAir": {"mgr2": {}},
		"Schedule:Compact": {"s1": {}}
	}`
	g, err := FromDescription([]byte(desc))
	if err != nil {
		t.Fatalf("parsing: %v", err)
	}
	managers := g.SetpointManagers()
	if len(managers) != 2 {
		t.Fatalf("expected 2 setpoint managers, got %d", len(managers))
	}
	if managers[0].Name != "mgr1" || managers[1].Name != "mgr2" {
		t.Errorf("unexpected managers: %s, %s", managers[0].Name, managers[1].Name)
	}
}
