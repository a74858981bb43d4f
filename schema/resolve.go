// Package schema derives observation templates and actuator sets from a
// building's entity graph, so that the schema seen by a control policy does
// not have to be hand-written for every building.
package schema

import (
	"github.com/zeu5/building-rl-env/engine"
	"github.com/zeu5/building-rl-env/ontology"
	"github.com/zeu5/building-rl-env/template"
)

// Simulator variable, meter and actuator names used by the resolvers.
const (
	VarZoneTemperature = "Zone Mean Air Temperature"
	VarHeatingSetpoint = "Zone Thermostat Heating Setpoint Temperature"
	VarCoolingSetpoint = "Zone Thermostat Cooling Setpoint Temperature"
	VarComfortIndex    = "Zone Thermal Comfort Pierce Model Thermal Sensation Index"
	VarDiscomfortIndex = "Zone Thermal Comfort Pierce Model Discomfort Index"
	VarHeatingEnergy   = "Zone Air System Sensible Heating Energy"
	VarCoolingEnergy   = "Zone Air System Sensible Cooling Energy"
	VarOutdoorTemp     = "Site Outdoor Air Drybulb Temperature"
	VarOutdoorHumidity = "Site Outdoor Air Relative Humidity"

	MeterHVACElectricity = "Electricity:HVAC"

	EnvironmentEntity = "Environment"

	ScheduleComponent = "Schedule:Compact"
	ScheduleControl   = "Schedule Value"
)

// Resolvers insert holes into an existing template and never remove any;
// categories compose under distinct top-level keys and repeated calls
// overwrite hole-by-hole (last write wins). A category with no matching
// entities leaves an empty sub-mapping.

// AutoAddTime inserts the single clock hole, bound to the engine-reserved
// time variable rather than anything in the building description.
func AutoAddTime(_ *ontology.Graph, t *template.Template) error {
	return t.Add(template.VariableHole(engine.TimeVariable, engine.TimeEntity), "time", "current_time")
}

// AutoAddTemperature inserts one air temperature hole per zone, keyed by
// zone name.
func AutoAddTemperature(g *ontology.Graph, t *template.Template) error {
	if err := t.AddGroup("temperature"); err != nil {
		return err
	}
	for _, zone := range g.Zones() {
		if err := t.Add(template.VariableHole(VarZoneTemperature, zone.Name), "temperature", zone.Name); err != nil {
			return err
		}
	}
	return nil
}

// AutoAddSetpoints inserts the thermostat heating and cooling setpoint
// variables for every zone.
func AutoAddSetpoints(g *ontology.Graph, t *template.Template) error {
	if err := t.AddGroup("setpoints", "heating"); err != nil {
		return err
	}
	if err := t.AddGroup("setpoints", "cooling"); err != nil {
		return err
	}
	for _, zone := range g.Zones() {
		if err := t.Add(template.VariableHole(VarHeatingSetpoint, zone.Name), "setpoints", "heating", zone.Name); err != nil {
			return err
		}
		if err := t.Add(template.VariableHole(VarCoolingSetpoint, zone.Name), "setpoints", "cooling", zone.Name); err != nil {
			return err
		}
	}
	return nil
}

// AutoAddComfort inserts the Pierce comfort and discomfort indices for every
// zone.
func AutoAddComfort(g *ontology.Graph, t *template.Template) error {
	if err := t.AddGroup("comfort"); err != nil {
		return err
	}
	for _, zone := range g.Zones() {
		if err := t.Add(template.VariableHole(VarComfortIndex, zone.Name), "comfort", zone.Name+"_comfort"); err != nil {
			return err
		}
		if err := t.Add(template.VariableHole(VarDiscomfortIndex, zone.Name), "comfort", zone.Name+"_discomfort"); err != nil {
			return err
		}
	}
	return nil
}

// AutoAddEnergy inserts the whole-building HVAC electricity meter and the
// per-zone sensible heating and cooling energies.
func AutoAddEnergy(g *ontology.Graph, t *template.Template) error {
	if err := t.Add(template.MeterHole(MeterHVACElectricity), "energy", "whole_building"); err != nil {
		return err
	}
	for _, zone := range g.Zones() {
		if err := t.Add(template.VariableHole(VarHeatingEnergy, zone.Name), "energy", zone.Name+"_heating"); err != nil {
			return err
		}
		if err := t.Add(template.VariableHole(VarCoolingEnergy, zone.Name), "energy", zone.Name+"_cooling"); err != nil {
			return err
		}
	}
	return nil
}

// AutoAddWeather inserts outdoor air measurements.
func AutoAddWeather(_ *ontology.Graph, t *template.Template) error {
	if err := t.Add(template.VariableHole(VarOutdoorTemp, EnvironmentEntity), "weather", "drybulb_temp"); err != nil {
		return err
	}
	return t.Add(template.VariableHole(VarOutdoorHumidity, EnvironmentEntity), "weather", "relative_humidity")
}

// AutoActuators returns the schedule-value actuator for every compact
// schedule in the building, plus the schedules referenced by setpoint
// managers, keyed by schedule name. This over-approximates on purpose:
// schedules that are not heating or cooling setpoints are included too, and
// callers are expected to filter down to the ones they intend to drive.
func AutoActuators(g *ontology.Graph) map[string]engine.Actuator {
	out := make(map[string]engine.Actuator)
	add := func(name string) {
		out[name] = engine.Actuator{
			Component: ScheduleComponent,
			Control:   ScheduleControl,
			Entity:    name,
		}
	}
	for _, sched := range g.Schedules() {
		add(sched.Name)
	}
	for _, sm := range g.SetpointManagers() {
		for _, sched := range g.RelationsOf(sm, "schedule_name") {
			if sched.Type == ontology.TypeSchedule {
				add(sched.Name)
			}
		}
	}
	return out
}
