// Package thermal implements the engine contract with a first-order RC
// thermal model built from the building description itself. It stands in
// for the real building simulator so the rest of the repo runs and tests
// hermetically: same registration, callback and exit-code behavior, no
// external process.
package thermal

import (
	"fmt"
	"math"
	"os"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/zeu5/building-rl-env/engine"
	"github.com/zeu5/building-rl-env/ontology"
	"github.com/zeu5/building-rl-env/schema"
)

// Model coefficients, per simulated hour.
const (
	exchangeOutdoor  = 0.12  // fraction of the zone/outdoor delta
	exchangeAdjacent = 0.04  // fraction of the zone/zone delta per adjacency
	conditioningRate = 1.5   // degrees of HVAC authority
	joulesPerDegree  = 2.4e6 // lumped zone heat capacity
	initialTemp      = 20.0
)

const (
	typeThermostat   = "ZoneControl:Thermostat"
	typeDualSetpoint = "ThermostatSetpoint:DualSetpoint"
)

// thermostat is a zone's setpoint wiring: the names of the compact
// schedules holding its heating and cooling setpoints.
type thermostat struct {
	heating string
	cooling string
}

// point is one registered endpoint. Handles index the point table; write is
// nil for everything but actuators.
type point struct {
	read  func() float64
	write func(float64)
}

// Engine simulates one building with hourly timesteps. Zones exchange heat
// with the outdoors and with adjacent zones; zones wired to a thermostat
// get bang-bang HVAC toward the setpoint band, with the electricity spent
// accumulated into the HVAC meter. The run period is as long as the weather
// file.
//
// All run state is touched only on the goroutine that called Run;
// registered callbacks run there too, so GetValue and SetValue are safe
// exactly where the engine contract allows them.
type Engine struct {
	buildingPath string
	weatherPath  string

	weather    []WeatherRecord
	zones      []string
	adjacent   map[string][]string
	tstats     map[string]thermostat
	warmupDays int

	vars           map[engine.DataPoint]func() float64
	meterFns       map[string]func() float64
	actTargets     map[engine.Actuator]string
	startSchedules map[string]float64

	mu        sync.Mutex
	running   bool
	points    []point
	callbacks map[engine.CallbackPoint][]func()

	stopped atomic.Bool

	// per-run state
	temps      map[string]float64
	heating    map[string]float64
	cooling    map[string]float64
	schedules  map[string]float64
	hvacEnergy float64
	day, hour  int
	outdoor    WeatherRecord
}

var _ engine.Engine = (*Engine)(nil)
var _ engine.EndpointLister = (*Engine)(nil)

// New parses the building description and the weather file and builds the
// endpoint catalog. Registration failures afterwards mean the name really
// is absent from the building, not that a file was missing.
func New(building, weather string) (*Engine, error) {
	g, err := ontology.FromFile(building)
	if err != nil {
		return nil, fmt.Errorf("loading building: %w", err)
	}
	recs, err := LoadWeather(weather)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		buildingPath: building,
		weatherPath:  weather,
		weather:      recs,
		adjacent:     g.ZoneAdjacency(),
		tstats:       readThermostats(g),
		warmupDays:   1,
		callbacks:    make(map[engine.CallbackPoint][]func()),
	}
	for _, z := range g.Zones() {
		e.zones = append(e.zones, z.Name)
	}
	if days, ok := g.MinWarmupDays(); ok && days > 0 {
		e.warmupDays = days
	}
	e.startSchedules = readSchedules(g)
	e.buildCatalog()
	return e, nil
}

// readThermostats resolves each zone control through its dual setpoint
// object down to the two schedule names.
func readThermostats(g *ontology.Graph) map[string]thermostat {
	out := make(map[string]thermostat)
	for _, tc := range g.Find(typeThermostat, nil) {
		zone := tc.Attr("zone_or_zonelist_name")
		if zone == "" {
			continue
		}
		for _, sp := range g.RelationsOf(tc, "control_1_name") {
			if sp.Type != typeDualSetpoint {
				continue
			}
			ts := thermostat{
				heating: sp.Attr("heating_setpoint_temperature_schedule_name"),
				cooling: sp.Attr("cooling_setpoint_temperature_schedule_name"),
			}
			if ts.heating != "" && ts.cooling != "" {
				out[zone] = ts
			}
		}
	}
	return out
}

func readSchedules(g *ontology.Graph) map[string]float64 {
	out := make(map[string]float64)
	for _, s := range g.Schedules() {
		out[s.Name] = scheduleValue(s)
	}
	return out
}

// scheduleValue extracts the value of a compact schedule. The bundled
// buildings use constant schedules, so the last numeric field of the data
// block is the value for every hour.
func scheduleValue(n *ontology.Node) float64 {
	data, ok := n.Attrs["data"].([]any)
	if !ok {
		return 0
	}
	v := 0.0
	for _, item := range data {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if f, ok := m["field"].(float64); ok {
			v = f
		}
	}
	return v
}

// buildCatalog wires every readable variable, meter and actuator the
// building supports to a closure over the run state. Setpoint and comfort
// variables exist for every zone; unconditioned zones read zero setpoints,
// the same way the real simulator reports unrequested thermostat points.
func (e *Engine) buildCatalog() {
	e.vars = make(map[engine.DataPoint]func() float64)
	add := func(name, entity string, read func() float64) {
		e.vars[engine.DataPoint{Name: name, Entity: entity}] = read
	}

	add(engine.TimeVariable, engine.TimeEntity, func() float64 {
		return float64(e.day*24 + e.hour)
	})
	add(schema.VarOutdoorTemp, schema.EnvironmentEntity, func() float64 {
		return e.outdoor.DryBulb
	})
	add(schema.VarOutdoorHumidity, schema.EnvironmentEntity, func() float64 {
		return e.outdoor.Humidity
	})

	for _, zone := range e.zones {
		zone := zone
		ts := e.tstats[zone]
		add(schema.VarZoneTemperature, zone, func() float64 { return e.temps[zone] })
		add(schema.VarHeatingSetpoint, zone, func() float64 { return e.schedules[ts.heating] })
		add(schema.VarCoolingSetpoint, zone, func() float64 { return e.schedules[ts.cooling] })
		add(schema.VarComfortIndex, zone, func() float64 { return e.comfortIndex(zone) })
		add(schema.VarDiscomfortIndex, zone, func() float64 { return e.discomfortIndex(zone) })
		add(schema.VarHeatingEnergy, zone, func() float64 { return e.heating[zone] })
		add(schema.VarCoolingEnergy, zone, func() float64 { return e.cooling[zone] })
	}

	e.meterFns = map[string]func() float64{
		schema.MeterHVACElectricity: func() float64 { return e.hvacEnergy },
	}

	e.actTargets = make(map[engine.Actuator]string)
	for name := range e.startSchedules {
		act := engine.Actuator{
			Component: schema.ScheduleComponent,
			Control:   schema.ScheduleControl,
			Entity:    name,
		}
		e.actTargets[act] = name
	}
}

// comfortIndex approximates the Pierce thermal sensation index: zero at a
// neutral 23C, one unit per 3C of deviation.
func (e *Engine) comfortIndex(zone string) float64 {
	return (e.temps[zone] - 23.0) / 3.0
}

// discomfortIndex is how many degrees a zone sits outside its thermostat
// band, zero inside. Unconditioned zones report the absolute sensation.
func (e *Engine) discomfortIndex(zone string) float64 {
	ts, ok := e.tstats[zone]
	if !ok {
		return math.Abs(e.comfortIndex(zone))
	}
	t := e.temps[zone]
	if lo := e.schedules[ts.heating]; t < lo {
		return lo - t
	}
	if hi := e.schedules[ts.cooling]; t > hi {
		return t - hi
	}
	return 0
}

func (e *Engine) RegisterVariable(name, entity string) (engine.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return engine.InvalidHandle, fmt.Errorf("cannot register variable %q after the run started", name)
	}
	read, ok := e.vars[engine.DataPoint{Name: name, Entity: entity}]
	if !ok {
		return engine.InvalidHandle, fmt.Errorf("building has no variable %q on %q", name, entity)
	}
	e.points = append(e.points, point{read: read})
	return engine.Handle(len(e.points) - 1), nil
}

func (e *Engine) RegisterMeter(name string) (engine.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return engine.InvalidHandle, fmt.Errorf("cannot register meter %q after the run started", name)
	}
	read, ok := e.meterFns[name]
	if !ok {
		return engine.InvalidHandle, fmt.Errorf("building has no meter %q", name)
	}
	e.points = append(e.points, point{read: read})
	return engine.Handle(len(e.points) - 1), nil
}

func (e *Engine) RegisterActuator(component, control, entity string) (engine.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return engine.InvalidHandle, fmt.Errorf("cannot register actuator %q after the run started", entity)
	}
	target, ok := e.actTargets[engine.Actuator{Component: component, Control: control, Entity: entity}]
	if !ok {
		return engine.InvalidHandle, fmt.Errorf("building has no actuator %s/%s on %q", component, control, entity)
	}
	e.points = append(e.points, point{
		read:  func() float64 { return e.schedules[target] },
		write: func(v float64) { e.schedules[target] = v },
	})
	return engine.Handle(len(e.points) - 1), nil
}

func (e *Engine) RegisterCallback(cp engine.CallbackPoint, fn func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.callbacks[cp] = append(e.callbacks[cp], fn)
}

func (e *Engine) GetValue(h engine.Handle) float64 {
	if h < 0 || int(h) >= len(e.points) {
		return 0
	}
	return e.points[h].read()
}

func (e *Engine) SetValue(h engine.Handle, value float64) {
	if h < 0 || int(h) >= len(e.points) {
		return
	}
	if w := e.points[h].write; w != nil {
		w(value)
	}
}

func (e *Engine) RequestStop() {
	e.stopped.Store(true)
}

// Run simulates the warmup passes and then one timestep per weather row.
// It returns 0 on a normal end or requested stop, nonzero when the run
// cannot start or a timestep aborts it.
func (e *Engine) Run(building, weather string) int {
	if _, err := os.Stat(building); err != nil {
		logrus.Errorf("building file: %v", err)
		return 1
	}
	if _, err := os.Stat(weather); err != nil {
		logrus.Errorf("weather file: %v", err)
		return 1
	}
	if building != e.buildingPath || weather != e.weatherPath {
		logrus.Errorf("engine was built for %s / %s", e.buildingPath, e.weatherPath)
		return 1
	}

	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return 1
	}
	e.running = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.running = false
		e.mu.Unlock()
	}()

	e.initRunState()

	// Warmup repeats the first day until the building's minimum warmup
	// days are done, then warmup-complete fires once for the environment.
	for d := 0; d < e.warmupDays; d++ {
		for h := 0; h < 24; h++ {
			if e.stopped.Load() {
				return 0
			}
			e.day, e.hour = 1, h
			e.outdoor = e.weather[h%len(e.weather)]
			e.fire(engine.BeginTimestep)
			if code := e.advance(); code != 0 {
				return code
			}
		}
	}
	e.fire(engine.WarmupComplete)

	for i, rec := range e.weather {
		if e.stopped.Load() {
			return 0
		}
		e.day, e.hour = i/24+1, i%24
		e.outdoor = rec
		e.fire(engine.BeginTimestep)
		if e.stopped.Load() {
			return 0
		}
		if code := e.advance(); code != 0 {
			return code
		}
	}
	return 0
}

func (e *Engine) initRunState() {
	e.temps = make(map[string]float64, len(e.zones))
	e.heating = make(map[string]float64, len(e.zones))
	e.cooling = make(map[string]float64, len(e.zones))
	for _, z := range e.zones {
		e.temps[z] = initialTemp
	}
	e.schedules = make(map[string]float64, len(e.startSchedules))
	for name, v := range e.startSchedules {
		e.schedules[name] = v
	}
	e.hvacEnergy = 0
	e.day, e.hour = 1, 0
	e.outdoor = e.weather[0]
}

// advance moves every zone one hour forward. Temperatures update
// synchronously from the previous hour's values, so zone order does not
// matter; the order is still fixed (document order) for reproducible
// floating point.
func (e *Engine) advance() int {
	e.hvacEnergy = 0
	next := make(map[string]float64, len(e.zones))
	for _, zone := range e.zones {
		t := e.temps[zone]
		drift := exchangeOutdoor * (e.outdoor.DryBulb - t)
		for _, other := range e.adjacent[zone] {
			drift += exchangeAdjacent * (e.temps[other] - t)
		}
		t += drift

		e.heating[zone] = 0
		e.cooling[zone] = 0
		if ts, ok := e.tstats[zone]; ok {
			lo, hi := e.schedules[ts.heating], e.schedules[ts.cooling]
			if lo > hi {
				logrus.Errorf("zone %s heating setpoint %.2f above cooling setpoint %.2f, aborting run", zone, lo, hi)
				return 2
			}
			if t < lo {
				amount := math.Min(lo-t, conditioningRate)
				t += amount
				e.heating[zone] = amount * joulesPerDegree
				e.hvacEnergy += e.heating[zone]
			} else if t > hi {
				amount := math.Min(t-hi, conditioningRate)
				t -= amount
				e.cooling[zone] = amount * joulesPerDegree
				e.hvacEnergy += e.cooling[zone]
			}
		}
		next[zone] = t
	}
	for z, t := range next {
		e.temps[z] = t
	}
	return 0
}

func (e *Engine) fire(cp engine.CallbackPoint) {
	e.mu.Lock()
	fns := make([]func(), len(e.callbacks[cp]))
	copy(fns, e.callbacks[cp])
	e.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Variables lists every readable data point, sorted by entity then name.
func (e *Engine) Variables() []engine.DataPoint {
	out := make([]engine.DataPoint, 0, len(e.vars))
	for dp := range e.vars {
		out = append(out, dp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Entity != out[j].Entity {
			return out[i].Entity < out[j].Entity
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func (e *Engine) Meters() []string {
	out := make([]string, 0, len(e.meterFns))
	for name := range e.meterFns {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (e *Engine) Actuators() []engine.Actuator {
	out := make([]engine.Actuator, 0, len(e.actTargets))
	for act := range e.actTargets {
		out = append(out, act)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Entity < out[j].Entity
	})
	return out
}
