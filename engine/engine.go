package engine

// Handle is an engine-assigned reference to a registered variable, meter or
// actuator. A handle is only valid for the lifetime of a single run and must
// never be reused after the run ends.
type Handle int32

// InvalidHandle is returned by registrations that fail.
const InvalidHandle Handle = -1

// CallbackPoint identifies a point in the engine run loop at which a
// registered callback is invoked.
type CallbackPoint int

const (
	// BeginTimestep fires at the start of every simulated timestep,
	// including the timesteps of warmup passes.
	BeginTimestep CallbackPoint = iota
	// WarmupComplete fires when a simulated environment finishes its
	// warmup passes. Engines that simulate several sizing environments
	// before the run period fire it once per environment. Values read
	// through handles are meaningful only once every warmup pass is done.
	WarmupComplete
)

// Reserved clock variable, readable on every engine regardless of the
// building description. The value encodes day of year and fractional hour
// of day as day*24 + hour.
const (
	TimeVariable = "Current Simulation Time"
	TimeEntity   = "Environment"
)

// Engine is the narrow surface of a building simulator. The engine owns its
// run loop: once Run is called it only yields control inside registered
// callbacks, on its own goroutine. All registrations must happen before Run
// is called.
type Engine interface {
	RegisterVariable(name, entity string) (Handle, error)
	RegisterMeter(name string) (Handle, error)
	RegisterActuator(component, control, entity string) (Handle, error)
	RegisterCallback(point CallbackPoint, fn func())
	GetValue(h Handle) float64
	SetValue(h Handle, value float64)
	// Run blocks until the simulation period ends, the run crashes or a
	// stop is requested. A zero exit code means the run ended normally.
	// The engine reports no structured detail for domain failures, only a
	// nonzero exit code.
	Run(building, weather string) int
	// RequestStop asks the run loop to exit at the next timestep boundary.
	// Safe to call from any goroutine, any number of times.
	RequestStop()
}

// Actuator identifies a controllable point of the simulation.
type Actuator struct {
	Component string `json:"component"`
	Control   string `json:"control"`
	Entity    string `json:"entity"`
}

// DataPoint names a readable variable together with the entity it belongs to.
type DataPoint struct {
	Name   string `json:"name"`
	Entity string `json:"entity"`
}

// EndpointLister is implemented by engines that can enumerate their readable
// and controllable endpoints before a run is started.
type EndpointLister interface {
	Variables() []DataPoint
	Meters() []string
	Actuators() []Actuator
}
