package benchmarks

import (
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeu5/building-rl-env/energy"
	"github.com/zeu5/building-rl-env/engine"
	"github.com/zeu5/building-rl-env/ontology"
	"github.com/zeu5/building-rl-env/schema"
	"github.com/zeu5/building-rl-env/sim"
	"github.com/zeu5/building-rl-env/telemetry"
	"github.com/zeu5/building-rl-env/template"
	"github.com/zeu5/building-rl-env/thermal"
	"github.com/zeu5/building-rl-env/types"
)

const (
	defaultBuilding = "data/building/crawlspace.epJSON"
	defaultWeather  = "data/weather/honolulu.csv"
)

// section is one resolver step adding a group of observation keys.
type section func(*ontology.Graph, *template.Template) error

// allSections resolves every observation group the schema knows about.
func allSections() []section {
	return []section{
		schema.AutoAddTime,
		schema.AutoAddTemperature,
		schema.AutoAddSetpoints,
		schema.AutoAddComfort,
		schema.AutoAddEnergy,
		schema.AutoAddWeather,
	}
}

// envStack bundles the files and observation sections a benchmark runs
// with. Every bridge gets its own template and engine instance so that
// experiments never share mutable state.
type envStack struct {
	building        string
	weather         string
	sections        []section
	heatingSchedule string
	coolingSchedule string
	maxSteps        int
	saveDir         string
}

// check parses the building and weather once, so that the later factory
// calls cannot fail on bad input.
func (s *envStack) check() error {
	if _, err := s.resolve(); err != nil {
		return err
	}
	_, err := thermal.New(s.building, s.weather)
	return err
}

// resolve parses the building and fills a fresh template.
func (s *envStack) resolve() (*template.Template, error) {
	g, err := ontology.FromFile(s.building)
	if err != nil {
		return nil, err
	}
	tpl := template.New()
	for _, add := range s.sections {
		if err := add(g, tpl); err != nil {
			return nil, err
		}
	}
	return tpl, nil
}

// keys returns the flattened observation layout of the stack.
func (s *envStack) keys() ([]string, error) {
	tpl, err := s.resolve()
	if err != nil {
		return nil, err
	}
	return tpl.FlattenKeys(), nil
}

// bridge assembles a fresh bridge over a fresh thermal engine.
func (s *envStack) bridge() (*sim.Bridge, error) {
	g, err := ontology.FromFile(s.building)
	if err != nil {
		return nil, err
	}
	tpl, err := s.resolve()
	if err != nil {
		return nil, err
	}
	newEngine := func() engine.Engine {
		eng, err := thermal.New(s.building, s.weather)
		if err != nil {
			// check() validated the inputs, reaching here means the files
			// changed underneath us
			logrus.Fatalf("building thermal engine for %s: %v", s.building, err)
		}
		return eng
	}
	return sim.New(newEngine, sim.Config{
		Building:  s.building,
		Weather:   s.weather,
		Template:  tpl,
		Actuators: schema.AutoActuators(g),
		MaxSteps:  s.maxSteps,
		SaveDir:   s.saveDir,
	}), nil
}

// controlEnvironment builds the discrete-action adapter driven by the
// agent machinery.
func (s *envStack) controlEnvironment(reward energy.RewardFn, actions map[string][]float64, onStep func([]float64, float64)) (*energy.ControlEnvironment, error) {
	keys, err := s.keys()
	if err != nil {
		return nil, err
	}
	heating := s.heatingSchedule
	if heating == "" {
		heating = "heating_sch"
	}
	cooling := s.coolingSchedule
	if cooling == "" {
		cooling = "cooling_sch"
	}
	env, err := energy.NewEnvironment(energy.Config{
		Bridge: func() *sim.Bridge {
			b, err := s.bridge()
			if err != nil {
				logrus.Fatalf("building bridge for %s: %v", s.building, err)
			}
			return b
		},
		Reward:       reward,
		ObsSpace:     energy.UniformBox(len(keys), -1e9, 1e9),
		ActSpace:     energy.UniformBox(2, 0, 45),
		ActTransform: energy.SetpointAction(heating, cooling),
		OnStep:       onStep,
	})
	if err != nil {
		return nil, err
	}
	return energy.NewControlEnvironment(energy.ControlConfig{
		Environment: env,
		Actions:     actions,
	})
}

// setpointActions builds the discrete action set: one action per heating
// setpoint, each keeping the cooling setpoint the given margin above it.
func setpointActions(heatingSetpoints []float64, margin float64) map[string][]float64 {
	actions := make(map[string][]float64, len(heatingSetpoints))
	for _, h := range heatingSetpoints {
		actions[actionName(h)] = []float64{h, margin}
	}
	return actions
}

func actionName(heating float64) string {
	return "heat" + strconv.FormatFloat(heating, 'f', -1, 64)
}

// keyIndex returns the position of key in keys, or -1.
func keyIndex(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}

// allOf runs several comparators over the same datasets.
func allOf(comparators ...types.Comparator) types.Comparator {
	return func(run int, episodes int, names []string, datasets []types.DataSet) {
		for _, c := range comparators {
			c(run, episodes, names, datasets)
		}
	}
}

// stepPublisher forwards each environment step to the telemetry broker. A
// nil publisher yields a nil hook.
func stepPublisher(pub *telemetry.Publisher, topic string) func([]float64, float64) {
	if pub == nil {
		return nil
	}
	return func(obs []float64, reward float64) {
		err := pub.Publish(topic, telemetry.StepEvent{
			Observation: obs,
			Reward:      reward,
			At:          time.Now(),
		})
		if err != nil {
			logrus.Debugf("telemetry publish on %s failed: %v", topic, err)
		}
	}
}
