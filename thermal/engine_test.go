package thermal

import (
	"math"
	"sync"
	"testing"

	"github.com/zeu5/building-rl-env/engine"
	"github.com/zeu5/building-rl-env/schema"
)

const (
	testBuilding = "testdata/house.epJSON"
	testWeather  = "testdata/weather.csv"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	eng, err := New(testBuilding, testWeather)
	if err != nil {
		t.Fatalf("building engine: %v", err)
	}
	return eng
}

func mustRegisterVar(t *testing.T, eng *Engine, name, entity string) engine.Handle {
	t.Helper()
	h, err := eng.RegisterVariable(name, entity)
	if err != nil {
		t.Fatalf("registering %s on %s: %v", name, entity, err)
	}
	return h
}

func TestNewRejectsBadInputs(t *testing.T) {
	if _, err := New("testdata/missing.epJSON", testWeather); err == nil {
		t.Errorf("expected an error for a missing building")
	}
	if _, err := New(testBuilding, "testdata/missing.csv"); err == nil {
		t.Errorf("expected an error for a missing weather file")
	}
	if _, err := New(testWeather, testWeather); err == nil {
		t.Errorf("expected an error parsing a csv as a building")
	}
}

func TestEndpointCatalog(t *testing.T) {
	eng := newTestEngine(t)

	vars := eng.Variables()
	// 3 environment endpoints plus 7 per zone
	if len(vars) != 17 {
		t.Errorf("expected 17 variables, got %d", len(vars))
	}
	// sorted by entity then name, so the clock comes first
	if vars[0].Name != engine.TimeVariable || vars[0].Entity != engine.TimeEntity {
		t.Errorf("unexpected first variable: %+v", vars[0])
	}

	meters := eng.Meters()
	if len(meters) != 1 || meters[0] != schema.MeterHVACElectricity {
		t.Errorf("unexpected meters: %v", meters)
	}

	acts := eng.Actuators()
	if len(acts) != 2 || acts[0].Entity != "cooling_sch" || acts[1].Entity != "heating_sch" {
		t.Errorf("unexpected actuators: %+v", acts)
	}
}

func TestRegisterUnknownEndpoints(t *testing.T) {
	eng := newTestEngine(t)
	if h, err := eng.RegisterVariable("No Such Variable", "parlor"); err == nil || h != engine.InvalidHandle {
		t.Errorf("unknown variable registered: handle %d, err %v", h, err)
	}
	if h, err := eng.RegisterVariable(schema.VarZoneTemperature, "ballroom"); err == nil || h != engine.InvalidHandle {
		t.Errorf("unknown zone registered: handle %d, err %v", h, err)
	}
	if _, err := eng.RegisterMeter("Gas:HVAC"); err == nil {
		t.Errorf("unknown meter registered")
	}
	if _, err := eng.RegisterActuator(schema.ScheduleComponent, schema.ScheduleControl, "no_sch"); err == nil {
		t.Errorf("unknown actuator registered")
	}
}

func TestRunObservations(t *testing.T) {
	eng := newTestEngine(t)
	timeH := mustRegisterVar(t, eng, engine.TimeVariable, engine.TimeEntity)
	parlorH := mustRegisterVar(t, eng, schema.VarZoneTemperature, "parlor")
	cellarH := mustRegisterVar(t, eng, schema.VarZoneTemperature, "cellar")
	heatingH := mustRegisterVar(t, eng, schema.VarHeatingEnergy, "parlor")
	outdoorH := mustRegisterVar(t, eng, schema.VarOutdoorTemp, schema.EnvironmentEntity)
	meterH, err := eng.RegisterMeter(schema.MeterHVACElectricity)
	if err != nil {
		t.Fatalf("registering meter: %v", err)
	}

	warmups := 0
	totalFires := 0
	var times, parlor, cellar, heating, meter, outdoor []float64
	eng.RegisterCallback(engine.WarmupComplete, func() { warmups++ })
	eng.RegisterCallback(engine.BeginTimestep, func() {
		totalFires++
		if warmups == 0 {
			return
		}
		times = append(times, eng.GetValue(timeH))
		parlor = append(parlor, eng.GetValue(parlorH))
		cellar = append(cellar, eng.GetValue(cellarH))
		heating = append(heating, eng.GetValue(heatingH))
		meter = append(meter, eng.GetValue(meterH))
		outdoor = append(outdoor, eng.GetValue(outdoorH))
	})

	if code := eng.Run(testBuilding, testWeather); code != 0 {
		t.Fatalf("run exited with %d", code)
	}

	if warmups != 1 {
		t.Errorf("expected 1 warmup pass, got %d", warmups)
	}
	// one warmup day plus the six weather rows
	if totalFires != 30 {
		t.Errorf("expected 30 timesteps, got %d", totalFires)
	}
	if len(times) != 6 {
		t.Fatalf("expected 6 observed timesteps, got %d", len(times))
	}
	for i, v := range times {
		if v != float64(24+i) {
			t.Errorf("timestep %d: clock %v, want %d", i, v, 24+i)
		}
	}
	// the thermostat holds the parlor at its heating setpoint: the hourly
	// loss to a 10C outdoors is 1.2 degrees, within HVAC authority
	for i, v := range parlor {
		if math.Abs(v-20.0) > 1e-6 {
			t.Errorf("timestep %d: parlor at %v, want 20", i, v)
		}
	}
	wantHeating := 1.2 * joulesPerDegree
	for i := range heating {
		if math.Abs(heating[i]-wantHeating) > 1 {
			t.Errorf("timestep %d: heating energy %v, want %v", i, heating[i], wantHeating)
		}
		if math.Abs(meter[i]-heating[i]) > 1e-9 {
			t.Errorf("timestep %d: meter %v disagrees with the only conditioned zone %v", i, meter[i], heating[i])
		}
	}
	// the unconditioned cellar decays towards the outdoor temperature
	if cellar[0] <= 10.0 || cellar[0] >= 12.0 {
		t.Errorf("cellar after warmup at %v, want between 10 and 12", cellar[0])
	}
	for _, v := range outdoor {
		if v != 10.0 {
			t.Errorf("outdoor temperature %v, want 10", v)
		}
	}
}

func TestActuatorSetThenRead(t *testing.T) {
	eng := newTestEngine(t)
	actH, err := eng.RegisterActuator(schema.ScheduleComponent, schema.ScheduleControl, "heating_sch")
	if err != nil {
		t.Fatalf("registering actuator: %v", err)
	}
	setpointH := mustRegisterVar(t, eng, schema.VarHeatingSetpoint, "parlor")

	warm := false
	wrote := false
	var before, after, setpoint float64
	eng.RegisterCallback(engine.WarmupComplete, func() { warm = true })
	eng.RegisterCallback(engine.BeginTimestep, func() {
		if !warm {
			return
		}
		if !wrote {
			before = eng.GetValue(actH)
			eng.SetValue(actH, 24.0)
			after = eng.GetValue(actH)
			setpoint = eng.GetValue(setpointH)
			wrote = true
		}
	})

	if code := eng.Run(testBuilding, testWeather); code != 0 {
		t.Fatalf("run exited with %d", code)
	}
	if before != 20.0 {
		t.Errorf("actuator initial value %v, want the schedule's 20", before)
	}
	if after != 24.0 {
		t.Errorf("actuator read back %v after writing 24", after)
	}
	// the setpoint variable reads through the same schedule
	if setpoint != 24.0 {
		t.Errorf("heating setpoint variable %v, want 24", setpoint)
	}
}

func TestInvertedSetpointsAbortTheRun(t *testing.T) {
	eng := newTestEngine(t)
	actH, err := eng.RegisterActuator(schema.ScheduleComponent, schema.ScheduleControl, "heating_sch")
	if err != nil {
		t.Fatalf("registering actuator: %v", err)
	}
	warm := false
	eng.RegisterCallback(engine.WarmupComplete, func() { warm = true })
	eng.RegisterCallback(engine.BeginTimestep, func() {
		if warm {
			// above the 26C cooling setpoint
			eng.SetValue(actH, 30.0)
		}
	})

	if code := eng.Run(testBuilding, testWeather); code != 2 {
		t.Errorf("expected exit code 2 for inverted setpoints, got %d", code)
	}
}

func TestRunValidatesPaths(t *testing.T) {
	eng := newTestEngine(t)
	if code := eng.Run("testdata/missing.epJSON", testWeather); code != 1 {
		t.Errorf("missing building: exit %d, want 1", code)
	}
	if code := eng.Run(testWeather, testWeather); code != 1 {
		t.Errorf("mismatched building: exit %d, want 1", code)
	}
}

func TestRequestStopBeforeRun(t *testing.T) {
	eng := newTestEngine(t)
	fires := 0
	eng.RegisterCallback(engine.BeginTimestep, func() { fires++ })
	eng.RequestStop()
	if code := eng.Run(testBuilding, testWeather); code != 0 {
		t.Errorf("stopped run exited with %d", code)
	}
	if fires != 0 {
		t.Errorf("stopped run still fired %d timesteps", fires)
	}
}

func TestRequestStopMidRun(t *testing.T) {
	eng := newTestEngine(t)
	warm := false
	observed := 0
	eng.RegisterCallback(engine.WarmupComplete, func() { warm = true })
	eng.RegisterCallback(engine.BeginTimestep, func() {
		if !warm {
			return
		}
		observed++
		if observed == 3 {
			eng.RequestStop()
		}
	})
	if code := eng.Run(testBuilding, testWeather); code != 0 {
		t.Errorf("stopped run exited with %d", code)
	}
	if observed != 3 {
		t.Errorf("expected the run to end after 3 observed timesteps, got %d", observed)
	}
}

func TestRegistrationLocksDuringRun(t *testing.T) {
	eng := newTestEngine(t)
	started := make(chan struct{})
	var once sync.Once
	eng.RegisterCallback(engine.BeginTimestep, func() {
		once.Do(func() { close(started) })
	})

	done := make(chan int, 1)
	go func() { done <- eng.Run(testBuilding, testWeather) }()
	<-started

	if _, err := eng.RegisterVariable(engine.TimeVariable, engine.TimeEntity); err == nil {
		t.Errorf("expected registration during a run to fail")
	}
	if code := eng.Run(testBuilding, testWeather); code != 1 {
		t.Errorf("second concurrent run exited with %d, want 1", code)
	}

	eng.RequestStop()
	if code := <-done; code != 0 {
		t.Errorf("run exited with %d", code)
	}
}
