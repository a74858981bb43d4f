package sim

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeu5/building-rl-env/engine"
)

// fakeEngine drives the handshake deterministically: one warmup pass, then
// one timestep per tick of a counter variable. Crashes and hangs are
// scripted through the config fields.
type fakeEngine struct {
	// ticks is how many post-warmup timesteps the run produces.
	ticks int
	// failAfter, when positive, aborts the run with exitCode once that
	// many post-warmup timesteps completed.
	failAfter int
	exitCode  int
	// stallAfter, when positive, makes the run stop signaling after that
	// many timesteps without exiting, until stopped.
	stallAfter int
	// hang makes Run block without ever firing a callback, until stopped.
	hang bool

	mu        sync.Mutex
	callbacks map[engine.CallbackPoint][]func()
	reads     []func() float64
	writes    []func(float64)
	stopped   atomic.Bool

	counter float64
	applied map[string]float64
}

var _ engine.Engine = (*fakeEngine)(nil)

func newFakeEngine(ticks int) *fakeEngine {
	return &fakeEngine{
		ticks:     ticks,
		callbacks: make(map[engine.CallbackPoint][]func()),
		applied:   make(map[string]float64),
	}
}

func (f *fakeEngine) addPoint(read func() float64, write func(float64)) engine.Handle {
	f.reads = append(f.reads, read)
	f.writes = append(f.writes, write)
	return engine.Handle(len(f.reads) - 1)
}

func (f *fakeEngine) RegisterVariable(name, entity string) (engine.Handle, error) {
	if name != "counter" || entity != "fake" {
		return engine.InvalidHandle, fmt.Errorf("no variable %q on %q", name, entity)
	}
	return f.addPoint(func() float64 { return f.counter }, nil), nil
}

func (f *fakeEngine) RegisterMeter(name string) (engine.Handle, error) {
	if name != "fake_meter" {
		return engine.InvalidHandle, fmt.Errorf("no meter %q", name)
	}
	return f.addPoint(func() float64 { return f.counter * 10 }, nil), nil
}

func (f *fakeEngine) RegisterActuator(component, control, entity string) (engine.Handle, error) {
	if component != "Fake" {
		return engine.InvalidHandle, fmt.Errorf("no actuator %q", entity)
	}
	return f.addPoint(
		func() float64 { return f.applied[entity] },
		func(v float64) { f.applied[entity] = v },
	), nil
}

func (f *fakeEngine) RegisterCallback(cp engine.CallbackPoint, fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.callbacks[cp] = append(f.callbacks[cp], fn)
}

func (f *fakeEngine) GetValue(h engine.Handle) float64 {
	if h < 0 || int(h) >= len(f.reads) {
		return 0
	}
	return f.reads[h]()
}

func (f *fakeEngine) SetValue(h engine.Handle, value float64) {
	if h < 0 || int(h) >= len(f.writes) {
		return
	}
	if w := f.writes[h]; w != nil {
		w(value)
	}
}

func (f *fakeEngine) RequestStop() {
	f.stopped.Store(true)
}

func (f *fakeEngine) fire(cp engine.CallbackPoint) {
	f.mu.Lock()
	fns := make([]func(), len(f.callbacks[cp]))
	copy(fns, f.callbacks[cp])
	f.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (f *fakeEngine) Run(_, _ string) int {
	if f.hang {
		for !f.stopped.Load() {
			time.Sleep(time.Millisecond)
		}
		return 0
	}
	f.fire(engine.WarmupComplete)
	for i := 0; i < f.ticks; i++ {
		if f.stopped.Load() {
			return 0
		}
		f.counter = float64(i)
		f.fire(engine.BeginTimestep)
		if f.stopped.Load() {
			return 0
		}
		if f.failAfter > 0 && i+1 >= f.failAfter {
			return f.exitCode
		}
		if f.stallAfter > 0 && i+1 >= f.stallAfter {
			for !f.stopped.Load() {
				time.Sleep(time.Millisecond)
			}
			return 0
		}
	}
	return f.exitCode
}
