// Package sim bridges a callback-driven building simulation engine to a
// blocking step API. The engine owns its run loop and only yields control
// inside callbacks on its own goroutine; the bridge turns those callbacks
// into a strict two-party handshake so that a caller can drive the
// simulation one timestep at a time.
package sim

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/zeu5/building-rl-env/engine"
	"github.com/zeu5/building-rl-env/template"
)

// BridgeState is the lifecycle state of a bridge.
type BridgeState int

const (
	// Unconfigured: no engine run exists yet.
	Unconfigured BridgeState = iota
	// Starting: registrations are in flight, the run loop is not launched.
	Starting
	// WarmingUp: the run loop is live, warmup passes are in progress.
	WarmingUp
	// AwaitingAction: steady state, the caller may call Step exactly once.
	AwaitingAction
	// Finished: the run ended normally. Only Reset is valid.
	Finished
	// Crashed: the run ended abnormally or stopped signaling. Only Reset is
	// valid.
	Crashed
)

func (s BridgeState) String() string {
	switch s {
	case Unconfigured:
		return "unconfigured"
	case Starting:
		return "starting"
	case WarmingUp:
		return "warming-up"
	case AwaitingAction:
		return "awaiting-action"
	case Finished:
		return "finished"
	case Crashed:
		return "crashed"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

const defaultStepTimeout = 30 * time.Second

// Config carries everything one engine run needs.
type Config struct {
	// Building and Weather are the file paths handed to the engine run.
	Building string
	Weather  string
	// Template is the observation template to bind and fill. The bridge is
	// its only writer, once per timestep, from the engine goroutine.
	Template *template.Template
	// Actuators maps actuator identifiers to engine actuator coordinates.
	// Every entry is registered; callers may drive any subset of them.
	Actuators map[string]engine.Actuator
	// WarmupPhases is how many completed warmup passes to wait for before
	// handshaking. Zero means one.
	WarmupPhases int
	// MaxSteps caps the number of handshakes per run; when reached the
	// engine is asked to stop and the next Step reports done. Zero means
	// the run ends when the engine's run period does.
	MaxSteps int
	// StepTimeout bounds every blocking wait on the engine. A run that
	// neither signals nor exits within it is declared crashed. Zero means
	// 30 seconds.
	StepTimeout time.Duration
	// SaveDir is where the per-run scratch directory is created. Empty
	// means the system temp directory.
	SaveDir string
}

// engineRun holds everything scoped to a single engine run: the engine
// instance, the handshake channels and the run goroutine's exit. A fresh one
// is built on every start so no handle or channel survives into the next run.
type engineRun struct {
	eng     engine.Engine
	workDir string

	// obsReady and actionCh form the rendezvous: the engine-side callback
	// sends on obsReady after refreshing the template, then blocks on
	// actionCh; the caller does the converse in Step. Both are unbuffered,
	// so at most one side is runnable at a time.
	obsReady chan struct{}
	actionCh chan map[string]float64

	stop     chan struct{}
	stopOnce sync.Once

	// exitCode is written before done is closed and read only after.
	exitCode int
	done     chan struct{}

	// warmups and steps are touched only on the engine goroutine.
	warmups int
	steps   int
}

func (r *engineRun) requestStop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.eng.RequestStop()
}

// Bridge owns exactly one engine run at a time and exposes it through
// blocking Start/Step/Stop/Reset calls. One bridge per engine instance:
// engines that are process-wide singletons in their native form must not be
// shared across bridges, and whether two bridges may run concurrently in one
// process is a property of the engine implementation.
type Bridge struct {
	cfg       Config
	newEngine func() engine.Engine

	mu              sync.Mutex
	state           BridgeState
	run             *engineRun
	actuatorHandles map[string]engine.Handle
	stepping        bool
}

// New builds a bridge around an engine factory. The factory is invoked once
// per run, so every Reset gets a pristine engine.
func New(newEngine func() engine.Engine, cfg Config) *Bridge {
	if cfg.Template == nil {
		cfg.Template = template.New()
	}
	return &Bridge{
		cfg:       cfg,
		newEngine: newEngine,
		state:     Unconfigured,
	}
}

// State returns the current lifecycle state.
func (b *Bridge) State() BridgeState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Template returns the shared observation template. Reading it is only safe
// between a returned Step/Start/Reset and the next Step.
func (b *Bridge) Template() *template.Template {
	return b.cfg.Template
}

// Actuators returns the configured actuator names in sorted order.
func (b *Bridge) Actuators() []string {
	names := make([]string, 0, len(b.cfg.Actuators))
	for name := range b.cfg.Actuators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// WorkDir returns the scratch directory of the current run, or "" when no
// run is live.
func (b *Bridge) WorkDir() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.run == nil {
		return ""
	}
	return b.run.workDir
}

func (b *Bridge) stepTimeout() time.Duration {
	if b.cfg.StepTimeout > 0 {
		return b.cfg.StepTimeout
	}
	return defaultStepTimeout
}

func (b *Bridge) warmupPhases() int {
	if b.cfg.WarmupPhases > 0 {
		return b.cfg.WarmupPhases
	}
	return 1
}

// Start registers every hole and actuator with a fresh engine, launches the
// engine run loop on its own goroutine and blocks until the run delivers its
// first post-warmup observation. Valid only on an unconfigured bridge; use
// Reset to restart after a run ended.
func (b *Bridge) Start(ctx context.Context) (*template.Template, error) {
	b.mu.Lock()
	if b.state != Unconfigured {
		st := b.state
		b.mu.Unlock()
		return nil, &ProtocolError{Op: "start", State: st}
	}
	b.state = Starting
	b.mu.Unlock()

	return b.launch(ctx)
}

// Reset brings the bridge to the first decision point of a fresh run. From
// Unconfigured it behaves like Start; from Finished or Crashed it tears the
// previous run down completely (no handle survives) and starts over. A reset
// is expensive: the engine re-initializes and re-runs its warmup passes, so
// callers should prefer long episodes over frequent resets.
func (b *Bridge) Reset(ctx context.Context) (*template.Template, error) {
	b.mu.Lock()
	st := b.state
	b.mu.Unlock()

	switch st {
	case Unconfigured:
		return b.Start(ctx)
	case Finished, Crashed:
		if err := b.Stop(); err != nil {
			return nil, err
		}
		b.cfg.Template.Clear()
		b.mu.Lock()
		b.state = Starting
		b.mu.Unlock()
		return b.launch(ctx)
	default:
		return nil, &ProtocolError{Op: "reset", State: st}
	}
}

// launch does the Starting half of the lifecycle: fresh engine, registration
// and binding, run goroutine, then block until the first observation.
func (b *Bridge) launch(ctx context.Context) (*template.Template, error) {
	r := &engineRun{
		eng:      b.newEngine(),
		obsReady: make(chan struct{}),
		actionCh: make(chan map[string]float64),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}

	if err := b.register(r); err != nil {
		b.mu.Lock()
		b.state = Unconfigured
		b.mu.Unlock()
		return nil, err
	}

	workDir, err := b.makeWorkDir()
	if err != nil {
		b.cfg.Template.Unbind()
		b.mu.Lock()
		b.state = Unconfigured
		b.mu.Unlock()
		return nil, err
	}
	r.workDir = workDir

	r.eng.RegisterCallback(engine.WarmupComplete, func() {
		r.warmups++
		logrus.Debugf("warmup pass %d complete", r.warmups)
	})
	r.eng.RegisterCallback(engine.BeginTimestep, func() {
		b.onTimestep(r)
	})

	b.mu.Lock()
	if b.state != Starting {
		st := b.state
		b.mu.Unlock()
		os.RemoveAll(workDir)
		b.cfg.Template.Unbind()
		return nil, &ProtocolError{Op: "start", State: st, Reason: "bridge state changed during start"}
	}
	b.run = r
	b.state = WarmingUp
	b.mu.Unlock()

	logrus.Infof("starting engine run: building=%s weather=%s workdir=%s",
		b.cfg.Building, b.cfg.Weather, workDir)

	go func() {
		code := r.eng.Run(b.cfg.Building, b.cfg.Weather)
		r.exitCode = code
		b.mu.Lock()
		if code != 0 {
			b.state = Crashed
		} else if b.state == WarmingUp || b.state == AwaitingAction {
			b.state = Finished
		}
		b.mu.Unlock()
		close(r.done)
		logrus.Infof("engine run ended with exit code %d", code)
	}()

	select {
	case <-r.obsReady:
		return b.cfg.Template, nil
	case <-r.done:
		return nil, &SimulationCrashed{
			ExitCode: r.exitCode,
			Reason:   "engine ended before producing an observation",
		}
	case <-ctx.Done():
		b.fail(r)
		return nil, ctx.Err()
	}
}

// Step hands the given actuator values to the engine, lets it advance one
// timestep and blocks until the next observation is in the template. The
// second return is true when the run ended normally with this step; the
// template then still holds the last refreshed values. Valid only while the
// bridge awaits an action, with at most one step in flight.
func (b *Bridge) Step(ctx context.Context, actions map[string]float64) (*template.Template, bool, error) {
	b.mu.Lock()
	if b.state != AwaitingAction {
		st := b.state
		b.mu.Unlock()
		return nil, false, &ProtocolError{Op: "step", State: st}
	}
	if b.stepping {
		b.mu.Unlock()
		return nil, false, &ProtocolError{Op: "step", State: AwaitingAction, Reason: "a step is already in flight"}
	}
	for name := range actions {
		if _, ok := b.actuatorHandles[name]; !ok {
			b.mu.Unlock()
			return nil, false, &ProtocolError{Op: "step", State: AwaitingAction, Reason: fmt.Sprintf("actuator %q is not registered", name)}
		}
	}
	b.stepping = true
	r := b.run
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		b.stepping = false
		b.mu.Unlock()
	}()

	timer := time.NewTimer(b.stepTimeout())
	defer timer.Stop()

	select {
	case r.actionCh <- actions:
	case <-r.done:
		return b.terminal(r)
	case <-ctx.Done():
		b.fail(r)
		return nil, false, ctx.Err()
	case <-timer.C:
		b.fail(r)
		return nil, false, &SimulationCrashed{Reason: "engine stopped signaling while handing over the action"}
	}

	select {
	case <-r.obsReady:
		return b.cfg.Template, false, nil
	case <-r.done:
		return b.terminal(r)
	case <-ctx.Done():
		b.fail(r)
		return nil, false, ctx.Err()
	case <-timer.C:
		b.fail(r)
		return nil, false, &SimulationCrashed{Reason: "engine stopped signaling while computing the next observation"}
	}
}

// terminal translates a finished run into a step result: a terminal
// observation on a normal end, a crash otherwise.
func (b *Bridge) terminal(r *engineRun) (*template.Template, bool, error) {
	if r.exitCode == 0 {
		return b.cfg.Template, true, nil
	}
	return nil, false, &SimulationCrashed{ExitCode: r.exitCode}
}

// fail releases the engine side of the handshake and marks the run crashed,
// without waiting for the run goroutine. Used when a bounded wait expired or
// the caller's context was cancelled.
func (b *Bridge) fail(r *engineRun) {
	r.requestStop()
	b.mu.Lock()
	if b.state != Finished {
		b.state = Crashed
	}
	b.mu.Unlock()
}

// Stop requests engine shutdown, joins the run goroutine and releases every
// handle of the current run. Safe to call from any state, concurrently with
// a blocked Step (which is then released with a terminal result), and any
// number of times.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	r := b.run
	if r == nil {
		if b.state == Starting {
			b.state = Finished
		}
		b.mu.Unlock()
		return nil
	}
	b.mu.Unlock()

	r.requestStop()

	select {
	case <-r.done:
	case <-time.After(b.stepTimeout()):
		b.mu.Lock()
		b.state = Crashed
		b.mu.Unlock()
		return &SimulationCrashed{Reason: "engine did not stop within the timeout"}
	}

	b.release(r)
	return nil
}

// release drops everything scoped to a finished run: the cached handles, the
// template binding and the scratch directory. Only called once the run
// goroutine has exited.
func (b *Bridge) release(r *engineRun) {
	b.mu.Lock()
	if b.run == r {
		b.run = nil
		b.actuatorHandles = nil
	}
	b.mu.Unlock()

	b.cfg.Template.Unbind()
	if r.workDir != "" {
		os.RemoveAll(r.workDir)
	}
}

// register resolves every template hole and every actuator identifier to an
// engine handle. All registration happens before the run loop is launched,
// as the engine contract requires. Fails fast with a ResolutionError.
func (b *Bridge) register(r *engineRun) error {
	if lister, ok := r.eng.(engine.EndpointLister); ok {
		if err := preflight(lister, b.cfg.Template, b.cfg.Actuators); err != nil {
			return err
		}
	}

	err := b.cfg.Template.Bind(func(h template.Hole) (engine.Handle, error) {
		switch h.Kind {
		case template.Meter:
			hd, err := r.eng.RegisterMeter(h.Name)
			if err != nil {
				return engine.InvalidHandle, &ResolutionError{Kind: "meter", Name: h.Name, Err: err}
			}
			return hd, nil
		default:
			hd, err := r.eng.RegisterVariable(h.Name, h.Entity)
			if err != nil {
				return engine.InvalidHandle, &ResolutionError{Kind: "variable", Name: h.Name, Entity: h.Entity, Err: err}
			}
			return hd, nil
		}
	})
	if err != nil {
		return err
	}

	names := make([]string, 0, len(b.cfg.Actuators))
	for name := range b.cfg.Actuators {
		names = append(names, name)
	}
	sort.Strings(names)

	handles := make(map[string]engine.Handle, len(names))
	for _, name := range names {
		act := b.cfg.Actuators[name]
		hd, err := r.eng.RegisterActuator(act.Component, act.Control, act.Entity)
		if err != nil {
			b.cfg.Template.Unbind()
			return &ResolutionError{Kind: "actuator", Name: name, Entity: act.Entity, Err: err}
		}
		handles[name] = hd
	}

	b.mu.Lock()
	b.actuatorHandles = handles
	b.mu.Unlock()

	logrus.Debugf("registered %d holes and %d actuators", b.cfg.Template.Len(), len(handles))
	return nil
}

// preflight checks every hole and actuator against the engine's endpoint
// listing before registering anything, so a typo fails with the offending
// name instead of a half-registered engine.
func preflight(lister engine.EndpointLister, tpl *template.Template, actuators map[string]engine.Actuator) error {
	vars := make(map[engine.DataPoint]struct{})
	for _, v := range lister.Variables() {
		vars[v] = struct{}{}
	}
	meters := make(map[string]struct{})
	for _, m := range lister.Meters() {
		meters[m] = struct{}{}
	}
	acts := make(map[engine.Actuator]struct{})
	for _, a := range lister.Actuators() {
		acts[a] = struct{}{}
	}

	for _, ph := range tpl.Holes() {
		h := ph.Hole
		switch h.Kind {
		case template.Meter:
			if _, ok := meters[h.Name]; !ok {
				return &ResolutionError{Kind: "meter", Name: h.Name, Err: fmt.Errorf("engine does not expose it")}
			}
		default:
			if _, ok := vars[engine.DataPoint{Name: h.Name, Entity: h.Entity}]; !ok {
				return &ResolutionError{Kind: "variable", Name: h.Name, Entity: h.Entity, Err: fmt.Errorf("engine does not expose it")}
			}
		}
	}
	for name, a := range actuators {
		if _, ok := acts[a]; !ok {
			return &ResolutionError{Kind: "actuator", Name: name, Entity: a.Entity, Err: fmt.Errorf("engine does not expose it")}
		}
	}
	return nil
}

// onTimestep is the engine-side half of the handshake, invoked by the engine
// from its run goroutine at the start of every timestep. During warmup it is
// a pass-through. Afterwards it refreshes the template, signals the blocked
// caller, waits for an action and writes it through the actuator handles
// before returning control to the engine.
func (b *Bridge) onTimestep(r *engineRun) {
	if r.warmups < b.warmupPhases() {
		return
	}

	b.mu.Lock()
	if b.state == WarmingUp {
		b.state = AwaitingAction
		logrus.Infof("engine past warmup after %d passes, first observation ready", r.warmups)
	}
	st := b.state
	handles := b.actuatorHandles
	b.mu.Unlock()
	if st != AwaitingAction {
		return
	}

	b.cfg.Template.Refresh(r.eng.GetValue)

	select {
	case r.obsReady <- struct{}{}:
		logrus.Debugf("observation %d handed to caller", r.steps)
	case <-r.stop:
		r.eng.RequestStop()
		return
	}

	select {
	case actions := <-r.actionCh:
		for name, value := range actions {
			r.eng.SetValue(handles[name], value)
		}
		r.steps++
		logrus.Debugf("action %d applied (%d actuator values)", r.steps, len(actions))
		if b.cfg.MaxSteps > 0 && r.steps >= b.cfg.MaxSteps {
			logrus.Debugf("step cap %d reached, requesting engine stop", b.cfg.MaxSteps)
			r.eng.RequestStop()
		}
	case <-r.stop:
		r.eng.RequestStop()
		return
	}
}

// makeWorkDir creates the per-run scratch directory and drops a small run
// manifest into it. Engines that write log files get pointed here by their
// own configuration; the bridge removes the directory on Stop.
func (b *Bridge) makeWorkDir() (string, error) {
	saveDir := b.cfg.SaveDir
	if saveDir == "" {
		saveDir = os.TempDir()
	}
	dir := filepath.Join(saveDir, "run-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating run directory: %w", err)
	}
	manifest := map[string]string{
		"building":   b.cfg.Building,
		"weather":    b.cfg.Weather,
		"started_at": time.Now().Format(time.RFC3339),
	}
	bs, err := json.Marshal(manifest)
	if err == nil {
		os.WriteFile(filepath.Join(dir, "run.json"), bs, 0644)
	}
	return dir, nil
}
