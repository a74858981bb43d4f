package types

import (
	"context"
	"encoding/json"
	"os"
	"sync"
	"time"
)

// EpisodeContext carries everything scoped to one episode: the timeout
// context, the trace being built and the outcome. The experiment creates
// one per episode and reads the outcome back after the episode returns.
type EpisodeContext struct {
	Context context.Context
	cancel  context.CancelFunc

	Episode    int
	Experiment string

	// outcome, written by the agent and the environment
	Trace       *Trace
	Timesteps   int
	Terminal    bool // the environment reported done before the horizon
	TimedOut    bool
	Err         error
	RunDuration time.Duration

	Report *EpisodeReport
}

// NewEpisodeContext derives the episode deadline from the parent context.
// A zero timeout means no per-episode deadline.
func NewEpisodeContext(parent context.Context, episode int, experiment string, timeout time.Duration) *EpisodeContext {
	var ctx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	return &EpisodeContext{
		Context:    ctx,
		cancel:     cancel,
		Episode:    episode,
		Experiment: experiment,
		Trace:      NewTrace(),
		Report:     NewEpisodeReport(episode, experiment),
	}
}

// StepContext scopes one step of the episode.
func (e *EpisodeContext) StepContext(step int) *StepContext {
	return &StepContext{Episode: e, Step: step}
}

func (e *EpisodeContext) SetError(err error) {
	e.Err = err
}

func (e *EpisodeContext) SetTimedOut() {
	e.TimedOut = true
}

// Cancel releases the episode's context resources.
func (e *EpisodeContext) Cancel() {
	e.cancel()
}

// StepContext carries the episode context into a single environment step.
// The environment writes the transition's reward and terminal flag here.
type StepContext struct {
	Episode *EpisodeContext
	Step    int

	Reward float64
	Done   bool
}

// EpisodeReport collects the measurements of one episode for offline
// inspection. Entries can be added from any goroutine.
type EpisodeReport struct {
	Episode    int                  `json:"episode"`
	Experiment string               `json:"experiment"`
	Steps      int                  `json:"steps"`
	Reward     float64              `json:"reward"`
	DurationMs int64                `json:"duration_ms"`
	Error      string               `json:"error,omitempty"`
	Values     map[string][]float64 `json:"values,omitempty"`

	lock sync.Mutex
}

func NewEpisodeReport(episode int, experiment string) *EpisodeReport {
	return &EpisodeReport{
		Episode:    episode,
		Experiment: experiment,
		Values:     make(map[string][]float64),
	}
}

// AddValue appends a measurement under the given key.
func (r *EpisodeReport) AddValue(key string, v float64) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Values[key] = append(r.Values[key], v)
}

// fill copies the episode outcome into the report.
func (r *EpisodeReport) fill(e *EpisodeContext) {
	r.Steps = e.Timesteps
	r.DurationMs = e.RunDuration.Milliseconds()
	if e.Err != nil {
		r.Error = e.Err.Error()
	} else if e.TimedOut {
		r.Error = "episode timed out"
	}
	if e.Trace != nil {
		r.Reward = e.Trace.TotalReward()
	}
}

// Record writes the report as JSON to the given path.
func (r *EpisodeReport) Record(filePath string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	bs, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return os.WriteFile(filePath, bs, 0644)
}
