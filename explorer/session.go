package explorer

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/zeu5/building-rl-env/sim"
)

// Session owns one bridge and serializes access to it. Watchers subscribe
// to its broadcaster and see every step taken through the session.
type Session struct {
	ID       string
	Building string
	Weather  string

	mu     sync.Mutex
	bridge *sim.Bridge
	steps  int
	caster *Broadcaster
}

func newSession(building, weather string, bridge *sim.Bridge) *Session {
	return &Session{
		ID:       uuid.NewString(),
		Building: building,
		Weather:  weather,
		bridge:   bridge,
		caster:   NewBroadcaster(),
	}
}

// Reset starts or restarts the session's engine run and returns the first
// observation.
func (s *Session) Reset(ctx context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, err := s.bridge.Reset(ctx)
	if err != nil {
		return nil, err
	}
	s.steps = 0
	return tpl.Snapshot(), nil
}

// Step hands the actions to the engine, broadcasts the resulting
// observation to watchers and returns it. A crashed run counts as a final
// step so watchers see the session end.
func (s *Session) Step(ctx context.Context, actions map[string]float64) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tpl, done, err := s.bridge.Step(ctx, actions)
	if err != nil {
		crash := &sim.SimulationCrashed{}
		if errors.As(err, &crash) {
			s.steps++
			s.caster.Publish(StepUpdate{Step: s.steps, Observation: s.bridge.Template().Flatten(), Done: true})
		}
		return nil, false, err
	}
	s.steps++
	s.caster.Publish(StepUpdate{Step: s.steps, Observation: tpl.Flatten(), Done: done})
	return tpl.Snapshot(), done, nil
}

// Observation returns the values the template currently holds.
func (s *Session) Observation() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bridge.Template().Snapshot()
}

func (s *Session) State() sim.BridgeState {
	return s.bridge.State()
}

// Watch subscribes to the session's step updates.
func (s *Session) Watch() Subscriber {
	return s.caster.Subscribe()
}

func (s *Session) Unwatch(sub Subscriber) {
	s.caster.Unsubscribe(sub)
}

// Close stops the engine run and disconnects all watchers. The session
// cannot be used afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.bridge.Stop()
	s.caster.Close()
	return err
}
