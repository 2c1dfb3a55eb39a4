package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mehdichamani/HikStatus/internal/config"
)

// State is the supervisor lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
)

// Runner is one started monitor instance, bound to a config snapshot.
type Runner interface {
	Startup(ctx context.Context) error
	RunCycle(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// RunnerFactory builds a Runner for a config snapshot. Construction
// errors (missing camera-name file, bad config) abort the start.
type RunnerFactory func(cfg *config.Config) (Runner, error)

// Supervisor owns the background cycle lifecycle: at most one cycle
// loop runs at any time, stop is cooperative with bounded latency, and
// restart always joins the old loop before starting the new one.
type Supervisor struct {
	mu      sync.Mutex
	state   State
	factory RunnerFactory
	log     zerolog.Logger

	quit chan struct{}
	done chan struct{}
}

func NewSupervisor(factory RunnerFactory, log zerolog.Logger) *Supervisor {
	return &Supervisor{
		state:   StateStopped,
		factory: factory,
		log:     log,
	}
}

func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Start launches the cycle loop for the given config snapshot.
func (s *Supervisor) Start(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStopped {
		return fmt.Errorf("supervisor: cannot start from state %s", s.state)
	}
	s.state = StateStarting

	runner, err := s.factory(cfg)
	if err != nil {
		s.state = StateStopped
		s.log.Error().Err(err).Msg("monitor startup failed")
		return fmt.Errorf("build monitor: %w", err)
	}
	if err := runner.Startup(context.Background()); err != nil {
		s.state = StateStopped
		s.log.Error().Err(err).Msg("monitor startup failed")
		return fmt.Errorf("monitor startup: %w", err)
	}

	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(runner, cfg.PollInterval(), s.quit, s.done)

	s.state = StateRunning
	s.log.Info().Int("config_version", cfg.Version).Msg("supervisor running")
	return nil
}

// Stop requests cooperative shutdown and waits up to timeout for the
// loop to finish. In-flight NVR polls and mail sends are allowed to
// complete or time out naturally. If the loop does not finish in time
// the supervisor stays in Stopping: it only reaches Stopped once the
// loop has actually exited, so a new loop can never start alongside a
// straggler. Calling Stop again while Stopping just waits some more.
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.mu.Lock()
	switch s.state {
	case StateRunning:
	case StateStopping:
		done := s.done
		s.mu.Unlock()
		return s.awaitDone(done, timeout)
	default:
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	quit, done := s.quit, s.done
	s.mu.Unlock()

	close(quit)
	return s.awaitDone(done, timeout)
}

// awaitDone waits for the cycle loop to exit and flips the state to
// Stopped when it does. On timeout it leaves a watcher behind so the
// transition still happens whenever the straggling loop finishes.
func (s *Supervisor) awaitDone(done chan struct{}, timeout time.Duration) error {
	select {
	case <-done:
		s.markStopped(done)
		return nil
	case <-time.After(timeout):
		s.log.Warn().Dur("timeout", timeout).Msg("monitor loop did not stop in time")
		go func() {
			<-done
			s.markStopped(done)
			s.log.Info().Msg("straggling monitor loop finished")
		}()
		return fmt.Errorf("supervisor: cycle loop did not stop within %s", timeout)
	}
}

func (s *Supervisor) markStopped(done chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == done && s.state == StateStopping {
		s.state = StateStopped
	}
}

// Restart stops the current loop (bounded) and starts a fresh one with
// the new config snapshot. State in the store carries over untouched.
func (s *Supervisor) Restart(cfg *config.Config, stopTimeout time.Duration) error {
	if err := s.Stop(stopTimeout); err != nil {
		return err
	}
	return s.Start(cfg)
}

func (s *Supervisor) run(runner Runner, interval time.Duration, quit, done chan struct{}) {
	defer close(done)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := runner.Shutdown(ctx); err != nil {
			s.log.Error().Err(err).Msg("monitor shutdown hook failed")
		}
	}()

	for {
		select {
		case <-quit:
			return
		default:
		}

		if err := s.safeCycle(runner); err != nil {
			// One bad cycle never kills the loop.
			s.log.Error().Err(err).Msg("cycle failed")
		}

		if !s.sleep(interval, quit) {
			return
		}
	}
}

// safeCycle contains a cycle's panic so a single poisoned poll cannot
// take the loop down.
func (s *Supervisor) safeCycle(runner Runner) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cycle panic: %v", p)
		}
	}()
	return runner.RunCycle(context.Background())
}

// sleep waits out the inter-cycle interval in one-second slices so a
// stop request is honored within about a second. Returns false when
// quit fired.
func (s *Supervisor) sleep(interval time.Duration, quit chan struct{}) bool {
	deadline := time.Now().Add(interval)
	for time.Now().Before(deadline) {
		remaining := time.Until(deadline)
		if remaining > time.Second {
			remaining = time.Second
		}
		select {
		case <-quit:
			return false
		case <-time.After(remaining):
		}
	}
	return true
}
