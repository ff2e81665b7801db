package robot

import (
	"context"
	"sync"
	"time"

	"github.com/Rione/racoon-frc/controlword"
	"github.com/Rione/racoon-frc/hal"
	"github.com/Rione/racoon-frc/task"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Defaults for the scheduler.
const (
	DefaultTickHz     = 250
	DefaultHALTimeout = 500 * time.Millisecond
	DefaultHALMode    = 0
)

// noMode makes the first tick look like a transition.
const noMode controlword.Mode = -1

// Stats counts what happened across ticks.
type Stats struct {
	Ticks        uint64
	Degraded     uint64
	HookFailures uint64
	Transitions  uint64
}

// Scheduler runs a Robot.
type Scheduler struct {
	l     hclog.Logger
	robot Robot
	rt    *Runtime

	period     time.Duration
	halTimeout time.Duration
	halMode    int32

	prev     controlword.Mode
	lastWord uint32

	startOnce sync.Once
	started   chan struct{}

	mu    sync.Mutex
	stats Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickRate sets the loop frequency.
func WithTickRate(hz int) Option {
	return func(s *Scheduler) {
		if hz > 0 {
			s.period = time.Second / time.Duration(hz)
		}
	}
}

// WithHALInit sets the arguments passed to Link.Initialize.
func WithHALInit(timeout time.Duration, mode int32) Option {
	return func(s *Scheduler) {
		s.halTimeout = timeout
		s.halMode = mode
	}
}

// New returns a scheduler for r on rt.
func New(r Robot, rt *Runtime, opts ...Option) *Scheduler {
	s := &Scheduler{
		l:          rt.Logger.Named("scheduler"),
		robot:      r,
		rt:         rt,
		period:     time.Second / DefaultTickHz,
		halTimeout: DefaultHALTimeout,
		halMode:    DefaultHALMode,
		prev:       noMode,
		started:    make(chan struct{}),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Period is the tick period.
func (s *Scheduler) Period() time.Duration { return s.period }

// Started is closed once the loop is about to run its first tick.
func (s *Scheduler) Started() <-chan struct{} { return s.started }

// Stats returns a copy of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Run starts the robot and ticks until ctx is cancelled. It returns an error
// only when startup fails; cancellation is a clean stop.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	defer s.shutdown()

	for {
		begin := s.rt.now()
		s.Step(ctx)
		if ctx.Err() != nil {
			return nil
		}
		wait := s.period - s.rt.now().Sub(begin)
		if wait < 0 {
			wait = 0
		}
		if err := task.Sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// Start runs robot init, initialises the HAL and tells the link that user
// code is running, in that order.
func (s *Scheduler) Start(ctx context.Context) error {
	err := s.rt.Exec.Do(ctx, func(ctx context.Context) error {
		if err := s.robot.RobotInit(ctx, s.rt); err != nil {
			return errors.Wrap(err, "robot init")
		}
		for _, sub := range s.rt.subsystemList() {
			if err := sub.Init(ctx, s.rt); err != nil {
				return errors.Wrap(err, "subsystem init")
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.rt.Link.Initialize(s.halTimeout, s.halMode); err != nil {
		if !errors.Is(err, hal.ErrHALInit) {
			err = errors.Wrap(hal.ErrHALInit, err.Error())
		}
		s.l.Error("hal init failed", "timeout", s.halTimeout, "mode", s.halMode, "error", err)
		return err
	}
	if err := s.rt.Link.SignalProgramStarted(); err != nil {
		return errors.Wrap(err, "signal program started")
	}

	s.startOnce.Do(func() { close(s.started) })
	s.l.Info("robot program started", "period", s.period)
	return nil
}

// Step runs one tick without the trailing sleep.
func (s *Scheduler) Step(ctx context.Context) {
	s.rt.Exec.Do(ctx, func(ctx context.Context) error {
		s.tick(ctx)
		return nil
	})
}

func (s *Scheduler) tick(ctx context.Context) {
	degraded := false
	if err := s.rt.Link.RefreshLinkData(); err != nil {
		degraded = true
		s.l.Warn("degraded tick", "call", "RefreshLinkData", "error", err)
	}
	raw, err := s.rt.Link.ReadControlWord()
	if err != nil {
		degraded = true
		raw = s.lastWord
		s.l.Warn("degraded tick", "call", "ReadControlWord", "error", err, "reused", raw)
	}
	s.lastWord = raw
	mode := controlword.Decode(raw).Mode()

	s.mu.Lock()
	s.stats.Ticks++
	if degraded {
		s.stats.Degraded++
	}
	s.mu.Unlock()

	ok := true
	if mode != s.prev {
		s.transition(ctx, mode)
		ok = s.run(ctx, mode, "init", s.initHook(mode))
	}
	if ok {
		s.run(ctx, mode, "periodic", s.periodicHook(mode))
	}

	s.prev = mode
	s.rt.mode.Store(int32(mode))
	if o, ok := s.rt.Link.(hal.ModeObserver); ok {
		o.ObserveMode(mode)
	}
}

func (s *Scheduler) transition(ctx context.Context, to controlword.Mode) {
	if s.prev == noMode {
		s.l.Info("mode transition", "from", "none", "to", to)
	} else {
		s.l.Info("mode transition", "from", s.prev, "to", to)
	}
	s.mu.Lock()
	s.stats.Transitions++
	s.mu.Unlock()
	if to == controlword.Disabled {
		s.rt.stopAll(s.l)
	}
}

type hook func(ctx context.Context, rt *Runtime) error

// run calls h. A returned error is logged and every actuator and subsystem is
// stopped. Panics are not recovered.
func (s *Scheduler) run(ctx context.Context, mode controlword.Mode, kind string, h hook) bool {
	if err := h(ctx, s.rt); err != nil {
		s.mu.Lock()
		s.stats.HookFailures++
		s.mu.Unlock()
		s.l.Error("hook failed, stopping actuators", "mode", mode, "hook", kind, "error", err)
		s.rt.stopAll(s.l)
		return false
	}
	return true
}

func (s *Scheduler) initHook(m controlword.Mode) hook {
	switch m {
	case controlword.Autonomous:
		return s.robot.AutonomousInit
	case controlword.Teleop:
		return s.robot.TeleopInit
	case controlword.Test:
		return s.robot.TestInit
	}
	return s.robot.DisabledInit
}

func (s *Scheduler) periodicHook(m controlword.Mode) hook {
	switch m {
	case controlword.Autonomous:
		return s.robot.AutonomousPeriodic
	case controlword.Teleop:
		return s.robot.TeleopPeriodic
	case controlword.Test:
		return s.robot.TestPeriodic
	}
	return s.robot.DisabledPeriodic
}

func (s *Scheduler) shutdown() {
	s.rt.Tasks.AbortAll()
	s.rt.Exec.Do(context.Background(), func(context.Context) error {
		s.rt.stopAll(s.l)
		return nil
	})
	s.rt.Tasks.Wait()
	s.l.Info("robot program stopped", "ticks", s.Stats().Ticks)
}
