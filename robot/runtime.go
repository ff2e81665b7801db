package robot

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rione/racoon-frc/controlword"
	"github.com/Rione/racoon-frc/hal"
	"github.com/Rione/racoon-frc/input"
	"github.com/Rione/racoon-frc/task"
	"github.com/hashicorp/go-hclog"
)

// Runtime is the handle passed to every hook. It is built once by the
// process and owns the collaborators user code talks to.
type Runtime struct {
	Link      hal.Link
	Inputs    input.Provider
	Actuators *hal.Registry
	Tasks     *task.Manager
	Exec      *task.Executor
	Logger    hclog.Logger

	debounce time.Duration
	interval time.Duration
	now      func() time.Time

	mode atomic.Int32

	mu         sync.Mutex
	subsystems []Subsystem
	devices    map[int]*input.Gamepad
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithDebounce sets the button cache interval of devices made by the runtime.
func WithDebounce(d time.Duration) RuntimeOption {
	return func(rt *Runtime) {
		rt.debounce = d
	}
}

// WithTaskInterval sets the wait between task iterations.
func WithTaskInterval(d time.Duration) RuntimeOption {
	return func(rt *Runtime) {
		rt.interval = d
	}
}

// WithLogger sets the root logger.
func WithLogger(l hclog.Logger) RuntimeOption {
	return func(rt *Runtime) {
		rt.Logger = l
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RuntimeOption {
	return func(rt *Runtime) {
		rt.now = now
	}
}

// NewRuntime wires a backend into a runtime.
func NewRuntime(link hal.Link, inputs input.Provider, bus hal.ActuatorBus, opts ...RuntimeOption) *Runtime {
	rt := &Runtime{
		Link:     link,
		Inputs:   inputs,
		Logger:   hclog.NewNullLogger(),
		debounce: input.DefaultDebounce,
		interval: task.DefaultInterval,
		now:      time.Now,
		devices:  make(map[int]*input.Gamepad),
	}
	for _, o := range opts {
		o(rt)
	}
	rt.Exec = new(task.Executor)
	rt.Tasks = task.NewManager(
		task.WithLogger(rt.Logger),
		task.WithExecutor(rt.Exec),
		task.WithInterval(rt.interval),
	)
	rt.Actuators = hal.NewRegistry(bus, rt.Logger)
	rt.mode.Store(int32(controlword.Disabled))
	return rt
}

// Gamepad returns the gamepad on device, creating its cache on first use.
// Repeated calls share one cache.
func (rt *Runtime) Gamepad(device int) *input.Gamepad {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if g, ok := rt.devices[device]; ok {
		return g
	}
	g := input.NewGamepad(device, rt.Inputs, input.WithDebounce(rt.debounce), input.WithClock(rt.now))
	rt.devices[device] = g
	return g
}

// Joystick returns the generic view of device.
func (rt *Runtime) Joystick(device int) *input.Joystick {
	return &rt.Gamepad(device).Joystick
}

// AddSubsystem registers s. Subsystems added during RobotInit are initialised
// right after it.
func (rt *Runtime) AddSubsystem(s Subsystem) {
	rt.mu.Lock()
	rt.subsystems = append(rt.subsystems, s)
	rt.mu.Unlock()
}

func (rt *Runtime) subsystemList() []Subsystem {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	return append([]Subsystem(nil), rt.subsystems...)
}

// Mode is the mode of the last tick.
func (rt *Runtime) Mode() controlword.Mode {
	return controlword.Mode(rt.mode.Load())
}

// Now is the runtime's clock.
func (rt *Runtime) Now() time.Time {
	return rt.now()
}

// stopAll stops every subsystem and actuator, logging failures.
func (rt *Runtime) stopAll(l hclog.Logger) {
	for _, s := range rt.subsystemList() {
		if err := s.Stop(); err != nil {
			l.Error("subsystem stop failed", "error", err)
		}
	}
	if err := rt.Actuators.StopAll(); err != nil {
		l.Error("actuator stop failed", "error", err)
	}
}
