package robot

import (
	"context"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Rione/racoon-frc/controlword"
	"github.com/Rione/racoon-frc/hal"
	"github.com/Rione/racoon-frc/hal/sim"
	"github.com/Rione/racoon-frc/task"
	"github.com/pkg/errors"
)

const (
	disabled = controlword.BitDSAttached
	auto     = controlword.BitDSAttached | controlword.BitEnabled | controlword.BitAutonomous
	teleop   = controlword.BitDSAttached | controlword.BitEnabled
	test     = controlword.BitDSAttached | controlword.BitEnabled | controlword.BitTest
)

type recorder struct {
	mu    sync.Mutex
	calls []string

	fail map[string]error
}

func (r *recorder) hit(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, name)
	return r.fail[name]
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *recorder) RobotInit(context.Context, *Runtime) error      { return r.hit("robot_init") }
func (r *recorder) DisabledInit(context.Context, *Runtime) error   { return r.hit("disabled_init") }
func (r *recorder) AutonomousInit(context.Context, *Runtime) error { return r.hit("autonomous_init") }
func (r *recorder) TeleopInit(context.Context, *Runtime) error     { return r.hit("teleop_init") }
func (r *recorder) TestInit(context.Context, *Runtime) error       { return r.hit("test_init") }
func (r *recorder) DisabledPeriodic(context.Context, *Runtime) error {
	return r.hit("disabled_periodic")
}
func (r *recorder) AutonomousPeriodic(context.Context, *Runtime) error {
	return r.hit("autonomous_periodic")
}
func (r *recorder) TeleopPeriodic(context.Context, *Runtime) error { return r.hit("teleop_periodic") }
func (r *recorder) TestPeriodic(context.Context, *Runtime) error   { return r.hit("test_periodic") }

func newSim(words ...uint32) (*sim.HAL, *Runtime) {
	h := sim.New(words)
	return h, NewRuntime(h, h, h)
}

func TestHookOrderAcrossModes(t *testing.T) {
	h, rt := newSim(disabled, disabled, auto, auto, teleop)
	rec := &recorder{}
	s := New(rec, rt)

	ctx := context.Background()
	if err := s.Start(ctx); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		s.Step(ctx)
	}

	want := []string{
		"robot_init",
		"disabled_init", "disabled_periodic", "disabled_periodic",
		"autonomous_init", "autonomous_periodic", "autonomous_periodic",
		"teleop_init", "teleop_periodic",
	}
	if got := rec.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("hook order\n got %v\nwant %v", got, want)
	}

	wantModes := []controlword.Mode{
		controlword.Disabled, controlword.Disabled,
		controlword.Autonomous, controlword.Autonomous,
		controlword.Teleop,
	}
	if got := h.Observed(); !reflect.DeepEqual(got, wantModes) {
		t.Fatalf("observed modes %v", got)
	}
	if st := s.Stats(); st.Ticks != 5 || st.Transitions != 3 {
		t.Fatalf("stats %+v", st)
	}
}

func TestStartupOrder(t *testing.T) {
	h, rt := newSim(disabled)
	var initCallsAtRobotInit int
	r := &initProbe{h: h, seen: &initCallsAtRobotInit}
	s := New(r, rt)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if initCallsAtRobotInit != 0 {
		t.Fatal("hal was initialised before robot init")
	}
	c := h.Calls()
	if c.Initialize != 1 || c.ProgramStarted != 1 || c.Refresh != 0 {
		t.Fatalf("calls %+v", c)
	}
	select {
	case <-s.Started():
	default:
		t.Fatal("started channel not closed")
	}
}

type initProbe struct {
	Base
	h    *sim.HAL
	seen *int
}

func (p *initProbe) RobotInit(context.Context, *Runtime) error {
	*p.seen = p.h.Calls().Initialize
	return nil
}
func (p *initProbe) AutonomousPeriodic(context.Context, *Runtime) error { return nil }
func (p *initProbe) TeleopPeriodic(context.Context, *Runtime) error     { return nil }

func TestHALInitFailureIsFatal(t *testing.T) {
	h, rt := newSim(teleop)
	h.InitErr = errors.New("timeout")
	rec := &recorder{}
	err := New(rec, rt).Run(context.Background())
	if !errors.Is(err, hal.ErrHALInit) {
		t.Fatalf("expected ErrHALInit, got %v", err)
	}
	if got := rec.Calls(); !reflect.DeepEqual(got, []string{"robot_init"}) {
		t.Fatalf("hooks ran after a failed init: %v", got)
	}
	if h.Calls().ProgramStarted != 0 {
		t.Fatal("program started was signalled")
	}
}

func TestDegradedTickReusesWord(t *testing.T) {
	h, rt := newSim(teleop, teleop)
	rec := &recorder{}
	s := New(rec, rt)
	ctx := context.Background()
	s.Start(ctx)

	s.Step(ctx)
	h.FailReads(1)
	s.Step(ctx)
	s.Step(ctx)

	want := []string{"robot_init", "teleop_init", "teleop_periodic", "teleop_periodic", "teleop_periodic"}
	if got := rec.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
	if st := s.Stats(); st.Degraded != 1 {
		t.Fatalf("degraded %d", st.Degraded)
	}
}

func TestFirstReadFailureIsDisabled(t *testing.T) {
	h, rt := newSim(teleop)
	h.FailReads(1)
	rec := &recorder{}
	s := New(rec, rt)
	ctx := context.Background()
	s.Start(ctx)
	s.Step(ctx)
	if got := rec.Calls(); got[len(got)-1] != "disabled_periodic" {
		t.Fatalf("got %v", got)
	}
}

type stopCounter struct {
	mu    sync.Mutex
	stops int
}

func (c *stopCounter) Init(context.Context, *Runtime) error { return nil }
func (c *stopCounter) Stop() error {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
	return nil
}

func TestHookFailureStopsActuators(t *testing.T) {
	h, rt := newSim(teleop, teleop, teleop)
	rt.Actuators.Register(1, "drive")
	sub := &stopCounter{}
	rt.AddSubsystem(sub)

	rec := &recorder{fail: map[string]error{"teleop_periodic": errors.New("bad math")}}
	s := New(rec, rt)
	ctx := context.Background()
	s.Start(ctx)

	rt.Actuators.Set(1, 0.7)
	s.Step(ctx)
	if h.Output(1) != 0 {
		t.Fatalf("actuator still driven: %v", h.Output(1))
	}
	if sub.stops != 1 {
		t.Fatalf("subsystem stops %d", sub.stops)
	}
	s.Step(ctx)
	if st := s.Stats(); st.HookFailures != 2 {
		t.Fatalf("failures %d", st.HookFailures)
	}
}

func TestInitFailureSkipsPeriodicOnce(t *testing.T) {
	_, rt := newSim(auto, auto)
	rec := &recorder{fail: map[string]error{"autonomous_init": errors.New("no path")}}
	s := New(rec, rt)
	ctx := context.Background()
	s.Start(ctx)
	s.Step(ctx)
	s.Step(ctx)
	want := []string{"robot_init", "autonomous_init", "autonomous_periodic"}
	if got := rec.Calls(); !reflect.DeepEqual(got, want) {
		t.Fatalf("got %v", got)
	}
}

func TestEnteringDisabledStopsSubsystems(t *testing.T) {
	_, rt := newSim(teleop, disabled, disabled)
	sub := &stopCounter{}
	rt.AddSubsystem(sub)
	s := New(&recorder{}, rt)
	ctx := context.Background()
	s.Start(ctx)
	for i := 0; i < 3; i++ {
		s.Step(ctx)
	}
	if sub.stops != 1 {
		t.Fatalf("stops %d", sub.stops)
	}
}

type taskRobot struct {
	Base
	ran chan struct{}
}

func (r *taskRobot) AutonomousPeriodic(context.Context, *Runtime) error { return nil }
func (r *taskRobot) TeleopPeriodic(ctx context.Context, rt *Runtime) error {
	rt.Tasks.Run("counter", func(ctx context.Context) error {
		select {
		case r.ran <- struct{}{}:
		default:
		}
		return task.Sleep(ctx, time.Millisecond)
	})
	return nil
}

func TestRunInterleavesTasksAndStops(t *testing.T) {
	_, rt := newSim(teleop)
	r := &taskRobot{ran: make(chan struct{}, 1)}
	s := New(r, rt, WithTickRate(1000))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case <-r.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran next to the loop")
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if rt.Tasks.Len() != 0 {
		t.Fatal("tasks left registered after shutdown")
	}
	if s.Stats().Ticks == 0 {
		t.Fatal("no ticks")
	}
}

func TestRuntimeSharesGamepadCache(t *testing.T) {
	h, rt := newSim()
	h.SetButtons(0, 1<<(5-1))
	g := rt.Gamepad(0)
	if !g.LeftBumper() {
		t.Fatal("left bumper not pressed")
	}
	rt.Gamepad(0).A()
	if h.Calls().ButtonQueries != 1 {
		t.Fatalf("queries %d", h.Calls().ButtonQueries)
	}
	if rt.Joystick(0).Cache != g.Cache {
		t.Fatal("joystick view has its own cache")
	}
}
