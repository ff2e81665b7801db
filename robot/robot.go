// Package robot drives user code through the operating modes at a fixed
// tick rate.
package robot

import (
	"context"
)

// Robot is the user program. Each init hook runs once when its mode is
// entered; the periodic hook of the current mode runs every tick after it.
// Hooks run on the scheduler's executor and may call task.Sleep or
// task.Yield to let background tasks run.
type Robot interface {
	RobotInit(ctx context.Context, rt *Runtime) error

	DisabledInit(ctx context.Context, rt *Runtime) error
	AutonomousInit(ctx context.Context, rt *Runtime) error
	TeleopInit(ctx context.Context, rt *Runtime) error
	TestInit(ctx context.Context, rt *Runtime) error

	DisabledPeriodic(ctx context.Context, rt *Runtime) error
	AutonomousPeriodic(ctx context.Context, rt *Runtime) error
	TeleopPeriodic(ctx context.Context, rt *Runtime) error
	TestPeriodic(ctx context.Context, rt *Runtime) error
}

// Base gives every hook except AutonomousPeriodic and TeleopPeriodic a no-op
// body. Embed it and implement the two.
type Base struct{}

func (Base) RobotInit(context.Context, *Runtime) error        { return nil }
func (Base) DisabledInit(context.Context, *Runtime) error     { return nil }
func (Base) AutonomousInit(context.Context, *Runtime) error   { return nil }
func (Base) TeleopInit(context.Context, *Runtime) error       { return nil }
func (Base) TestInit(context.Context, *Runtime) error         { return nil }
func (Base) DisabledPeriodic(context.Context, *Runtime) error { return nil }
func (Base) TestPeriodic(context.Context, *Runtime) error     { return nil }

// Subsystem is a group of mechanisms with its own setup and a safe stop.
// Stop is called on entering Disabled and whenever a hook fails.
type Subsystem interface {
	Init(ctx context.Context, rt *Runtime) error
	Stop() error
}
