package main

import (
	"context"
	"time"

	"github.com/Rione/racoon-frc/hal"
	"github.com/Rione/racoon-frc/input"
	"github.com/Rione/racoon-frc/motion"
	"github.com/Rione/racoon-frc/robot"
	"github.com/Rione/racoon-frc/task"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// demoRobot drives forward and raises the arm in autonomous, and maps the
// driver gamepad in teleop.
type demoRobot struct {
	robot.Base

	l        hclog.Logger
	encoder  func(hal.ActuatorID) (hal.Encoder, error)
	armLimit hal.DigitalInput

	drive, arm   hal.Actuator
	driveEncoder hal.Encoder
	armEncoder   hal.Encoder
	gamepad      *input.Gamepad

	profile *motion.Trapezoid
	armPID  motion.Controller
	ramp    *motion.RateLimiter
	last    time.Time

	// teleop arm hold
	holdPID motion.Controller
	holding bool
	holdAt  float64
}

// newDemoRobot builds the robot. armLimit is the arm's upper limit switch and
// may be nil.
func newDemoRobot(l hclog.Logger, encoder func(hal.ActuatorID) (hal.Encoder, error), armLimit hal.DigitalInput) *demoRobot {
	return &demoRobot{
		l:        l.Named("robot"),
		encoder:  encoder,
		armLimit: armLimit,
		armPID:   motion.NewPID(ARM_KP, ARM_KI, ARM_KD),
		ramp:     motion.NewRateLimiter(DRIVE_ACCEL, DRIVE_DECEL, DRIVE_CRUISE, DRIVE_TOLERANCE),
		holdPID:  motion.NewLimitedPID(ARM_KP, ARM_HOLD_KI, ARM_KD),
	}
}

// setArm commands the arm. Upward output is dropped while the upper limit
// switch is pressed.
func (r *demoRobot) setArm(v float64) error {
	if v > 0 && r.armLimit != nil {
		top, err := r.armLimit.Get()
		if err != nil {
			return errors.Wrap(err, "arm limit")
		}
		if top {
			return r.arm.Stop()
		}
	}
	return r.arm.Set(v)
}

func (r *demoRobot) RobotInit(ctx context.Context, rt *robot.Runtime) error {
	r.drive = rt.Actuators.Register(DRIVE_LEFT, "drive-left")
	rt.Actuators.Register(DRIVE_RIGHT, "drive-right")
	if err := rt.Actuators.Follow(DRIVE_RIGHT, DRIVE_LEFT, true); err != nil {
		return err
	}
	r.arm = rt.Actuators.Register(ARM, "arm")

	var err error
	if r.driveEncoder, err = r.encoder(DRIVE_LEFT); err != nil {
		return errors.Wrap(err, "drive encoder")
	}
	if r.armEncoder, err = r.encoder(ARM); err != nil {
		return errors.Wrap(err, "arm encoder")
	}
	r.gamepad = rt.Gamepad(DRIVER_GAMEPAD)
	rt.AddSubsystem(&armSubsystem{arm: r.arm, pid: r.armPID})
	r.l.Info("robot init")
	return nil
}

// step returns the time since the previous call, or the tick period on the
// first call after a mode change.
func (r *demoRobot) step(rt *robot.Runtime) float64 {
	now := rt.Now()
	dt := now.Sub(r.last)
	if r.last.IsZero() || dt <= 0 || dt > time.Second {
		dt = time.Second / robot.DefaultTickHz
	}
	r.last = now
	return dt.Seconds()
}

func (r *demoRobot) DisabledInit(ctx context.Context, rt *robot.Runtime) error {
	r.last = time.Time{}
	return nil
}

func (r *demoRobot) AutonomousInit(ctx context.Context, rt *robot.Runtime) error {
	start, err := r.armEncoder.Position()
	if err != nil {
		return err
	}
	r.profile, err = motion.NewTrapezoid(start, ARM_GOAL, ARM_MAX_VEL, ARM_MAX_ACCEL)
	if err != nil {
		return err
	}
	r.armPID.Reset()
	r.ramp.Reset()
	r.last = time.Time{}
	r.l.Info("autonomous plan", "arm_from", start, "arm_to", ARM_GOAL, "duration", r.profile.TotalTime())
	return nil
}

func (r *demoRobot) AutonomousPeriodic(ctx context.Context, rt *robot.Runtime) error {
	dt := r.step(rt)

	ref, _, err := r.profile.Update(dt)
	if err != nil {
		return err
	}
	pos, err := r.armEncoder.Position()
	if err != nil {
		return err
	}
	out, err := r.armPID.Update(ref, pos, dt)
	if err != nil {
		return err
	}
	if err := r.setArm(out); err != nil {
		return err
	}

	travelled, err := r.driveEncoder.Position()
	if err != nil {
		return err
	}
	power, err := r.ramp.Update(travelled, DRIVE_GOAL, dt)
	if err != nil {
		return err
	}
	return r.drive.Set(power)
}

func (r *demoRobot) TeleopInit(ctx context.Context, rt *robot.Runtime) error {
	r.armPID.Reset()
	r.holding = false
	r.last = time.Time{}
	return nil
}

func (r *demoRobot) TeleopPeriodic(ctx context.Context, rt *robot.Runtime) error {
	dt := r.step(rt)
	if r.gamepad.LeftBumper() {
		rt.Tasks.Run("intake", r.intake)
	} else {
		rt.Tasks.Abort("intake")
	}

	y, err := r.gamepad.LeftY()
	if err != nil {
		return err
	}
	if err := r.drive.Set(-y); err != nil {
		return err
	}
	lift, err := r.gamepad.RightTrigger()
	if err != nil {
		return err
	}
	lower, err := r.gamepad.LeftTrigger()
	if err != nil {
		return err
	}
	if lift != 0 || lower != 0 {
		r.holding = false
		return r.setArm(lift - lower)
	}
	return r.holdArm(dt)
}

// holdArm keeps the arm where the triggers left it.
func (r *demoRobot) holdArm(dt float64) error {
	pos, err := r.armEncoder.Position()
	if err != nil {
		return err
	}
	if !r.holding {
		r.holding = true
		r.holdAt = pos
		r.holdPID.Reset()
	}
	out, err := r.holdPID.Update(r.holdAt, pos, dt)
	if err != nil {
		return err
	}
	return r.setArm(out)
}

// intake is one cycle of the button-held sequence.
func (r *demoRobot) intake(ctx context.Context) error {
	r.l.Info("intake cycle started")
	if err := task.Sleep(ctx, INTAKE_PULSE); err != nil {
		r.l.Info("intake cycle aborted")
		return nil
	}
	r.l.Info("intake cycle finished")
	return nil
}

func (r *demoRobot) TestPeriodic(ctx context.Context, rt *robot.Runtime) error {
	dir, err := r.gamepad.Direction()
	if err != nil {
		return err
	}
	switch dir {
	case input.DirUp:
		return r.setArm(0.3)
	case input.DirDown:
		return r.setArm(-0.3)
	}
	return r.arm.Stop()
}

// armSubsystem parks the arm when the robot stops.
type armSubsystem struct {
	arm hal.Actuator
	pid motion.Controller
}

func (a *armSubsystem) Init(ctx context.Context, rt *robot.Runtime) error {
	return a.arm.Stop()
}

func (a *armSubsystem) Stop() error {
	a.pid.Reset()
	return a.arm.Stop()
}
