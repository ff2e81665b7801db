package main

import (
	"time"

	"github.com/Rione/racoon-frc/hal"
)

// Actuator channels
const (
	DRIVE_LEFT  hal.ActuatorID = 0
	DRIVE_RIGHT hal.ActuatorID = 1
	ARM         hal.ActuatorID = 2
)

// Driver gamepad on the driver station
const DRIVER_GAMEPAD = 0

// On-board buttons appear as this input device when GPIO is enabled.
const ONBOARD_DEVICE = 5

// GPIO pins (BCM numbering)
const (
	PIN_BUTTON1 uint8 = 5
	PIN_BUTTON2 uint8 = 6
	PIN_BUZZER  uint8 = 12
	PIN_PWM0    uint8 = 13
	PIN_PWM1    uint8 = 19
	PIN_PWM2    uint8 = 18
	PIN_ARM_TOP uint8 = 26
)

// Arm motion in autonomous. Position units are rotations.
const (
	ARM_GOAL      = 2.5
	ARM_MAX_VEL   = 1.5
	ARM_MAX_ACCEL = 3.0
	ARM_KP        = 2.0
	ARM_KI        = 0.0
	ARM_KD        = 0.05
	ARM_HOLD_KI   = 0.5
)

// Drive ramp in autonomous.
const (
	DRIVE_GOAL      = 3.0
	DRIVE_ACCEL     = 1.5 // output per second
	DRIVE_DECEL     = 3.0
	DRIVE_CRUISE    = 0.6
	DRIVE_TOLERANCE = 0.05
)

// How long the intake sequence task runs each cycle.
const INTAKE_PULSE = 1 * time.Second

// Sim mechanism speed at full output, units per second.
const SIM_SCALE = 2.0
