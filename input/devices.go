package input

import "github.com/pkg/errors"

// Direction is a d-pad direction decoded from a POV angle.
type Direction int

// All the directions reported by a hat switch
const (
	DirNone Direction = iota
	DirUp
	DirRight
	DirDown
	DirLeft
	DirOther
)

func (d Direction) String() string {
	switch d {
	case DirNone:
		return "none"
	case DirUp:
		return "up"
	case DirRight:
		return "right"
	case DirDown:
		return "down"
	case DirLeft:
		return "left"
	}
	return "other"
}

// DirectionFromDegrees maps a POV angle. Diagonals come back as DirOther.
func DirectionFromDegrees(deg int) Direction {
	switch deg {
	case -1:
		return DirNone
	case 0:
		return DirUp
	case 90:
		return DirRight
	case 180:
		return DirDown
	case 270:
		return DirLeft
	}
	return DirOther
}

var errNoPOV = errors.New("provider has no POV support")

// Joystick is a generic HID device.
type Joystick struct {
	*Cache
	p Provider
}

// NewJoystick binds device to p.
func NewJoystick(device int, p Provider, opts ...CacheOption) *Joystick {
	return &Joystick{
		Cache: NewCache(device, p, opts...),
		p:     p,
	}
}

// Axis reads a raw axis.
func (j *Joystick) Axis(axis int) (float64, error) {
	v, err := j.p.ReadAxis(j.Device(), axis)
	return v, errors.Wrapf(err, "read axis %d of device %d", axis, j.Device())
}

func (j *Joystick) X() (float64, error) { return j.Axis(0) }
func (j *Joystick) Y() (float64, error) { return j.Axis(1) }
func (j *Joystick) Z() (float64, error) { return j.Axis(2) }

// POV returns the hat angle in degrees.
func (j *Joystick) POV() (int, error) {
	pr, ok := j.p.(POVReader)
	if !ok {
		return -1, errNoPOV
	}
	deg, err := pr.ReadPOV(j.Device())
	if err != nil {
		return -1, errors.Wrapf(err, "read pov of device %d", j.Device())
	}
	return deg, nil
}

// Direction decodes POV.
func (j *Joystick) Direction() (Direction, error) {
	deg, err := j.POV()
	if err != nil {
		return DirNone, err
	}
	return DirectionFromDegrees(deg), nil
}

// Xbox-layout button ids.
const (
	ButtonA           = 1
	ButtonB           = 2
	ButtonX           = 3
	ButtonY           = 4
	ButtonLeftBumper  = 5
	ButtonRightBumper = 6
	ButtonBack        = 7
	ButtonStart       = 8
	ButtonLeftStick   = 9
	ButtonRightStick  = 10
)

// Xbox-layout axis ids.
const (
	AxisLeftX        = 0
	AxisLeftY        = 1
	AxisLeftTrigger  = 2
	AxisRightTrigger = 3
	AxisRightX       = 4
	AxisRightY       = 5
)

// Gamepad is a Joystick with the Xbox controller layout.
type Gamepad struct {
	Joystick
}

// NewGamepad binds device to p.
func NewGamepad(device int, p Provider, opts ...CacheOption) *Gamepad {
	return &Gamepad{Joystick: *NewJoystick(device, p, opts...)}
}

// pressed swallows the error: a failed refresh leaves the cached state, which
// is what a button accessor should report.
func (g *Gamepad) pressed(id int) bool {
	v, _ := g.Button(id)
	return v
}

func (g *Gamepad) A() bool           { return g.pressed(ButtonA) }
func (g *Gamepad) B() bool           { return g.pressed(ButtonB) }
func (g *Gamepad) X() bool           { return g.pressed(ButtonX) }
func (g *Gamepad) Y() bool           { return g.pressed(ButtonY) }
func (g *Gamepad) LeftBumper() bool  { return g.pressed(ButtonLeftBumper) }
func (g *Gamepad) RightBumper() bool { return g.pressed(ButtonRightBumper) }
func (g *Gamepad) Back() bool        { return g.pressed(ButtonBack) }
func (g *Gamepad) Start() bool       { return g.pressed(ButtonStart) }
func (g *Gamepad) LeftStick() bool   { return g.pressed(ButtonLeftStick) }
func (g *Gamepad) RightStick() bool  { return g.pressed(ButtonRightStick) }

func (g *Gamepad) LeftX() (float64, error)        { return g.Axis(AxisLeftX) }
func (g *Gamepad) LeftY() (float64, error)        { return g.Axis(AxisLeftY) }
func (g *Gamepad) RightX() (float64, error)       { return g.Axis(AxisRightX) }
func (g *Gamepad) RightY() (float64, error)       { return g.Axis(AxisRightY) }
func (g *Gamepad) LeftTrigger() (float64, error)  { return g.Axis(AxisLeftTrigger) }
func (g *Gamepad) RightTrigger() (float64, error) { return g.Axis(AxisRightTrigger) }
