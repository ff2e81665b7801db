// Package sim is an in-process HAL. It plays a scripted sequence of control
// words, serves input state set by the caller and integrates actuator
// outputs into encoder positions.
package sim

import (
	"sync"
	"time"

	"github.com/Rione/racoon-frc/controlword"
	"github.com/Rione/racoon-frc/hal"
	"github.com/pkg/errors"
)

// Phase holds one control word for a number of reads.
type Phase struct {
	Word  uint32
	Reads int
}

// Calls counts collaborator calls.
type Calls struct {
	Initialize     int
	Refresh        int
	ProgramStarted int
	ReadWord       int
	ButtonQueries  int
}

// HAL is the simulated backend.
type HAL struct {
	mu  sync.Mutex
	now func() time.Time

	script  []uint32
	pos     int
	hold    uint32
	failNxt int

	InitErr error

	calls    Calls
	observed []controlword.Mode

	buttons map[int]uint32
	axes    map[[2]int]float64
	pov     map[int]int

	outputs   map[hal.ActuatorID]float64
	positions map[hal.ActuatorID]float64
	// Scale converts a unit command into position units per second.
	Scale       float64
	lastRefresh time.Time
}

// Option configures a HAL.
type Option func(*HAL)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(h *HAL) {
		h.now = now
	}
}

// New returns a HAL that reads words in order. Once the script is exhausted
// the last word is repeated.
func New(words []uint32, opts ...Option) *HAL {
	h := &HAL{
		now:       time.Now,
		script:    append([]uint32(nil), words...),
		buttons:   make(map[int]uint32),
		axes:      make(map[[2]int]float64),
		pov:       make(map[int]int),
		outputs:   make(map[hal.ActuatorID]float64),
		positions: make(map[hal.ActuatorID]float64),
		Scale:     1,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Script expands phases into a word list for New.
func Script(phases ...Phase) []uint32 {
	var words []uint32
	for _, p := range phases {
		for i := 0; i < p.Reads; i++ {
			words = append(words, p.Word)
		}
	}
	return words
}

// Match is a short practice match: disabled, autonomous, teleop.
func Match(tickHz int) []uint32 {
	ds := uint32(controlword.BitDSAttached)
	return Script(
		Phase{Word: ds, Reads: tickHz},
		Phase{Word: ds | controlword.BitEnabled | controlword.BitAutonomous, Reads: 15 * tickHz},
		Phase{Word: ds, Reads: tickHz},
		Phase{Word: ds | controlword.BitEnabled, Reads: 135 * tickHz},
		Phase{Word: ds, Reads: 1},
	)
}

func (h *HAL) Initialize(timeout time.Duration, mode int32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.Initialize++
	if h.InitErr != nil {
		return errors.Wrap(hal.ErrHALInit, h.InitErr.Error())
	}
	h.lastRefresh = h.now()
	return nil
}

// RefreshLinkData advances the mechanism model by the wall time since the
// previous refresh.
func (h *HAL) RefreshLinkData() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.Refresh++
	now := h.now()
	if !h.lastRefresh.IsZero() {
		h.integrate(now.Sub(h.lastRefresh))
	}
	h.lastRefresh = now
	return nil
}

func (h *HAL) SignalProgramStarted() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.ProgramStarted++
	return nil
}

// ReadControlWord returns the next scripted word.
func (h *HAL) ReadControlWord() (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.ReadWord++
	if h.failNxt > 0 {
		h.failNxt--
		return 0, errors.New("sim: control word read failed")
	}
	if h.pos < len(h.script) {
		h.hold = h.script[h.pos]
		h.pos++
	}
	return h.hold, nil
}

// FailReads makes the next n control-word reads fail.
func (h *HAL) FailReads(n int) {
	h.mu.Lock()
	h.failNxt = n
	h.mu.Unlock()
}

func (h *HAL) ObserveMode(m controlword.Mode) {
	h.mu.Lock()
	h.observed = append(h.observed, m)
	h.mu.Unlock()
}

// Observed returns every mode reported so far.
func (h *HAL) Observed() []controlword.Mode {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]controlword.Mode(nil), h.observed...)
}

// Calls returns the call counters.
func (h *HAL) Calls() Calls {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *HAL) SetButtons(device int, mask uint32) {
	h.mu.Lock()
	h.buttons[device] = mask
	h.mu.Unlock()
}

func (h *HAL) SetAxis(device, axis int, v float64) {
	h.mu.Lock()
	h.axes[[2]int{device, axis}] = v
	h.mu.Unlock()
}

func (h *HAL) SetPOV(device, deg int) {
	h.mu.Lock()
	h.pov[device] = deg
	h.mu.Unlock()
}

func (h *HAL) ReadButtonBitmask(device int) (uint32, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls.ButtonQueries++
	return h.buttons[device], nil
}

func (h *HAL) ReadAxis(device, axis int) (float64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.axes[[2]int{device, axis}], nil
}

func (h *HAL) ReadPOV(device int) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if deg, ok := h.pov[device]; ok {
		return deg, nil
	}
	return -1, nil
}

func (h *HAL) SetOutput(id hal.ActuatorID, v float64) error {
	h.mu.Lock()
	h.outputs[id] = v
	h.mu.Unlock()
	return nil
}

func (h *HAL) Stop(id hal.ActuatorID) error {
	return h.SetOutput(id, 0)
}

// Output returns the value last sent to id.
func (h *HAL) Output(id hal.ActuatorID) float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outputs[id]
}

// Integrate advances every mechanism by dt.
func (h *HAL) Integrate(dt time.Duration) {
	h.mu.Lock()
	h.integrate(dt)
	h.mu.Unlock()
}

// SetPosition moves the mechanism driven by id, as an outside force would.
func (h *HAL) SetPosition(id hal.ActuatorID, p float64) {
	h.mu.Lock()
	h.positions[id] = p
	h.mu.Unlock()
}

func (h *HAL) integrate(dt time.Duration) {
	for id, v := range h.outputs {
		h.positions[id] += v * h.Scale * dt.Seconds()
	}
}

// Encoder returns an encoder on the mechanism driven by id.
func (h *HAL) Encoder(id hal.ActuatorID) hal.Encoder {
	return &encoder{h: h, id: id}
}

type encoder struct {
	h  *HAL
	id hal.ActuatorID
}

func (e *encoder) Position() (float64, error) {
	e.h.mu.Lock()
	defer e.h.mu.Unlock()
	return e.h.positions[e.id], nil
}

func (e *encoder) Velocity() (float64, error) {
	e.h.mu.Lock()
	defer e.h.mu.Unlock()
	return e.h.outputs[e.id] * e.h.Scale, nil
}

// Gyro treats the mechanism driven by id as a turntable in degrees.
func (h *HAL) Gyro(id hal.ActuatorID) hal.Gyro {
	return &gyro{encoder{h: h, id: id}}
}

type gyro struct {
	encoder
}

func (g *gyro) Heading() (float64, error) { return g.Position() }
func (g *gyro) Rate() (float64, error)    { return g.Velocity() }

var (
	_ hal.Backend      = (*HAL)(nil)
	_ hal.ModeObserver = (*HAL)(nil)
)
