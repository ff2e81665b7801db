// Package dslink receives driver-station control packets over UDP and
// answers each tick with a status reply.
package dslink

import (
	"net"
	"sync"
	"time"

	"github.com/Rione/racoon-frc/controlword"
	"github.com/Rione/racoon-frc/hal"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// Defaults for the link.
const (
	DefaultListen  = ":1110"
	DefaultTimeout = 100 * time.Millisecond
)

// Link is a hal.Link and input provider fed by UDP packets. It has no
// actuators of its own.
type Link struct {
	l       hclog.Logger
	listen  string
	timeout time.Duration
	now     func() time.Time

	conn *net.UDPConn
	wg   sync.WaitGroup

	mu       sync.Mutex
	latest   Packet
	latestAt time.Time
	received bool
	peer     *net.UDPAddr
	cur      Packet
	lost     bool
	mode     controlword.Mode
	started  bool
	packets  uint64
}

// Option configures a Link.
type Option func(*Link)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(k *Link) {
		k.now = now
	}
}

// New returns a link that will listen on addr once initialised. Without a
// packet for timeout the link reports the robot disabled.
func New(addr string, timeout time.Duration, l hclog.Logger, opts ...Option) *Link {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	k := &Link{
		l:       l.Named("dslink"),
		listen:  addr,
		timeout: timeout,
		now:     time.Now,
	}
	for _, o := range opts {
		o(k)
	}
	return k
}

// Initialize binds the socket. The driver station may connect later.
func (k *Link) Initialize(timeout time.Duration, mode int32) error {
	addr, err := net.ResolveUDPAddr("udp", k.listen)
	if err != nil {
		return errors.Wrapf(hal.ErrHALInit, "resolve %s: %v", k.listen, err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return errors.Wrapf(hal.ErrHALInit, "listen %s: %v", k.listen, err)
	}
	k.conn = conn
	k.l.Info("listening for driver station", "addr", conn.LocalAddr(), "hal_mode", mode)

	k.wg.Add(1)
	go k.receive()
	return nil
}

// Addr is the bound address, nil before Initialize.
func (k *Link) Addr() net.Addr {
	if k.conn == nil {
		return nil
	}
	return k.conn.LocalAddr()
}

func (k *Link) receive() {
	defer k.wg.Done()
	buf := make([]byte, 1500)
	for {
		n, addr, err := k.conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			k.l.Debug("read failed", "error", err)
			continue
		}
		p, err := UnmarshalPacket(buf[:n])
		if err != nil {
			k.l.Debug("bad packet", "from", addr, "error", err)
			continue
		}
		k.mu.Lock()
		k.latest = p
		k.latestAt = k.now()
		k.received = true
		k.peer = addr
		k.packets++
		k.mu.Unlock()
	}
}

// RefreshLinkData takes the newest packet as this tick's state and replies
// to the driver station. A stale link reads as disabled.
func (k *Link) RefreshLinkData() error {
	k.mu.Lock()
	fresh := k.received && k.now().Sub(k.latestAt) <= k.timeout
	switch {
	case fresh:
		k.cur = k.latest
		if k.lost {
			k.l.Info("driver station link recovered")
			k.lost = false
		}
	case k.received:
		k.cur = Packet{Sequence: k.latest.Sequence}
		if !k.lost {
			k.l.Warn("driver station link lost, disabling", "silence", k.now().Sub(k.latestAt))
			k.lost = true
		}
	default:
		k.cur = Packet{}
	}
	peer := k.peer
	st := Status{Sequence: k.cur.Sequence, Mode: uint32(k.mode), ProgramStarted: k.started}
	k.mu.Unlock()

	if peer == nil || k.conn == nil {
		return nil
	}
	if _, err := k.conn.WriteToUDP(MarshalStatus(st), peer); err != nil {
		return errors.Wrap(err, "status reply")
	}
	return nil
}

func (k *Link) SignalProgramStarted() error {
	k.mu.Lock()
	k.started = true
	k.mu.Unlock()
	return nil
}

func (k *Link) ReadControlWord() (uint32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.cur.Control, nil
}

func (k *Link) ObserveMode(m controlword.Mode) {
	k.mu.Lock()
	k.mode = m
	k.mu.Unlock()
}

// Lost reports whether the watchdog has tripped.
func (k *Link) Lost() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.lost
}

func (k *Link) joystick(device int) (Joystick, bool) {
	if device < 0 || device >= len(k.cur.Joysticks) {
		return Joystick{}, false
	}
	return k.cur.Joysticks[device], true
}

// ReadButtonBitmask reads 0 for devices the driver station did not send.
func (k *Link) ReadButtonBitmask(device int) (uint32, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	j, _ := k.joystick(device)
	return j.Buttons, nil
}

func (k *Link) ReadAxis(device, axis int) (float64, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	j, _ := k.joystick(device)
	if axis < 0 || axis >= len(j.Axes) {
		return 0, nil
	}
	return float64(j.Axes[axis]), nil
}

func (k *Link) ReadPOV(device int) (int, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	j, ok := k.joystick(device)
	if !ok {
		return -1, nil
	}
	return int(j.POV), nil
}

// Close stops the receiver.
func (k *Link) Close() error {
	if k.conn == nil {
		return nil
	}
	err := k.conn.Close()
	k.wg.Wait()
	return err
}

var (
	_ hal.Link         = (*Link)(nil)
	_ hal.ModeObserver = (*Link)(nil)
)
