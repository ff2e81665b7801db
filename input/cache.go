// Package input wraps driver-station input devices behind a debounced
// button cache.
package input

import (
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultDebounce is the minimum time between two hardware queries of the
// same device.
const DefaultDebounce = 15 * time.Millisecond

// MaxButtons is the width of a button bitmask.
const MaxButtons = 32

// ErrInvalidButton is returned for button ids outside 1..MaxButtons.
var ErrInvalidButton = errors.New("button id out of range")

// ButtonReader reads the raw button bitmask of one device.
type ButtonReader interface {
	ReadButtonBitmask(device int) (uint32, error)
}

// AxisReader reads one analog axis of a device, normalised to [-1, 1].
type AxisReader interface {
	ReadAxis(device, axis int) (float64, error)
}

// POVReader reads the hat angle of a device in degrees, -1 when released.
type POVReader interface {
	ReadPOV(device int) (int, error)
}

// Provider is the input-device collaborator.
type Provider interface {
	ButtonReader
	AxisReader
}

// Snapshot is one read of a device's buttons.
type Snapshot struct {
	Buttons uint32
	Time    time.Time
}

// Pressed reports bit id-1.
func (s Snapshot) Pressed(id int) (bool, error) {
	if id < 1 || id > MaxButtons {
		return false, errors.Wrapf(ErrInvalidButton, "button %d", id)
	}
	return s.Buttons&(1<<uint(id-1)) != 0, nil
}

// Cache keeps the last snapshot of a device and only queries the reader
// again once the debounce interval has passed.
type Cache struct {
	device   int
	reader   ButtonReader
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	snap Snapshot
}

// CacheOption configures a Cache.
type CacheOption func(*Cache)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) CacheOption {
	return func(c *Cache) {
		c.interval = d
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) CacheOption {
	return func(c *Cache) {
		c.now = now
	}
}

// NewCache creates a cache with an empty snapshot. The empty snapshot has a
// zero timestamp so the first read always reaches the device.
func NewCache(device int, r ButtonReader, opts ...CacheOption) *Cache {
	c := &Cache{
		device:   device,
		reader:   r,
		interval: DefaultDebounce,
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Device returns the device index.
func (c *Cache) Device() int {
	return c.device
}

// RefreshIfStale queries the device once if the snapshot is older than the
// debounce interval. On a failed query the previous snapshot is kept.
func (c *Cache) RefreshIfStale(now time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(now)
}

func (c *Cache) refreshLocked(now time.Time) error {
	if !c.snap.Time.IsZero() && now.Sub(c.snap.Time) < c.interval {
		return nil
	}
	bits, err := c.reader.ReadButtonBitmask(c.device)
	if err != nil {
		return errors.Wrapf(err, "read buttons of device %d", c.device)
	}
	c.snap = Snapshot{Buttons: bits, Time: now}
	return nil
}

// Snapshot returns the cached snapshot without refreshing.
func (c *Cache) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// Button refreshes if stale and returns button id (1-indexed). When the
// refresh fails the cached state is returned together with the error.
func (c *Cache) Button(id int) (bool, error) {
	if id < 1 || id > MaxButtons {
		return false, errors.Wrapf(ErrInvalidButton, "button %d", id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.refreshLocked(c.now())
	pressed, _ := c.snap.Pressed(id)
	return pressed, err
}
