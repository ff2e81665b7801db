package input

import (
	"errors"
	"testing"
	"time"
)

type countingReader struct {
	bits  uint32
	calls int
	err   error
	axes  map[int]float64
	pov   int
}

func (r *countingReader) ReadButtonBitmask(device int) (uint32, error) {
	r.calls++
	return r.bits, r.err
}

func (r *countingReader) ReadAxis(device, axis int) (float64, error) {
	return r.axes[axis], nil
}

func (r *countingReader) ReadPOV(device int) (int, error) {
	return r.pov, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestReadsWithinDebounceShareOneQuery(t *testing.T) {
	r := &countingReader{bits: 0b101}
	clk := &fakeClock{t: time.Unix(100, 0)}
	c := NewCache(0, r, WithClock(clk.now))

	a, err := c.Button(1)
	if err != nil {
		t.Fatal(err)
	}
	first := c.Snapshot()

	r.bits = 0 // hardware changed, but we are still inside the window
	clk.advance(10 * time.Millisecond)
	b, err := c.Button(1)
	if err != nil {
		t.Fatal(err)
	}
	if r.calls != 1 {
		t.Fatalf("expected 1 hardware query, got %d", r.calls)
	}
	if a != b || c.Snapshot() != first {
		t.Fatalf("snapshot changed inside debounce window")
	}

	clk.advance(5 * time.Millisecond)
	b, _ = c.Button(1)
	if r.calls != 2 || b {
		t.Fatalf("expected refresh after window: calls=%d pressed=%t", r.calls, b)
	}
}

func TestFirstReadQueries(t *testing.T) {
	r := &countingReader{bits: 1 << 4}
	c := NewCache(2, r)
	if v, _ := c.Button(5); !v {
		t.Fatal("button 5 should be pressed on first read")
	}
	if r.calls != 1 {
		t.Fatalf("expected 1 query, got %d", r.calls)
	}
}

func TestInvalidButton(t *testing.T) {
	r := &countingReader{bits: 0xFFFFFFFF}
	c := NewCache(0, r)
	for _, id := range []int{0, -1, 33} {
		if _, err := c.Button(id); !errors.Is(err, ErrInvalidButton) {
			t.Errorf("button %d: expected ErrInvalidButton, got %v", id, err)
		}
	}
	if r.calls != 0 {
		t.Fatalf("invalid ids must not query hardware, got %d calls", r.calls)
	}
	if v, err := c.Button(32); err != nil || !v {
		t.Fatalf("button 32: %t %v", v, err)
	}
}

func TestRefreshFailureKeepsSnapshot(t *testing.T) {
	r := &countingReader{bits: 1}
	clk := &fakeClock{t: time.Unix(0, 1)}
	c := NewCache(0, r, WithClock(clk.now), WithDebounce(time.Millisecond))
	if v, _ := c.Button(1); !v {
		t.Fatal("expected pressed")
	}
	r.err = errors.New("bus timeout")
	clk.advance(2 * time.Millisecond)
	v, err := c.Button(1)
	if err == nil {
		t.Fatal("expected error")
	}
	if !v {
		t.Fatal("cached state should survive a failed refresh")
	}
}

func TestRefreshIfStale(t *testing.T) {
	r := &countingReader{}
	c := NewCache(0, r)
	now := time.Unix(50, 0)
	for i := 0; i < 3; i++ {
		if err := c.RefreshIfStale(now.Add(time.Duration(i) * time.Millisecond)); err != nil {
			t.Fatal(err)
		}
	}
	if r.calls != 1 {
		t.Fatalf("expected 1 query, got %d", r.calls)
	}
}

func TestGamepadLayout(t *testing.T) {
	r := &countingReader{
		bits: 1<<(ButtonLeftBumper-1) | 1<<(ButtonA-1),
		axes: map[int]float64{AxisRightY: -0.5, 0: 0.25},
		pov:  270,
	}
	g := NewGamepad(1, r)
	if !g.LeftBumper() || !g.A() || g.B() || g.Start() {
		t.Fatal("wrong button mapping")
	}
	if v, _ := g.RightY(); v != -0.5 {
		t.Fatalf("right y: %f", v)
	}
	if v, _ := g.Joystick.X(); v != 0.25 {
		t.Fatalf("joystick x: %f", v)
	}
	if d, _ := g.Direction(); d != DirLeft {
		t.Fatalf("expected left, got %s", d)
	}
}

func TestDirectionFromDegrees(t *testing.T) {
	tests := map[int]Direction{-1: DirNone, 0: DirUp, 90: DirRight, 180: DirDown, 270: DirLeft, 45: DirOther}
	for deg, want := range tests {
		if got := DirectionFromDegrees(deg); got != want {
			t.Errorf("%d: expected %s, got %s", deg, want, got)
		}
	}
}
