package hal

import (
	"math"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// ErrUnknownActuator is returned for ids that were never registered.
var ErrUnknownActuator = errors.New("unknown actuator")

type follower struct {
	id       ActuatorID
	inverted bool
}

// Registry owns the actuators of a robot. Followers refer to their leader by
// id; commanding a leader mirrors the value to its followers.
type Registry struct {
	l   hclog.Logger
	bus ActuatorBus

	mu        sync.Mutex
	known     map[ActuatorID]string
	leaderOf  map[ActuatorID]ActuatorID
	followers map[ActuatorID][]follower
	outputs   map[ActuatorID]float64
}

// NewRegistry returns an empty registry writing to bus.
func NewRegistry(bus ActuatorBus, l hclog.Logger) *Registry {
	if l == nil {
		l = hclog.NewNullLogger()
	}
	return &Registry{
		l:         l.Named("actuators"),
		bus:       bus,
		known:     make(map[ActuatorID]string),
		leaderOf:  make(map[ActuatorID]ActuatorID),
		followers: make(map[ActuatorID][]follower),
		outputs:   make(map[ActuatorID]float64),
	}
}

// Register adds an actuator and returns a handle to it.
func (r *Registry) Register(id ActuatorID, name string) Actuator {
	r.mu.Lock()
	r.known[id] = name
	r.mu.Unlock()
	return &channel{r: r, id: id}
}

// Actuator returns the handle for a registered id.
func (r *Registry) Actuator(id ActuatorID) (Actuator, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.known[id]; !ok {
		return nil, errors.Wrapf(ErrUnknownActuator, "id %d", id)
	}
	return &channel{r: r, id: id}, nil
}

// Follow makes follower mirror leader, negated when inverted. Chains are not
// allowed: a leader cannot follow and a follower cannot lead.
func (r *Registry) Follow(followerID, leaderID ActuatorID, inverted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range []ActuatorID{followerID, leaderID} {
		if _, ok := r.known[id]; !ok {
			return errors.Wrapf(ErrUnknownActuator, "id %d", id)
		}
	}
	if followerID == leaderID {
		return errors.Errorf("actuator %d cannot follow itself", followerID)
	}
	if _, ok := r.leaderOf[leaderID]; ok {
		return errors.Errorf("actuator %d is itself a follower", leaderID)
	}
	if len(r.followers[followerID]) > 0 {
		return errors.Errorf("actuator %d already leads other actuators", followerID)
	}
	if prev, ok := r.leaderOf[followerID]; ok {
		r.unfollow(followerID, prev)
	}
	r.leaderOf[followerID] = leaderID
	r.followers[leaderID] = append(r.followers[leaderID], follower{id: followerID, inverted: inverted})
	return nil
}

func (r *Registry) unfollow(id, leader ActuatorID) {
	fs := r.followers[leader]
	for i, f := range fs {
		if f.id == id {
			r.followers[leader] = append(fs[:i], fs[i+1:]...)
			break
		}
	}
	delete(r.leaderOf, id)
}

// Set commands id and its followers. The value is clamped to [-1, 1].
func (r *Registry) Set(id ActuatorID, value float64) error {
	if math.IsNaN(value) {
		return errors.Errorf("actuator %d: NaN command", id)
	}
	value = math.Max(-1, math.Min(1, value))

	r.mu.Lock()
	if _, ok := r.known[id]; !ok {
		r.mu.Unlock()
		return errors.Wrapf(ErrUnknownActuator, "id %d", id)
	}
	targets := []follower{{id: id}}
	targets = append(targets, r.followers[id]...)
	for _, t := range targets {
		r.outputs[t.id] = signed(value, t.inverted)
	}
	r.mu.Unlock()

	for _, t := range targets {
		if err := r.bus.SetOutput(t.id, signed(value, t.inverted)); err != nil {
			return errors.Wrapf(err, "set actuator %d", t.id)
		}
	}
	return nil
}

func signed(v float64, inverted bool) float64 {
	if inverted {
		return -v
	}
	return v
}

// Stop stops id and its followers.
func (r *Registry) Stop(id ActuatorID) error {
	r.mu.Lock()
	if _, ok := r.known[id]; !ok {
		r.mu.Unlock()
		return errors.Wrapf(ErrUnknownActuator, "id %d", id)
	}
	ids := []ActuatorID{id}
	for _, f := range r.followers[id] {
		ids = append(ids, f.id)
	}
	for _, id := range ids {
		r.outputs[id] = 0
	}
	r.mu.Unlock()

	for _, id := range ids {
		if err := r.bus.Stop(id); err != nil {
			return errors.Wrapf(err, "stop actuator %d", id)
		}
	}
	return nil
}

// StopAll stops every registered actuator. It keeps going past failures and
// returns the first one.
func (r *Registry) StopAll() error {
	var first error
	for _, id := range r.IDs() {
		r.mu.Lock()
		r.outputs[id] = 0
		r.mu.Unlock()
		if err := r.bus.Stop(id); err != nil {
			r.l.Error("stop failed", "id", id, "error", err)
			if first == nil {
				first = errors.Wrapf(err, "stop actuator %d", id)
			}
		}
	}
	return first
}

// Output returns the last value commanded to id.
func (r *Registry) Output(id ActuatorID) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.outputs[id]
}

// IDs lists registered actuators in ascending order.
func (r *Registry) IDs() []ActuatorID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]ActuatorID, 0, len(r.known))
	for id := range r.known {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Name returns the name given at registration.
func (r *Registry) Name(id ActuatorID) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.known[id]
}

type channel struct {
	r  *Registry
	id ActuatorID
}

func (c *channel) Set(value float64) error { return c.r.Set(c.id, value) }
func (c *channel) Stop() error             { return c.r.Stop(c.id) }
