package quota

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"
)

// Endpoint names the upstream read endpoints the tracker accounts for.
type Endpoint string

const (
	EndpointSearch   Endpoint = "search"
	EndpointTimeline Endpoint = "timeline"
)

// Meta is the authoritative rate-limit metadata echoed by the upstream API.
// Values of zero/zero-time mean "not reported" and are ignored.
type Meta struct {
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// State is the tracked rate-limit state for one endpoint.
// Invariant: Remaining stays within [0, Limit]; WindowResetAt only moves
// forward except on an explicit window rollover.
type State struct {
	Limit               int       `json:"limit"`
	Remaining           int       `json:"remaining"`
	WindowResetAt       time.Time `json:"window_reset_at"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Tracker keeps per-endpoint rate-limit state. Pure bookkeeping, no I/O.
// Local defaults are provisional: the first Observe with authoritative
// upstream values overwrites them.
type Tracker struct {
	mu     sync.Mutex
	states map[Endpoint]*State
	now    func() time.Time
}

// DefaultLimits seeds the tracker before any authoritative observation.
// Search quotas are far tighter than timeline quotas on the platform.
var DefaultLimits = map[Endpoint]int{
	EndpointSearch:   60,
	EndpointTimeline: 300,
}

func NewTracker() *Tracker {
	t := &Tracker{states: map[Endpoint]*State{}, now: time.Now}
	for ep, limit := range DefaultLimits {
		t.states[ep] = &State{Limit: limit, Remaining: limit}
	}
	return t
}

func (t *Tracker) state(ep Endpoint) *State {
	s, ok := t.states[ep]
	if !ok {
		s = &State{Limit: 1, Remaining: 1}
		t.states[ep] = s
	}
	return s
}

// CanConsume reports whether a call to the endpoint is allowed right now.
// When the window has passed it lazily rolls the quota over to the full
// limit and clears the reset time.
func (t *Tracker) CanConsume(ep Endpoint) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(ep)
	if s.Remaining > 0 {
		return true
	}
	if !s.WindowResetAt.IsZero() && t.now().Before(s.WindowResetAt) {
		return false
	}
	// lazy window rollover
	s.Remaining = s.Limit
	s.WindowResetAt = time.Time{}
	return true
}

// Consume records one call against the endpoint's quota.
func (t *Tracker) Consume(ep Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(ep)
	if s.Remaining > 0 {
		s.Remaining--
	}
}

// Observe ingests authoritative limit/remaining/reset values from a live
// response. Authoritative data always overwrites the local estimate; naive
// defaults can be wrong by orders of magnitude.
func (t *Tracker) Observe(ep Endpoint, m Meta) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.state(ep)
	if m.Limit > 0 {
		s.Limit = m.Limit
	}
	if m.Limit > 0 || m.Remaining > 0 || !m.ResetAt.IsZero() {
		s.Remaining = clamp(m.Remaining, 0, s.Limit)
	}
	if !m.ResetAt.IsZero() {
		s.WindowResetAt = m.ResetAt
	}
}

// RecordFailure bumps the consecutive-failure counter for an endpoint.
func (t *Tracker) RecordFailure(ep Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(ep).ConsecutiveFailures++
}

// RecordSuccess clears the consecutive-failure counter.
func (t *Tracker) RecordSuccess(ep Endpoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state(ep).ConsecutiveFailures = 0
}

// Get returns a copy of the endpoint's current state.
func (t *Tracker) Get(ep Endpoint) State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return *t.state(ep)
}

// Snapshot serializes all endpoint states for persistence across restarts.
func (t *Tracker) Snapshot() ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return json.Marshal(t.states)
}

// Restore loads a previously persisted snapshot. Unknown endpoints in the
// snapshot are kept; endpoints missing from it retain their defaults.
func (t *Tracker) Restore(b []byte) error {
	var states map[Endpoint]*State
	if err := json.Unmarshal(b, &states); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for ep, s := range states {
		s.Remaining = clamp(s.Remaining, 0, s.Limit)
		t.states[ep] = s
	}
	slog.Info("quota: restored state", "endpoints", len(states))
	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
