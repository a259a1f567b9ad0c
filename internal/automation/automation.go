// Package automation runs CC ramps: a controller value eased from one
// value to another over a duration, ticked at a fixed interval and
// dispatched to a MIDI sink.
package automation

import (
	"context"
	"strings"
	"sync"
	"time"
)

const tickInterval = 10 * time.Millisecond

// easings maps an easing name (case-insensitive, dashes ignored) to its
// t in [0,1] -> [0,1] curve. easeIn/easeOut/easeInOut alias to the cubic
// variants, per SPEC_FULL.md §4.6.
var easings = map[string]func(float64) float64{
	"linear":        func(t float64) float64 { return t },
	"easein":        easeInCubic,
	"easeout":       easeOutCubic,
	"easeinout":     easeInOutCubic,
	"easeinquad":    easeInQuad,
	"easeoutquad":   easeOutQuad,
	"easeinoutquad": easeInOutQuad,
	"easeincubic":   easeInCubic,
	"easeoutcubic":  easeOutCubic,
	"easeinoutcubic": easeInOutCubic,
}

func easeInQuad(t float64) float64  { return t * t }
func easeOutQuad(t float64) float64 { return t * (2 - t) }
func easeInOutQuad(t float64) float64 {
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}
func easeInCubic(t float64) float64 { return t * t * t }
func easeOutCubic(t float64) float64 {
	f := t - 1
	return f*f*f + 1
}
func easeInOutCubic(t float64) float64 {
	if t < 0.5 {
		return 4 * t * t * t
	}
	f := 2*t - 2
	return 0.5*f*f*f + 1
}

func resolveEasing(name string) func(float64) float64 {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), "-", ""))
	if f, ok := easings[key]; ok {
		return f
	}
	return easings["linear"]
}

// Sink is the subset of midi.Sink a Stream needs to dispatch CC values.
type Sink interface {
	ControlChange(port string, controller, value, channel uint8)
}

// Stream is one active CC ramp.
type Stream struct {
	ID         string
	Port       string
	Controller int
	Channel    int
	From       float64
	To         float64
	Duration   time.Duration
	Easing     string

	ease  func(float64) float64
	mu    sync.Mutex
	start time.Time
	done  bool
	value float64
}

// NewStream builds a Stream ready to Run.
func NewStream(id, port string, controller, channel int, from, to float64, duration time.Duration, easing string) *Stream {
	return &Stream{
		ID:         id,
		Port:       port,
		Controller: controller,
		Channel:    channel,
		From:       from,
		To:         to,
		Duration:   duration,
		Easing:     easing,
		ease:       resolveEasing(easing),
		value:      from,
	}
}

// Run drives the stream until its duration elapses or ctx is cancelled,
// calling sink.ControlChange at each 10ms tick. The terminal tick always
// dispatches the exact To value regardless of tick-boundary rounding.
func (s *Stream) Run(ctx context.Context, sink Sink) {
	s.mu.Lock()
	s.start = time.Now()
	s.mu.Unlock()

	if s.Duration <= 0 {
		s.dispatch(sink, s.To)
		s.markDone()
		return
	}

	s.dispatch(sink, s.From)

	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			elapsed := now.Sub(s.start)
			if elapsed >= s.Duration {
				s.dispatch(sink, s.To)
				s.markDone()
				return
			}
			s.dispatch(sink, s.valueAt(elapsed))
		}
	}
}

func (s *Stream) dispatch(sink Sink, value float64) {
	s.mu.Lock()
	s.value = value
	s.mu.Unlock()
	sink.ControlChange(s.Port, uint8(s.Controller), clampCC(value), uint8(s.Channel))
}

func clampCC(v float64) uint8 {
	if v < 0 {
		return 0
	}
	if v > 127 {
		return 127
	}
	return uint8(v)
}

func (s *Stream) markDone() {
	s.mu.Lock()
	s.done = true
	s.mu.Unlock()
}

func (s *Stream) valueAt(elapsed time.Duration) float64 {
	progress := s.Progress(elapsed)
	return s.From + (s.To-s.From)*s.ease(progress)
}

// Progress returns elapsed/Duration clamped to [0,1].
func (s *Stream) Progress(elapsed time.Duration) float64 {
	if s.Duration <= 0 {
		return 1
	}
	p := float64(elapsed) / float64(s.Duration)
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// IsComplete reports whether the stream has dispatched its terminal value.
func (s *Stream) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Snapshot is the point-in-time state reported by getActiveCCStreams.
type Snapshot struct {
	ID           string  `json:"id"`
	Port         string  `json:"port"`
	Controller   int     `json:"controller"`
	Channel      int     `json:"channel"`
	From         float64 `json:"from"`
	To           float64 `json:"to"`
	Easing       string  `json:"easing"`
	Progress     float64 `json:"progress"`
	CurrentValue float64 `json:"currentValue"`
}

// Snapshot reports this stream's current progress and value.
func (s *Stream) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	elapsed := time.Since(s.start)
	return Snapshot{
		ID:           s.ID,
		Port:         s.Port,
		Controller:   s.Controller,
		Channel:      s.Channel,
		From:         s.From,
		To:           s.To,
		Easing:       s.Easing,
		Progress:     s.Progress(elapsed),
		CurrentValue: s.value,
	}
}

// Manager tracks every active CC stream, keyed by an opaque id assigned by
// the caller (the engine derives ids for DSL automation atoms; streams
// started over the client channel use the client's stream id, or the port
// name when none is given).
type Manager struct {
	mu      sync.Mutex
	streams map[string]*streamHandle
}

type streamHandle struct {
	stream *Stream
	cancel context.CancelFunc
}

// NewManager returns an empty stream manager.
func NewManager() *Manager {
	return &Manager{streams: make(map[string]*streamHandle)}
}

// Start installs and runs a new stream under id, replacing and stopping
// any prior stream registered under the same id.
func (m *Manager) Start(ctx context.Context, id string, s *Stream, sink Sink) {
	runCtx, cancel := context.WithCancel(ctx)

	m.mu.Lock()
	if existing, ok := m.streams[id]; ok {
		existing.cancel()
	}
	m.streams[id] = &streamHandle{stream: s, cancel: cancel}
	m.mu.Unlock()

	go func() {
		s.Run(runCtx, sink)
		m.mu.Lock()
		if h, ok := m.streams[id]; ok && h.stream == s {
			delete(m.streams, id)
		}
		m.mu.Unlock()
	}()
}

// Stop cancels the stream registered under id, if any.
func (m *Manager) Stop(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.streams[id]; ok {
		h.cancel()
		delete(m.streams, id)
	}
}

// StopAll cancels every active stream.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, h := range m.streams {
		h.cancel()
		delete(m.streams, id)
	}
}

// Snapshots returns a point-in-time view of every active stream.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.Lock()
	handles := make([]*streamHandle, 0, len(m.streams))
	for _, h := range m.streams {
		handles = append(handles, h)
	}
	m.mu.Unlock()

	out := make([]Snapshot, 0, len(handles))
	for _, h := range handles {
		out = append(out, h.stream.Snapshot())
	}
	return out
}
