// Package midi dispatches note and controller events to live MIDI output
// ports. Channels passed to Sink methods are raw 0-based MIDI channels;
// converting the DSL's 1-based channel numbers is the caller's job.
package midi

import (
	"log/slog"
	"sync"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Sink is the MIDI output surface the planner/engine dispatch against.
// gomidiSink below drives real virtual MIDI ports; RecordingSink (used by
// tests) just remembers what it was sent.
type Sink interface {
	NoteOn(port string, note, velocity, channel uint8)
	NoteOff(port string, note, channel uint8)
	ControlChange(port string, controller, value, channel uint8)
}

// gomidiSink opens one virtual output port per name given at construction
// and fans NoteOn/NoteOff/ControlChange out to whichever port is named.
type gomidiSink struct {
	mu      sync.Mutex
	logger  *slog.Logger
	driver  *rtmididrv.Driver
	outs    map[string]drivers.Out
	senders map[string]func(midi.Message) error
	warned  map[string]*sync.Once
}

// NewSink opens a virtual MIDI output port for each name in portNames. A
// port that fails to open (no rtmidi backend, name clash, etc.) is logged
// and left out; events sent to it are dropped, with one more warning on
// the first such event, rather than failing the whole engine — live-coding a pattern shouldn't die because one of the two
// ports couldn't bind.
func NewSink(logger *slog.Logger, portNames ...string) (*gomidiSink, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, err
	}

	s := &gomidiSink{
		logger:  logger,
		driver:  drv,
		outs:    make(map[string]drivers.Out),
		senders: make(map[string]func(midi.Message) error),
		warned:  make(map[string]*sync.Once),
	}

	for _, name := range portNames {
		s.warned[name] = &sync.Once{}
		out, err := drv.OpenVirtualOut(name)
		if err != nil {
			logger.Warn("failed to open virtual MIDI output port", "port", name, "error", err)
			continue
		}
		send, err := midi.SendTo(out)
		if err != nil {
			logger.Warn("failed to attach sender to MIDI output port", "port", name, "error", err)
			continue
		}
		s.outs[name] = out
		s.senders[name] = send
	}
	return s, nil
}

func (s *gomidiSink) NoteOn(port string, note, velocity, channel uint8) {
	s.send(port, midi.NoteOn(channel, note, velocity))
}

func (s *gomidiSink) NoteOff(port string, note, channel uint8) {
	s.send(port, midi.NoteOff(channel, note))
}

func (s *gomidiSink) ControlChange(port string, controller, value, channel uint8) {
	s.send(port, midi.ControlChange(channel, controller, value))
}

func (s *gomidiSink) send(port string, msg midi.Message) {
	s.mu.Lock()
	sendFn, ok := s.senders[port]
	once := s.warned[port]
	s.mu.Unlock()

	if !ok {
		if once != nil {
			once.Do(func() {
				s.logger.Warn("MIDI output unavailable, dropping events", "port", port)
			})
		}
		return
	}
	if err := sendFn(msg); err != nil {
		s.logger.Debug("midi send failed", "port", port, "error", err)
	}
}

// Close releases every open port and the underlying driver.
func (s *gomidiSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, out := range s.outs {
		out.Close()
	}
	if s.driver != nil {
		s.driver.Close()
	}
}

// RecordingSink is a test fake that records every call instead of sending
// real MIDI.
type RecordingSink struct {
	mu     sync.Mutex
	Events []Event
}

// Event is one recorded Sink call.
type Event struct {
	Kind       string // "noteOn", "noteOff", "cc"
	Port       string
	Note       uint8
	Velocity   uint8
	Controller uint8
	Value      uint8
	Channel    uint8
}

func (r *RecordingSink) NoteOn(port string, note, velocity, channel uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{Kind: "noteOn", Port: port, Note: note, Velocity: velocity, Channel: channel})
}

func (r *RecordingSink) NoteOff(port string, note, channel uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{Kind: "noteOff", Port: port, Note: note, Channel: channel})
}

func (r *RecordingSink) ControlChange(port string, controller, value, channel uint8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Event{Kind: "cc", Port: port, Controller: controller, Value: value, Channel: channel})
}

// Snapshot returns a copy of the events recorded so far.
func (r *RecordingSink) Snapshot() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.Events))
	copy(out, r.Events)
	return out
}

// Dispatcher fires a note (possibly a chord) and schedules its matching
// NoteOff duration-50ms later, floored at zero, per SPEC_FULL.md §4.8.
type Dispatcher struct {
	sink Sink
}

// NewDispatcher wraps sink with note-off scheduling.
func NewDispatcher(sink Sink) *Dispatcher {
	return &Dispatcher{sink: sink}
}

// FireNote sends NoteOn for every note (a chord fires all simultaneously)
// and schedules the matching NoteOff.
func (d *Dispatcher) FireNote(port string, notes []uint8, velocity, channel uint8, duration time.Duration) {
	for _, n := range notes {
		d.sink.NoteOn(port, n, velocity, channel)
	}
	off := duration - 50*time.Millisecond
	if off < 0 {
		off = 0
	}
	time.AfterFunc(off, func() {
		for _, n := range notes {
			d.sink.NoteOff(port, n, channel)
		}
	})
}

// FireCC sends one immediate ControlChange (used by the wsapi sendCC
// action, which bypasses the automation package entirely).
func (d *Dispatcher) FireCC(port string, controller, value, channel uint8) {
	d.sink.ControlChange(port, controller, value, channel)
}
