// Package engine wires the clock, DSL parser, planner, randomizer, cycle
// registry, CC automation manager, and MIDI dispatcher together behind
// the small set of operations the client channel (wsapi) calls.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cartomix/barline/internal/automation"
	"github.com/cartomix/barline/internal/clock"
	"github.com/cartomix/barline/internal/cycle"
	"github.com/cartomix/barline/internal/dsl"
	"github.com/cartomix/barline/internal/midi"
	"github.com/cartomix/barline/internal/planner"
	"github.com/cartomix/barline/internal/randomizer"
)

// Broadcaster pushes a JSON-able frame out to every connected client. The
// wsapi package's Hub implements this; Engine only depends on the
// interface so it never imports wsapi.
type Broadcaster interface {
	Broadcast(v any)
}

// Engine is the live-coding runtime: one per process.
type Engine struct {
	logger     *slog.Logger
	clock      *clock.Clock
	registry   *cycle.Registry
	resolver   *randomizer.Resolver
	dispatcher *midi.Dispatcher
	sink       midi.Sink
	ccManager  *automation.Manager

	sequencePort   string
	automationPort string

	broadcaster Broadcaster
}

// New builds an Engine and subscribes it to the clock's bar boundary.
func New(logger *slog.Logger, c *clock.Clock, sink midi.Sink, sequencePort, automationPort string) *Engine {
	e := &Engine{
		logger:         logger,
		clock:          c,
		registry:       cycle.NewRegistry(),
		resolver:       randomizer.New(time.Now().UnixNano()),
		dispatcher:     midi.NewDispatcher(sink),
		sink:           sink,
		ccManager:      automation.NewManager(),
		sequencePort:   sequencePort,
		automationPort: automationPort,
	}
	c.Subscribe(e.onBar)
	return e
}

// SetBroadcaster installs the client-channel push target, used for the
// "beat" outbound frame.
func (e *Engine) SetBroadcaster(b Broadcaster) {
	e.broadcaster = b
}

type beatFrame struct {
	Type string `json:"type"`
	Bar  int    `json:"bar"`
	Beat int    `json:"beat"`
}

func (e *Engine) onBar(bar, beat int) {
	for _, item := range e.registry.OnBarTick() {
		e.install(item)
	}

	cv := e.clock.Vars()
	for id, prog := range e.registry.Snapshot() {
		e.firePlan(id, prog.Plan, cv)
	}

	if e.broadcaster != nil {
		e.broadcaster.Broadcast(beatFrame{Type: "beat", Bar: bar, Beat: beat})
	}
}

func (e *Engine) install(item cycle.QueueItem) {
	switch item.Kind {
	case "track":
		e.fireTrackNow(item.Program)
	case "cycle":
		e.installCycle(item.ID, item.Program)
	}
}

func (e *Engine) fireTrackNow(prog *dsl.Program) {
	if prog == nil {
		return
	}
	id := fmt.Sprintf("track-%d", time.Now().UnixNano())
	e.firePlan(id, prog.Plan, e.clock.Vars())
}

func (e *Engine) installCycle(id string, prog *dsl.Program) {
	if id == "" {
		id = uuid.NewString()
	}
	e.applyTransportOverrides(prog)
	e.registry.PlayCycle(id, prog)
	e.firePlan(id, prog.Plan, e.clock.Vars())
}

// applyTransportOverrides lets a t(id).bpm(x).sn(n).sd(d).play([...])
// program drive the global clock directly, a convenience for setting
// tempo from code instead of the external control surface.
func (e *Engine) applyTransportOverrides(prog *dsl.Program) {
	cv := e.clock.Vars()
	if prog.Tempo != nil {
		e.clock.SetTempo(prog.Tempo.Eval(cv))
	}
	if prog.Numerator != nil {
		e.clock.SetNumerator(int(prog.Numerator.Eval(cv)))
	}
	if prog.Denominator != nil {
		e.clock.SetDenominator(int(prog.Denominator.Eval(cv)))
	}
}

func (e *Engine) firePlan(prefix string, plan dsl.Plan, cv dsl.ClockVars) {
	for bi, block := range plan.Blocks {
		key := fmt.Sprintf("%s.block%d", prefix, bi)
		res := planner.PlanBlock(key, block, cv, e.resolver)

		for _, n := range res.Notes {
			n := n
			velocity := n.Velocity
			if n.Muted {
				velocity = 0
			}
			time.AfterFunc(n.Offset, func() {
				for _, ch := range n.Channels {
					e.dispatcher.FireNote(e.sequencePort, n.Notes, velocity, ch-1, n.Duration)
				}
			})
		}

		for ai, a := range res.Automations {
			a := a
			streamID := fmt.Sprintf("%s.auto%d", key, ai)
			time.AfterFunc(a.Offset, func() {
				stream := automation.NewStream(streamID, e.automationPort, a.Controller, int(a.Channel)-1, a.From, a.To, a.Duration, a.Easing)
				e.ccManager.Start(context.Background(), streamID, stream, e.sink)
			})
		}
	}
}

// PlayTrack fires raw once, immediately (its first block starts on this
// call, not deferred to the next bar).
func (e *Engine) PlayTrack(raw string) {
	prog := dsl.Parse(raw)
	if prog.Kind == dsl.ProgramStop {
		e.registry.ClearCycleById(prog.CycleID)
		return
	}
	if prog.Kind == dsl.ProgramCycle {
		e.installCycle(prog.CycleID, prog)
		return
	}
	e.fireTrackNow(prog)
}

// AddTrackToQueue parses raw and defers its install to the next bar
// boundary.
func (e *Engine) AddTrackToQueue(raw string) {
	prog := dsl.Parse(raw)
	if prog.Kind == dsl.ProgramStop {
		e.registry.ClearCycleById(prog.CycleID)
		return
	}
	kind := "track"
	id := ""
	if prog.Kind == dsl.ProgramCycle {
		kind = "cycle"
		id = prog.CycleID
	}
	e.registry.Enqueue(cycle.QueueItem{Kind: kind, ID: id, Program: prog})
}

// PlayCycle parses raw as a t(id)...play([...]) program and installs it
// immediately, returning the (possibly generated) cycle id. A t(id).stop()
// program stops that cycle regardless of the action it arrived under.
func (e *Engine) PlayCycle(raw string) string {
	prog := dsl.Parse(raw)
	if prog.Kind == dsl.ProgramStop {
		e.registry.ClearCycleById(prog.CycleID)
		return ""
	}
	if prog.Kind != dsl.ProgramCycle {
		return ""
	}
	if prog.CycleID == "" {
		prog.CycleID = uuid.NewString()
	}
	e.installCycle(prog.CycleID, prog)
	return prog.CycleID
}

// AddCycleToQueue is PlayCycle, deferred to the next bar boundary. A
// t(id).stop() program stops that cycle immediately, same as PlayCycle,
// rather than deferring the stop to the next bar.
func (e *Engine) AddCycleToQueue(raw string) string {
	prog := dsl.Parse(raw)
	if prog.Kind == dsl.ProgramStop {
		e.registry.ClearCycleById(prog.CycleID)
		return ""
	}
	if prog.Kind != dsl.ProgramCycle {
		return ""
	}
	if prog.CycleID == "" {
		prog.CycleID = uuid.NewString()
	}
	e.registry.Enqueue(cycle.QueueItem{Kind: "cycle", ID: prog.CycleID, Program: prog})
	return prog.CycleID
}

// UpdateCycleById parses raw and stages it as id's next-bar update.
func (e *Engine) UpdateCycleById(id, raw string) bool {
	prog := dsl.Parse(raw)
	e.applyTransportOverrides(prog)
	return e.registry.UpdateCycleById(id, prog)
}

// ClearCycleById removes a cycle immediately.
func (e *Engine) ClearCycleById(id string) {
	e.registry.ClearCycleById(id)
}

// ClearAllCycles removes every active cycle immediately.
func (e *Engine) ClearAllCycles() {
	e.registry.ClearAllCycles()
}

// SendCC dispatches one immediate ControlChange, bypassing the DSL and
// the automation manager entirely.
func (e *Engine) SendCC(port string, controller, value, channel int) {
	e.dispatcher.FireCC(port, uint8(controller), uint8(value), uint8(channel-1))
}

// StreamCC starts (or replaces) one named CC ramp.
func (e *Engine) StreamCC(id, port string, controller, channel int, from, to float64, duration time.Duration, easing string) {
	stream := automation.NewStream(id, port, controller, channel-1, from, to, duration, easing)
	e.ccManager.Start(context.Background(), id, stream, e.sink)
}

// StopCCStream cancels one named stream.
func (e *Engine) StopCCStream(id string) {
	e.ccManager.Stop(id)
}

// StopAllCCStreams cancels every active stream.
func (e *Engine) StopAllCCStreams() {
	e.ccManager.StopAll()
}

// ActiveCCStreams reports every running stream's current state.
func (e *Engine) ActiveCCStreams() []automation.Snapshot {
	return e.ccManager.Snapshots()
}

// SequencePort and AutomationPort expose the virtual MIDI port names this
// engine dispatches to, for diagnostics/logging.
func (e *Engine) SequencePort() string   { return e.sequencePort }
func (e *Engine) AutomationPort() string { return e.automationPort }
