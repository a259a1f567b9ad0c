// Package transport listens for tempo/time-signature/song-position
// updates from the control bus over OSC and feeds them into the clock.
package transport

import (
	"fmt"
	"log/slog"

	"github.com/hypebeast/go-osc/osc"

	"github.com/cartomix/barline/internal/clock"
)

// Server is the OSC control-bus ingress point.
type Server struct {
	logger    *slog.Logger
	clock     *clock.Clock
	addr      string
	replyAddr string
	replyPort int
	server    *osc.Server

	// OnChange, if set, is called after any message updates the clock —
	// the caller uses it to push a tempoAndSignature frame to clients.
	OnChange func()
}

// New builds a Server that listens on 0.0.0.0:listenPort and sends its
// one-shot /initialize handshake to replyHost:replyPort.
func New(logger *slog.Logger, c *clock.Clock, listenPort int, replyHost string, replyPort int) *Server {
	return &Server{
		logger:    logger,
		clock:     c,
		addr:      fmt.Sprintf("0.0.0.0:%d", listenPort),
		replyAddr: replyHost,
		replyPort: replyPort,
	}
}

// Start launches the OSC listener in a background goroutine and sends the
// /initialize handshake. It returns once the listener goroutine has been
// started; ListenAndServe errors are logged, not returned, since they
// surface asynchronously.
func (s *Server) Start() {
	d := osc.NewStandardDispatcher()
	_ = d.AddMsgHandler("/tempo", s.handleTempo)
	_ = d.AddMsgHandler("/signature_numerator", s.handleNumerator)
	_ = d.AddMsgHandler("/signature_denominator", s.handleDenominator)
	_ = d.AddMsgHandler("/current_song_time", s.handleSongTime)

	s.server = &osc.Server{Addr: s.addr, Dispatcher: d}
	go func() {
		if err := s.server.ListenAndServe(); err != nil {
			s.logger.Error("osc transport listener stopped", "error", err)
		}
	}()

	s.sendInitialize()
}

func (s *Server) sendInitialize() {
	client := osc.NewClient(s.replyAddr, s.replyPort)
	msg := osc.NewMessage("/initialize")
	msg.Append(int32(0))
	if err := client.Send(msg); err != nil {
		s.logger.Warn("failed to send /initialize handshake", "host", s.replyAddr, "port", s.replyPort, "error", err)
		return
	}
	s.logger.Info("sent /initialize handshake", "host", s.replyAddr, "port", s.replyPort)
}

func (s *Server) handleTempo(msg *osc.Message) {
	v, ok := firstFloat(msg)
	if !ok {
		return
	}
	s.clock.SetTempo(v)
	s.notify()
}

func (s *Server) handleNumerator(msg *osc.Message) {
	v, ok := firstFloat(msg)
	if !ok {
		return
	}
	s.clock.SetNumerator(int(v))
	s.notify()
}

func (s *Server) handleDenominator(msg *osc.Message) {
	v, ok := firstFloat(msg)
	if !ok {
		return
	}
	s.clock.SetDenominator(int(v))
	s.notify()
}

func (s *Server) handleSongTime(msg *osc.Message) {
	v, ok := firstFloat(msg)
	if !ok {
		return
	}
	s.clock.SetSongPosition(v)
	s.notify()
}

func (s *Server) notify() {
	if s.OnChange != nil {
		s.OnChange()
	}
}

func firstFloat(msg *osc.Message) (float64, bool) {
	if len(msg.Arguments) == 0 {
		return 0, false
	}
	switch v := msg.Arguments[0].(type) {
	case float32:
		return float64(v), true
	case float64:
		return v, true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
