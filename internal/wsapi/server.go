// Package wsapi is the client-facing channel: a gin HTTP server exposing
// a /ws websocket endpoint that accepts JSON action messages and pushes
// back beat/tempo/CC-stream frames.
package wsapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/cartomix/barline/internal/engine"
)

// ClientMessage is the single envelope every inbound websocket frame
// decodes into; only the fields relevant to Action are populated.
type ClientMessage struct {
	Action string `json:"action"`

	Program string `json:"program,omitempty"` // DSL source, for playTrack/playCycle/addTrackToQueue/addCycleToQueue
	CycleID string `json:"cycleId,omitempty"`  // for updateCycleById/clearCycleById

	Port       string  `json:"port,omitempty"`
	Controller int     `json:"controller,omitempty"`
	Channel    int     `json:"channel,omitempty"`
	Value      int     `json:"value,omitempty"`
	From       float64 `json:"from,omitempty"`
	To         float64 `json:"to,omitempty"`
	DurationMs float64 `json:"durationMs,omitempty"`
	Easing     string  `json:"easing,omitempty"`
	StreamID   string  `json:"streamId,omitempty"`

	Streams []ClientMessage `json:"streams,omitempty"` // for streamMultipleCC
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks every connected client and implements engine.Broadcaster.
type Hub struct {
	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	logger  *slog.Logger
}

// NewHub returns an empty client hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{}), logger: logger}
}

// Broadcast marshals v to JSON and writes it to every connected client,
// dropping (and unregistering) any connection that errors.
func (h *Hub) Broadcast(v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		h.logger.Error("failed to marshal outbound frame", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.conns {
		c.SetWriteDeadline(time.Now().Add(5 * time.Second))
		if err := c.WriteMessage(websocket.TextMessage, payload); err != nil {
			c.Close()
			delete(h.conns, c)
		}
	}
}

func (h *Hub) register(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	c.Close()
}

// Server is the gin-backed HTTP/websocket front end.
type Server struct {
	router *gin.Engine
	hub    *Hub
	engine *engine.Engine
	logger *slog.Logger
}

// New builds a Server wired to eng, with CORS origins from CORS_ORIGINS
// (comma-separated, defaulting to "*" as the teacher's HTTP bootstrap
// does).
func New(logger *slog.Logger, eng *engine.Engine) *Server {
	s := &Server{
		router: gin.Default(),
		hub:    NewHub(logger),
		engine: eng,
		logger: logger,
	}
	eng.SetBroadcaster(s.hub)

	originsEnv := os.Getenv("CORS_ORIGINS")
	if originsEnv == "" {
		originsEnv = "*"
	}
	s.router.Use(cors.New(cors.Config{
		AllowOrigins: strings.Split(originsEnv, ","),
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Origin", "Content-Type"},
	}))

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.router.GET("/ws", s.handleWS)

	return s
}

// Handler returns the underlying gin engine for http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.router
}

// BroadcastTempoAndSignature pushes the current clock state to every
// client — called by cmd/server whenever the transport ingress reports a
// change.
func (s *Server) BroadcastTempoAndSignature(tempo float64, numerator, denominator, bar, beat int) {
	s.hub.Broadcast(map[string]any{
		"type":        "tempoAndSignature",
		"tempo":       tempo,
		"numerator":   numerator,
		"denominator": denominator,
		"bar":         bar,
		"beat":        beat,
	})
}

func (s *Server) handleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	s.hub.register(conn)
	defer s.hub.unregister(conn)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug("dropping malformed client message", "error", err)
			continue
		}
		s.dispatch(conn, msg)
	}
}

func (s *Server) dispatch(conn *websocket.Conn, msg ClientMessage) {
	switch msg.Action {
	case "playTrack":
		s.engine.PlayTrack(msg.Program)
	case "playCycle":
		s.engine.PlayCycle(msg.Program)
	case "addTrackToQueue":
		s.engine.AddTrackToQueue(msg.Program)
	case "addCycleToQueue":
		s.engine.AddCycleToQueue(msg.Program)
	case "updateCycleById":
		s.engine.UpdateCycleById(msg.CycleID, msg.Program)
	case "clearCycleById":
		s.engine.ClearCycleById(msg.CycleID)
	case "clearAllCycles":
		s.engine.ClearAllCycles()
	case "sendCC":
		s.engine.SendCC(msg.Port, msg.Controller, msg.Value, msg.Channel)
	case "streamCC":
		s.startStream(msg)
	case "streamMultipleCC":
		for _, sub := range msg.Streams {
			s.startStream(sub)
		}
	case "stopCCStream":
		s.engine.StopCCStream(msg.StreamID)
	case "stopAllCCStreams":
		s.engine.StopAllCCStreams()
	case "getActiveCCStreams":
		s.replyActiveCCStreams(conn)
	default:
		s.logger.Debug("unrecognized client action", "action", msg.Action)
	}
}

func (s *Server) startStream(msg ClientMessage) {
	id := msg.StreamID
	if id == "" {
		id = msg.Port
	}
	duration := time.Duration(msg.DurationMs * float64(time.Millisecond))
	channel := msg.Channel
	if channel == 0 {
		channel = 1
	}
	s.engine.StreamCC(id, msg.Port, msg.Controller, channel, msg.From, msg.To, duration, msg.Easing)
}

func (s *Server) replyActiveCCStreams(conn *websocket.Conn) {
	payload, err := json.Marshal(map[string]any{
		"type":    "activeCCStreams",
		"streams": s.engine.ActiveCCStreams(),
	})
	if err != nil {
		s.logger.Error("failed to marshal activeCCStreams reply", "error", err)
		return
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		s.logger.Debug("failed to write activeCCStreams reply", "error", err)
	}
}
