// Command server is the barline runtime process: it parses configuration,
// opens the virtual MIDI ports, starts the OSC transport listener, wires
// the engine together, and serves the client websocket channel until
// interrupted.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/cartomix/barline/internal/clock"
	"github.com/cartomix/barline/internal/config"
	"github.com/cartomix/barline/internal/engine"
	"github.com/cartomix/barline/internal/midi"
	"github.com/cartomix/barline/internal/transport"
	"github.com/cartomix/barline/internal/wsapi"
)

func main() {
	cfg := config.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	sink, err := midi.NewSink(logger, cfg.SequencePort, cfg.AutomationPort)
	if err != nil {
		logger.Error("failed to open MIDI sink", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	c := clock.New()
	eng := engine.New(logger, c, sink, cfg.SequencePort, cfg.AutomationPort)

	ws := wsapi.New(logger, eng)

	osc := transport.New(logger, c, cfg.TransportPort, "127.0.0.1", cfg.TransportReplyPort)
	osc.OnChange = func() {
		tempo, num, den, bar, beat := c.Snapshot()
		ws.BroadcastTempoAndSignature(tempo, num, den, bar, beat)
	}
	osc.Start()

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(cfg.WSPort),
		Handler: ws.Handler(),
	}

	go func() {
		logger.Info("client channel listening", "port", cfg.WSPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("client channel stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("error during shutdown", "error", err)
	}
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
