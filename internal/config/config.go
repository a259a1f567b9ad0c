// Package config parses process-level settings for the barline runtime.
package config

import (
	"flag"
	"os"
	"strconv"
)

// Config holds everything read from flags/environment at startup.
type Config struct {
	// WSPort is the HTTP/WS port clients submit programs on.
	WSPort int
	// TransportPort is the control-bus UDP port the host broadcasts tempo/signature/position on.
	TransportPort int
	// TransportReplyPort is the UDP port the one-shot /initialize datagram is sent to.
	TransportReplyPort int
	// SequencePort and AutomationPort are the virtual MIDI output port names.
	SequencePort   string
	AutomationPort string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
}

const (
	defaultWSPort        = 4254
	defaultTransportPort = 4254
)

// Parse builds a Config from flags, falling back to environment variables
// and then to defaults. Flags take precedence over the environment.
func Parse() *Config {
	cfg := &Config{}

	flag.IntVar(&cfg.WSPort, "port", envInt("PORT", defaultWSPort), "HTTP/WS port for client program submission")
	flag.IntVar(&cfg.TransportPort, "transport-port", envInt("TRANSPORT_PORT", defaultTransportPort), "control-bus UDP port")
	flag.IntVar(&cfg.TransportReplyPort, "transport-reply-port", envInt("TRANSPORT_REPLY_PORT", defaultTransportPort+1), "UDP port the /initialize datagram is sent to")
	flag.StringVar(&cfg.SequencePort, "sequence-port", envString("SEQUENCE_PORT", "sequence"), "virtual MIDI output port name for note events")
	flag.StringVar(&cfg.AutomationPort, "automation-port", envString("AUTOMATION_PORT", "automation"), "virtual MIDI output port name for CC automation")
	flag.StringVar(&cfg.LogLevel, "log-level", envString("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")

	flag.Parse()
	return cfg
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
