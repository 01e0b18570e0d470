package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds server configuration. Fields are unexported to prevent modification.
type Config struct {
	listenAddr         string
	wsPath             string
	tickInterval       time.Duration
	factsTTL           time.Duration
	ipResolver         string
	ipProbeAddr        string
	stunServerAddr     string
	logFile            string
	logLevel           string
	serviceName        string
	serviceDisplayName string
	serviceDescription string
}

func New() *Config {
	_ = godotenv.Load() // ignore error if .env not found

	wsPath := env("WS_PATH", "/")
	if !strings.HasPrefix(wsPath, "/") {
		wsPath = "/" + wsPath
	}

	return &Config{
		listenAddr:         env("LISTEN_ADDR", "127.0.0.1:3000"),
		wsPath:             wsPath,
		tickInterval:       envDuration("TICK_INTERVAL", time.Second),
		factsTTL:           envDuration("FACTS_TTL", time.Minute),
		ipResolver:         env("IP_RESOLVER", "udp"),
		ipProbeAddr:        env("IP_PROBE_ADDR", "8.8.8.8:80"),
		stunServerAddr:     env("STUN_SERVER", "stun.l.google.com:19302"),
		logFile:            env("LOG_FILE", "server.log"),
		logLevel:           env("LOG_LEVEL", "info"),
		serviceName:        env("SERVICE_NAME", "KiroTelemetry"),
		serviceDisplayName: env("SERVICE_DISPLAY_NAME", "Kiro Telemetry Server"),
		serviceDescription: env("SERVICE_DESCRIPTION", "Streams live host metrics to Kiro clients over websocket"),
	}
}

// Getter methods (immutable from outside)

func (c *Config) ListenAddr() string {
	return c.listenAddr
}

func (c *Config) WSPath() string {
	return c.wsPath
}

func (c *Config) TickInterval() time.Duration {
	return c.tickInterval
}

func (c *Config) FactsTTL() time.Duration {
	return c.factsTTL
}

func (c *Config) IPResolver() string {
	return c.ipResolver
}

func (c *Config) IPProbeAddr() string {
	return c.ipProbeAddr
}

func (c *Config) StunServerAddr() string {
	return c.stunServerAddr
}

func (c *Config) LogFile() string {
	return c.logFile
}

func (c *Config) LogLevel() string {
	return c.logLevel
}

func (c *Config) ServiceName() string {
	return c.serviceName
}

func (c *Config) ServiceDisplayName() string {
	return c.serviceDisplayName
}

func (c *Config) ServiceDescription() string {
	return c.serviceDescription
}

func env(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

// envDuration accepts Go durations ("500ms", "2s") or plain seconds.
// Missing, malformed or non-positive values fall back to def.
func envDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if sec, err := strconv.Atoi(raw); err == nil && sec > 0 {
		return time.Duration(sec) * time.Second
	}
	return def
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return b
}
