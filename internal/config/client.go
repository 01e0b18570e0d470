package config

import (
	"time"

	"github.com/joho/godotenv"
)

const DefaultHistoryWindow = 24 * time.Hour

// ClientConfig holds client configuration. Fields are unexported to prevent modification.
type ClientConfig struct {
	nodesFile            string
	historyWindow        time.Duration
	refreshInterval      time.Duration
	reconnect            bool
	reconnectMaxInterval time.Duration
	logFile              string
	logLevel             string
}

func NewClient() *ClientConfig {
	_ = godotenv.Load() // ignore error if .env not found

	return &ClientConfig{
		nodesFile:            env("NODES_FILE", "nodes.yaml"),
		historyWindow:        envDuration("HISTORY_WINDOW", DefaultHistoryWindow),
		refreshInterval:      envDuration("REFRESH_INTERVAL", time.Second),
		reconnect:            envBool("RECONNECT", false),
		reconnectMaxInterval: envDuration("RECONNECT_MAX_INTERVAL", 30*time.Second),
		logFile:              env("LOG_FILE", "client.log"),
		logLevel:             env("LOG_LEVEL", "info"),
	}
}

// WithNodesFile returns a copy with the node list path replaced.
func (c *ClientConfig) WithNodesFile(path string) *ClientConfig {
	cp := *c
	cp.nodesFile = path
	return &cp
}

// WithHistoryWindow returns a copy with the retention window replaced.
// Non-positive windows are ignored.
func (c *ClientConfig) WithHistoryWindow(window time.Duration) *ClientConfig {
	cp := *c
	if window > 0 {
		cp.historyWindow = window
	}
	return &cp
}

func (c *ClientConfig) NodesFile() string {
	return c.nodesFile
}

func (c *ClientConfig) HistoryWindow() time.Duration {
	return c.historyWindow
}

func (c *ClientConfig) RefreshInterval() time.Duration {
	return c.refreshInterval
}

func (c *ClientConfig) Reconnect() bool {
	return c.reconnect
}

func (c *ClientConfig) ReconnectMaxInterval() time.Duration {
	return c.reconnectMaxInterval
}

func (c *ClientConfig) LogFile() string {
	return c.logFile
}

func (c *ClientConfig) LogLevel() string {
	return c.logLevel
}
