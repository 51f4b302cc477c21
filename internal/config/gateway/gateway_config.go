package gateway

import (
	"net"
	"strconv"
)

// GatewayConfig holds the front-end HTTP server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
	// FrontendURL is the only browser origin besides the backend allowed to open sockets.
	FrontendURL string `json:"frontendUrl"`
	CheckOrigin bool   `json:"checkOrigin"`
	// Heartbeat is the cron schedule of the status reporter.
	Heartbeat string `json:"heartbeat"`
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		Host:        "0.0.0.0",
		Port:        8012,
		FrontendURL: "http://localhost:3000",
		CheckOrigin: true,
		Heartbeat:   "@every 1m",
	}
}

func (c GatewayConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
