package relay

import (
	"log"
	"time"
)

// HeartbeatConfig holds heartbeat tuning parameters.
type HeartbeatConfig struct {
	Interval time.Duration `env:"INTERVAL" envDefault:"30s"` // how often to ping
	Timeout  time.Duration `env:"TIMEOUT" envDefault:"10s"`  // grace after a missed ping
}

// DefaultHeartbeatConfig returns sensible defaults for heartbeat monitoring.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// startHeartbeat pings every connection each Interval and drops those with
// no inbound frame for Interval + Timeout. It stops when the server shuts
// down.
func (s *Server) startHeartbeat() {
	cfg := s.config.Heartbeat
	if cfg.Interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.checkConnections(cfg)
			}
		}
	}()
}

func (s *Server) checkConnections(cfg HeartbeatConfig) {
	deadline := cfg.Interval + cfg.Timeout
	now := time.Now()

	for _, c := range s.conns.All() {
		if idle := now.Sub(c.LastActive()); idle > deadline {
			log.Printf("relay: heartbeat timeout conn=%s session=%s idle=%s",
				c.ID, c.SessionID, idle.Round(time.Second))
			s.removeConnection(c)
			continue
		}
		if err := c.WritePing(); err != nil {
			log.Printf("relay: heartbeat ping failed conn=%s: %v", c.ID, err)
			s.removeConnection(c)
		}
	}
}
