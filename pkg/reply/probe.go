package reply

import (
	"context"
	"net"
	"time"
)

// Prober reports network connectivity.
type Prober interface {
	Online(ctx context.Context) bool
}

// ProbeFunc adapts a function to Prober.
type ProbeFunc func(ctx context.Context) bool

func (f ProbeFunc) Online(ctx context.Context) bool { return f(ctx) }

// AlwaysOnline is a Prober that never reports offline.
var AlwaysOnline Prober = ProbeFunc(func(context.Context) bool { return true })

// DialProber reports online when a TCP connection to Addr succeeds.
type DialProber struct {
	Addr    string
	Timeout time.Duration
}

// DefaultProbeAddr is the Gemini API endpoint.
const DefaultProbeAddr = "generativelanguage.googleapis.com:443"

func (p *DialProber) Online(ctx context.Context) bool {
	addr := p.Addr
	if addr == "" {
		addr = DefaultProbeAddr
	}
	timeout := p.Timeout
	if timeout == 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
