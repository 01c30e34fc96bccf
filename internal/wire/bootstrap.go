package wire

import (
	"context"
	"fmt"
	"net"
	"time"
)

// Role breaks the symmetry of who listens first during bootstrap.
type Role int

const (
	Primary Role = iota
	Secondary
)

func (r Role) String() string {
	if r == Primary {
		return "primary"
	}

	return "secondary"
}

// Endpoints are the host:port pairs of both peers.
type Endpoints struct {
	LocalAddr  string
	RemoteAddr string
}

// Peers holds the two directional connections established during
// bootstrap: RequestOut/ReplyIn is used by this node's Fault Handler,
// RequestIn/ReplyOut (the same Conn, read one way) is used by the Page
// Server.
type Peers struct {
	// Out carries requests this node issues to the peer, and the replies
	// to them.
	Out *Conn
	// In carries requests the peer issues to this node, and the replies
	// to them.
	In *Conn
}

const (
	dialRetryInitial = 20 * time.Millisecond
	dialRetryMax     = 1 * time.Second
)

// dialWithBackoff dials addr with a bounded exponential backoff instead of
// a fixed pre-dial sleep, so it tolerates a peer whose listener is not yet
// up without racing a fixed delay.
func dialWithBackoff(ctx context.Context, addr string) (net.Conn, error) {
	delay := dialRetryInitial

	var dialer net.Dialer

	for {
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err == nil {
			return conn, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("wire: dial %s: %w", addr, ctx.Err())
		case <-time.After(delay):
		}

		delay *= 2
		if delay > dialRetryMax {
			delay = dialRetryMax
		}
	}
}

// Bootstrap establishes both directional connections. The primary binds,
// listens, and accepts first (becoming the request-in stream) and then
// connects to the secondary (the request-out stream); the secondary does
// the mirror image, connecting first. This is the only place bootstrap is
// asymmetric between the two roles; everything else is symmetric.
func Bootstrap(ctx context.Context, role Role, ep Endpoints) (*Peers, error) {
	// accept binds and listens only when called, so each role listens at
	// its own accept step of the bootstrap order.
	accept := func() (net.Conn, error) {
		listener, err := net.Listen("tcp", ep.LocalAddr)
		if err != nil {
			return nil, fmt.Errorf("wire: listen on %s: %w", ep.LocalAddr, err)
		}
		defer listener.Close()

		c, err := listener.Accept()
		if err != nil {
			return nil, fmt.Errorf("wire: accept on %s: %w", ep.LocalAddr, err)
		}

		return c, nil
	}

	dial := func() (net.Conn, error) {
		return dialWithBackoff(ctx, ep.RemoteAddr)
	}

	var (
		accepted, dialed net.Conn
		err              error
	)

	switch role {
	case Primary:
		// Binds/listens/accepts before dialing so the listener is up
		// before the secondary's very first dial attempt can land.
		if accepted, err = accept(); err != nil {
			return nil, err
		}

		if dialed, err = dial(); err != nil {
			return nil, err
		}
	case Secondary:
		if dialed, err = dial(); err != nil {
			return nil, err
		}

		if accepted, err = accept(); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("wire: unknown role %v", role)
	}

	return &Peers{
		Out: NewConn(dialed),
		In:  NewConn(accepted),
	}, nil
}

// Close closes both directional connections, joining any errors.
func (p *Peers) Close() error {
	outErr := p.Out.Close()
	inErr := p.In.Close()

	if outErr != nil || inErr != nil {
		return fmt.Errorf("wire: close peers: out=%v in=%v", outErr, inErr)
	}

	return nil
}
